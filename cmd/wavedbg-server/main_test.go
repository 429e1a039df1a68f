package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/tracewave/wavedbg/internal/config"
)

func writeMappingFile(t *testing.T, dir string) string {
	t.Helper()

	table := map[string]string{"pc": "top.cpu.pc"}
	for i := 0; i < 32; i++ {
		table[jsonRegName(i)] = jsonRegPath(i)
	}

	path := filepath.Join(dir, "signals.json")

	data, err := json.Marshal(table)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	return path
}

func jsonRegName(i int) string { return "x" + strconv.Itoa(i) }
func jsonRegPath(i int) string { return "top.cpu.regs[" + strconv.Itoa(i) + "]" }

func TestResolveMapperJSONPath(t *testing.T) {
	dir := t.TempDir()
	path := writeMappingFile(t, dir)

	cfg := config.Config{
		MappingPath:   path,
		APIConstraint: ">= 1.0.0, < 2.0.0",
	}

	mapper, err := resolveMapper(cfg)
	if err != nil {
		t.Fatalf("resolveMapper: %v", err)
	}

	if mapper.APIVersion() != "1.0.0" {
		t.Fatalf("APIVersion = %q, want 1.0.0", mapper.APIVersion())
	}
}

func TestResolveMapperRejectsOutOfRangeConstraint(t *testing.T) {
	dir := t.TempDir()
	path := writeMappingFile(t, dir)

	cfg := config.Config{
		MappingPath:   path,
		APIConstraint: ">= 2.0.0, < 3.0.0",
	}

	if _, err := resolveMapper(cfg); err == nil {
		t.Fatal("expected a constraint violation error")
	}
}

func TestResolveMapperPluginUnavailableWithoutPath(t *testing.T) {
	cfg := config.Config{
		MappingPlugin: "nonexistent.so",
		APIConstraint: ">= 1.0.0, < 2.0.0",
	}

	if _, err := resolveMapper(cfg); err == nil {
		t.Fatal("expected an error resolving a nonexistent plugin")
	}
}
