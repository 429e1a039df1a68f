package config

import "testing"

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]string{
		"-wave-path", "trace.fst",
		"-elf", "fw.elf",
		"-mapping-path", "signals.json",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Addr != ":9001" {
		t.Fatalf("Addr = %q, want :9001", cfg.Addr)
	}

	if cfg.APIConstraint != ">= 1.0.0, < 2.0.0" {
		t.Fatalf("APIConstraint = %q, want default range", cfg.APIConstraint)
	}

	if cfg.DiagHTTPAddr != "" {
		t.Fatalf("DiagHTTPAddr = %q, want empty by default", cfg.DiagHTTPAddr)
	}
}

func TestParseRejectsMissingWavePath(t *testing.T) {
	_, err := Parse([]string{"-elf", "fw.elf", "-mapping-path", "signals.json"})
	if err == nil {
		t.Fatal("expected error for missing -wave-path")
	}
}

func TestParseRejectsMissingElf(t *testing.T) {
	_, err := Parse([]string{"-wave-path", "trace.fst", "-mapping-path", "signals.json"})
	if err == nil {
		t.Fatal("expected error for missing -elf")
	}
}

func TestParseRejectsNeitherMappingSource(t *testing.T) {
	_, err := Parse([]string{"-wave-path", "trace.fst", "-elf", "fw.elf"})
	if err == nil {
		t.Fatal("expected error when neither -mapping-path nor -mapping-plugin given")
	}
}

func TestParseRejectsBothMappingSources(t *testing.T) {
	_, err := Parse([]string{
		"-wave-path", "trace.fst",
		"-elf", "fw.elf",
		"-mapping-path", "signals.json",
		"-mapping-plugin", "mapper.so",
	})
	if err == nil {
		t.Fatal("expected error when both -mapping-path and -mapping-plugin given")
	}
}

func TestParseAcceptsMappingPlugin(t *testing.T) {
	cfg, err := Parse([]string{
		"-wave-path", "trace.fst",
		"-elf", "fw.elf",
		"-mapping-plugin", "mapper.so",
		"-diag-http", ":8443",
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.MappingPlugin != "mapper.so" {
		t.Fatalf("MappingPlugin = %q, want mapper.so", cfg.MappingPlugin)
	}

	if cfg.DiagHTTPAddr != ":8443" {
		t.Fatalf("DiagHTTPAddr = %q, want :8443", cfg.DiagHTTPAddr)
	}
}
