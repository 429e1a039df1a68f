package main

import "testing"

func TestParseArgsAppliesDefaults(t *testing.T) {
	opt, err := parseArgs([]string{"-elf", "/tmp/image.elf"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}

	if opt.addr != "127.0.0.1:9001" {
		t.Fatalf("addr = %q, want default", opt.addr)
	}

	if opt.elfPath != "/tmp/image.elf" {
		t.Fatalf("elfPath = %q, want /tmp/image.elf", opt.elfPath)
	}
}

func TestParseArgsRejectsMissingElf(t *testing.T) {
	if _, err := parseArgs([]string{"-addr", "127.0.0.1:9001"}); err == nil {
		t.Fatal("expected an error when -elf is omitted")
	}
}

func TestParseArgsAcceptsWavePath(t *testing.T) {
	opt, err := parseArgs([]string{
		"-elf", "/tmp/image.elf",
		"-wave-path", "/tmp/trace.vcd",
	})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}

	if opt.wavePath != "/tmp/trace.vcd" {
		t.Fatalf("wavePath = %q, want /tmp/trace.vcd", opt.wavePath)
	}
}
