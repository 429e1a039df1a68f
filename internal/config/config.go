// Package config parses the server binary's command-line flags into a
// single Config value, following the teacher's plain flag.FlagSet
// style rather than a third-party CLI framework.
package config

import (
	"errors"
	"flag"
	"fmt"
)

// Config is the fully-parsed, validated set of startup parameters for
// cmd/wavedbg-server. It is built once and never mutated afterward.
type Config struct {
	Addr           string
	WavePath       string
	ElfPath        string
	MappingPath    string
	MappingPlugin  string
	MapperName     string
	APIConstraint string
	DiagHTTPAddr  string
}

// Parse parses args (normally os.Args[1:]) into a validated Config.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("wavedbg-server", flag.ContinueOnError)

	var cfg Config

	fs.StringVar(&cfg.Addr, "addr", ":9001", "listen address for the RSP server (tcp)")
	fs.StringVar(&cfg.WavePath, "wave-path", "", "path to the waveform trace file (required)")
	fs.StringVar(&cfg.ElfPath, "elf", "", "path to the firmware ELF (required)")
	fs.StringVar(&cfg.MappingPath, "mapping-path", "", "path to a JSON signal-map file (mutually exclusive with -mapping-plugin)")
	fs.StringVar(&cfg.MappingPlugin, "mapping-plugin", "", "path to a compiled SignalMapper .so (mutually exclusive with -mapping-path)")
	fs.StringVar(&cfg.MapperName, "mapper-name", "", "name of the registered mapper to resolve (defaults to the loaded plugin mapper's own name if omitted; unused with -mapping-path)")
	fs.StringVar(&cfg.APIConstraint, "mapper-api-constraint", ">= 1.0.0, < 2.0.0", "semver constraint the resolved mapper's APIVersion must satisfy")
	fs.StringVar(&cfg.DiagHTTPAddr, "diag-http", "", "optional address to serve read-only HTTP/3 diagnostics (e.g. :8443); empty disables it")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.WavePath == "" {
		return errors.New("config: -wave-path is required")
	}

	if c.ElfPath == "" {
		return errors.New("config: -elf is required")
	}

	if c.MappingPath == "" && c.MappingPlugin == "" {
		return errors.New("config: exactly one of -mapping-path or -mapping-plugin is required")
	}

	if c.MappingPath != "" && c.MappingPlugin != "" {
		return errors.New("config: -mapping-path and -mapping-plugin are mutually exclusive")
	}

	if c.Addr == "" {
		return fmt.Errorf("config: -addr must not be empty")
	}

	return nil
}
