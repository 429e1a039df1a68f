// Package signalmap invokes an external signal mapper once at startup and
// validates that the resulting name→signal mapping contains everything the
// waveform engine requires. It replaces the source implementation's
// embedded-interpreter global-inittab design (SPEC_FULL.md §9's design
// note on the Python inittab) with an explicit Go interface plus optional
// dynamic plugin loading.
package signalmap

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/tracewave/wavedbg/internal/waveform"
)

// WaveformHandle is the narrow view a SignalMapper gets over the opened
// waveform file: lookup by hierarchical path, and the full path listing for
// mappers that want to do their own pattern matching.
type WaveformHandle interface {
	Signal(path string) (waveform.Signal, bool)
	Hierarchy() []string
}

// SignalMapper is the plugin contract: given a waveform handle, return a
// name→signal map containing at least pc and x0..x31.
type SignalMapper interface {
	Name() string
	APIVersion() string
	Map(h WaveformHandle) (map[string]waveform.Signal, error)
}

// MissingNamesError reports which required names a mapper's output lacked.
type MissingNamesError struct {
	Mapper string
	Names  []string
}

func (e *MissingNamesError) Error() string {
	return fmt.Sprintf("signalmap: %s: missing required signals: %v", e.Mapper, e.Names)
}

// Result is the validated output of Load: the required waves the engine
// needs, plus every extra name the mapper produced (surfaced to the wave
// tracker for user selection per spec.md §4.7).
type Result struct {
	Required waveform.RequiredWaves
	Extra    map[string]waveform.Signal
}

func requiredNames() []string {
	names := make([]string, 0, 1+waveform.GPRCount)
	names = append(names, "pc")

	for i := 0; i < waveform.GPRCount; i++ {
		names = append(names, fmt.Sprintf("x%d", i))
	}

	return names
}

// Load invokes mapper.Map(h), validates the required names are present,
// and splits the result into RequiredWaves plus everything else.
func Load(h WaveformHandle, mapper SignalMapper) (Result, error) {
	mapped, err := mapper.Map(h)
	if err != nil {
		return Result{}, fmt.Errorf("signalmap: %s: %w", mapper.Name(), err)
	}

	var missing []string

	rw := waveform.RequiredWaves{}

	if sig, ok := mapped["pc"]; ok {
		rw.PC = sig
	} else {
		missing = append(missing, "pc")
	}

	for i := 0; i < waveform.GPRCount; i++ {
		name := fmt.Sprintf("x%d", i)

		sig, ok := mapped[name]
		if !ok {
			missing = append(missing, name)

			continue
		}

		rw.GPRs[i] = sig
	}

	if len(missing) > 0 {
		sort.Strings(missing)

		return Result{}, &MissingNamesError{Mapper: mapper.Name(), Names: missing}
	}

	extra := make(map[string]waveform.Signal)

	required := make(map[string]struct{})
	for _, n := range requiredNames() {
		required[n] = struct{}{}
	}

	for name, sig := range mapped {
		if _, isRequired := required[name]; isRequired {
			continue
		}

		extra[name] = sig
	}

	return Result{Required: rw, Extra: extra}, nil
}

// JSONSignalMapper is the built-in mapper: a static JSON file mapping
// canonical names to waveform hierarchy paths, e.g.
// {"pc": "tb.cpu.pc", "x0": "tb.cpu.regfile[0]", ...}.
type JSONSignalMapper struct {
	path string
}

// NewJSONSignalMapper returns a mapper reading its name→path table from
// the JSON file at path.
func NewJSONSignalMapper(path string) *JSONSignalMapper {
	return &JSONSignalMapper{path: path}
}

func (m *JSONSignalMapper) Name() string       { return "json:" + m.path }
func (m *JSONSignalMapper) APIVersion() string { return "1.0.0" }

func (m *JSONSignalMapper) Map(h WaveformHandle) (map[string]waveform.Signal, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping file: %w", err)
	}

	var table map[string]string
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parsing mapping file: %w", err)
	}

	out := make(map[string]waveform.Signal, len(table))

	for name, hierPath := range table {
		sig, ok := h.Signal(hierPath)
		if !ok {
			continue // missing entries surface later as MissingNamesError
		}

		out[name] = sig
	}

	return out, nil
}
