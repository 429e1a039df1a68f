package signalmap

import (
	"errors"
	"strconv"
	"testing"

	"github.com/tracewave/wavedbg/internal/waveform"
)

type fakeHandle struct {
	signals map[string]waveform.Signal
}

func (h *fakeHandle) Signal(path string) (waveform.Signal, bool) {
	s, ok := h.signals[path]

	return s, ok
}

func (h *fakeHandle) Hierarchy() []string {
	out := make([]string, 0, len(h.signals))
	for k := range h.signals {
		out = append(out, k)
	}

	return out
}

type fakeMapper struct {
	out map[string]waveform.Signal
	err error
}

func (m *fakeMapper) Name() string       { return "fake" }
func (m *fakeMapper) APIVersion() string { return "1.0.0" }
func (m *fakeMapper) Map(WaveformHandle) (map[string]waveform.Signal, error) {
	return m.out, m.err
}

func fullMapping() map[string]waveform.Signal {
	m := make(map[string]waveform.Signal, waveform.GPRCount+2)
	m["pc"] = waveform.NewSliceSignal(32, nil)

	for i := 0; i < waveform.GPRCount; i++ {
		m[fmtX(i)] = waveform.NewSliceSignal(32, nil)
	}

	m["tb.cpu.stall"] = waveform.NewSliceSignal(1, nil)

	return m
}

func fmtX(i int) string {
	return "x" + strconv.Itoa(i)
}

func TestLoadSucceedsWithCompleteMapping(t *testing.T) {
	m := &fakeMapper{out: fullMapping()}

	result, err := Load(&fakeHandle{}, m)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if result.Required.PC == nil {
		t.Fatal("expected PC signal to be set")
	}

	for i, g := range result.Required.GPRs {
		if g == nil {
			t.Fatalf("GPR %d is nil", i)
		}
	}

	if _, ok := result.Extra["tb.cpu.stall"]; !ok {
		t.Fatal("expected extra signal to survive into Result.Extra")
	}

	if _, ok := result.Extra["pc"]; ok {
		t.Fatal("pc should not appear in Extra")
	}
}

func TestLoadReportsMissingNames(t *testing.T) {
	incomplete := fullMapping()
	delete(incomplete, "pc")
	delete(incomplete, "x5")

	m := &fakeMapper{out: incomplete}

	_, err := Load(&fakeHandle{}, m)
	if err == nil {
		t.Fatal("expected error for incomplete mapping")
	}

	var missing *MissingNamesError
	if !errors.As(err, &missing) {
		t.Fatalf("expected *MissingNamesError, got %T", err)
	}

	if len(missing.Names) != 2 {
		t.Fatalf("got %v, want 2 missing names", missing.Names)
	}
}

func TestLoadPropagatesMapperError(t *testing.T) {
	m := &fakeMapper{err: errors.New("boom")}

	if _, err := Load(&fakeHandle{}, m); err == nil {
		t.Fatal("expected propagated mapper error")
	}
}

func TestRegistryResolveVersionGating(t *testing.T) {
	reg, err := NewRegistry("1.2.0")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	reg.Register(&fakeMapper{out: fullMapping()})

	if _, err := reg.Resolve("fake", ""); err != nil {
		t.Fatalf("Resolve with matching major version: %v", err)
	}

	if _, err := reg.Resolve("fake", ">=2.0.0"); err == nil {
		t.Fatal("expected constraint failure for >=2.0.0 against a 1.0.0 mapper")
	}

	if _, err := reg.Resolve("missing", ""); err == nil {
		t.Fatal("expected error for unregistered mapper name")
	}
}

func TestRegistryResolveMajorMismatchWithEmptyConstraint(t *testing.T) {
	reg, err := NewRegistry("2.0.0")
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	reg.Register(&fakeMapper{out: fullMapping()}) // APIVersion 1.0.0

	if _, err := reg.Resolve("fake", ""); err == nil {
		t.Fatal("expected major-version mismatch error")
	}
}
