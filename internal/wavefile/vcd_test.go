package wavefile

import (
	"strings"
	"testing"

	"github.com/tracewave/wavedbg/internal/waveform"
)

const sampleVCD = `$date today $end
$version wavedbg test $end
$timescale 1ns $end
$scope module top $end
$scope module cpu $end
$var wire 32 ! pc $end
$var wire 1 " x0 $end
$upscope $end
$upscope $end
$enddefinitions $end
#0
b00000000000000000000000100000000 !
0"
#4
b00000000000000000000000100000100 !
1"
#8
b00000000000000000000000100001000 !
`

func TestParseBuildsHierarchyAndSignals(t *testing.T) {
	h, err := Parse(strings.NewReader(sampleVCD))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	hierarchy := h.Hierarchy()
	if len(hierarchy) != 2 {
		t.Fatalf("Hierarchy = %v, want 2 entries", hierarchy)
	}

	pc, ok := h.Signal("top.cpu.pc")
	if !ok {
		t.Fatal("expected top.cpu.pc to be present")
	}

	if pc.Width() != 32 {
		t.Fatalf("pc width = %d, want 32", pc.Width())
	}

	off, ok := pc.At(0)
	if !ok {
		t.Fatal("expected a change point at index 0")
	}

	if got := waveform.BitsToU32BE(off.Current.Value); got != 0x100 {
		t.Fatalf("pc at t=0 = %#x, want 0x100", got)
	}

	off, ok = pc.At(4)
	if !ok {
		t.Fatal("expected a change point at index 4")
	}

	if got := waveform.BitsToU32BE(off.Current.Value); got != 0x104 {
		t.Fatalf("pc at t=4 = %#x, want 0x104", got)
	}
}

func TestParseScalarSignal(t *testing.T) {
	h, err := Parse(strings.NewReader(sampleVCD))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	x0, ok := h.Signal("top.cpu.x0")
	if !ok {
		t.Fatal("expected top.cpu.x0 to be present")
	}

	off, ok := x0.At(0)
	if !ok || waveform.BitsToU32BE(off.Current.Value) != 0 {
		t.Fatalf("x0 at t=0 = %+v, want 0", off)
	}

	off, ok = x0.At(4)
	if !ok || waveform.BitsToU32BE(off.Current.Value) != 1 {
		t.Fatalf("x0 at t=4 = %+v, want 1", off)
	}
}

func TestPackBitsPadsAndTruncates(t *testing.T) {
	got := packBits("101", 8)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}

	if got[0] != 0b00000101 {
		t.Fatalf("got = %08b, want 00000101", got[0])
	}

	got = packBits("111111111", 8)
	if got[0] != 0b11111111 {
		t.Fatalf("truncated got = %08b, want 11111111", got[0])
	}
}

func TestParseUnknownIdentifierIgnored(t *testing.T) {
	src := `$var wire 1 ! a $end
$enddefinitions $end
#0
1#
`
	h, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(h.Hierarchy()) != 1 {
		t.Fatalf("Hierarchy = %v, want 1 entry", h.Hierarchy())
	}
}
