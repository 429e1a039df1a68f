package elfinfo

import "testing"

func TestSymbolizeSizedAndZeroSized(t *testing.T) {
	info := &Info{
		Symbols: []Symbol{
			{Name: "_start", Addr: 0x1000, Size: 0x10},
			{Name: "main", Addr: 0x1010, Size: 0}, // zero-sized, bounded by next symbol
			{Name: "helper", Addr: 0x1030, Size: 0x8},
		},
	}

	sym, ok := info.Symbolize(0x1005)
	if !ok || sym.Name != "_start" {
		t.Fatalf("Symbolize(0x1005) = (%v,%v), want _start", sym, ok)
	}

	sym, ok = info.Symbolize(0x1020)
	if !ok || sym.Name != "main" {
		t.Fatalf("Symbolize(0x1020) = (%v,%v), want main (zero-sized, bounded by next)", sym, ok)
	}

	if _, ok := info.Symbolize(0x1030); !ok {
		t.Fatal("Symbolize(0x1030) should resolve to helper, not spill into main's open range")
	}

	if _, ok := info.Symbolize(0x1040); ok {
		t.Fatal("Symbolize(0x1040) should miss: past the last symbol's bounded size")
	}

	if _, ok := info.Symbolize(0x0fff); ok {
		t.Fatal("Symbolize before the first symbol should miss")
	}
}

func TestInstructionBytesBounds(t *testing.T) {
	raw := make([]byte, 16)
	for i := range raw {
		raw[i] = byte(i)
	}

	info := &Info{
		Text: Section{Addr: 0x8000, Size: uint64(len(raw))},
		raw:  raw,
	}

	got := info.InstructionBytes(0x8000)
	if len(got) != 12 || got[0] != 0 {
		t.Fatalf("InstructionBytes(start) = %v, want 12 bytes starting at 0", got)
	}

	got = info.InstructionBytes(0x8000 + 10)
	if len(got) != 6 {
		t.Fatalf("InstructionBytes(near end) = %d bytes, want 6 (clamped to section end)", len(got))
	}

	if got := info.InstructionBytes(0x9000); got != nil {
		t.Fatalf("InstructionBytes(out of range) = %v, want nil", got)
	}
}
