// Package elfinfo parses the companion ELF that synthesizes the waveform
// engine's memory image and symbol table, and decodes RV32(IC) instruction
// bytes straight out of .text for the disassembly preview.
//
// There is no third-party RISC-V ELF reader in the reference corpus this
// module was grown from (the closest analogues hand-roll their own
// instruction set entirely); debug/elf is the standard library's own ELF
// reader and is what every Go-based debugger in the wild reaches for, so it
// is used here directly rather than reinvented. See DESIGN.md.
package elfinfo

import (
	"debug/elf"
	"fmt"
	"sort"

	"github.com/tracewave/wavedbg/internal/waveform"
)

// Section describes a loaded section of interest (only .text is retained in
// full; others are only used to populate Memory at construction time).
type Section struct {
	Addr       uint64
	Size       uint64
	FileOffset int64
}

// Symbol is one entry of the ELF symbol table, kept sorted by Addr.
type Symbol struct {
	Name string
	Addr uint64
	Size uint64
}

// Info is the immutable, once-built view of the companion ELF.
type Info struct {
	Path    string
	Entry   uint64
	Is32Bit bool
	Text    Section
	Symbols []Symbol
	raw     []byte // full .text file bytes, for instruction fetch
}

// Load parses path, validates it targets 32-bit RISC-V, and returns an Info
// plus a Memory populated from every SHT_PROGBITS allocatable, non-NOBITS
// section.
func Load(path string) (*Info, *waveform.Memory, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("elfinfo: open %s: %w", path, err)
	}
	defer f.Close()

	if f.Machine != elf.EM_RISCV {
		return nil, nil, fmt.Errorf("elfinfo: %s: machine %s is not RISC-V", path, f.Machine)
	}

	if f.Class != elf.ELFCLASS32 {
		return nil, nil, fmt.Errorf("elfinfo: %s: class %s is not 32-bit", path, f.Class)
	}

	mem := waveform.NewMemory()

	var text Section

	var textBytes []byte

	haveText := false

	for _, sec := range f.Sections {
		if sec.Type == elf.SHT_NOBITS {
			continue
		}

		if sec.Type != elf.SHT_PROGBITS || sec.Flags&elf.SHF_ALLOC == 0 {
			continue
		}

		data, err := sec.Data()
		if err != nil {
			return nil, nil, fmt.Errorf("elfinfo: reading section %s: %w", sec.Name, err)
		}

		mem.Load(uint32(sec.Addr), data)

		if sec.Name == ".text" {
			text = Section{Addr: sec.Addr, Size: sec.Size, FileOffset: int64(sec.Offset)}
			textBytes = data
			haveText = true
		}
	}

	if !haveText {
		return nil, nil, fmt.Errorf("elfinfo: %s: no .text section", path)
	}

	var syms []Symbol

	if elfSyms, err := f.Symbols(); err == nil {
		for _, s := range elfSyms {
			if s.Name == "" {
				continue
			}

			syms = append(syms, Symbol{Name: s.Name, Addr: s.Value, Size: s.Size})
		}
	}

	sort.Slice(syms, func(i, j int) bool { return syms[i].Addr < syms[j].Addr })

	info := &Info{
		Path:    path,
		Entry:   f.Entry,
		Is32Bit: true,
		Text:    text,
		Symbols: syms,
		raw:     textBytes,
	}

	return info, mem, nil
}

// InstructionBytes returns up to 12 bytes of .text starting at pc, bounded
// by the section's extent. Returns fewer bytes (possibly zero) near the end
// of the section.
func (i *Info) InstructionBytes(pc uint32) []byte {
	if uint64(pc) < i.Text.Addr || uint64(pc) >= i.Text.Addr+i.Text.Size {
		return nil
	}

	off := uint64(pc) - i.Text.Addr

	end := off + 12
	if end > uint64(len(i.raw)) {
		end = uint64(len(i.raw))
	}

	if off >= end {
		return nil
	}

	return i.raw[off:end]
}

// Symbolize finds the symbol owning addr: either addr falls within
// [sym.Addr, sym.Addr+sym.Size), or, for zero-sized symbols, addr falls in
// [sym.Addr, nextSym.Addr).
func (i *Info) Symbolize(addr uint64) (Symbol, bool) {
	n := len(i.Symbols)
	idx := sort.Search(n, func(k int) bool { return i.Symbols[k].Addr > addr })

	if idx == 0 {
		return Symbol{}, false
	}

	s := i.Symbols[idx-1]

	if s.Size > 0 {
		if addr < s.Addr+s.Size {
			return s, true
		}

		return Symbol{}, false
	}
	// Zero-sized: valid up to the next symbol's address (or unbounded if last).
	if idx < n && addr >= i.Symbols[idx].Addr {
		return Symbol{}, false
	}

	return s, true
}
