// Package wavetracker maintains the user-selected ordered sequence of
// (signal, display format) pairs shown alongside PC/GPR state, and the
// fuzzy picker over the waveform's full variable hierarchy used by the
// TUI's addsig command.
package wavetracker

import (
	"fmt"
	"math/big"
	"sort"
	"strings"
)

// Format is a display radix for a signal's current bit string.
type Format int

const (
	FormatHex Format = iota
	FormatDec
	FormatBin
)

func (f Format) String() string {
	switch f {
	case FormatHex:
		return "hex"
	case FormatDec:
		return "dec"
	case FormatBin:
		return "bin"
	default:
		return "unknown"
	}
}

// Source resolves a tracked name to its raw bit string (MSB-first,
// characters '0'/'1'/'x'/'z') at a given time index.
type Source interface {
	BitsAt(name string, idx uint32) (string, bool)
}

// Entry is one user-selected (name, format) pair.
type Entry struct {
	Name   string
	Format Format
}

// Rendered is one entry's value at a specific time index.
type Rendered struct {
	Entry
	Text  string
	Known bool
}

// Tracker holds the ordered selection and the source it renders against.
type Tracker struct {
	src     Source
	order   []Entry
	indexOf map[string]int
}

// New builds a Tracker with no selected signals.
func New(src Source) *Tracker {
	return &Tracker{src: src, indexOf: make(map[string]int)}
}

// Select adds name to the tracked sequence with the given format, or
// updates its format in place if already selected (selection order is
// otherwise stable).
func (t *Tracker) Select(name string, f Format) {
	if i, ok := t.indexOf[name]; ok {
		t.order[i].Format = f

		return
	}

	t.indexOf[name] = len(t.order)
	t.order = append(t.order, Entry{Name: name, Format: f})
}

// Deselect removes name from the tracked sequence, if present.
func (t *Tracker) Deselect(name string) {
	i, ok := t.indexOf[name]
	if !ok {
		return
	}

	t.order = append(t.order[:i], t.order[i+1:]...)
	delete(t.indexOf, name)

	for n, idx := range t.indexOf {
		if idx > i {
			t.indexOf[n] = idx - 1
		}
	}
}

// Selected returns a copy of the current selection, in selection order.
func (t *Tracker) Selected() []Entry {
	out := make([]Entry, len(t.order))
	copy(out, t.order)

	return out
}

// Render evaluates every selected entry at idx.
func (t *Tracker) Render(idx uint32) []Rendered {
	out := make([]Rendered, len(t.order))

	for i, e := range t.order {
		bits, ok := t.src.BitsAt(e.Name, idx)
		if !ok {
			out[i] = Rendered{Entry: e}

			continue
		}

		out[i] = Rendered{Entry: e, Text: FormatBits(bits, e.Format), Known: true}
	}

	return out
}

// FormatBits renders a raw bit string in the requested radix. A bit string
// containing any 'x'/'z' (unknown/high-impedance) character passes through
// unchanged regardless of format, per spec.md §4.8.
func FormatBits(bits string, f Format) string {
	if strings.ContainsAny(bits, "xXzZ") {
		return bits
	}

	switch f {
	case FormatBin:
		return bits
	case FormatHex:
		return bitsToBigInt(bits).Text(16)
	case FormatDec:
		return bitsToBigInt(bits).Text(10)
	default:
		return bits
	}
}

func bitsToBigInt(bits string) *big.Int {
	v := new(big.Int)
	if bits == "" {
		return v
	}

	v.SetString(bits, 2)

	return v
}

// FuzzySearch ranks candidates by a subsequence match against query
// (case-insensitive): every query character must appear in candidate in
// order, contiguous runs scoring higher than scattered ones. Ties break by
// name, ascending, so results are stable across calls.
func FuzzySearch(query string, candidates []string) []string {
	q := strings.ToLower(query)

	type scored struct {
		name  string
		score int
	}

	var matches []scored

	for _, c := range candidates {
		score, ok := fuzzyScore(q, strings.ToLower(c))
		if !ok {
			continue
		}

		matches = append(matches, scored{name: c, score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}

		return matches[i].name < matches[j].name
	})

	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.name
	}

	return out
}

// fuzzyScore reports whether every byte of q occurs in c in order, and a
// score rewarding contiguous matches over scattered ones.
func fuzzyScore(q, c string) (int, bool) {
	if q == "" {
		return 0, true
	}

	qi := 0
	score := 0
	lastMatch := -1

	for ci := 0; ci < len(c) && qi < len(q); ci++ {
		if c[ci] != q[qi] {
			continue
		}

		if lastMatch == ci-1 {
			score += 2
		} else {
			score++
		}

		lastMatch = ci
		qi++
	}

	if qi < len(q) {
		return 0, false
	}

	return score, true
}

// DebugString is a small helper for the TUI's debug/log panel to render an
// entry compactly, e.g. "pc=hex".
func (e Entry) DebugString() string {
	return fmt.Sprintf("%s=%s", e.Name, e.Format)
}
