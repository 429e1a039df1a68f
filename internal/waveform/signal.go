// Package waveform holds the data model consumed by the replay engine:
// signals sampled from a captured trace, the merged cursor over their
// change points, and the synthesized memory and breakpoint/exec-mode
// state the GDB server mutates.
package waveform

import "sort"

// ChangePoint is one recorded transition of a signal: at time index Index
// the signal took on the bit-vector Value, MSB-first, until its next
// change point.
type ChangePoint struct {
	Index uint32
	Value []byte
}

// Offset is the result of querying a Signal at a given time index: the
// change point in effect (Current) and, if any, the next one after it.
type Offset struct {
	Current ChangePoint
	Next    ChangePoint
	HasNext bool
}

// Signal is the narrow interface the engine needs from whatever parses the
// underlying waveform file. The real parser (VCD/FST/GHW) is out of scope
// for this module and is expected to hand over an implementation of this
// interface per tracked signal.
type Signal interface {
	// At returns the change point in effect at or before idx. ok is false
	// if idx precedes the signal's first recorded change.
	At(idx uint32) (Offset, bool)

	// Changes returns every recorded change point in ascending time-index
	// order. Called once, at construction, to build the merged cursor.
	Changes() []ChangePoint

	// Width is the signal's declared bit width.
	Width() int
}

// SliceSignal is an in-memory Signal backed by a sorted, deduplicated list
// of change points. It is the implementation used by tests and by any
// caller that already has the full change table in hand (as the external
// waveform-file parser is documented to produce).
type SliceSignal struct {
	changes []ChangePoint
	width   int
}

// NewSliceSignal builds a SliceSignal from change points in any order,
// sorting and deduplicating by Index (last write per index wins).
func NewSliceSignal(width int, changes []ChangePoint) *SliceSignal {
	cp := make([]ChangePoint, len(changes))
	copy(cp, changes)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Index < cp[j].Index })

	dedup := cp[:0:0]
	for i, c := range cp {
		if i > 0 && c.Index == cp[i-1].Index {
			dedup[len(dedup)-1] = c
			continue
		}
		dedup = append(dedup, c)
	}

	return &SliceSignal{changes: dedup, width: width}
}

func (s *SliceSignal) Width() int { return s.width }

func (s *SliceSignal) Changes() []ChangePoint {
	out := make([]ChangePoint, len(s.changes))
	copy(out, s.changes)

	return out
}

func (s *SliceSignal) At(idx uint32) (Offset, bool) {
	// Find the last change with Index <= idx.
	i := sort.Search(len(s.changes), func(i int) bool { return s.changes[i].Index > idx })
	if i == 0 {
		return Offset{}, false
	}

	off := Offset{Current: s.changes[i-1]}
	if i < len(s.changes) {
		off.Next = s.changes[i]
		off.HasNext = true
	}

	return off, true
}
