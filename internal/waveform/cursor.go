package waveform

import "sort"

// BitsToU32BE interprets bits as a big-endian bit-vector (the encoding the
// waveform signal representation uses, MSB-first) and truncates it to the
// low 32 bits. Narrower values are zero-extended on the left implicitly by
// only reading what is present.
func BitsToU32BE(bits []byte) uint32 {
	n := len(bits)
	start := 0

	if n > 4 {
		start = n - 4
	}

	var v uint32
	for i := start; i < n; i++ {
		v = v<<8 | uint32(bits[i])
	}

	return v
}

// Cursor is the sole mutable execution state of the replay engine: an
// index into the merged, time-ordered set of change points across pc and
// every gpr. time_idx always equals some element of allChanges once the
// trace is non-empty.
type Cursor struct {
	waves      RequiredWaves
	allTimes   map[uint32]uint64
	allChanges []uint32
	TimeIdx    uint32
}

// NewCursor builds a Cursor from the required waves, merging and
// deduplicating every signal's recorded change points. allTimes maps a
// time index to its absolute time in picoseconds; it may be nil if the
// caller has no use for absolute time (e.g. in tests).
func NewCursor(rw RequiredWaves, allTimes map[uint32]uint64) (*Cursor, error) {
	if err := rw.Validate(); err != nil {
		return nil, err
	}

	seen := make(map[uint32]struct{})

	add := func(sig Signal) {
		for _, c := range sig.Changes() {
			seen[c.Index] = struct{}{}
		}
	}

	add(rw.PC)
	for _, g := range rw.GPRs {
		add(g)
	}

	merged := make([]uint32, 0, len(seen))
	for idx := range seen {
		merged = append(merged, idx)
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i] < merged[j] })

	c := &Cursor{waves: rw, allChanges: merged, allTimes: allTimes}
	if len(merged) > 0 {
		c.TimeIdx = merged[0]
	}

	return c, nil
}

// Changes returns the merged list of change points, ascending.
func (c *Cursor) Changes() []uint32 {
	out := make([]uint32, len(c.allChanges))
	copy(out, c.allChanges)

	return out
}

// TimeAt returns the absolute time in picoseconds for a time index, if known.
func (c *Cursor) TimeAt(idx uint32) (uint64, bool) {
	if c.allTimes == nil {
		return 0, false
	}

	t, ok := c.allTimes[idx]

	return t, ok
}

// Seek moves the cursor directly to idx without validating membership in
// allChanges; callers (the engine) are expected to only pass values drawn
// from NextIndex/PrevIndex/Changes.
func (c *Cursor) Seek(idx uint32) { c.TimeIdx = idx }

// NextIndex returns the first element of allChanges strictly greater than
// the current time_idx.
func (c *Cursor) NextIndex() (uint32, bool) {
	i := sort.Search(len(c.allChanges), func(i int) bool { return c.allChanges[i] > c.TimeIdx })
	if i >= len(c.allChanges) {
		return 0, false
	}

	return c.allChanges[i], true
}

// PrevIndex returns the last element of allChanges strictly less than the
// current time_idx. Used by reverse-step/reverse-continue.
func (c *Cursor) PrevIndex() (uint32, bool) {
	i := sort.Search(len(c.allChanges), func(i int) bool { return c.allChanges[i] >= c.TimeIdx })
	if i == 0 {
		return 0, false
	}

	return c.allChanges[i-1], true
}

// CurrentPC interprets the pc signal's value at time_idx as a big-endian
// bit-vector truncated to 32 bits.
func (c *Cursor) CurrentPC() uint32 {
	off, ok := c.waves.PC.At(c.TimeIdx)
	if !ok {
		return 0
	}

	return BitsToU32BE(off.Current.Value)
}

// CurrentGPR interprets gprs[i]'s value at time_idx the same way. i must be
// in [0,32).
func (c *Cursor) CurrentGPR(i int) uint32 {
	off, ok := c.waves.GPRs[i].At(c.TimeIdx)
	if !ok {
		return 0
	}

	return BitsToU32BE(off.Current.Value)
}
