package waveform

// Memory is the sparse, read-only byte map synthesized once from the
// companion ELF's loadable sections. Unmapped addresses read as 0.
type Memory struct {
	bytes map[uint32]byte
}

// NewMemory builds an empty Memory; use Load to populate it from ELF
// section contents at construction time.
func NewMemory() *Memory {
	return &Memory{bytes: make(map[uint32]byte)}
}

// Load copies data into memory starting at addr, overwriting any existing
// bytes in that range. Intended to be called once per loadable section
// during startup.
func (m *Memory) Load(addr uint32, data []byte) {
	for i, b := range data {
		m.bytes[addr+uint32(i)] = b
	}
}

// ReadByte returns the byte at addr, or 0 if unmapped.
func (m *Memory) ReadByte(addr uint32) byte {
	return m.bytes[addr]
}

// Read fills buf starting at addr, zero-filling unmapped bytes.
func (m *Memory) Read(addr uint32, buf []byte) {
	for i := range buf {
		buf[i] = m.bytes[addr+uint32(i)]
	}
}
