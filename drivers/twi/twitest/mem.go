package twitest

// Mem is a register-pointer memory slave, the shape shared by small EEPROMs
// and most sensor register files: the first byte written after a
// write-select sets the pointer, further writes store at the pointer, reads
// fetch from it, and the pointer auto-increments either way (wrapping at
// 256 bytes).
type Mem struct {
	Bytes [256]byte

	// NakSelects not-acknowledges that many address phases before accepting
	// one, emulating a device that is momentarily busy.
	NakSelects int

	// BusyAfterWrite, when > 0, arms NakSelects with that value every time a
	// write transaction completes, emulating an EEPROM write cycle that must
	// be acknowledge-polled away.
	BusyAfterWrite int

	ptr       uint8
	expectPtr bool
	wrote     bool
}

var _ Slave = (*Mem)(nil)

func (m *Mem) Select(read bool) bool {
	if m.NakSelects > 0 {
		m.NakSelects--
		return false
	}
	m.wrote = false
	if !read {
		m.expectPtr = true
	}
	return true
}

func (m *Mem) Write(b byte) bool {
	if m.expectPtr {
		m.ptr = b
		m.expectPtr = false
		return true
	}
	m.Bytes[m.ptr] = b
	m.ptr++
	m.wrote = true
	return true
}

func (m *Mem) Read(last bool) byte {
	b := m.Bytes[m.ptr]
	m.ptr++
	return b
}

func (m *Mem) Stop() {
	m.expectPtr = false
	if m.wrote && m.BusyAfterWrite > 0 {
		m.NakSelects = m.BusyAfterWrite
	}
	m.wrote = false
}
