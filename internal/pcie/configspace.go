package pcie

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ConfigSpaceSize is the size of PCIe extended configuration space.
const ConfigSpaceSize = 4096

// ErrOutOfRange is returned for unaligned or out-of-bounds register access.
var ErrOutOfRange = errors.New("config space access out of range")

// ConfigSpace is dword access to one function's configuration space.
type ConfigSpace interface {
	ReadU32(offset int) (uint32, error)
	WriteU32(offset int, value uint32) error
}

// Update performs a read-modify-write: bits in clear are cleared, then bits in
// set are set.
func Update(cs ConfigSpace, offset int, clear, set uint32) error {
	v, err := cs.ReadU32(offset)
	if err != nil {
		return err
	}
	return cs.WriteU32(offset, v&^clear|set)
}

// Close releases cs if it holds an OS resource.
func Close(cs ConfigSpace) error {
	if c, ok := cs.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func checkOffset(offset, size int) error {
	if offset < 0 || offset%4 != 0 || offset+4 > size {
		return fmt.Errorf("%w: offset 0x%x", ErrOutOfRange, offset)
	}
	return nil
}

// Mem is an in-memory ConfigSpace used by the emulator and by tests.
type Mem struct {
	mu   sync.Mutex
	data []byte

	// OnWrite, when set, observes every successful write.
	OnWrite func(offset int, value uint32)
}

// NewMem returns a zeroed configuration space of ConfigSpaceSize bytes.
func NewMem() *Mem {
	return &Mem{data: make([]byte, ConfigSpaceSize)}
}

// ReadU32 implements ConfigSpace.
func (m *Mem) ReadU32(offset int) (uint32, error) {
	if err := checkOffset(offset, len(m.data)); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}

// WriteU32 implements ConfigSpace.
func (m *Mem) WriteU32(offset int, value uint32) error {
	if err := checkOffset(offset, len(m.data)); err != nil {
		return err
	}
	m.mu.Lock()
	binary.LittleEndian.PutUint32(m.data[offset:], value)
	hook := m.OnWrite
	m.mu.Unlock()
	if hook != nil {
		hook(offset, value)
	}
	return nil
}
