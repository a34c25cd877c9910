package pcie

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultSysfsRoot is where Linux exposes PCI devices.
const DefaultSysfsRoot = "/sys/bus/pci/devices"

// Sysfs is a ConfigSpace backed by the sysfs "config" attribute of a device.
// Access beyond the first 256 bytes requires root privileges.
type Sysfs struct {
	bdf BDF
	f   *os.File

	// sysfs config reads are not atomic across goroutines sharing the descriptor.
	mu sync.Mutex
}

// OpenSysfs opens the configuration space of bdf under root. An empty root
// means DefaultSysfsRoot.
func OpenSysfs(root string, bdf BDF) (*Sysfs, error) {
	if root == "" {
		root = DefaultSysfsRoot
	}
	path := filepath.Join(root, bdf.String(), "config")
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open config space of %s: %w", bdf, err)
	}
	return &Sysfs{bdf: bdf, f: f}, nil
}

// ReadU32 implements ConfigSpace.
func (s *Sysfs) ReadU32(offset int) (uint32, error) {
	if err := checkOffset(offset, ConfigSpaceSize); err != nil {
		return 0, err
	}
	var buf [4]byte
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return 0, os.ErrClosed
	}
	if _, err := s.f.ReadAt(buf[:], int64(offset)); err != nil {
		return 0, fmt.Errorf("read %s+0x%x: %w", s.bdf, offset, err)
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// WriteU32 implements ConfigSpace.
func (s *Sysfs) WriteU32(offset int, value uint32) error {
	if err := checkOffset(offset, ConfigSpaceSize); err != nil {
		return err
	}
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return os.ErrClosed
	}
	if _, err := s.f.WriteAt(buf[:], int64(offset)); err != nil {
		return fmt.Errorf("write %s+0x%x: %w", s.bdf, offset, err)
	}
	return nil
}

// Close releases the file descriptor. It is safe to call more than once.
func (s *Sysfs) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
