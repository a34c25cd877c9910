package pcie

import (
	"errors"
	"fmt"
)

// Extended capability IDs used by the validator.
const (
	ExtCapIDIDE uint16 = 0x0030
	ExtCapIDDOE uint16 = 0x002e
)

// extCapStart is the offset of the first extended capability header.
const extCapStart = 0x100

// ErrCapabilityNotFound is returned when the requested capability is absent.
var ErrCapabilityNotFound = errors.New("capability not found")

// ExtCapHeader builds an extended capability header dword.
func ExtCapHeader(id uint16, version uint8, next int) uint32 {
	return uint32(id) | uint32(version&0xf)<<16 | uint32(next&0xffc)<<20
}

// FindExtCapability walks the extended capability list and returns the offset
// of the first capability with the given ID.
func FindExtCapability(cs ConfigSpace, id uint16) (int, error) {
	offset := extCapStart
	// Each header is at least one dword, which bounds a well-formed list.
	for hops := 0; offset != 0 && hops < (ConfigSpaceSize-extCapStart)/4; hops++ {
		hdr, err := cs.ReadU32(offset)
		if err != nil {
			return 0, err
		}
		if hdr == 0 || hdr == 0xffffffff {
			break
		}
		if uint16(hdr) == id {
			return offset, nil
		}
		next := int(hdr>>20) & 0xffc
		if next != 0 && next < extCapStart {
			return 0, fmt.Errorf("malformed extended capability list: next offset 0x%x at 0x%x", next, offset)
		}
		offset = next
	}
	return 0, fmt.Errorf("%w: extended capability 0x%04x", ErrCapabilityNotFound, id)
}
