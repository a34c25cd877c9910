package pcie

import (
	"fmt"
	"strconv"
	"strings"
)

// BDF addresses a PCI function.
type BDF struct {
	Domain   uint16
	Bus      uint8
	Device   uint8
	Function uint8
}

// String formats the address the way sysfs names devices, e.g. 0000:3a:00.1.
func (b BDF) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%x", b.Domain, b.Bus, b.Device, b.Function)
}

// ToUint16 packs bus/device/function into a requester ID.
func (b BDF) ToUint16() uint16 {
	return uint16(b.Bus)<<8 | uint16(b.Device&0x1f)<<3 | uint16(b.Function&0x7)
}

// ParseBDF accepts "dddd:bb:dd.f" or "bb:dd.f" (domain 0).
func ParseBDF(s string) (BDF, error) {
	var b BDF
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
	case 3:
		d, err := strconv.ParseUint(parts[0], 16, 16)
		if err != nil {
			return BDF{}, fmt.Errorf("invalid domain in BDF %q: %w", s, err)
		}
		b.Domain = uint16(d)
		parts = parts[1:]
	default:
		return BDF{}, fmt.Errorf("invalid BDF %q", s)
	}

	bus, err := strconv.ParseUint(parts[0], 16, 8)
	if err != nil {
		return BDF{}, fmt.Errorf("invalid bus in BDF %q: %w", s, err)
	}
	devFn := strings.Split(parts[1], ".")
	if len(devFn) != 2 {
		return BDF{}, fmt.Errorf("invalid device.function in BDF %q", s)
	}
	dev, err := strconv.ParseUint(devFn[0], 16, 8)
	if err != nil || dev > 0x1f {
		return BDF{}, fmt.Errorf("invalid device in BDF %q", s)
	}
	fn, err := strconv.ParseUint(devFn[1], 16, 8)
	if err != nil || fn > 0x7 {
		return BDF{}, fmt.Errorf("invalid function in BDF %q", s)
	}

	b.Bus, b.Device, b.Function = uint8(bus), uint8(dev), uint8(fn)
	return b, nil
}
