// Package spdm models the SPDM negotiation steps that precede every secured
// key-management exchange.
package spdm

import (
	"context"
	"fmt"
)

// Version is an SPDM version byte, major in the high nibble.
type Version uint8

const (
	V10 Version = 0x10
	V11 Version = 0x11
	V12 Version = 0x12
	V13 Version = 0x13
)

func (v Version) String() string { return fmt.Sprintf("%d.%d", v>>4, v&0xf) }

// Responder capability flags.
const (
	CapCert    uint32 = 1 << 1
	CapChal    uint32 = 1 << 2
	CapMeas    uint32 = 1 << 4
	CapEncrypt uint32 = 1 << 6
	CapMAC     uint32 = 1 << 7
	CapKeyEx   uint32 = 1 << 9
)

// Capabilities is the CAPABILITIES response.
type Capabilities struct {
	CTExponent uint8
	Flags      uint32
}

// Has reports whether every flag in mask is set.
func (c Capabilities) Has(mask uint32) bool { return c.Flags&mask == mask }

// Negotiated algorithm selections.
const (
	HashSHA384      uint32 = 1 << 1
	AsymECDSAP384   uint32 = 1 << 7
	DHESECP384R1    uint16 = 1 << 4
	AEADAES256GCM   uint16 = 1 << 1
	MeasHashSHA384  uint32 = 1 << 2
	KeyScheduleSPDM uint16 = 1 << 0
)

// Algorithms is the ALGORITHMS response; each field has exactly one bit set
// after a successful negotiation.
type Algorithms struct {
	MeasurementHash uint32
	BaseAsym        uint32
	BaseHash        uint32
	DHE             uint16
	AEAD            uint16
	KeySchedule     uint16
}

// Session drives an SPDM requester against one responder.
type Session interface {
	GetVersion(ctx context.Context) ([]Version, error)
	GetCapabilities(ctx context.Context, v Version) (*Capabilities, error)
	NegotiateAlgorithms(ctx context.Context) (*Algorithms, error)

	// StartSession runs KEY_EXCHANGE/FINISH and returns the session id.
	StartSession(ctx context.Context) (uint32, error)
	EndSession(ctx context.Context, id uint32) error
}
