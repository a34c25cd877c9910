// Package idekm models the IDE key-management exchanges shared by PCIe IDE
// and CXL IDE: Query, KeyProg, KSetGo, KSetStop and, for CXL, GetKey.
package idekm

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupported is returned by sessions that do not implement a request.
var ErrUnsupported = errors.New("idekm: request not supported")

// Direction of a key.
type Direction uint8

const (
	RX Direction = iota
	TX
)

func (d Direction) String() string {
	if d == TX {
		return "TX"
	}
	return "RX"
}

// SubStream is the TLP class a key applies to.
type SubStream uint8

const (
	Posted SubStream = iota
	NonPosted
	Completion
)

// SubStreams lists every sub-stream in programming order.
var SubStreams = []SubStream{Posted, NonPosted, Completion}

func (s SubStream) String() string {
	switch s {
	case Posted:
		return "PR"
	case NonPosted:
		return "NPR"
	case Completion:
		return "CPL"
	}
	return fmt.Sprintf("SubStream(%d)", uint8(s))
}

// KeyRef addresses one key slot of a stream.
type KeyRef struct {
	PortIndex uint8
	StreamID  uint8
	KeySet    uint8
	Direction Direction
	SubStream SubStream
}

func (k KeyRef) String() string {
	return fmt.Sprintf("port %d stream %d keyset %d %s/%s", k.PortIndex, k.StreamID, k.KeySet, k.Direction, k.SubStream)
}

// Key is the AES-GCM key and initial IV programmed into one slot.
type Key struct {
	Bytes [32]byte
	IV    [8]byte
}

// QueryResp is the endpoint's answer to QUERY.
type QueryResp struct {
	PortIndex    uint8
	DevFunc      uint8
	Bus          uint8
	Segment      uint8
	MaxPortIndex uint8

	// Capability and Control mirror the IDE extended capability registers.
	Capability uint32
	Control    uint32

	LinkStreams      int
	SelectiveStreams int

	// KeyGeneration is set when the endpoint generates keys and IVs itself
	// (CXL IDE_KM GetKey is only meaningful then).
	KeyGeneration bool
}

// AckStatus is the status byte of KP_ACK.
type AckStatus uint8

const (
	AckSuccess AckStatus = iota
	AckIncorrectLength
	AckUnsupportedPortIndex
	AckUnsupportedValue
	AckUnspecifiedFailure
)

func (s AckStatus) String() string {
	switch s {
	case AckSuccess:
		return "success"
	case AckIncorrectLength:
		return "incorrect length"
	case AckUnsupportedPortIndex:
		return "unsupported port index"
	case AckUnsupportedValue:
		return "unsupported value"
	case AckUnspecifiedFailure:
		return "unspecified failure"
	}
	return fmt.Sprintf("AckStatus(%d)", uint8(s))
}

// Session is one key-management conversation with an endpoint.
type Session interface {
	Query(ctx context.Context, portIndex uint8) (*QueryResp, error)
	KeyProg(ctx context.Context, ref KeyRef, key Key) (AckStatus, error)

	// KSetGo and KSetStop return the key reference echoed by the endpoint.
	KSetGo(ctx context.Context, ref KeyRef) (KeyRef, error)
	KSetStop(ctx context.Context, ref KeyRef) (KeyRef, error)

	GetKey(ctx context.Context, ref KeyRef) (Key, error)
}
