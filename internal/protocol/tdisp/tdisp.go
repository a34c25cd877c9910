// Package tdisp models the TDISP requests that move a device interface
// between the CONFIG_UNLOCKED, CONFIG_LOCKED and RUN states.
package tdisp

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidState is returned for a request not legal in the current state.
var ErrInvalidState = errors.New("tdisp: request invalid in current state")

// InterfaceID selects one TDI of the device.
type InterfaceID struct {
	FunctionID uint32
}

// State is the TDI state.
type State uint8

const (
	ConfigUnlocked State = iota
	ConfigLocked
	Run
	Error
)

func (s State) String() string {
	switch s {
	case ConfigUnlocked:
		return "CONFIG_UNLOCKED"
	case ConfigLocked:
		return "CONFIG_LOCKED"
	case Run:
		return "RUN"
	case Error:
		return "ERROR"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// LockFlags accompany LOCK_INTERFACE_REQUEST.
type LockFlags uint16

const (
	LockNoFWUpdate LockFlags = 1 << 0
)

// Capabilities is the TDISP_CAPABILITIES response.
type Capabilities struct {
	LockFlagsSupported LockFlags
	NumReqThisTDI      uint8
	NumReqAll          uint8
}

// Nonce is returned by LOCK_INTERFACE and must be presented to START.
type Nonce [32]byte

// Session is one TDISP conversation.
type Session interface {
	GetVersion(ctx context.Context) ([]uint8, error)
	GetCapabilities(ctx context.Context) (*Capabilities, error)
	LockInterface(ctx context.Context, id InterfaceID, flags LockFlags) (Nonce, error)
	StartInterface(ctx context.Context, id InterfaceID, nonce Nonce) error
	StopInterface(ctx context.Context, id InterfaceID) error
	GetState(ctx context.Context, id InterfaceID) (State, error)
}
