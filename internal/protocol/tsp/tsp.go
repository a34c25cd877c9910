// Package tsp models the CXL TEE Security Protocol requests used to
// configure memory encryption on a CXL memory device.
package tsp

import (
	"context"
	"errors"
	"fmt"
)

// ErrLocked is returned when configuration is attempted after LOCK.
var ErrLocked = errors.New("tsp: configuration locked")

// Version is a TSP version entry.
type Version struct {
	Major uint8
	Minor uint8
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// Memory encryption feature bits reported by GET_CAPABILITIES.
const (
	FeatureEncryption    uint16 = 1 << 0
	FeatureCKIDBased     uint16 = 1 << 1
	FeatureRangeBased    uint16 = 1 << 2
	FeatureInitiatorTE   uint16 = 1 << 3
	FeatureTEStateChange uint16 = 1 << 4
)

// AlgorithmAESXTS256 is the only algorithm the validator configures.
const AlgorithmAESXTS256 uint32 = 1 << 0

// Capabilities is the GET_CAPABILITIES response.
type Capabilities struct {
	Features   uint16
	Algorithms uint32
	MaxCKIDs   uint16

	// TEStateGranularity is a power-of-two byte size.
	TEStateGranularity uint32
}

// Configuration is the SET_CONFIGURATION payload.
type Configuration struct {
	Features      uint16
	Algorithm     uint32
	CKIDBase      uint32
	NumCKIDs      uint32
	TEStateChange bool
}

// State is the TSP state of the device.
type State uint8

const (
	StateConfigUnlocked State = iota
	StateConfigLocked
	StateError
)

func (s State) String() string {
	switch s {
	case StateConfigUnlocked:
		return "CONFIG_UNLOCKED"
	case StateConfigLocked:
		return "CONFIG_LOCKED"
	case StateError:
		return "ERROR"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Session is one TSP conversation.
type Session interface {
	GetVersion(ctx context.Context) ([]Version, error)
	GetCapabilities(ctx context.Context) (*Capabilities, error)
	SetConfiguration(ctx context.Context, cfg Configuration) error
	GetConfiguration(ctx context.Context) (*Configuration, State, error)
	LockConfiguration(ctx context.Context) error
}
