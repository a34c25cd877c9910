// Package platform is the seam between category plugins and the machine:
// it hands out configuration-space accessors and protocol sessions per PCI
// function, and owns the port handles of a group while it runs.
package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/teeio-validator/internal/pcie"
	"github.com/vk/teeio-validator/internal/protocol/idekm"
	"github.com/vk/teeio-validator/internal/protocol/spdm"
	"github.com/vk/teeio-validator/internal/protocol/tdisp"
	"github.com/vk/teeio-validator/internal/protocol/tsp"
)

// ErrNoTransport is returned when a platform cannot reach a protocol
// responder for a function.
var ErrNoTransport = errors.New("no protocol transport for device")

// Platform provides hardware access for one run.
type Platform interface {
	ConfigSpace(bdf pcie.BDF) (pcie.ConfigSpace, error)
	IDEKM(ctx context.Context, bdf pcie.BDF) (idekm.Session, error)
	TSP(ctx context.Context, bdf pcie.BDF) (tsp.Session, error)
	SPDM(ctx context.Context, bdf pcie.BDF) (spdm.Session, error)
	TDISP(ctx context.Context, bdf pcie.BDF) (tdisp.Session, error)
}

// Sysfs is the real-hardware platform. Configuration space is reached
// through sysfs; the DOE mailbox transport is not wired, so every protocol
// session request fails with ErrNoTransport and plugin group setup fails
// cleanly.
type Sysfs struct {
	Root string
}

// NewSysfs returns a platform rooted at root, or the default sysfs path.
func NewSysfs(root string) *Sysfs {
	if root == "" {
		root = pcie.DefaultSysfsRoot
	}
	return &Sysfs{Root: root}
}

func (s *Sysfs) ConfigSpace(bdf pcie.BDF) (pcie.ConfigSpace, error) {
	cs, err := pcie.OpenSysfs(s.Root, bdf)
	if err != nil {
		return nil, err
	}
	return cs, nil
}

func (s *Sysfs) IDEKM(context.Context, pcie.BDF) (idekm.Session, error) {
	return nil, fmt.Errorf("IDE_KM: %w", ErrNoTransport)
}

func (s *Sysfs) TSP(context.Context, pcie.BDF) (tsp.Session, error) {
	return nil, fmt.Errorf("TSP: %w", ErrNoTransport)
}

func (s *Sysfs) SPDM(context.Context, pcie.BDF) (spdm.Session, error) {
	return nil, fmt.Errorf("SPDM: %w", ErrNoTransport)
}

func (s *Sysfs) TDISP(context.Context, pcie.BDF) (tdisp.Session, error) {
	return nil, fmt.Errorf("TDISP: %w", ErrNoTransport)
}
