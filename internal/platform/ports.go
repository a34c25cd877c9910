package platform

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/pcie"
)

// PortHandle is an opened port of a topology.
type PortHandle struct {
	Port  *config.Port
	Space pcie.ConfigSpace
}

// HopHandle is an opened switch traversal.
type HopHandle struct {
	Switch *config.Switch
	Upper  *PortHandle
	Lower  *PortHandle
}

// Ports holds every handle a group opened. The zero value is valid and
// Close on it is a no-op.
type Ports struct {
	Root  *PortHandle
	Upper *PortHandle
	Lower *PortHandle
	Hops  []*HopHandle

	opened []*PortHandle
}

// OpenPorts opens the configuration space of every port in topo. On error the
// handles opened so far stay in the returned Ports so the caller's teardown
// can release them.
func OpenPorts(ctx context.Context, p Platform, topo *config.Topology) (*Ports, error) {
	logger := ctxlog.FromContext(ctx)
	ports := &Ports{}

	// A port referenced twice (root == upper) shares one handle.
	byName := map[string]*PortHandle{}
	open := func(port *config.Port) (*PortHandle, error) {
		if port == nil {
			return nil, nil
		}
		if h, ok := byName[port.Name]; ok {
			return h, nil
		}
		logger.Debug("Opening port configuration space.", "port", port.Name, "bdf", port.BDF)
		cs, err := p.ConfigSpace(port.BDF)
		if err != nil {
			return nil, fmt.Errorf("port %q (%s): %w", port.Name, port.BDF, err)
		}
		h := &PortHandle{Port: port, Space: cs}
		byName[port.Name] = h
		ports.opened = append(ports.opened, h)
		return h, nil
	}

	var err error
	if ports.Root, err = open(topo.Root); err != nil {
		return ports, err
	}
	upper := topo.Upper
	if upper == nil {
		upper = topo.Root
	}
	if ports.Upper, err = open(upper); err != nil {
		return ports, err
	}
	if ports.Lower, err = open(topo.Lower); err != nil {
		return ports, err
	}
	for _, hop := range topo.Hops {
		hh := &HopHandle{Switch: hop.Switch}
		if hh.Upper, err = open(hop.Upper); err != nil {
			return ports, err
		}
		if hh.Lower, err = open(hop.Lower); err != nil {
			return ports, err
		}
		ports.Hops = append(ports.Hops, hh)
	}
	return ports, nil
}

// Close releases every opened handle in reverse order. It is idempotent and
// safe on a nil or partially opened Ports.
func (p *Ports) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	for i := len(p.opened) - 1; i >= 0; i-- {
		h := p.opened[i]
		if err := pcie.Close(h.Space); err != nil {
			errs = append(errs, fmt.Errorf("closing port %q: %w", h.Port.Name, err))
		}
	}
	p.opened = nil
	return errors.Join(errs...)
}

// All returns every distinct opened handle in open order.
func (p *Ports) All() []*PortHandle {
	if p == nil {
		return nil
	}
	return append([]*PortHandle(nil), p.opened...)
}
