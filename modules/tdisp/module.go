// Package tdisp is the TDISP category. Groups open a secured SPDM session to
// the device and drive one of its interfaces through CONFIG_LOCKED and RUN
// and back.
package tdisp

import (
	"context"

	"github.com/vk/teeio-validator/internal/bitmask"
	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/protocol/spdm"
	"github.com/vk/teeio-validator/internal/protocol/tdisp"
	"github.com/vk/teeio-validator/internal/registry"
	"github.com/vk/teeio-validator/internal/testctx"
)

// Name is the catalog name of the category.
const Name = "tdisp"

// Configuration types.
const (
	TypeDefault bitmask.ConfigurationType = iota
	TypeLockNoFWUpdate
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the category with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(Table())
}

type group struct {
	spdm      spdm.Session
	sessionID uint32
	tdisp     tdisp.Session
	tdi       tdisp.InterfaceID
	caps      *tdisp.Capabilities

	// flags are the LOCK_INTERFACE flags chosen by the enabled variants.
	flags tdisp.LockFlags
	nonce tdisp.Nonce
}

// Table returns the category definition.
func Table() *category.Table {
	all := bitmask.Of(TypeDefault, TypeLockNoFWUpdate)
	return &category.Table{
		CategoryName: Name,
		Types:        []string{"default", "lock-no-fw-update"},
		Bitmasks: map[config.TopologyType]bitmask.Bitmap{
			config.TopologySelectiveIDE:        all,
			config.TopologyLinkIDE:             all,
			config.TopologySelectiveAndLinkIDE: all,
		},
		Configs: configFuncs,
		Group: category.GroupFuncs{
			Setup:    setupGroup,
			Teardown: teardownGroup,
		},
		Classes: []category.Class{
			{Name: "Version", Cases: []category.Case{{ID: 1, Funcs: category.CaseFuncs{Run: runVersion}}}},
			{Name: "Capabilities", Cases: []category.Case{{ID: 1, Funcs: category.CaseFuncs{Run: runCapabilities}}}},
			{Name: "LockInterface", Cases: []category.Case{{ID: 1, Funcs: category.CaseFuncs{
				Setup: setupUnlocked, Run: runLockInterface, Teardown: stopInterface, ConfigCheckRequired: true,
			}}}},
			{Name: "StartInterface", Cases: []category.Case{
				{ID: 1, Funcs: category.CaseFuncs{Setup: setupLocked, Run: runStartInterface, Teardown: stopInterface}},
				{ID: 2, Funcs: category.CaseFuncs{Setup: setupLocked, Run: runStartWrongNonce, Teardown: stopInterface}},
			}},
			{Name: "StopInterface", Cases: []category.Case{{ID: 1, Funcs: category.CaseFuncs{
				Setup: setupRunning, Run: runStopInterface, Teardown: stopInterface,
			}}}},
		},
		NewPriv: func() any { return &group{} },
	}
}

func configFuncs(_ config.TopologyType, t bitmask.ConfigurationType) category.ConfigurationFuncs {
	switch t {
	case TypeDefault:
		return category.ConfigurationFuncs{
			Disable: func(_ context.Context, c *testctx.Config) bool {
				testctx.Private[*group](c.Group).flags = 0
				return true
			},
			Check: func(ctx context.Context, c *testctx.Config) bool {
				priv := testctx.Private[*group](c.Group)
				st, err := priv.tdisp.GetState(ctx, priv.tdi)
				return err == nil && st != tdisp.Error
			},
		}
	case TypeLockNoFWUpdate:
		return category.ConfigurationFuncs{
			Support: func(_ context.Context, c *testctx.Config) bool {
				return testctx.Private[*group](c.Group).caps.LockFlagsSupported&tdisp.LockNoFWUpdate != 0
			},
			Enable: func(_ context.Context, c *testctx.Config) bool {
				testctx.Private[*group](c.Group).flags |= tdisp.LockNoFWUpdate
				return true
			},
			Disable: func(_ context.Context, c *testctx.Config) bool {
				testctx.Private[*group](c.Group).flags &^= tdisp.LockNoFWUpdate
				return true
			},
		}
	}
	return category.ConfigurationFuncs{}
}

func setupGroup(ctx context.Context, g *testctx.Group) bool {
	logger := ctxlog.FromContext(ctx)
	priv := testctx.Private[*group](g)
	if !category.OpenPorts(ctx, g) {
		return false
	}
	bdf := g.Ports.Lower.Port.BDF
	p := g.Suite.Platform

	var err error
	if priv.spdm, err = p.SPDM(ctx, bdf); err != nil {
		logger.Error("Failed to reach SPDM responder.", "error", err)
		return false
	}
	if priv.sessionID, err = priv.spdm.StartSession(ctx); err != nil {
		logger.Error("Failed to start SPDM session.", "error", err)
		return false
	}
	if priv.tdisp, err = p.TDISP(ctx, bdf); err != nil {
		logger.Error("Failed to reach TDISP responder.", "error", err)
		return false
	}
	if priv.caps, err = priv.tdisp.GetCapabilities(ctx); err != nil {
		logger.Error("Failed to read TDISP capabilities.", "error", err)
		return false
	}
	priv.tdi = tdisp.InterfaceID{FunctionID: uint32(bdf.ToUint16())}
	return true
}

func teardownGroup(ctx context.Context, g *testctx.Group) bool {
	logger := ctxlog.FromContext(ctx)
	priv := testctx.Private[*group](g)
	ok := true
	if priv.tdisp != nil {
		if st, err := priv.tdisp.GetState(ctx, priv.tdi); err != nil || st != tdisp.ConfigUnlocked {
			if err := priv.tdisp.StopInterface(ctx, priv.tdi); err != nil {
				logger.Error("Failed to stop interface.", "error", err)
				ok = false
			}
		}
	}
	if priv.sessionID != 0 {
		if err := priv.spdm.EndSession(ctx, priv.sessionID); err != nil {
			logger.Error("Failed to end SPDM session.", "error", err)
			ok = false
		}
		priv.sessionID = 0
	}
	return category.ClosePorts(ctx, g) && ok
}
