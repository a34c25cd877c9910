package cxl_tsp

import (
	"context"

	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/protocol/spdm"
	"github.com/vk/teeio-validator/internal/protocol/tsp"
	"github.com/vk/teeio-validator/internal/testctx"
)

type group struct {
	spdm      spdm.Session
	sessionID uint32
	tsp       tsp.Session
	caps      *tsp.Capabilities

	// want is the configuration assembled by the enabled variants.
	want tsp.Configuration
}

func setupGroup(ctx context.Context, g *testctx.Group) bool {
	logger := ctxlog.FromContext(ctx)
	priv := testctx.Private[*group](g)

	// 1. Ports.
	if !category.OpenPorts(ctx, g) {
		return false
	}
	bdf := g.Ports.Lower.Port.BDF
	p := g.Suite.Platform

	// 2. Secured session.
	var err error
	if priv.spdm, err = p.SPDM(ctx, bdf); err != nil {
		logger.Error("Failed to reach SPDM responder.", "error", err)
		return false
	}
	if priv.sessionID, err = priv.spdm.StartSession(ctx); err != nil {
		logger.Error("Failed to start SPDM session.", "error", err)
		return false
	}

	// 3. TSP capabilities, cached for the support probes.
	if priv.tsp, err = p.TSP(ctx, bdf); err != nil {
		logger.Error("Failed to reach TSP responder.", "error", err)
		return false
	}
	if priv.caps, err = priv.tsp.GetCapabilities(ctx); err != nil {
		logger.Error("Failed to read TSP capabilities.", "error", err)
		return false
	}
	logger.Debug("TSP group ready.", "session", priv.sessionID, "features", priv.caps.Features)
	return true
}

func teardownGroup(ctx context.Context, g *testctx.Group) bool {
	ok := true
	priv := testctx.Private[*group](g)
	if priv.sessionID != 0 {
		if err := priv.spdm.EndSession(ctx, priv.sessionID); err != nil {
			ctxlog.FromContext(ctx).Error("Failed to end SPDM session.", "error", err)
			ok = false
		}
		priv.sessionID = 0
	}
	return category.ClosePorts(ctx, g) && ok
}
