package cxl_tsp

import (
	"context"
	"errors"

	"github.com/stretchr/testify/assert"
	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/protocol/tsp"
	"github.com/vk/teeio-validator/internal/testctx"
)

func runGetVersion(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	versions, err := testctx.Private[*group](c.Group).tsp.GetVersion(ctx)
	if !r.Check(err == nil, "GET_VERSION succeeds: %v", err) {
		return false
	}
	r.Assert("version 1.0 offered", func(t assert.TestingT) bool {
		return assert.Contains(t, versions, tsp.Version{Major: 1, Minor: 0})
	})
	return true
}

func runGetCapabilities(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	caps, err := testctx.Private[*group](c.Group).tsp.GetCapabilities(ctx)
	if !r.Check(err == nil, "GET_CAPABILITIES succeeds: %v", err) {
		return false
	}
	r.Check(caps.Features&tsp.FeatureEncryption != 0, "memory encryption supported (features %#x)", caps.Features)
	r.Check(caps.Algorithms&tsp.AlgorithmAESXTS256 != 0, "AES-XTS-256 supported (algorithms %#x)", caps.Algorithms)
	r.Check(caps.MaxCKIDs > 0, "at least one CKID (%d)", caps.MaxCKIDs)
	g := caps.TEStateGranularity
	r.Check(g != 0 && g&(g-1) == 0, "TE state granularity %d is a power of two", g)
	return true
}

func runSetConfiguration(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	priv := testctx.Private[*group](c.Group)
	if !r.Check(priv.tsp.SetConfiguration(ctx, priv.want) == nil, "SET_CONFIGURATION accepted") {
		return false
	}
	got, state, err := priv.tsp.GetConfiguration(ctx)
	if !r.Check(err == nil, "GET_CONFIGURATION succeeds: %v", err) {
		return false
	}
	r.Assert("configuration reads back as written", func(t assert.TestingT) bool {
		return assert.Equal(t, priv.want, *got)
	})
	r.Check(state == tsp.StateConfigUnlocked, "state is %s", state)
	return true
}

func setupLockConfiguration(ctx context.Context, c *testctx.Case) category.SetupResult {
	priv := testctx.Private[*group](c.Group)
	if err := priv.tsp.SetConfiguration(ctx, priv.want); err != nil {
		ctxlog.FromContext(ctx).Error("Failed to configure before lock.", "error", err)
		return category.SetupFailed
	}
	return category.SetupOK
}

func runLockConfiguration(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	priv := testctx.Private[*group](c.Group)
	if !r.Check(priv.tsp.LockConfiguration(ctx) == nil, "LOCK_CONFIGURATION accepted") {
		return false
	}
	_, state, err := priv.tsp.GetConfiguration(ctx)
	r.Check(err == nil && state == tsp.StateConfigLocked, "state is %s after lock", state)
	err = priv.tsp.SetConfiguration(ctx, priv.want)
	r.Check(errors.Is(err, tsp.ErrLocked), "reconfiguration after lock rejected: %v", err)
	return true
}
