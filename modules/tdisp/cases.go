package tdisp

import (
	"context"
	"errors"

	"github.com/stretchr/testify/assert"
	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/protocol/tdisp"
	"github.com/vk/teeio-validator/internal/testctx"
)

const version10 = 0x10

func runVersion(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	versions, err := testctx.Private[*group](c.Group).tdisp.GetVersion(ctx)
	if !r.Check(err == nil, "GET_TDISP_VERSION succeeds: %v", err) {
		return false
	}
	r.Assert("TDISP 1.0 offered", func(t assert.TestingT) bool {
		return assert.Contains(t, versions, uint8(version10))
	})
	return true
}

func runCapabilities(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	caps, err := testctx.Private[*group](c.Group).tdisp.GetCapabilities(ctx)
	if !r.Check(err == nil, "GET_TDISP_CAPABILITIES succeeds: %v", err) {
		return false
	}
	r.Check(caps.NumReqThisTDI >= 1, "at least one outstanding request per TDI (%d)", caps.NumReqThisTDI)
	r.Check(caps.NumReqAll >= caps.NumReqThisTDI, "device-wide limit %d covers per-TDI limit %d", caps.NumReqAll, caps.NumReqThisTDI)
	return true
}

// moveTo brings the interface to want from CONFIG_UNLOCKED, remembering the
// lock nonce.
func moveTo(ctx context.Context, priv *group, want tdisp.State) error {
	if err := priv.tdisp.StopInterface(ctx, priv.tdi); err != nil {
		return err
	}
	if want == tdisp.ConfigUnlocked {
		return nil
	}
	nonce, err := priv.tdisp.LockInterface(ctx, priv.tdi, priv.flags)
	if err != nil {
		return err
	}
	priv.nonce = nonce
	if want == tdisp.ConfigLocked {
		return nil
	}
	return priv.tdisp.StartInterface(ctx, priv.tdi, nonce)
}

func setupState(want tdisp.State) func(context.Context, *testctx.Case) category.SetupResult {
	return func(ctx context.Context, c *testctx.Case) category.SetupResult {
		if err := moveTo(ctx, testctx.Private[*group](c.Group), want); err != nil {
			ctxlog.FromContext(ctx).Error("Failed to prepare interface.", "want", want, "error", err)
			return category.SetupFailed
		}
		return category.SetupOK
	}
}

var (
	setupUnlocked = setupState(tdisp.ConfigUnlocked)
	setupLocked   = setupState(tdisp.ConfigLocked)
	setupRunning  = setupState(tdisp.Run)
)

func stopInterface(ctx context.Context, c *testctx.Case) bool {
	priv := testctx.Private[*group](c.Group)
	if err := priv.tdisp.StopInterface(ctx, priv.tdi); err != nil {
		ctxlog.FromContext(ctx).Error("Failed to stop interface.", "error", err)
		return false
	}
	return true
}

func expectState(ctx context.Context, c *testctx.Case, want tdisp.State) bool {
	priv := testctx.Private[*group](c.Group)
	st, err := priv.tdisp.GetState(ctx, priv.tdi)
	return c.Reporter.Check(err == nil && st == want, "interface state is %s, want %s", st, want)
}

func runLockInterface(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	priv := testctx.Private[*group](c.Group)
	nonce, err := priv.tdisp.LockInterface(ctx, priv.tdi, priv.flags)
	if !r.Check(err == nil, "LOCK_INTERFACE with flags %#x succeeds: %v", uint16(priv.flags), err) {
		return false
	}
	r.Check(nonce != tdisp.Nonce{}, "start nonce is non-zero")
	expectState(ctx, c, tdisp.ConfigLocked)

	_, err = priv.tdisp.LockInterface(ctx, priv.tdi, priv.flags)
	r.Check(errors.Is(err, tdisp.ErrInvalidState), "second LOCK_INTERFACE rejected: %v", err)
	return true
}

func runStartInterface(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	priv := testctx.Private[*group](c.Group)
	err := priv.tdisp.StartInterface(ctx, priv.tdi, priv.nonce)
	if !r.Check(err == nil, "START_INTERFACE with lock nonce succeeds: %v", err) {
		return false
	}
	expectState(ctx, c, tdisp.Run)
	return true
}

func runStartWrongNonce(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	priv := testctx.Private[*group](c.Group)
	bad := priv.nonce
	bad[0] ^= 0xff
	err := priv.tdisp.StartInterface(ctx, priv.tdi, bad)
	r.Check(err != nil, "START_INTERFACE with a stale nonce rejected: %v", err)
	st, _ := priv.tdisp.GetState(ctx, priv.tdi)
	r.Check(st != tdisp.Run, "interface did not enter RUN (%s)", st)
	return true
}

func runStopInterface(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	priv := testctx.Private[*group](c.Group)
	if !r.Check(priv.tdisp.StopInterface(ctx, priv.tdi) == nil, "STOP_INTERFACE succeeds") {
		return false
	}
	expectState(ctx, c, tdisp.ConfigUnlocked)
	return true
}
