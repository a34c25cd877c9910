package cxl_ide

import (
	"context"
	"errors"

	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/pcie"
	"github.com/vk/teeio-validator/internal/protocol/idekm"
	"github.com/vk/teeio-validator/internal/testctx"
)

func prepare(ctx context.Context, c *testctx.Case, start bool) category.SetupResult {
	logger := ctxlog.FromContext(ctx)
	priv := testctx.Private[*group](c.Group)
	if err := idekm.Program(ctx, priv.idekm, linkStream, idekm.RandomKeys); err != nil {
		logger.Error("Failed to program keys.", "error", err)
		return category.SetupFailed
	}
	priv.live = append(priv.live, linkStream)
	if start {
		if err := idekm.Go(ctx, priv.idekm, linkStream); err != nil {
			logger.Error("Failed to start keys.", "error", err)
			return category.SetupFailed
		}
	}
	return category.SetupOK
}

func setupProgrammed(ctx context.Context, c *testctx.Case) category.SetupResult {
	return prepare(ctx, c, false)
}

func setupLive(ctx context.Context, c *testctx.Case) category.SetupResult {
	return prepare(ctx, c, true)
}

func setupGetKey(_ context.Context, c *testctx.Case) category.SetupResult {
	if !testctx.Private[*group](c.Group).query.KeyGeneration {
		return category.SetupSkip
	}
	return category.SetupOK
}

func stopLive(ctx context.Context, priv *group) bool {
	ok := true
	for _, s := range priv.live {
		if err := idekm.Stop(ctx, priv.idekm, s); err != nil {
			ctxlog.FromContext(ctx).Error("Failed to stop keys.", "error", err)
			ok = false
		}
	}
	priv.live = nil
	return ok
}

func stopKeys(ctx context.Context, c *testctx.Case) bool {
	return stopLive(ctx, testctx.Private[*group](c.Group))
}

// finishKSetGo leaves the stream running unless the ide-stop variant asks
// for it to be stopped.
func finishKSetGo(ctx context.Context, c *testctx.Case) bool {
	priv := testctx.Private[*group](c.Group)
	if !priv.stopAfter {
		return true
	}
	return stopLive(ctx, priv)
}

func runQuery(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	priv := testctx.Private[*group](c.Group)
	resp, err := priv.idekm.Query(ctx, 0)
	if !r.Check(err == nil, "CXL_QUERY port 0 succeeds: %v", err) {
		return false
	}
	bdf := c.Group.Ports.Lower.Port.BDF
	r.Check(resp.Bus == bdf.Bus && resp.DevFunc == bdf.Device<<3|bdf.Function,
		"CXL_QUERY_RESP identifies %s", bdf)
	r.Check(resp.LinkStreams >= 1, "link stream advertised (%d)", resp.LinkStreams)
	r.Check(resp.Capability&pcie.IDECapIDEKM != 0, "IDE_KM capable (caps %#x)", resp.Capability)
	return true
}

func runQueryInvalidPort(ctx context.Context, c *testctx.Case) bool {
	priv := testctx.Private[*group](c.Group)
	port := priv.query.MaxPortIndex + 1
	_, err := priv.idekm.Query(ctx, port)
	return c.Reporter.Check(err != nil, "CXL_QUERY for port %d is rejected: %v", port, err)
}

func runKeyProg(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	priv := testctx.Private[*group](c.Group)
	priv.live = append(priv.live, linkStream)
	for _, ref := range linkStream.Refs() {
		key, err := idekm.RandomKeys(ref)
		if !r.Check(err == nil, "key generated for %s: %v", ref, err) {
			return false
		}
		st, err := priv.idekm.KeyProg(ctx, ref, key)
		r.Check(err == nil && st == idekm.AckSuccess, "CXL_KEY_PROG %s acknowledged (%s, %v)", ref, st, err)
	}
	return true
}

func runKeyProgInvalidKeySet(ctx context.Context, c *testctx.Case) bool {
	priv := testctx.Private[*group](c.Group)
	ref := linkStream.Refs()[0]
	ref.KeySet = 2
	st, err := priv.idekm.KeyProg(ctx, ref, idekm.Key{})
	return c.Reporter.Check(err == nil && st == idekm.AckUnsupportedValue,
		"CXL_KEY_PROG %s answered %s (%v)", ref, st, err)
}

func linkState(c *testctx.Case, want pcie.StreamState) {
	priv := testctx.Private[*group](c.Group)
	for _, ide := range priv.ends() {
		st, err := ide.StreamState(pcie.LinkStream, 0)
		c.Reporter.Check(err == nil && st == want, "link stream is %s, want %s", st, want)
	}
}

func runKSetGo(ctx context.Context, c *testctx.Case) bool {
	priv := testctx.Private[*group](c.Group)
	for _, ref := range linkStream.Refs() {
		echo, err := priv.idekm.KSetGo(ctx, ref)
		c.Reporter.Check(err == nil && echo == ref, "CXL_K_SET_GO %s acknowledged: %v", ref, err)
	}
	linkState(c, pcie.StreamSecure)
	return true
}

func runKSetStop(ctx context.Context, c *testctx.Case) bool {
	priv := testctx.Private[*group](c.Group)
	for _, ref := range linkStream.Refs() {
		echo, err := priv.idekm.KSetStop(ctx, ref)
		c.Reporter.Check(err == nil && echo == ref, "CXL_K_SET_STOP %s acknowledged: %v", ref, err)
	}
	linkState(c, pcie.StreamInsecure)
	return true
}

func runGetKey(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	priv := testctx.Private[*group](c.Group)
	priv.live = append(priv.live, linkStream)
	for _, ref := range linkStream.Refs() {
		first, err := priv.idekm.GetKey(ctx, ref)
		if errors.Is(err, idekm.ErrUnsupported) {
			r.Fail("CXL_GETKEY %s unsupported although key generation is advertised", ref)
			continue
		}
		if !r.Check(err == nil, "CXL_GETKEY %s succeeds: %v", ref, err) {
			continue
		}
		r.Check(first.Bytes != [32]byte{}, "generated key for %s is non-zero", ref)
		again, err := priv.idekm.GetKey(ctx, ref)
		r.Check(err == nil && again == first, "repeated CXL_GETKEY %s returns the same key", ref)
	}
	return true
}
