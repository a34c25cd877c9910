package pcie_ide

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/assert"
	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/pcie"
	"github.com/vk/teeio-validator/internal/protocol/idekm"
	"github.com/vk/teeio-validator/internal/testctx"
)

// stream is the configured stream under keySet.
func stream(c *testctx.Case, keySet uint8) idekm.Stream {
	return idekm.Stream{StreamID: settingsOf(c.Configuration).Stream(), KeySet: keySet}
}

func configured(c *testctx.Case) idekm.Stream {
	return stream(c, settingsOf(c.Configuration).KeySet)
}

// prepare programs, and optionally starts, the given key sets.
func prepare(ctx context.Context, c *testctx.Case, start bool, streams ...idekm.Stream) category.SetupResult {
	logger := ctxlog.FromContext(ctx)
	priv := testctx.Private[*group](c.Group)
	for _, s := range streams {
		if err := idekm.Program(ctx, priv.idekm, s, idekm.RandomKeys); err != nil {
			logger.Error("Failed to program keys.", "keyset", s.KeySet, "error", err)
			return category.SetupFailed
		}
		priv.live = append(priv.live, s)
		if !start {
			continue
		}
		if err := idekm.Go(ctx, priv.idekm, s); err != nil {
			logger.Error("Failed to start key set.", "keyset", s.KeySet, "error", err)
			return category.SetupFailed
		}
	}
	return category.SetupOK
}

func setupProgrammed(ctx context.Context, c *testctx.Case) category.SetupResult {
	return prepare(ctx, c, false, configured(c))
}

func setupBothKeySets(ctx context.Context, c *testctx.Case) category.SetupResult {
	return prepare(ctx, c, false, stream(c, 0), stream(c, 1))
}

func setupLive(ctx context.Context, c *testctx.Case) category.SetupResult {
	return prepare(ctx, c, true, configured(c))
}

// stopKeys retires every key set the case programmed.
func stopKeys(ctx context.Context, c *testctx.Case) bool {
	priv := testctx.Private[*group](c.Group)
	ok := true
	for _, s := range priv.live {
		if err := idekm.Stop(ctx, priv.idekm, s); err != nil {
			ctxlog.FromContext(ctx).Error("Failed to stop key set.", "keyset", s.KeySet, "error", err)
			ok = false
		}
	}
	priv.live = nil
	return ok
}

func runQuery(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	priv := testctx.Private[*group](c.Group)
	resp, err := priv.idekm.Query(ctx, 0)
	if !r.Check(err == nil, "QUERY port 0 succeeds: %v", err) {
		return false
	}
	bdf := c.Group.Ports.Lower.Port.BDF
	r.Check(resp.PortIndex == 0, "QUERY_RESP port index %d", resp.PortIndex)
	r.Check(resp.Bus == bdf.Bus && resp.DevFunc == bdf.Device<<3|bdf.Function,
		"QUERY_RESP identifies %s (bus %#x devfunc %#x)", bdf, resp.Bus, resp.DevFunc)
	r.Check(resp.MaxPortIndex >= resp.PortIndex, "max port index %d", resp.MaxPortIndex)
	r.Assert("IDE capability matches config space", func(t assert.TestingT) bool {
		return assert.Equal(t, priv.lower.Caps(), resp.Capability)
	})
	r.Check(resp.LinkStreams == priv.lower.Streams(pcie.LinkStream), "%d link streams", resp.LinkStreams)
	r.Check(resp.SelectiveStreams == priv.lower.Streams(pcie.SelectiveStream), "%d selective streams", resp.SelectiveStreams)
	return true
}

func runQueryInvalidPort(ctx context.Context, c *testctx.Case) bool {
	priv := testctx.Private[*group](c.Group)
	port := priv.query.MaxPortIndex + 1
	_, err := priv.idekm.Query(ctx, port)
	return c.Reporter.Check(err != nil, "QUERY for port %d beyond max is rejected: %v", port, err)
}

func runKeyProg(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	priv := testctx.Private[*group](c.Group)
	s := configured(c)
	priv.live = append(priv.live, s)
	for _, ref := range s.Refs() {
		key, err := idekm.RandomKeys(ref)
		if !r.Check(err == nil, "key generated for %s: %v", ref, err) {
			return false
		}
		st, err := priv.idekm.KeyProg(ctx, ref, key)
		r.Check(err == nil && st == idekm.AckSuccess, "KEY_PROG %s acknowledged (%s, %v)", ref, st, err)
	}
	return true
}

// expectNack programs ref and checks the KP_ACK status.
func expectNack(ctx context.Context, c *testctx.Case, ref idekm.KeyRef, want idekm.AckStatus) bool {
	priv := testctx.Private[*group](c.Group)
	st, err := priv.idekm.KeyProg(ctx, ref, idekm.Key{})
	return c.Reporter.Check(err == nil && st == want, "KEY_PROG %s answered %s, want %s (%v)", ref, st, want, err)
}

func runKeyProgInvalidKeySet(ctx context.Context, c *testctx.Case) bool {
	ref := configured(c).Refs()[0]
	ref.KeySet = 2
	return expectNack(ctx, c, ref, idekm.AckUnsupportedValue)
}

func runKeyProgInvalidPort(ctx context.Context, c *testctx.Case) bool {
	ref := configured(c).Refs()[0]
	ref.PortIndex = testctx.Private[*group](c.Group).query.MaxPortIndex + 1
	return expectNack(ctx, c, ref, idekm.AckUnsupportedPortIndex)
}

func checkEchoes(ctx context.Context, c *testctx.Case, s idekm.Stream, name string, fn func(context.Context, idekm.KeyRef) (idekm.KeyRef, error)) {
	for _, ref := range s.Refs() {
		echo, err := fn(ctx, ref)
		c.Reporter.Check(err == nil && echo == ref, "%s %s acknowledged: %v", name, ref, err)
	}
}

// streamState checks the stream state of both ends.
func streamState(c *testctx.Case, want pcie.StreamState) {
	priv := testctx.Private[*group](c.Group)
	for i, ide := range priv.ends() {
		port := c.Group.Ports.Root.Port.Name
		if i == 1 {
			port = c.Group.Ports.Lower.Port.Name
		}
		st, err := ide.StreamState(priv.kind, priv.index)
		c.Reporter.Check(err == nil && st == want, "%s %s stream %d is %s, want %s", port, priv.kind, priv.index, st, want)
	}
}

func runKSetGo(ctx context.Context, c *testctx.Case) bool {
	priv := testctx.Private[*group](c.Group)
	checkEchoes(ctx, c, configured(c), "K_SET_GO", priv.idekm.KSetGo)
	return true
}

func runKSetGoSwitch(ctx context.Context, c *testctx.Case) bool {
	priv := testctx.Private[*group](c.Group)
	for _, ks := range []uint8{0, 1} {
		c.Reporter.Separator("--- key set %d ---", ks)
		checkEchoes(ctx, c, stream(c, ks), "K_SET_GO", priv.idekm.KSetGo)
		streamState(c, pcie.StreamSecure)
	}
	return true
}

func runKSetStop(ctx context.Context, c *testctx.Case) bool {
	priv := testctx.Private[*group](c.Group)
	checkEchoes(ctx, c, configured(c), "K_SET_STOP", priv.idekm.KSetStop)
	streamState(c, pcie.StreamInsecure)
	return true
}

func runKSetStopRepeated(ctx context.Context, c *testctx.Case) bool {
	priv := testctx.Private[*group](c.Group)
	s := configured(c)
	for pass := 1; pass <= 2; pass++ {
		c.Reporter.Separator("--- stop %d ---", pass)
		checkEchoes(ctx, c, s, "K_SET_STOP", priv.idekm.KSetStop)
	}
	return true
}

func runStream(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	priv := testctx.Private[*group](c.Group)
	streamState(c, pcie.StreamSecure)
	s := configured(c)
	prompt := fmt.Sprintf("IDE %s stream %d (key set %d) is up on topology %q. Run traffic, then confirm.",
		priv.kind, s.StreamID, s.KeySet, c.Group.Topology.Name)
	err := c.Confirm(ctx, prompt)
	r.Check(err == nil, "operator confirmed traffic: %v", err)
	return true
}
