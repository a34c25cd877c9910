package pcie_ide

import (
	"context"
	"fmt"

	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/pcie"
	"github.com/vk/teeio-validator/internal/platform"
	"github.com/vk/teeio-validator/internal/protocol/idekm"
	"github.com/vk/teeio-validator/internal/protocol/spdm"
	"github.com/vk/teeio-validator/internal/testctx"
)

type group struct {
	root  *pcie.IDE
	lower *pcie.IDE

	// hops are the IDE capabilities of every switch port on the path.
	hops []*pcie.IDE

	kind  pcie.StreamKind
	index int

	spdm      spdm.Session
	sessionID uint32
	idekm     idekm.Session
	query     *idekm.QueryResp

	// live lists the key sets programmed during the current case.
	live []idekm.Stream
}

// ends returns the root and lower port IDE capabilities.
func (g *group) ends() []*pcie.IDE { return []*pcie.IDE{g.root, g.lower} }

func setupGroup(ctx context.Context, g *testctx.Group) bool {
	logger := ctxlog.FromContext(ctx)
	priv := testctx.Private[*group](g)

	// 1. Ports and their IDE capabilities.
	if !category.OpenPorts(ctx, g) {
		return false
	}
	var err error
	if priv.root, err = pcie.OpenIDE(g.Ports.Root.Space); err != nil {
		logger.Error("Root port has no IDE capability.", "error", err)
		return false
	}
	if priv.lower, err = pcie.OpenIDE(g.Ports.Lower.Space); err != nil {
		logger.Error("Lower port has no IDE capability.", "error", err)
		return false
	}
	for _, h := range g.Ports.Hops {
		for _, ph := range []*platform.PortHandle{h.Upper, h.Lower} {
			ide, err := pcie.OpenIDE(ph.Space)
			if err != nil {
				logger.Error("Switch port has no IDE capability.", "port", ph.Port.Name, "error", err)
				return false
			}
			priv.hops = append(priv.hops, ide)
		}
	}

	// 2. Stream selection.
	priv.kind = pcie.SelectiveStream
	if g.Topology.Type == config.TopologyLinkIDE {
		priv.kind = pcie.LinkStream
	}
	for _, ide := range priv.ends() {
		if ide.Streams(priv.kind) == 0 {
			logger.Error("Port implements no stream of the topology's kind.", "kind", priv.kind)
			return false
		}
	}

	// 3. Secured session and IDE_KM.
	bdf := g.Ports.Lower.Port.BDF
	p := g.Suite.Platform
	if priv.spdm, err = p.SPDM(ctx, bdf); err != nil {
		logger.Error("Failed to reach SPDM responder.", "error", err)
		return false
	}
	if priv.sessionID, err = priv.spdm.StartSession(ctx); err != nil {
		logger.Error("Failed to start SPDM session.", "error", err)
		return false
	}
	if priv.idekm, err = p.IDEKM(ctx, bdf); err != nil {
		logger.Error("Failed to reach IDE_KM responder.", "error", err)
		return false
	}
	if priv.query, err = priv.idekm.Query(ctx, 0); err != nil {
		logger.Error("IDE_KM QUERY failed.", "error", err)
		return false
	}
	logger.Debug("IDE group ready.", "kind", priv.kind, "index", priv.index, "session", fmt.Sprintf("%#x", priv.sessionID))
	return true
}

func teardownGroup(ctx context.Context, g *testctx.Group) bool {
	logger := ctxlog.FromContext(ctx)
	priv := testctx.Private[*group](g)
	ok := true
	if priv.sessionID != 0 {
		if err := priv.spdm.EndSession(ctx, priv.sessionID); err != nil {
			logger.Error("Failed to end SPDM session.", "error", err)
			ok = false
		}
		priv.sessionID = 0
	}
	return category.ClosePorts(ctx, g) && ok
}
