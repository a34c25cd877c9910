// Package cxl_ide is the CXL Integrity and Data Encryption category. CXL
// IDE protects the CXL.cachemem link between a root port and a memory
// device, so every group programs the link stream of both ends.
package cxl_ide

import (
	"context"
	"fmt"

	"github.com/vk/teeio-validator/internal/bitmask"
	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/pcie"
	"github.com/vk/teeio-validator/internal/protocol/idekm"
	"github.com/vk/teeio-validator/internal/protocol/spdm"
	"github.com/vk/teeio-validator/internal/registry"
	"github.com/vk/teeio-validator/internal/testctx"
	"github.com/zclconf/go-cty/cty"
)

// Name is the catalog name of the category.
const Name = "cxl_ide"

// Configuration types.
const (
	TypeDefault bitmask.ConfigurationType = iota
	TypePCRC
	TypeIDEStop
)

// FieldIDEMode selects containment or skid mode.
const FieldIDEMode = "ide_mode"

// IDE modes.
const (
	ModeContainment = "containment"
	ModeSkid        = "skid"
)

// Settings are the cxl_ide knobs of one configuration.
type Settings struct {
	Mode string
}

func settingsOf(cfg *config.Configuration) *Settings {
	if s, ok := cfg.Private.(*Settings); ok {
		return s
	}
	return &Settings{Mode: ModeContainment}
}

func parsePrivate(key string, value cty.Value, cfg *config.Configuration) error {
	if key != FieldIDEMode {
		return fmt.Errorf("unknown field %q", key)
	}
	if value.Type() != cty.String {
		return fmt.Errorf("%s: want a string, got %s", key, value.Type().FriendlyName())
	}
	var mode string
	if err := config.Decode(value, &mode); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	switch mode {
	case ModeContainment, ModeSkid:
		cfg.Private = &Settings{Mode: mode}
	default:
		return fmt.Errorf("%s: %q is neither %q nor %q", key, mode, ModeContainment, ModeSkid)
	}
	return nil
}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the category with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(Table())
}

// Table returns the category definition.
func Table() *category.Table {
	return &category.Table{
		CategoryName:  Name,
		Types:         []string{"default", "pcrc", "ide-stop"},
		PrivateFields: []string{FieldIDEMode},
		ParsePrivate:  parsePrivate,
		Bitmasks: map[config.TopologyType]bitmask.Bitmap{
			config.TopologyLinkIDE: bitmask.Of(TypeDefault, TypePCRC, TypeIDEStop),
		},
		Configs: configFuncs,
		Group: category.GroupFuncs{
			Setup:    setupGroup,
			Teardown: teardownGroup,
		},
		Classes: []category.Class{
			{Name: "Query", Cases: []category.Case{
				{ID: 1, Funcs: category.CaseFuncs{Run: runQuery}},
				{ID: 2, Funcs: category.CaseFuncs{Run: runQueryInvalidPort}},
			}},
			{Name: "KeyProg", Cases: []category.Case{
				{ID: 1, Funcs: category.CaseFuncs{Run: runKeyProg, Teardown: stopKeys}},
				{ID: 2, Funcs: category.CaseFuncs{Run: runKeyProgInvalidKeySet}},
			}},
			{Name: "KSetGo", Cases: []category.Case{{ID: 1, Funcs: category.CaseFuncs{
				Setup: setupProgrammed, Run: runKSetGo, Teardown: finishKSetGo, ConfigCheckRequired: true,
			}}}},
			{Name: "KSetStop", Cases: []category.Case{{ID: 1, Funcs: category.CaseFuncs{
				Setup: setupLive, Run: runKSetStop, Teardown: stopKeys,
			}}}},
			{Name: "GetKey", Cases: []category.Case{{ID: 1, Funcs: category.CaseFuncs{
				Setup: setupGetKey, Run: runGetKey, Teardown: stopKeys,
			}}}},
		},
		NewPriv: func() any { return &group{} },
	}
}

// linkStream is the only stream CXL IDE uses.
var linkStream = idekm.Stream{}

type group struct {
	root  *pcie.IDE
	lower *pcie.IDE

	spdm      spdm.Session
	sessionID uint32
	idekm     idekm.Session
	query     *idekm.QueryResp

	// stopAfter is set by the ide-stop variant: the stream is stopped once
	// K_SET_GO has been verified.
	stopAfter bool
	live      []idekm.Stream
}

func (g *group) ends() []*pcie.IDE { return []*pcie.IDE{g.root, g.lower} }

func setupGroup(ctx context.Context, g *testctx.Group) bool {
	logger := ctxlog.FromContext(ctx)
	priv := testctx.Private[*group](g)
	if !category.OpenPorts(ctx, g) {
		return false
	}
	var err error
	if priv.root, err = pcie.OpenIDE(g.Ports.Root.Space); err != nil {
		logger.Error("Root port has no IDE capability.", "error", err)
		return false
	}
	if priv.lower, err = pcie.OpenIDE(g.Ports.Lower.Space); err != nil {
		logger.Error("Memory device has no IDE capability.", "error", err)
		return false
	}
	for _, ide := range priv.ends() {
		if ide.Streams(pcie.LinkStream) == 0 {
			logger.Error("Port implements no link stream.")
			return false
		}
	}

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
		logger.Error("CXL_QUERY failed.", "error", err)
		return false
	}
	return true
}

func teardownGroup(ctx context.Context, g *testctx.Group) bool {
	logger := ctxlog.FromContext(ctx)
	priv := testctx.Private[*group](g)
	ok := true
	if len(priv.live) > 0 && !stopLive(ctx, priv) {
		ok = false
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

func configFuncs(_ config.TopologyType, t bitmask.ConfigurationType) category.ConfigurationFuncs {
	switch t {
	case TypeDefault:
		const field = pcie.StreamCtlEnable | pcie.StreamCtlStreamIDMask | pcie.StreamCtlCXLContainment
		want := func(c *testctx.Config) uint32 {
			v := pcie.StreamCtlEnable | pcie.StreamIDField(linkStream.StreamID)
			if settingsOf(c.Configuration).Mode == ModeContainment {
				v |= pcie.StreamCtlCXLContainment
			}
			return v
		}
		return category.ConfigurationFuncs{
			Support: func(_ context.Context, c *testctx.Config) bool {
				q := testctx.Private[*group](c.Group).query
				return q.LinkStreams > 0 && q.Capability&pcie.IDECapIDEKM != 0
			},
			Enable: func(ctx context.Context, c *testctx.Config) bool {
				return update(ctx, testctx.Private[*group](c.Group), field, want(c))
			},
			Disable: func(ctx context.Context, c *testctx.Config) bool {
				return update(ctx, testctx.Private[*group](c.Group), field, 0)
			},
			Check: func(ctx context.Context, c *testctx.Config) bool {
				return match(ctx, testctx.Private[*group](c.Group), field, want(c))
			},
		}
	case TypePCRC:
		return category.ConfigurationFuncs{
			Support: func(_ context.Context, c *testctx.Config) bool {
				priv := testctx.Private[*group](c.Group)
				return priv.root.Supports(pcie.IDECapPCRC) && priv.lower.Supports(pcie.IDECapPCRC)
			},
			Enable: func(ctx context.Context, c *testctx.Config) bool {
				return update(ctx, testctx.Private[*group](c.Group), pcie.StreamCtlPCRC, pcie.StreamCtlPCRC)
			},
			Disable: func(ctx context.Context, c *testctx.Config) bool {
				return update(ctx, testctx.Private[*group](c.Group), pcie.StreamCtlPCRC, 0)
			},
			Check: func(ctx context.Context, c *testctx.Config) bool {
				return match(ctx, testctx.Private[*group](c.Group), pcie.StreamCtlPCRC, pcie.StreamCtlPCRC)
			},
		}
	case TypeIDEStop:
		return category.ConfigurationFuncs{
			Enable: func(_ context.Context, c *testctx.Config) bool {
				testctx.Private[*group](c.Group).stopAfter = true
				return true
			},
			Disable: func(_ context.Context, c *testctx.Config) bool {
				testctx.Private[*group](c.Group).stopAfter = false
				return true
			},
			Check: func(_ context.Context, c *testctx.Config) bool {
				st, err := testctx.Private[*group](c.Group).lower.StreamState(pcie.LinkStream, 0)
				return err == nil && st == pcie.StreamInsecure
			},
		}
	}
	return category.ConfigurationFuncs{}
}

func update(ctx context.Context, priv *group, clear, set uint32) bool {
	for _, ide := range priv.ends() {
		if err := ide.UpdateStreamControl(pcie.LinkStream, 0, clear, set); err != nil {
			ctxlog.FromContext(ctx).Error("Failed to update link stream control.", "error", err)
			return false
		}
	}
	return true
}

func match(ctx context.Context, priv *group, field, want uint32) bool {
	for _, ide := range priv.ends() {
		v, err := ide.StreamControl(pcie.LinkStream, 0)
		if err != nil {
			ctxlog.FromContext(ctx).Error("Failed to read link stream control.", "error", err)
			return false
		}
		if v&field != want {
			return false
		}
	}
	return true
}
