// Package spdm is the SPDM category: it checks version, capability and
// algorithm negotiation with the endpoint and that a secured session can be
// established and torn down.
package spdm

import (
	"context"
	"fmt"

	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/protocol/spdm"
	"github.com/vk/teeio-validator/internal/registry"
	"github.com/vk/teeio-validator/internal/testctx"
)

// Name is the catalog name of the category.
const Name = "spdm"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the category with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(Table())
}

type group struct {
	session spdm.Session
	version spdm.Version
}

// Table returns the category definition.
func Table() *category.Table {
	return &category.Table{
		CategoryName: Name,
		Types:        []string{"default"},
		Group: category.GroupFuncs{
			Setup:    setupGroup,
			Teardown: category.ClosePorts,
		},
		Classes: []category.Class{
			{Name: "Version", Cases: []category.Case{{ID: 1, Funcs: category.CaseFuncs{Run: runVersion}}}},
			{Name: "Capabilities", Cases: []category.Case{{ID: 1, Funcs: category.CaseFuncs{Run: runCapabilities}}}},
			{Name: "Algorithms", Cases: []category.Case{{ID: 1, Funcs: category.CaseFuncs{Run: runAlgorithms}}}},
			{Name: "Session", Cases: []category.Case{{ID: 1, Funcs: category.CaseFuncs{Run: runSession}}}},
		},
		NewPriv: func() any { return &group{} },
	}
}

func setupGroup(ctx context.Context, g *testctx.Group) bool {
	if !category.OpenPorts(ctx, g) {
		return false
	}
	s, err := g.Suite.Platform.SPDM(ctx, g.Ports.Lower.Port.BDF)
	if err != nil {
		ctxlog.FromContext(ctx).Error("Failed to open SPDM session.", "error", err)
		return false
	}
	priv := testctx.Private[*group](g)
	priv.session = s
	return true
}

func runVersion(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	priv := testctx.Private[*group](c.Group)
	versions, err := priv.session.GetVersion(ctx)
	if !r.Check(err == nil, "GET_VERSION succeeds: %v", err) {
		return false
	}
	r.Check(len(versions) > 0, "responder reports %d version entries", len(versions))
	highest := spdm.Version(0)
	for _, v := range versions {
		if v > highest {
			highest = v
		}
	}
	r.Check(highest >= spdm.V12, "highest version %s is at least 1.2", highest)
	priv.version = highest
	return true
}

func negotiated(ctx context.Context, priv *group) (spdm.Version, error) {
	if priv.version != 0 {
		return priv.version, nil
	}
	versions, err := priv.session.GetVersion(ctx)
	if err != nil {
		return 0, err
	}
	for _, v := range versions {
		if v > priv.version {
			priv.version = v
		}
	}
	if priv.version == 0 {
		return 0, fmt.Errorf("no SPDM version offered")
	}
	return priv.version, nil
}

func runCapabilities(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	priv := testctx.Private[*group](c.Group)
	v, err := negotiated(ctx, priv)
	if !r.Check(err == nil, "version negotiated: %v", err) {
		return false
	}
	caps, err := priv.session.GetCapabilities(ctx, v)
	if !r.Check(err == nil, "GET_CAPABILITIES succeeds: %v", err) {
		return false
	}
	r.Check(caps.Has(spdm.CapKeyEx), "KEY_EX_CAP set (flags %#x)", caps.Flags)
	r.Check(caps.Has(spdm.CapEncrypt|spdm.CapMAC), "ENCRYPT_CAP and MAC_CAP set (flags %#x)", caps.Flags)
	r.Check(caps.Has(spdm.CapCert), "CERT_CAP set (flags %#x)", caps.Flags)
	return true
}

func singleBit[T uint16 | uint32](v T) bool { return v != 0 && v&(v-1) == 0 }

func runAlgorithms(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	priv := testctx.Private[*group](c.Group)
	alg, err := priv.session.NegotiateAlgorithms(ctx)
	if !r.Check(err == nil, "NEGOTIATE_ALGORITHMS succeeds: %v", err) {
		return false
	}
	r.Check(singleBit(alg.BaseHash), "one base hash selected (%#x)", alg.BaseHash)
	r.Check(singleBit(alg.BaseAsym), "one base asymmetric algorithm selected (%#x)", alg.BaseAsym)
	r.Check(singleBit(alg.MeasurementHash), "one measurement hash selected (%#x)", alg.MeasurementHash)
	r.Check(singleBit(alg.DHE), "one DHE group selected (%#x)", alg.DHE)
	r.Check(alg.AEAD == spdm.AEADAES256GCM, "AEAD is AES-256-GCM (%#x)", alg.AEAD)
	return true
}

func runSession(ctx context.Context, c *testctx.Case) bool {
	r := c.Reporter
	priv := testctx.Private[*group](c.Group)
	id, err := priv.session.StartSession(ctx)
	if !r.Check(err == nil, "KEY_EXCHANGE/FINISH succeed: %v", err) {
		return false
	}
	r.Check(id != 0, "session id %#x is non-zero", id)
	r.Check(priv.session.EndSession(ctx, id) == nil, "END_SESSION for %#x succeeds", id)
	r.Check(priv.session.EndSession(ctx, id) != nil, "second END_SESSION for %#x is rejected", id)
	return true
}
