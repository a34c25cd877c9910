// Package testutil holds the harness category tests share: a small catalog
// builder, an emulated platform and a helper that binds and dispatches the
// catalog the way the application does.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/confirm"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/dispatcher"
	"github.com/vk/teeio-validator/internal/emulator"
	"github.com/vk/teeio-validator/internal/pcie"
	"github.com/vk/teeio-validator/internal/platform"
	"github.com/vk/teeio-validator/internal/registry"
	"github.com/vk/teeio-validator/internal/result"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// Well-known addresses used by the topology builders.
var (
	RootBDF     = pcie.BDF{Bus: 0x00, Device: 0x01}
	EndpointBDF = pcie.BDF{Bus: 0x01}
	SwitchUpBDF = pcie.BDF{Bus: 0x02}
	SwitchDnBDF = pcie.BDF{Bus: 0x03}
	SwitchEpBDF = pcie.BDF{Bus: 0x04}
)

// Harness assembles a catalog around one category.
type Harness struct {
	Catalog   *config.Catalog
	Registry  *registry.Registry
	Platform  platform.Platform
	Confirmer confirm.Confirmer
	Observer  dispatcher.Observer
	Log       *SafeBuffer
}

// HarnessResult holds the outcome of a harness run.
type HarnessResult struct {
	Run       *result.Run
	Err       error
	LogOutput string
}

// NewHarness registers tables and backs the run with an emulator built
// from opts.
func NewHarness(t *testing.T, opts emulator.Options, tables ...*category.Table) *Harness {
	t.Helper()
	r := registry.New()
	for _, tbl := range tables {
		r.Register(tbl)
	}
	return &Harness{
		Catalog:  &config.Catalog{},
		Registry: r,
		Platform: emulator.New(opts),
		Log:      &SafeBuffer{},
	}
}

// Emulator returns the platform as an emulator, or nil if it was replaced.
func (h *Harness) Emulator() *emulator.Emulator {
	e, _ := h.Platform.(*emulator.Emulator)
	return e
}

func (h *Harness) port(name string, role config.PortRole, bdf pcie.BDF) *config.Port {
	if p := h.Catalog.Port(name); p != nil {
		return p
	}
	p := &config.Port{Name: name, Enabled: true, Role: role, BDF: bdf}
	h.Catalog.Ports = append(h.Catalog.Ports, p)
	return p
}

// Direct adds a root port wired straight to an endpoint.
func (h *Harness) Direct(name string, tt config.TopologyType) *config.Topology {
	rp := h.port("rp", config.RoleRootPort, RootBDF)
	ep := h.port("ep", config.RoleEndpoint, EndpointBDF)
	topo := &config.Topology{Name: name, Enabled: true, Type: tt, Root: rp, Upper: rp, Lower: ep}
	h.Catalog.Topologies = append(h.Catalog.Topologies, topo)
	return topo
}

// Switched adds a root port reaching an endpoint through one switch.
func (h *Harness) Switched(name string, tt config.TopologyType) *config.Topology {
	rp := h.port("rp", config.RoleRootPort, RootBDF)
	up := h.port("sw_up", config.RoleSwitchPort, SwitchUpBDF)
	dn := h.port("sw_dn", config.RoleSwitchPort, SwitchDnBDF)
	ep := h.port("sw_ep", config.RoleEndpoint, SwitchEpBDF)
	sw := h.Catalog.Switch("sw")
	if sw == nil {
		sw = &config.Switch{Name: "sw", Ports: []*config.Port{up, dn}}
		h.Catalog.Switches = append(h.Catalog.Switches, sw)
	}
	topo := &config.Topology{
		Name: name, Enabled: true, Type: tt, Connection: config.ConnectionSwitch,
		Root: rp, Upper: rp, Lower: ep,
		Hops: []*config.SwitchHop{{Switch: sw, Upper: up, Lower: dn}},
	}
	h.Catalog.Topologies = append(h.Catalog.Topologies, topo)
	return topo
}

// Configuration adds a configuration for categoryName requesting the named
// variants. Private fields are added through the returned pointer.
func (h *Harness) Configuration(name, categoryName string, tt config.TopologyType, types ...string) *config.Configuration {
	cfg := &config.Configuration{
		Name: name, Enabled: true, Category: categoryName, TopologyType: tt, TypeNames: types,
	}
	h.Catalog.Configurations = append(h.Catalog.Configurations, cfg)
	return cfg
}

// Suite adds an enabled suite. No selectors means every case.
func (h *Harness) Suite(name string, cfg *config.Configuration, topos []*config.Topology, cases ...config.CaseSelector) *config.TestSuite {
	s := &config.TestSuite{
		Name: name, Enabled: true, Category: cfg.Category,
		Topologies: topos, Configurations: []*config.Configuration{cfg}, Cases: cases,
	}
	h.Catalog.Suites = append(h.Catalog.Suites, s)
	return s
}

// Run validates and binds the catalog, then dispatches it. Logs are captured
// in h.Log and echoed when TEEIO_TEST_LOGS=true.
func (h *Harness) Run(t *testing.T) *HarnessResult {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(h.Log, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := ctxlog.WithLogger(context.Background(), logger)

	res := &HarnessResult{}
	if err := h.Catalog.Validate(); err != nil {
		res.Err = err
	} else if err := h.Registry.Bind(ctx, h.Catalog); err != nil {
		res.Err = err
	} else {
		d := dispatcher.New(dispatcher.Options{
			Categories: h.Registry,
			Platform:   h.Platform,
			Confirmer:  h.Confirmer,
			Observer:   h.Observer,
		})
		res.Run, res.Err = d.Run(ctx, h.Catalog)
	}
	res.LogOutput = h.Log.String()

	if os.Getenv("TEEIO_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), res.LogOutput)
	}
	return res
}

// MustRun is Run followed by require.NoError.
func (h *Harness) MustRun(t *testing.T) *result.Run {
	t.Helper()
	res := h.Run(t)
	require.NoError(t, res.Err)
	require.NotNil(t, res.Run)
	return res.Run
}
