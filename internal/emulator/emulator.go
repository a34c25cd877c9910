// Package emulator provides a self-consistent emulated platform: every PCI
// function gets an in-memory configuration space with an IDE extended
// capability, and each function answers IDE_KM, TSP, SPDM and TDISP
// requests. Options remove capabilities or inject failures so plugin
// behaviour can be exercised without hardware.
package emulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/pcie"
	"github.com/vk/teeio-validator/internal/protocol/idekm"
	"github.com/vk/teeio-validator/internal/protocol/spdm"
	"github.com/vk/teeio-validator/internal/protocol/tdisp"
	"github.com/vk/teeio-validator/internal/protocol/tsp"
)

// ErrInjected is returned by operations listed in Options.Fail.
var ErrInjected = errors.New("emulator: injected failure")

// Operation names accepted by Options.Fail.
const (
	OpConfigSpace  = "config_space"
	OpQuery        = "idekm.query"
	OpKeyProg      = "idekm.key_prog"
	OpKSetGo       = "idekm.kset_go"
	OpKSetStop     = "idekm.kset_stop"
	OpGetKey       = "idekm.get_key"
	OpTSPSetConfig = "tsp.set_configuration"
	OpTSPLock      = "tsp.lock_configuration"
	OpSPDMSession  = "spdm.start_session"
	OpTDISPLock    = "tdisp.lock_interface"
	OpTDISPStart   = "tdisp.start_interface"
	OpTDISPStop    = "tdisp.stop_interface"
)

// FullIDECaps advertises every optional IDE feature.
const FullIDECaps = pcie.IDECapFlowThrough | pcie.IDECapPartialHeaderEncryption | pcie.IDECapAggregation |
	pcie.IDECapPCRC | pcie.IDECapIDEKM | pcie.IDECapSelectiveForConfig | pcie.IDECapTEELimitedStream

// ideCapOffset is where the emulator places the IDE capability.
const ideCapOffset = 0x200

// Options tune the emulated devices.
type Options struct {
	// IDECaps is the capability mask of every function unless overridden in
	// CapsByBDF. Zero means FullIDECaps.
	IDECaps   uint32
	CapsByBDF map[pcie.BDF]uint32

	// Stream counts; zero means 1 link and 4 selective streams.
	LinkStreams      int
	SelectiveStreams int

	KeyGeneration bool

	TSPFeatures    uint16
	TDISPLockFlags tdisp.LockFlags

	// Fail lists operations that return ErrInjected.
	Fail map[string]bool
}

// Emulator implements platform.Platform.
type Emulator struct {
	opts Options

	mu        sync.Mutex
	functions map[pcie.BDF]*function
	opened    int
	closed    int

	refreshing atomic.Bool
}

// function is one emulated PCI function and its responder state.
type function struct {
	bdf   pcie.BDF
	space *pcie.Mem

	keys   map[idekm.KeyRef]idekm.Key
	active map[idekm.KeyRef]bool

	tspConfig *tsp.Configuration
	tspState  tsp.State

	sessions    map[uint32]bool
	nextSession uint32

	tdiState tdisp.State
	nonce    tdisp.Nonce
}

// New returns an emulator with no functions; they are created on first use.
func New(opts Options) *Emulator {
	if opts.IDECaps == 0 {
		opts.IDECaps = FullIDECaps
	}
	if opts.LinkStreams == 0 {
		opts.LinkStreams = 1
	}
	if opts.SelectiveStreams == 0 {
		opts.SelectiveStreams = 4
	}
	if opts.TSPFeatures == 0 {
		opts.TSPFeatures = tsp.FeatureEncryption | tsp.FeatureCKIDBased | tsp.FeatureTEStateChange
	}
	if opts.TDISPLockFlags == 0 {
		opts.TDISPLockFlags = tdisp.LockNoFWUpdate
	}
	return &Emulator{opts: opts, functions: make(map[pcie.BDF]*function)}
}

func (e *Emulator) fail(op string) error {
	if e.opts.Fail[op] {
		return fmt.Errorf("%s: %w", op, ErrInjected)
	}
	return nil
}

// function returns the function at bdf, creating it on first use.
func (e *Emulator) function(bdf pcie.BDF) (*function, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if f, ok := e.functions[bdf]; ok {
		return f, nil
	}
	caps := e.opts.IDECaps
	if c, ok := e.opts.CapsByBDF[bdf]; ok {
		caps = c
	}
	m := pcie.NewMem()
	// Vendor/device ID so the space does not read as absent.
	if err := m.WriteU32(0, 0x0b258086); err != nil {
		return nil, err
	}
	if err := pcie.InstallIDE(m, ideCapOffset, caps, e.opts.LinkStreams, e.opts.SelectiveStreams); err != nil {
		return nil, err
	}
	m.OnWrite = func(int, uint32) { e.refresh() }
	f := &function{
		bdf:      bdf,
		space:    m,
		keys:     make(map[idekm.KeyRef]idekm.Key),
		active:   make(map[idekm.KeyRef]bool),
		sessions: make(map[uint32]bool),
	}
	e.functions[bdf] = f
	return f, nil
}

// handle counts closes so tests can check that groups release their ports.
type handle struct {
	*pcie.Mem
	e      *Emulator
	closed bool
}

func (h *handle) Close() error {
	h.e.mu.Lock()
	defer h.e.mu.Unlock()
	if !h.closed {
		h.closed = true
		h.e.closed++
	}
	return nil
}

// ConfigSpace implements platform.Platform.
func (e *Emulator) ConfigSpace(bdf pcie.BDF) (pcie.ConfigSpace, error) {
	if err := e.fail(OpConfigSpace); err != nil {
		return nil, err
	}
	f, err := e.function(bdf)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.opened++
	e.mu.Unlock()
	return &handle{Mem: f.space, e: e}, nil
}

// Handles reports how many configuration-space handles were opened and how
// many of those were closed.
func (e *Emulator) Handles() (opened, closed int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opened, e.closed
}

// Space returns the raw configuration space of bdf for inspection.
func (e *Emulator) Space(bdf pcie.BDF) pcie.ConfigSpace {
	f, err := e.function(bdf)
	if err != nil {
		panic(err)
	}
	return f.space
}

func (e *Emulator) IDEKM(ctx context.Context, bdf pcie.BDF) (idekm.Session, error) {
	f, err := e.function(bdf)
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Emulator opened IDE_KM session.", "bdf", bdf)
	return &ideResponder{e: e, f: f}, nil
}

func (e *Emulator) TSP(_ context.Context, bdf pcie.BDF) (tsp.Session, error) {
	f, err := e.function(bdf)
	if err != nil {
		return nil, err
	}
	return &tspResponder{e: e, f: f}, nil
}

func (e *Emulator) SPDM(_ context.Context, bdf pcie.BDF) (spdm.Session, error) {
	f, err := e.function(bdf)
	if err != nil {
		return nil, err
	}
	return &spdmResponder{e: e, f: f}, nil
}

func (e *Emulator) TDISP(_ context.Context, bdf pcie.BDF) (tdisp.Session, error) {
	f, err := e.function(bdf)
	if err != nil {
		return nil, err
	}
	return &tdispResponder{e: e, f: f}, nil
}

// refresh mirrors key state into every function's stream status: an
// enabled stream is secure when some function has keys for its stream ID
// active on every sub-stream in both directions.
func (e *Emulator) refresh() {
	if !e.refreshing.CompareAndSwap(false, true) {
		return
	}
	defer e.refreshing.Store(false)

	e.mu.Lock()
	live := map[uint8]bool{}
	var spaces []*pcie.Mem
	for _, f := range e.functions {
		spaces = append(spaces, f.space)
		for id := range streamIDs(f.active) {
			if f.streamLive(id) {
				live[id] = true
			}
		}
	}
	e.mu.Unlock()

	for _, m := range spaces {
		ide, err := pcie.OpenIDE(m)
		if err != nil {
			continue
		}
		for _, kind := range []pcie.StreamKind{pcie.LinkStream, pcie.SelectiveStream} {
			for i := 0; i < ide.Streams(kind); i++ {
				ctl, err := ide.StreamControl(kind, i)
				if err != nil {
					continue
				}
				want := pcie.StreamInsecure
				if ctl&pcie.StreamCtlEnable != 0 && live[uint8(ctl>>24)] {
					want = pcie.StreamSecure
				}
				if cur, err := ide.StreamState(kind, i); err == nil && cur != want {
					_ = ide.SetStreamState(kind, i, want)
				}
			}
		}
	}
}

func streamIDs(active map[idekm.KeyRef]bool) map[uint8]bool {
	ids := map[uint8]bool{}
	for ref, on := range active {
		if on {
			ids[ref.StreamID] = true
		}
	}
	return ids
}

// streamLive reports whether every sub-stream of id is active in both
// directions for some key set.
func (f *function) streamLive(id uint8) bool {
	for _, dir := range []idekm.Direction{idekm.RX, idekm.TX} {
		for _, sub := range idekm.SubStreams {
			on := false
			for ks := uint8(0); ks < 2; ks++ {
				if f.active[idekm.KeyRef{StreamID: id, KeySet: ks, Direction: dir, SubStream: sub}] {
					on = true
				}
			}
			if !on {
				return false
			}
		}
	}
	return true
}
