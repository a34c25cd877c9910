package tdisp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/emulator"
	"github.com/vk/teeio-validator/internal/protocol/tdisp"
	"github.com/vk/teeio-validator/internal/result"
	"github.com/vk/teeio-validator/internal/testutil"
)

func newHarness(t *testing.T, opts emulator.Options, types ...string) *testutil.Harness {
	h := testutil.NewHarness(t, opts, Table())
	topo := h.Direct("direct", config.TopologySelectiveIDE)
	cfg := h.Configuration("cfg", Name, config.TopologySelectiveIDE, types...)
	h.Suite("tdisp", cfg, []*config.Topology{topo})
	return h
}

func TestTDISP_AllCasesPass(t *testing.T) {
	for _, types := range [][]string{nil, {"lock-no-fw-update"}} {
		h := newHarness(t, emulator.Options{}, types...)

		run := h.MustRun(t)

		testutil.AssertAllPass(t, run)
		assert.Len(t, testutil.Cases(run), 6)
	}
}

func TestTDISP_UnsupportedLockFlag(t *testing.T) {
	// LockFlags zero selects the emulator default, so advertise an unrelated bit.
	h := newHarness(t, emulator.Options{TDISPLockFlags: tdisp.LockFlags(1 << 3)}, "lock-no-fw-update")

	run := h.MustRun(t)

	for _, c := range testutil.Cases(run) {
		assert.Equal(t, result.NotTested, c.Status(), c.Key())
		assert.Contains(t, c.Reason(), "configuration unsupported")
	}
}

func TestTDISP_LockFailureAbortsDependentCases(t *testing.T) {
	h := newHarness(t, emulator.Options{Fail: map[string]bool{emulator.OpTDISPLock: true}})

	run := h.MustRun(t)

	st := testutil.Statuses(run)
	assert.Equal(t, result.Pass, st["cfg/direct/Version.1"])
	assert.Equal(t, result.Failed, st["cfg/direct/LockInterface.1"])
	assert.Equal(t, result.Failed, st["cfg/direct/StartInterface.1"])
	assert.Equal(t, result.Failed, st["cfg/direct/StopInterface.1"])
}
