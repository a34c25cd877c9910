package cxl_tsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/emulator"
	"github.com/vk/teeio-validator/internal/protocol/tsp"
	"github.com/vk/teeio-validator/internal/result"
	"github.com/vk/teeio-validator/internal/testutil"
)

func newHarness(t *testing.T, opts emulator.Options, types ...string) *testutil.Harness {
	h := testutil.NewHarness(t, opts, Table())
	a := h.Direct("direct", config.TopologyLinkIDE)
	b := h.Switched("switched", config.TopologyLinkIDE)
	cfg := h.Configuration("cfg", Name, config.TopologyLinkIDE, types...)
	h.Suite("tsp", cfg, []*config.Topology{a, b})
	return h
}

func TestTSP_EveryVariantPasses(t *testing.T) {
	for _, types := range [][]string{nil, {"te-state-change"}, {"multi-ckid"}, {"te-state-change", "multi-ckid"}} {
		h := newHarness(t, emulator.Options{}, types...)

		run := h.MustRun(t)

		testutil.AssertAllPass(t, run)
		assert.Len(t, testutil.Cases(run), 8, "types %v", types)
	}
}

func TestTSP_LockRejectsReconfiguration(t *testing.T) {
	h := newHarness(t, emulator.Options{})

	run := h.MustRun(t)

	var lock *result.Case
	for _, c := range testutil.Cases(run) {
		if c.Key() == "LockConfiguration.1" {
			lock = c
			break
		}
	}
	require.NotNil(t, lock)
	require.Len(t, lock.Assertions, 3)
	assert.Contains(t, lock.Assertions[2].Evidence, "rejected")
	assert.Equal(t, result.Pass, lock.Status())
}

func TestTSP_MissingFeatureMarksConfigurationUnsupported(t *testing.T) {
	h := newHarness(t, emulator.Options{TSPFeatures: tsp.FeatureEncryption}, "te-state-change")

	run := h.MustRun(t)

	for _, g := range testutil.Groups(run) {
		it := g.Items[1]
		assert.Equal(t, "te-state-change", it.Name)
		assert.Equal(t, result.NotTested, it.Status())
		for _, c := range g.Cases {
			assert.Equal(t, result.NotTested, c.Status())
		}
	}
	assert.True(t, run.OK())
}

func TestTSP_SetConfigurationFailure(t *testing.T) {
	h := newHarness(t, emulator.Options{Fail: map[string]bool{emulator.OpTSPSetConfig: true}})

	run := h.MustRun(t)

	st := testutil.Statuses(run)
	assert.Equal(t, result.Pass, st["cfg/direct/GetCapabilities.1"])
	assert.Equal(t, result.Failed, st["cfg/direct/SetConfiguration.1"])
	assert.Equal(t, result.Failed, st["cfg/direct/LockConfiguration.1"])
}

func TestTSP_GroupNeedsSecuredSession(t *testing.T) {
	h := newHarness(t, emulator.Options{Fail: map[string]bool{emulator.OpSPDMSession: true}})

	run := h.MustRun(t)

	for _, g := range testutil.Groups(run) {
		assert.Equal(t, result.Failed, g.Setup)
	}
	opened, closed := h.Emulator().Handles()
	assert.Equal(t, opened, closed)
}
