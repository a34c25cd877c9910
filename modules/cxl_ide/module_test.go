package cxl_ide

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/emulator"
	"github.com/vk/teeio-validator/internal/result"
	"github.com/vk/teeio-validator/internal/testutil"
	"github.com/zclconf/go-cty/cty"
)

func newHarness(t *testing.T, opts emulator.Options, tt config.TopologyType, types ...string) *testutil.Harness {
	h := testutil.NewHarness(t, opts, Table())
	topo := h.Direct("direct", tt)
	cfg := h.Configuration("cfg", Name, tt, types...)
	h.Suite("cxl", cfg, []*config.Topology{topo})
	return h
}

func TestCXLIDE_AllCasesPass(t *testing.T) {
	for _, types := range [][]string{nil, {"pcrc"}, {"ide-stop"}, {"pcrc", "ide-stop"}} {
		h := newHarness(t, emulator.Options{KeyGeneration: true}, config.TopologyLinkIDE, types...)

		run := h.MustRun(t)

		testutil.AssertAllPass(t, run)
		assert.Len(t, testutil.Cases(run), 7)
	}
}

func TestCXLIDE_GetKeySkippedWithoutKeyGeneration(t *testing.T) {
	h := newHarness(t, emulator.Options{}, config.TopologyLinkIDE)

	run := h.MustRun(t)

	st := testutil.Statuses(run)
	assert.Equal(t, result.NotTested, st["cfg/direct/GetKey.1"])
	assert.Equal(t, result.Pass, st["cfg/direct/KSetGo.1"])
	assert.True(t, run.OK())
}

func TestCXLIDE_SelectiveShapeKeepsOnlyDefault(t *testing.T) {
	h := newHarness(t, emulator.Options{KeyGeneration: true}, config.TopologySelectiveIDE, "pcrc")

	run := h.MustRun(t)

	g := testutil.Groups(run)[0]
	require.Len(t, g.Items, 2)
	assert.Equal(t, result.Pass, g.Item(TypeDefault).Status())
	assert.Equal(t, result.NotTested, g.Item(TypePCRC).Status())
	for _, c := range g.Cases {
		assert.Equal(t, result.Pass, c.Status(), c.Key())
	}
}

func TestCXLIDE_IDEMode(t *testing.T) {
	cfg := &config.Configuration{}
	assert.Equal(t, ModeContainment, settingsOf(cfg).Mode)
	require.NoError(t, parsePrivate(FieldIDEMode, cty.StringVal(ModeSkid), cfg))
	assert.Equal(t, ModeSkid, settingsOf(cfg).Mode)
	assert.Error(t, parsePrivate(FieldIDEMode, cty.StringVal("turbo"), cfg))
	assert.Error(t, parsePrivate(FieldIDEMode, cty.NumberIntVal(1), cfg))
	assert.Error(t, parsePrivate("stream_id", cty.NumberIntVal(1), cfg))

	h := newHarness(t, emulator.Options{}, config.TopologyLinkIDE)
	h.Catalog.Configuration("cfg").PrivateFields = []config.PrivateField{{Key: FieldIDEMode, Value: cty.StringVal(ModeSkid)}}
	run := h.MustRun(t)
	st := testutil.Statuses(run)
	assert.Equal(t, result.Pass, st["cfg/direct/KSetGo.1"])
}
