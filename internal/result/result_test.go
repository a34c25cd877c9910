package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/teeio-validator/internal/bitmask"
)

func newCase(t *testing.T) (*Run, *Group, *Case) {
	t.Helper()
	run := &Run{}
	g := run.AddSuite("s", "pcie_ide").AddConfig("c", bitmask.Of(0), bitmask.Of(0)).AddGroup("t")
	return run, g, g.AddCase("Query", 1, "Query")
}

func TestCase_StatusPolicy(t *testing.T) {
	// --- Arrange ---
	_, _, c := newCase(t)
	r := NewCaseReporter(c)

	// --- Act ---
	r.Pass("version matches")
	r.Fail("stream id %d rejected", 3)
	r.Pass("key set acknowledged")

	// --- Assert ---
	assert.Equal(t, Failed, c.Status())
	assert.Equal(t, 2, c.Passed)
	assert.Equal(t, 1, c.Failed)
	require.Len(t, c.Assertions, 3)
	assert.Equal(t, "stream id 3 rejected", c.Assertions[1].Evidence)
	assert.Equal(t, 2, c.Assertions[1].Ordinal)
}

func TestCase_SeparatorsDoNotCount(t *testing.T) {
	_, _, c := newCase(t)
	r := NewCaseReporter(c)
	r.Separator("--- key set 0 ---")
	assert.Equal(t, NotTested, c.Status())
	assert.Zero(t, c.Passed+c.Failed)

	r.Check(true, "ok")
	assert.Equal(t, Pass, c.Status())
}

func TestCase_AbortFailsWithoutCounting(t *testing.T) {
	_, g, c := newCase(t)
	c.Abort("case setup failed")
	assert.Equal(t, Failed, c.Status())
	assert.Equal(t, Failed, g.Status())
	assert.Zero(t, g.Passed+g.Failed)
	assert.Equal(t, "case setup failed", c.Reason())
}

func TestCaseReporter_Assert(t *testing.T) {
	_, _, c := newCase(t)
	r := NewCaseReporter(c)
	var seen []*Assertion
	r.OnRecord = func(a *Assertion) { seen = append(seen, a) }

	ok := r.Assert("major version", func(t assert.TestingT) bool {
		return assert.Equal(t, uint8(1), uint8(1))
	})
	assert.True(t, ok)

	ok = r.Assert("stream count", func(t assert.TestingT) bool {
		return assert.Equal(t, 4, 2)
	})
	assert.False(t, ok)

	require.Len(t, c.Assertions, 2)
	assert.Equal(t, "major version", c.Assertions[0].Evidence)
	assert.Contains(t, c.Assertions[1].Evidence, "stream count: Not equal:")
	assert.NotContains(t, c.Assertions[1].Evidence, "\n")
	assert.Len(t, seen, 2)
}

func TestCaseReporter_IsTestingT(t *testing.T) {
	_, _, c := newCase(t)
	r := NewCaseReporter(c)
	assert.True(t, assert.Len(r, []int{1}, 1))
	assert.False(t, assert.Len(r, []int{1}, 2))
	assert.Equal(t, 0, c.Passed)
	assert.Equal(t, 1, c.Failed)
}

func TestTree_Rollup(t *testing.T) {
	// --- Arrange ---
	run := &Run{}
	suite := run.AddSuite("s", "spdm")
	cfg := suite.AddConfig("c", bitmask.Of(0), bitmask.Of(0))
	groups := []*Group{cfg.AddGroup("a"), cfg.AddGroup("b")}

	// --- Act ---
	for gi, g := range groups {
		for id := 1; id <= 3; id++ {
			r := NewCaseReporter(g.AddCase("Version", id, "Version"))
			for n := 0; n < id; n++ {
				r.Check(n%2 == gi, "check %d", n)
			}
		}
	}
	groups[1].RecordSetup(false, "no session")

	// --- Assert ---
	for _, g := range groups {
		p, f := 0, 0
		for _, c := range g.Cases {
			p += c.Passed
			f += c.Failed
		}
		assert.Equal(t, p, g.Passed)
		assert.Equal(t, f, g.Failed)
	}
	assert.Equal(t, groups[0].Passed+groups[1].Passed, cfg.Passed)
	assert.Equal(t, groups[0].Failed+groups[1].Failed, cfg.Failed)
	assert.Equal(t, cfg.Passed, suite.Passed)
	assert.Equal(t, suite.Passed, run.Passed)
	assert.Equal(t, 6, run.Passed)
	assert.Equal(t, 6, run.Failed)
	assert.Equal(t, Failed, groups[1].Status())
	assert.False(t, run.OK())
}

func TestConfigItem_Slots(t *testing.T) {
	it := (&Group{}).AddItem(3, "pcrc")
	assert.Equal(t, NotTested, it.Status())

	it.Record(SlotSupport, true)
	it.Record(SlotEnable, true)
	assert.Equal(t, Pass, it.Status())

	it.Record(SlotCheck, false)
	it.Record(SlotCheck, true)
	assert.Equal(t, Failed, it.Slot(SlotCheck))
	assert.Equal(t, Failed, it.Status())

	other := (&Group{}).AddItem(4, "aggregation")
	other.Unsupported("capability not advertised")
	assert.Equal(t, NotTested, other.Status())
	assert.Equal(t, "check", SlotCheck.String())
}

func TestStatus_Text(t *testing.T) {
	b, err := Failed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "FAILED", string(b))
	assert.Equal(t, "NOT_TESTED", NotTested.String())
}
