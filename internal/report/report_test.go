package report

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/teeio-validator/internal/bitmask"
	"github.com/vk/teeio-validator/internal/filter"
	"github.com/vk/teeio-validator/internal/result"
)

func sampleRun() *result.Run {
	run := &result.Run{}
	s := run.AddSuite("basic", "pcie_ide")
	cfg := s.AddConfig("pcrc", bitmask.Of(0, 4), bitmask.Of(0, 4))
	g := cfg.AddGroup("sel0")
	g.RecordSetup(true, "")
	g.RecordTeardown(true)
	it := g.AddItem(4, "pcrc")
	it.Record(result.SlotSupport, true)
	it.Record(result.SlotEnable, true)

	r := result.NewCaseReporter(g.AddCase("Query", 1, "Query"))
	r.Pass("QUERY succeeds")
	r.Separator("--- key set 0 ---")
	r.Fail("port index 3 accepted")

	skipped := g.AddCase("KeyProg", 2, "KeyProg")
	skipped.Skip("excluded by filter")
	return run
}

func TestWrite_Tree(t *testing.T) {
	var out strings.Builder

	err := Write(&out, sampleRun(), Options{
		Command: []string{"teeio-validator", "-run", "basic/.*Query"},
		NoColor: true,
	})

	require.NoError(t, err)
	text := out.String()
	assert.Contains(t, text, "Command: teeio-validator -run 'basic/.*Query'")
	assert.Contains(t, text, "Run: FAILED (passed 1, failed 1)")
	assert.Contains(t, text, "Suite basic [pcie_ide]: FAILED")
	assert.Contains(t, text, "Configuration pcrc requested={0,4} resolved={0,4}")
	assert.Contains(t, text, "config pcrc: PASS [support=PASS enable=PASS disable=NOT_TESTED check=NOT_TESTED]")
	assert.Contains(t, text, "        FAILED #3 port index 3 accepted")
	assert.Contains(t, text, "KeyProg.2 KeyProg: NOT_TESTED (passed 0, failed 0) - excluded by filter")
	assert.NotContains(t, text, "QUERY succeeds")
	assert.NotContains(t, text, "key set 0")

	out.Reset()
	require.NoError(t, Write(&out, sampleRun(), Options{NoColor: true, Verbose: true}))
	assert.Contains(t, out.String(), "PASS #1 QUERY succeeds")
	assert.Contains(t, out.String(), "--- key set 0 ---")
	assert.NotContains(t, out.String(), "Command:")
}

type failingWriter struct{ n int }

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.n == 0 {
		return 0, errors.New("disk full")
	}
	f.n--
	return len(p), nil
}

func TestWrite_PropagatesWriteError(t *testing.T) {
	err := Write(&failingWriter{n: 2}, sampleRun(), Options{NoColor: true})
	assert.EqualError(t, err, "disk full")
}

func TestConsole_Progress(t *testing.T) {
	var out strings.Builder
	c := NewConsole(&out, true)
	run := sampleRun()
	s := run.Suites[0]
	g := s.Configs[0].Groups[0]
	id := filter.CaseID{Suite: "basic", Configuration: "pcrc", Topology: "sel0", Case: "Query.1"}

	c.SuiteStarted(s)
	c.GroupStarted(s.Configs[0], g)
	c.CaseStarted(id)
	for _, a := range g.Cases[0].Assertions {
		c.AssertionRecorded(id, a)
	}
	c.CaseFinished(id, g.Cases[0])
	c.CaseFinished(filter.CaseID{Suite: "basic", Configuration: "pcrc", Topology: "sel0", Case: "KeyProg.2"}, g.Cases[1])
	c.GroupFinished(s.Configs[0], g)
	c.SuiteFinished(s)

	want := []string{
		"=== suite basic (pcie_ide)",
		"--- pcrc on sel0",
		"[basic/pcrc/sel0/Query.1]",
		"    FAILED #3 port index 3 accepted",
		"  FAILED: basic/pcrc/sel0/Query.1",
		"  NOT_TESTED: basic/pcrc/sel0/KeyProg.2 (excluded by filter)",
		"=== suite basic: FAILED (passed 1, failed 1)",
	}
	assert.Equal(t, strings.Join(want, "\n")+"\n", out.String())
}
