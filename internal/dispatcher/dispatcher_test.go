package dispatcher

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/teeio-validator/internal/bitmask"
	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/filter"
	"github.com/vk/teeio-validator/internal/platform"
	"github.com/vk/teeio-validator/internal/result"
	"github.com/vk/teeio-validator/internal/testctx"
)

// fake is a category whose hooks append to a trace and whose outcomes are
// scripted per test.
type fake struct {
	trace       []string
	groupSetup  map[string]bool
	unsupported map[bitmask.ConfigurationType]bool
	setup       map[string]category.SetupResult
	run         map[string]func(c *testctx.Case) bool
	panicOn     string

	supportPanics map[bitmask.ConfigurationType]bool
	onSetup       map[string]func(c *testctx.Case)
	teardownFails map[string]bool
}

func newFake() *fake {
	return &fake{
		groupSetup:  map[string]bool{},
		unsupported: map[bitmask.ConfigurationType]bool{},
		setup:       map[string]category.SetupResult{},
		run:         map[string]func(c *testctx.Case) bool{},

		supportPanics: map[bitmask.ConfigurationType]bool{},
		onSetup:       map[string]func(c *testctx.Case){},
		teardownFails: map[string]bool{},
	}
}

func (f *fake) log(format string, args ...any) {
	f.trace = append(f.trace, fmt.Sprintf(format, args...))
}

func (f *fake) table() *category.Table {
	caseFuncs := func(class string, id int, check bool) category.CaseFuncs {
		key := fmt.Sprintf("%s.%d", class, id)
		return category.CaseFuncs{
			Setup: func(_ context.Context, c *testctx.Case) category.SetupResult {
				f.log("setup %s", key)
				if fn, ok := f.onSetup[key]; ok {
					fn(c)
				}
				return f.setup[key]
			},
			Run: func(_ context.Context, c *testctx.Case) bool {
				f.log("run %s", key)
				if key == f.panicOn {
					panic("plugin bug")
				}
				if fn, ok := f.run[key]; ok {
					return fn(c)
				}
				c.Reporter.Pass("%s ok", key)
				return true
			},
			Teardown: func(context.Context, *testctx.Case) bool {
				f.log("teardown %s", key)
				return !f.teardownFails[key]
			},
			ConfigCheckRequired: check,
		}
	}
	return &category.Table{
		CategoryName: "demo",
		Types:        []string{"default", "pcrc", "selective-only"},
		Bitmasks: map[config.TopologyType]bitmask.Bitmap{
			config.TopologySelectiveIDE: bitmask.Of(0, 1, 2),
			config.TopologyLinkIDE:      bitmask.Of(0, 1),
		},
		Configs: func(_ config.TopologyType, t bitmask.ConfigurationType) category.ConfigurationFuncs {
			return category.ConfigurationFuncs{
				Support: func(context.Context, *testctx.Config) bool {
					f.log("support %d", t)
					if f.supportPanics[t] {
						panic("plugin bug in support")
					}
					return !f.unsupported[t]
				},
				Enable: func(context.Context, *testctx.Config) bool {
					f.log("enable %d", t)
					return true
				},
				Disable: func(context.Context, *testctx.Config) bool {
					f.log("disable %d", t)
					return true
				},
				Check: func(context.Context, *testctx.Config) bool {
					f.log("check %d", t)
					return true
				},
			}
		},
		Group: category.GroupFuncs{
			Setup: func(_ context.Context, g *testctx.Group) bool {
				f.log("group setup %s", g.Topology.Name)
				ok, scripted := f.groupSetup[g.Topology.Name]
				return !scripted || ok
			},
			Teardown: func(_ context.Context, g *testctx.Group) bool {
				f.log("group teardown %s", g.Topology.Name)
				return true
			},
		},
		Classes: []category.Class{
			{Name: "Query", Cases: []category.Case{{ID: 1, Funcs: caseFuncs("Query", 1, true)}, {ID: 2, Funcs: caseFuncs("Query", 2, false)}}},
			{Name: "KeyProg", Cases: []category.Case{{ID: 1, Funcs: caseFuncs("KeyProg", 1, false)}}},
		},
	}
}

type categories map[string]category.Category

func (c categories) Category(name string) (category.Category, bool) {
	cat, ok := c[name]
	return cat, ok
}

func catalog() *config.Catalog {
	rp := &config.Port{Name: "rp", Enabled: true, Role: config.RoleRootPort}
	ep := &config.Port{Name: "ep", Enabled: true, Role: config.RoleEndpoint}
	t0 := &config.Topology{Name: "t0", Enabled: true, Type: config.TopologySelectiveIDE, Root: rp, Lower: ep}
	t1 := &config.Topology{Name: "t1", Enabled: true, Type: config.TopologySelectiveIDE, Root: rp, Lower: ep}
	tl := &config.Topology{Name: "tl", Enabled: true, Type: config.TopologyLinkIDE, Root: rp, Lower: ep}
	c0 := &config.Configuration{Name: "c0", Enabled: true, Category: "demo", TopologyType: config.TopologySelectiveIDE, Requested: bitmask.Of(0, 1)}
	return &config.Catalog{
		Ports:          []*config.Port{rp, ep},
		Topologies:     []*config.Topology{t0, t1, tl},
		Configurations: []*config.Configuration{c0},
		Suites: []*config.TestSuite{{
			Name: "s0", Enabled: true, Category: "demo",
			Topologies:     []*config.Topology{t0},
			Configurations: []*config.Configuration{c0},
			Cases:          []config.CaseSelector{{Class: "Query", IDs: []int{1}}},
		}},
	}
}

func dispatch(t *testing.T, cat category.Category, c *config.Catalog, opts Options) (*result.Run, error) {
	t.Helper()
	opts.Categories = categories{"demo": cat}
	opts.Platform = platform.NewSysfs(t.TempDir())
	return New(opts).Run(ctxlog.Discard(context.Background()), c)
}

func TestRun_HookOrder(t *testing.T) {
	// --- Arrange ---
	f := newFake()

	// --- Act ---
	run, err := dispatch(t, f.table(), catalog(), Options{})

	// --- Assert ---
	require.NoError(t, err)
	want := []string{
		"group setup t0",
		"support 0", "support 1",
		"enable 0", "enable 1",
		"setup Query.1", "run Query.1", "teardown Query.1",
		"check 0", "check 1",
		"disable 1", "disable 0",
		"group teardown t0",
	}
	if diff := cmp.Diff(want, f.trace); diff != "" {
		t.Errorf("hook order mismatch (-want +got):\n%s", diff)
	}
	g := run.Suites[0].Configs[0].Groups[0]
	assert.Equal(t, result.Pass, g.Status())
	require.Len(t, g.Items, 2)
	for _, it := range g.Items {
		assert.Equal(t, result.Pass, it.Status(), it.Name)
	}
	assert.True(t, run.OK())
}

func TestRun_SkipImpliesNoRun(t *testing.T) {
	f := newFake()
	f.setup["Query.1"] = category.SetupSkip

	run, err := dispatch(t, f.table(), catalog(), Options{})
	require.NoError(t, err)

	assert.NotContains(t, f.trace, "run Query.1")
	teardowns := 0
	for _, e := range f.trace {
		if e == "teardown Query.1" {
			teardowns++
		}
	}
	assert.Equal(t, 1, teardowns)

	c := run.Suites[0].Configs[0].Groups[0].Cases[0]
	assert.Equal(t, result.NotTested, c.Status())
	assert.Zero(t, c.Passed)
	assert.Zero(t, c.Failed)
	assert.Equal(t, "skipped by case setup", c.Reason())
}

func TestRun_UnsupportedConfiguration(t *testing.T) {
	f := newFake()
	f.unsupported[1] = true

	run, err := dispatch(t, f.table(), catalog(), Options{})
	require.NoError(t, err)

	for _, e := range f.trace {
		assert.NotRegexp(t, `^(enable|check|disable|setup|run) `, e)
	}
	assert.Contains(t, f.trace, "group teardown t0")

	g := run.Suites[0].Configs[0].Groups[0]
	assert.Equal(t, result.NotTested, g.Item(1).Status())
	assert.Equal(t, result.NotTested, g.Item(1).Slot(result.SlotEnable))
	require.Len(t, g.Cases, 1)
	assert.Equal(t, result.NotTested, g.Cases[0].Status())
	assert.Equal(t, result.NotTested, g.Status())
}

func TestRun_SupportPanicFailsConfiguration(t *testing.T) {
	// --- Arrange ---
	f := newFake()
	f.supportPanics[1] = true

	// --- Act ---
	run, err := dispatch(t, f.table(), catalog(), Options{})

	// --- Assert ---
	require.NoError(t, err)
	for _, e := range f.trace {
		assert.NotRegexp(t, `^(enable|check|disable|setup|run) `, e)
	}
	assert.Contains(t, f.trace, "group teardown t0")

	g := run.Suites[0].Configs[0].Groups[0]
	assert.Equal(t, result.Pass, g.Item(0).Slot(result.SlotSupport))
	assert.Equal(t, result.Failed, g.Item(1).Slot(result.SlotSupport))
	assert.Equal(t, result.Failed, g.Item(1).Status())
	assert.Empty(t, g.Item(1).Reason)
	require.Len(t, g.Cases, 1)
	assert.Equal(t, result.NotTested, g.Cases[0].Status())
	assert.Equal(t, "config support failed: [pcrc]", g.Cases[0].Reason())
	assert.Equal(t, result.Failed, g.Status())
	assert.False(t, run.OK())
}

func TestRun_SkipCountsOnlyWhatTheCaseRecorded(t *testing.T) {
	f := newFake()
	f.setup["Query.1"] = category.SetupSkip
	f.setup["Query.2"] = category.SetupSkip
	f.onSetup["Query.1"] = func(c *testctx.Case) { c.Reporter.Pass("capability read") }
	f.teardownFails["Query.2"] = true
	c := catalog()
	c.Suites[0].Cases = []config.CaseSelector{{Class: "Query"}}

	run, err := dispatch(t, f.table(), c, Options{})
	require.NoError(t, err)

	cases := run.Suites[0].Configs[0].Groups[0].Cases
	require.Len(t, cases, 2)
	// Assertions recorded by setup count even when it skips.
	assert.Equal(t, result.Pass, cases[0].Status())
	assert.Equal(t, 1, cases[0].Passed)
	// A failed teardown fails a skipped case without touching its counters.
	assert.Equal(t, result.Failed, cases[1].Status())
	assert.Zero(t, cases[1].Passed+cases[1].Failed)
	assert.Equal(t, "skipped by case setup; case teardown failed", cases[1].Reason())
}

func TestRun_GroupSetupFailureIsLocal(t *testing.T) {
	f := newFake()
	f.groupSetup["t0"] = false
	c := catalog()
	c.Suites[0].Topologies = append(c.Suites[0].Topologies, c.Topology("t1"))

	run, err := dispatch(t, f.table(), c, Options{})
	require.NoError(t, err)

	groups := run.Suites[0].Configs[0].Groups
	require.Len(t, groups, 2)
	assert.Equal(t, result.Failed, groups[0].Status())
	assert.Equal(t, "group setup failed", groups[0].Reason)
	assert.Equal(t, result.Pass, groups[0].Teardown)
	assert.Equal(t, result.NotTested, groups[0].Cases[0].Status())
	assert.Equal(t, result.Pass, groups[1].Status())
	assert.Contains(t, f.trace, "group teardown t0")
	assert.Contains(t, f.trace, "run Query.1")
}

func TestRun_AssertionFailuresDoNotStopCaseOrSiblings(t *testing.T) {
	f := newFake()
	f.run["Query.1"] = func(c *testctx.Case) bool {
		c.Reporter.Pass("a")
		c.Reporter.Fail("b")
		c.Reporter.Pass("c")
		return false
	}
	f.run["KeyProg.1"] = func(c *testctx.Case) bool { return false }
	c := catalog()
	c.Suites[0].Cases = nil

	run, err := dispatch(t, f.table(), c, Options{})
	require.NoError(t, err)

	cases := run.Suites[0].Configs[0].Groups[0].Cases
	require.Len(t, cases, 3)
	assert.Equal(t, result.Failed, cases[0].Status())
	assert.Equal(t, 2, cases[0].Passed)
	assert.Equal(t, 1, cases[0].Failed)
	assert.Equal(t, result.Pass, cases[1].Status())

	// A false return with nothing recorded still fails the case.
	assert.Equal(t, result.Failed, cases[2].Status())
	assert.Equal(t, 1, cases[2].Failed)
}

func TestRun_Rollup(t *testing.T) {
	f := newFake()
	f.run["Query.2"] = func(c *testctx.Case) bool {
		c.Reporter.Fail("x")
		c.Reporter.Separator("--")
		return true
	}
	c := catalog()
	c.Suites[0].Cases = nil
	c.Suites[0].Topologies = []*config.Topology{c.Topology("t0"), c.Topology("t1")}

	run, err := dispatch(t, f.table(), c, Options{})
	require.NoError(t, err)

	cfg := run.Suites[0].Configs[0]
	gp, gf := 0, 0
	for _, g := range cfg.Groups {
		p, fl := 0, 0
		for _, cs := range g.Cases {
			p += cs.Passed
			fl += cs.Failed
		}
		assert.Equal(t, p, g.Passed)
		assert.Equal(t, fl, g.Failed)
		gp += g.Passed
		gf += g.Failed
	}
	assert.Equal(t, gp, cfg.Passed)
	assert.Equal(t, gf, cfg.Failed)
	assert.Equal(t, 4, cfg.Passed)
	assert.Equal(t, 2, cfg.Failed)
	assert.Equal(t, cfg.Passed, run.Passed)
}

func TestRun_TopologyTypeMismatchSkipsGroup(t *testing.T) {
	f := newFake()
	c := catalog()
	c.Suites[0].Topologies = []*config.Topology{c.Topology("tl")}

	run, err := dispatch(t, f.table(), c, Options{})
	require.NoError(t, err)
	assert.Empty(t, f.trace)
	g := run.Suites[0].Configs[0].Groups[0]
	assert.Equal(t, result.NotTested, g.Status())
	assert.Contains(t, g.Reason, "does not match")
}

func TestRun_ResolutionDropsIllegalVariants(t *testing.T) {
	f := newFake()
	c := catalog()
	c.Configurations[0].TopologyType = config.TopologyLinkIDE
	c.Configurations[0].Requested = bitmask.Of(1, 2)
	c.Suites[0].Topologies = []*config.Topology{c.Topology("tl")}

	run, err := dispatch(t, f.table(), c, Options{})
	require.NoError(t, err)

	cfg := run.Suites[0].Configs[0]
	assert.Equal(t, bitmask.Of(0, 1), cfg.Resolved)
	g := cfg.Groups[0]
	require.Len(t, g.Items, 3)
	assert.Equal(t, result.NotTested, g.Item(2).Status())
	assert.Contains(t, g.Item(2).Reason, "not applicable")
	assert.NotContains(t, f.trace, "support 2")
	assert.Contains(t, f.trace, "enable 0")
}

func TestRun_FilterExcludesCases(t *testing.T) {
	f := newFake()
	c := catalog()
	c.Suites[0].Cases = nil
	var rf filter.RegexFilters
	require.NoError(t, rf.MustNotMatch.Set(`/Query\.`))

	run, err := dispatch(t, f.table(), c, Options{Filter: rf.AsFilter})
	require.NoError(t, err)

	cases := run.Suites[0].Configs[0].Groups[0].Cases
	require.Len(t, cases, 3)
	assert.Equal(t, "excluded by filter", cases[0].Reason())
	assert.Equal(t, result.Pass, cases[2].Status())
	assert.NotContains(t, f.trace, "run Query.1")
}

func TestRun_PluginPanicFailsOnlyItsCase(t *testing.T) {
	f := newFake()
	f.panicOn = "Query.1"
	c := catalog()
	c.Suites[0].Cases = nil

	run, err := dispatch(t, f.table(), c, Options{})
	require.NoError(t, err)
	cases := run.Suites[0].Configs[0].Groups[0].Cases
	assert.Equal(t, result.Failed, cases[0].Status())
	assert.Equal(t, result.Pass, cases[1].Status())
	assert.Contains(t, f.trace, "teardown Query.1")
}

// zeroedAlloc returns an untagged group context.
type zeroedAlloc struct{ *category.Table }

func (zeroedAlloc) AllocGroupContext() *testctx.Group { return &testctx.Group{} }

func TestRun_StructuralViolationAborts(t *testing.T) {
	f := newFake()
	run, err := dispatch(t, zeroedAlloc{f.table()}, catalog(), Options{})
	require.ErrorIs(t, err, ErrStructuralViolation)
	assert.Nil(t, run)
	assert.Contains(t, err.Error(), "expected group context")
	assert.Empty(t, f.trace)

	_, err = New(Options{}).Run(ctxlog.Discard(context.Background()), nil)
	assert.ErrorIs(t, err, ErrStructuralViolation)
}

type groupEnds struct {
	NopObserver
	finished int
}

func (g *groupEnds) GroupFinished(*result.Config, *result.Group) { g.finished++ }

func TestRun_StructuralViolationInsideHookAbortsAtOnce(t *testing.T) {
	// --- Arrange ---
	f := newFake()
	f.run["Query.1"] = func(c *testctx.Case) bool {
		testctx.Violate(testctx.KindCase, "bad graph")
		return true
	}
	ends := &groupEnds{}

	// --- Act ---
	run, err := dispatch(t, f.table(), catalog(), Options{Observer: ends})

	// --- Assert ---
	require.ErrorIs(t, err, ErrStructuralViolation)
	assert.Nil(t, run)
	assert.Contains(t, err.Error(), "bad graph")
	want := []string{"group setup t0", "support 0", "support 1", "enable 0", "enable 1", "setup Query.1", "run Query.1"}
	if diff := cmp.Diff(want, f.trace); diff != "" {
		t.Errorf("hooks after the violation (-want +got):\n%s", diff)
	}
	assert.Zero(t, ends.finished)
}

func TestRun_UnknownSuite(t *testing.T) {
	_, err := dispatch(t, newFake().table(), catalog(), Options{Suites: []string{"nope"}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStructuralViolation)
}

type recorder struct {
	NopObserver
	events []string
}

func (r *recorder) GroupStarted(_ *result.Config, g *result.Group) {
	r.events = append(r.events, "group "+g.Topology)
}
func (r *recorder) CaseStarted(id filter.CaseID) { r.events = append(r.events, "case "+id.String()) }
func (r *recorder) AssertionRecorded(_ filter.CaseID, a *result.Assertion) {
	r.events = append(r.events, "assert "+a.Status.String())
}
func (r *recorder) CaseFinished(id filter.CaseID, c *result.Case) {
	r.events = append(r.events, "done "+c.Status().String())
}

func TestRun_Observer(t *testing.T) {
	rec := &recorder{}
	_, err := dispatch(t, newFake().table(), catalog(), Options{Observer: Observers{rec, NopObserver{}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"group t0", "case s0/c0/t0/Query.1", "assert PASS", "done PASS"}, rec.events)
}
