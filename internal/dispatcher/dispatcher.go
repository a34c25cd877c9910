package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/confirm"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/filter"
	"github.com/vk/teeio-validator/internal/platform"
	"github.com/vk/teeio-validator/internal/result"
	"github.com/vk/teeio-validator/internal/testctx"
)

// ErrStructuralViolation wraps the violation that aborted a run.
var ErrStructuralViolation = errors.New("run aborted")

// Categories resolves category names. *registry.Registry implements it.
type Categories interface {
	Category(name string) (category.Category, bool)
}

// Options configures a Dispatcher.
type Options struct {
	Categories Categories
	Platform   platform.Platform

	// Confirmer defaults to confirm.Auto.
	Confirmer confirm.Confirmer

	// Observer defaults to NopObserver.
	Observer Observer

	// Filter defaults to filter.All.
	Filter filter.Filter

	// Suites restricts the run to the named suites. Empty means every
	// enabled suite.
	Suites []string
}

// Dispatcher runs suites.
type Dispatcher struct {
	categories Categories
	platform   platform.Platform
	confirmer  confirm.Confirmer
	observer   Observer
	filter     filter.Filter
	suites     []string
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		categories: opts.Categories,
		platform:   opts.Platform,
		confirmer:  opts.Confirmer,
		observer:   opts.Observer,
		filter:     opts.Filter,
		suites:     opts.Suites,
	}
	if d.confirmer == nil {
		d.confirmer = &confirm.Auto{}
	}
	if d.observer == nil {
		d.observer = NopObserver{}
	}
	if d.filter == nil {
		d.filter = filter.All
	}
	return d
}

// Run executes the selected suites of cat in declaration order. It returns
// the full result tree, or an error if suite selection is invalid or a
// structural violation aborted the run; no partial tree is returned then.
func (d *Dispatcher) Run(ctx context.Context, cat *config.Catalog) (run *result.Run, err error) {
	logger := ctxlog.FromContext(ctx)

	defer func() {
		if r := recover(); r != nil {
			v, ok := r.(*testctx.StructuralViolation)
			if !ok {
				panic(r)
			}
			logger.Error("💥 Structural violation, aborting run.", "error", v)
			run, err = nil, fmt.Errorf("%w: %w", ErrStructuralViolation, v)
		}
	}()

	if cat == nil {
		testctx.Violate(testctx.KindSuite, "nil catalog")
	}
	if d.categories == nil || d.platform == nil {
		testctx.Violate(testctx.KindSuite, "dispatcher has no categories or platform")
	}

	suites, err := d.selectSuites(cat)
	if err != nil {
		return nil, err
	}

	logger.Info("🚀 Starting validation run.", "suites", len(suites))
	run = &result.Run{}
	for _, s := range suites {
		d.runSuite(ctx, cat, s, run)
	}
	logger.Info("🏁 Validation run finished.", "status", run.Status(), "passed", run.Passed, "failed", run.Failed)
	return run, nil
}

func (d *Dispatcher) selectSuites(cat *config.Catalog) ([]*config.TestSuite, error) {
	if len(d.suites) == 0 {
		return cat.EnabledSuites(), nil
	}
	var out []*config.TestSuite
	var errs []error
	for _, name := range d.suites {
		s := cat.Suite(name)
		if s == nil {
			errs = append(errs, fmt.Errorf("suite %q is not defined in the catalog", name))
			continue
		}
		out = append(out, s)
	}
	return out, errors.Join(errs...)
}

// selection is one case to run, resolved against the category.
type selection struct {
	class string
	name  string
	id    int
	funcs category.CaseFuncs
}

// selections expands a suite's case selectors. No selector means every case
// of the category; a selector without IDs means every case of its class.
func selections(cat category.Category, s *config.TestSuite) []selection {
	selectors := s.Cases
	if len(selectors) == 0 {
		for _, class := range cat.CaseClasses() {
			selectors = append(selectors, config.CaseSelector{Class: class})
		}
	}
	var out []selection
	for _, sel := range selectors {
		cc, ok := cat.CaseName(sel.Class)
		if !ok {
			testctx.Violate(testctx.KindSuite, "suite %q selects unknown case class %q", s.Name, sel.Class)
		}
		ids := sel.IDs
		if len(ids) == 0 {
			ids = cc.IDs
		}
		for _, id := range ids {
			funcs, ok := cat.CaseFuncs(sel.Class, id)
			if !ok {
				testctx.Violate(testctx.KindSuite, "suite %q selects unknown case %s.%d", s.Name, sel.Class, id)
			}
			out = append(out, selection{class: sel.Class, name: cc.Name, id: id, funcs: funcs})
		}
	}
	return out
}

func (d *Dispatcher) runSuite(ctx context.Context, cat *config.Catalog, s *config.TestSuite, run *result.Run) {
	ctx, logger := ctxlog.With(ctx, "suite", s.Name, "category", s.Category)

	c, ok := d.categories.Category(s.Category)
	if !ok {
		testctx.Violate(testctx.KindSuite, "suite %q uses unregistered category %q", s.Name, s.Category)
	}

	rs := run.AddSuite(s.Name, s.Category)
	sc := testctx.NewSuite(cat, s, d.platform, d.confirmer, rs)
	sc.Validate()
	cases := selections(c, s)

	logger.Info("▶️ Starting suite", "cases", len(cases))
	d.observer.SuiteStarted(rs)

	for _, cfg := range s.Configurations {
		if cfg == nil {
			testctx.Violate(testctx.KindSuite, "suite %q has a nil configuration", s.Name)
		}
		if !cfg.Enabled {
			logger.Debug("Skipping disabled configuration.", "configuration", cfg.Name)
			continue
		}
		d.runConfiguration(ctx, c, sc, cfg, cases)
	}

	d.observer.SuiteFinished(rs)
	logger.Info("✅ Finished suite", "status", rs.Status(), "passed", rs.Passed, "failed", rs.Failed)
}

func (d *Dispatcher) runConfiguration(ctx context.Context, c category.Category, sc *testctx.Suite, cfg *config.Configuration, cases []selection) {
	ctx, logger := ctxlog.With(ctx, "configuration", cfg.Name)

	resolved := category.Resolve(c, cfg.TopologyType, cfg.Requested)
	rc := sc.Result.AddConfig(cfg.Name, cfg.Requested, resolved)
	logger.Debug("Configuration bitmap resolved.", "requested", cfg.Requested, "resolved", resolved, "shape", cfg.TopologyType)

	for _, topo := range sc.Suite.Topologies {
		if topo == nil {
			testctx.Violate(testctx.KindSuite, "suite %q has a nil topology", sc.Suite.Name)
		}
		if !topo.Enabled {
			logger.Debug("Skipping disabled topology.", "topology", topo.Name)
			continue
		}
		rg := rc.AddGroup(topo.Name)
		if topo.Type != cfg.TopologyType {
			rg.Skip(fmt.Sprintf("topology type %s does not match configuration type %s", topo.Type, cfg.TopologyType))
			logger.Info("⏭️ Skipping group", "topology", topo.Name, "reason", rg.Reason)
			continue
		}
		d.runGroup(ctx, c, sc, cfg, resolved, topo, rc, rg, cases)
	}
}
