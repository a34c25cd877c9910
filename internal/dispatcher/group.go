package dispatcher

import (
	"context"
	"fmt"

	"github.com/vk/teeio-validator/internal/bitmask"
	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/result"
	"github.com/vk/teeio-validator/internal/testctx"
)

// variant is one resolved configuration type within a group.
type variant struct {
	t     bitmask.ConfigurationType
	name  string
	funcs category.ConfigurationFuncs
	item  *result.ConfigItem
}

func (d *Dispatcher) runGroup(ctx context.Context, c category.Category, sc *testctx.Suite, cfg *config.Configuration,
	resolved bitmask.Bitmap, topo *config.Topology, rc *result.Config, rg *result.Group, cases []selection) {
	ctx, logger := ctxlog.With(ctx, "topology", topo.Name)
	logger.Info("▶️ Starting group")
	d.observer.GroupStarted(rc, rg)
	defer func() {
		if r := recover(); r != nil {
			panic(r)
		}
		d.observer.GroupFinished(rc, rg)
		logger.Info("✅ Finished group", "status", rg.Status(), "passed", rg.Passed, "failed", rg.Failed)
	}()

	g := testctx.As[*testctx.Group](c.AllocGroupContext(), testctx.KindGroup)
	g.Suite, g.Topology, g.Result = sc, topo, rg
	g.Validate()

	// 1. One configuration item per requested or resolved variant. Variants
	// dropped by resolution never run.
	var variants []*variant
	for _, t := range (cfg.Requested | resolved).Types() {
		name, ok := c.ConfigurationName(t)
		if !ok {
			name = fmt.Sprintf("type%d", t)
		}
		it := rg.AddItem(t, name)
		if !resolved.Has(t) {
			it.Unsupported(fmt.Sprintf("not applicable to %s topologies", topo.Type))
			continue
		}
		variants = append(variants, &variant{t: t, name: name, funcs: c.ConfigurationFuncs(topo.Type, t), item: it})
	}

	// 2. Group setup. Teardown runs on every path from here on, since setup
	// may have acquired resources before failing. A structural violation is
	// the exception: the run aborts at once, with no further hooks or events.
	gf := c.GroupFuncs(topo.Type)
	setupOK, _ := d.hook(ctx, "group setup", func() bool { return call(gf.Setup, ctx, g) })
	rg.RecordSetup(setupOK, "group setup failed")
	defer func() {
		if r := recover(); r != nil {
			panic(r)
		}
		ok, _ := d.hook(ctx, "group teardown", func() bool { return call(gf.Teardown, ctx, g) })
		rg.RecordTeardown(ok)
		if !ok {
			logger.Warn("Group teardown failed.")
		}
	}()

	if !setupOK {
		logger.Warn("Group setup failed, skipping its cases.")
		d.skipCases(sc, cfg, topo, rg, cases, "group setup failed")
		return
	}

	// 3. Check support once per variant. Any unsupported variant means the
	// configuration cannot be realized on this group. A check that panicked
	// is a plugin failure, not a missing capability.
	var unsupported, broken []string
	for _, v := range variants {
		cc := testctx.NewConfig(g, cfg, v.t, resolved, v.item)
		cc.Validate()
		ok, panicked := d.hook(ctx, "config support", func() bool { return callConfig(v.funcs.Support, ctx, cc) })
		switch {
		case ok:
			v.item.Record(result.SlotSupport, true)
		case panicked:
			v.item.Record(result.SlotSupport, false)
			broken = append(broken, v.name)
		default:
			v.item.Unsupported("not supported by the device")
			unsupported = append(unsupported, v.name)
		}
	}
	if len(broken) > 0 {
		reason := fmt.Sprintf("config support failed: %v", broken)
		logger.Warn("Configuration support check failed, cases not tested.", "variants", broken)
		d.skipCases(sc, cfg, topo, rg, cases, reason)
		return
	}
	if len(unsupported) > 0 {
		reason := fmt.Sprintf("configuration unsupported: %v", unsupported)
		logger.Info("⏭️ Configuration unsupported on this group, cases not tested.", "variants", unsupported)
		d.skipCases(sc, cfg, topo, rg, cases, reason)
		return
	}

	// 4. Cases.
	for _, sel := range cases {
		d.runCase(ctx, g, cfg, resolved, variants, sel)
	}
}

// skipCases records every selected case as NOT_TESTED with reason.
func (d *Dispatcher) skipCases(sc *testctx.Suite, cfg *config.Configuration, topo *config.Topology, rg *result.Group, cases []selection, reason string) {
	for _, sel := range cases {
		rcase := rg.AddCase(sel.class, sel.id, sel.name)
		rcase.Skip(reason)
		d.observer.CaseFinished(caseID(sc.Suite, cfg, topo, rcase), rcase)
	}
}

// hook runs fn, converting a panic other than a StructuralViolation into a
// failed outcome so a misbehaving plugin only fails its own scope. panicked
// tells such a failure apart from fn returning false.
func (d *Dispatcher) hook(ctx context.Context, name string, fn func() bool) (ok, panicked bool) {
	logger := ctxlog.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			if v, isViolation := r.(*testctx.StructuralViolation); isViolation {
				panic(v)
			}
			logger.Error("Hook panicked.", "hook", name, "panic", r)
			ok, panicked = false, true
		}
	}()
	ok = fn()
	logger.Debug("Hook returned.", "hook", name, "ok", ok)
	return ok, false
}

func call(fn func(context.Context, *testctx.Group) bool, ctx context.Context, g *testctx.Group) bool {
	if fn == nil {
		return true
	}
	return fn(ctx, g)
}

func callConfig(fn func(context.Context, *testctx.Config) bool, ctx context.Context, c *testctx.Config) bool {
	if fn == nil {
		return true
	}
	return fn(ctx, c)
}
