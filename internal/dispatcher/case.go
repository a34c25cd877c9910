package dispatcher

import (
	"context"

	"github.com/vk/teeio-validator/internal/bitmask"
	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/filter"
	"github.com/vk/teeio-validator/internal/result"
	"github.com/vk/teeio-validator/internal/testctx"
)

func caseID(s *config.TestSuite, cfg *config.Configuration, topo *config.Topology, c *result.Case) filter.CaseID {
	return filter.CaseID{Suite: s.Name, Configuration: cfg.Name, Topology: topo.Name, Case: c.Key()}
}

func (d *Dispatcher) runCase(ctx context.Context, g *testctx.Group, cfg *config.Configuration, resolved bitmask.Bitmap,
	variants []*variant, sel selection) {
	rcase := g.Result.AddCase(sel.class, sel.id, sel.name)
	id := caseID(g.Suite.Suite, cfg, g.Topology, rcase)
	ctx, logger := ctxlog.With(ctx, "case", rcase.Key())

	if !d.filter(id) {
		rcase.Skip("excluded by filter")
		logger.Debug("Case excluded by filter.")
		d.observer.CaseFinished(id, rcase)
		return
	}

	logger.Info("▶️ Starting case")
	d.observer.CaseStarted(id)

	reporter := result.NewCaseReporter(rcase)
	reporter.OnRecord = func(a *result.Assertion) { d.observer.AssertionRecorded(id, a) }
	kc := testctx.NewCase(g, cfg, resolved, sel.class, sel.id, reporter)
	kc.Validate()

	configCtx := func(v *variant) *testctx.Config {
		cc := testctx.NewConfig(g, cfg, v.t, resolved, v.item)
		cc.Validate()
		return cc
	}

	// 1. Enable every resolved variant in ordinal order.
	var enabled []*variant
	for _, v := range variants {
		cc := configCtx(v)
		ok, _ := d.hook(ctx, "config enable", func() bool { return callConfig(v.funcs.Enable, ctx, cc) })
		v.item.Record(result.SlotEnable, ok)
		if !ok {
			rcase.Abort("enabling configuration " + v.name + " failed")
			break
		}
		enabled = append(enabled, v)
	}

	if len(enabled) == len(variants) {
		// 2. Setup, then run unless skipped or failed.
		setup := category.SetupOK
		if sel.funcs.Setup != nil {
			if ok, _ := d.hook(ctx, "case setup", func() bool {
				setup = sel.funcs.Setup(ctx, kc)
				return true
			}); !ok {
				setup = category.SetupFailed
			}
		}
		switch setup {
		case category.SetupOK:
			ok, _ := d.hook(ctx, "case run", func() bool { return sel.funcs.Run(ctx, kc) })
			if !ok && rcase.Failed == 0 {
				reporter.Fail("case run aborted without a failing assertion")
			}
		case category.SetupSkip:
			if len(rcase.Notes) == 0 {
				rcase.Skip("skipped by case setup")
			}
			logger.Info("⏭️ Case skipped by setup.", "reason", rcase.Reason())
		default:
			rcase.Abort("case setup failed")
		}

		// 3. Teardown always follows setup.
		if sel.funcs.Teardown != nil {
			if ok, _ := d.hook(ctx, "case teardown", func() bool { return sel.funcs.Teardown(ctx, kc) }); !ok {
				rcase.Abort("case teardown failed")
			}
		}

		// 4. Optional post-case check of every enabled variant.
		if sel.funcs.ConfigCheckRequired {
			for _, v := range enabled {
				cc := configCtx(v)
				ok, _ := d.hook(ctx, "config check", func() bool { return callConfig(v.funcs.Check, ctx, cc) })
				v.item.Record(result.SlotCheck, ok)
			}
		}
	}

	// 5. Disable in reverse order, including after a partial enable.
	for i := len(enabled) - 1; i >= 0; i-- {
		v := enabled[i]
		cc := configCtx(v)
		ok, _ := d.hook(ctx, "config disable", func() bool { return callConfig(v.funcs.Disable, ctx, cc) })
		v.item.Record(result.SlotDisable, ok)
	}

	d.observer.CaseFinished(id, rcase)
	logger.Info("✅ Finished case", "status", rcase.Status(), "passed", rcase.Passed, "failed", rcase.Failed)
}
