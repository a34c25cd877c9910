package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/dispatcher"
	"github.com/vk/teeio-validator/internal/filter"
	"github.com/vk/teeio-validator/internal/report"
	"github.com/vk/teeio-validator/internal/result"
)

// ErrRunFailed is returned by Run when at least one result is FAILED.
var ErrRunFailed = errors.New("validation failed")

// Run executes the selected suites, printing live progress and the final
// report to the app's output. The result tree is returned whenever the run
// completed, even if it failed.
func (a *App) Run(ctx context.Context) (*result.Run, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	a.healthCheckServer()
	defer func() { _ = a.closeHealthCheckServer() }()

	confirmer, release, err := a.newConfirmer(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	console := report.NewConsole(a.outW, a.config.NoColor)
	console.Verbose = a.config.Verbose

	opts := dispatcher.Options{
		Categories: a.registry,
		Platform:   a.platform,
		Confirmer:  confirmer,
		Observer:   dispatcher.Observers{console, a.progress},
		Suites:     a.config.Suites,
	}
	if a.config.Filters.IsDefined() {
		for _, line := range a.config.Filters.Describe() {
			a.logger.Info("Case filter active.", "filter", line)
		}
		opts.Filter = a.config.Filters.AsFilter
	} else {
		opts.Filter = filter.All
	}

	a.logger.Debug("Dispatcher starting run.", "selected", a.config.Suites)
	run, err := dispatcher.New(opts).Run(ctx, a.catalog)
	a.progress.finish()
	if err != nil {
		return nil, fmt.Errorf("validation run aborted: %w", err)
	}

	if err := report.Write(a.outW, run, report.Options{
		Command: a.config.Command,
		NoColor: a.config.NoColor,
		Verbose: a.config.Verbose,
	}); err != nil {
		return run, fmt.Errorf("failed to write report: %w", err)
	}

	if !run.OK() {
		return run, ErrRunFailed
	}
	return run, nil
}
