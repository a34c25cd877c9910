package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/confirm"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/emulator"
	"github.com/vk/teeio-validator/internal/platform"
	"github.com/vk/teeio-validator/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx    context.Context
	outW   io.Writer
	logger *slog.Logger
	config *Config

	registry *registry.Registry
	catalog  *config.Catalog
	platform platform.Platform

	// stdin feeds the console confirmer.
	stdin io.Reader

	progress   *progress
	httpServer *http.Server
}

// Option customises an App, mostly for tests.
type Option func(*App)

// WithPlatform replaces the platform chosen from the configuration.
func WithPlatform(p platform.Platform) Option {
	return func(a *App) { a.platform = p }
}

// WithStdin replaces the reader the console confirmer waits on.
func WithStdin(r io.Reader) Option {
	return func(a *App) { a.stdin = r }
}

// WithModules replaces the compiled-in categories.
func WithModules(modules ...registry.Module) Option {
	return func(a *App) {
		a.registry = registry.New()
		for _, mod := range modules {
			mod.Register(a.registry)
		}
	}
}

// NewApp loads the catalog through loader, registers the categories and
// binds the catalog to them. Any catalog problem is returned as an error.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, opts ...Option) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	a := &App{
		ctx:      ctxlog.WithLogger(context.Background(), logger),
		outW:     outW,
		logger:   logger,
		config:   cfg,
		stdin:    os.Stdin,
		progress: newProgress(),
	}
	logger.Debug("Logger configured successfully.")

	for _, opt := range opts {
		opt(a)
	}
	if a.registry == nil {
		a.registry = registry.New()
		for _, mod := range coreModules {
			mod.Register(a.registry)
		}
	}
	logger.Debug("All categories registered.", "categories", a.registry.Names())

	cat, err := loader.Load(a.ctx, cfg.CatalogPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if err := a.registry.Bind(a.ctx, cat); err != nil {
		return nil, fmt.Errorf("failed to bind catalog: %w", err)
	}
	a.catalog = cat
	logger.Debug("Catalog loaded and bound.", "suites", len(cat.Suites))

	if a.platform == nil {
		a.platform = newPlatform(cfg)
	}
	return a, nil
}

func newPlatform(cfg *Config) platform.Platform {
	if cfg.Emulate {
		return emulator.New(emulator.Options{KeyGeneration: true})
	}
	return platform.NewSysfs(cfg.SysfsRoot)
}

// Catalog returns the bound catalog. This is primarily for testing.
func (a *App) Catalog() *config.Catalog {
	return a.catalog
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// newConfirmer builds the confirmer named by the configuration. The returned
// func releases it.
func (a *App) newConfirmer(ctx context.Context) (confirm.Confirmer, func(), error) {
	switch a.config.Confirm {
	case "", ConfirmAuto:
		return &confirm.Auto{}, func() {}, nil
	case ConfirmConsole:
		return confirm.NewConsole(a.stdin, a.outW), func() {}, nil
	}
	remote, err := confirm.Dial(ctx, a.config.Confirm, confirm.RemoteOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to reach operator console: %w", err)
	}
	return remote, func() { _ = remote.Close() }, nil
}
