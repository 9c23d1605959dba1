// Package app composes the enrichment pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/glueous/reader/internal/config"
	"github.com/glueous/reader/internal/document"
	"github.com/glueous/reader/internal/document/pdf"
	"github.com/glueous/reader/internal/enrich"
	"github.com/glueous/reader/internal/home"
	"github.com/glueous/reader/internal/metrics"
	"github.com/glueous/reader/internal/ocrcache"
	"github.com/glueous/reader/internal/recognize"
	"github.com/glueous/reader/internal/recognize/tesseract"
	"github.com/glueous/reader/internal/recognize/vision"
	"github.com/glueous/reader/internal/settings"
	"github.com/glueous/reader/internal/svcctx"
	"github.com/glueous/reader/internal/view"
)

// Config holds what the pipeline is built from.
type Config struct {
	Config *config.Config
	Home   *home.Dir
	Logger *slog.Logger
	// Opener overrides the PDF opener.
	Opener document.Opener
	// Engines overrides the engine registry.
	Engines *recognize.Registry
}

// App is a composed pipeline.
type App struct {
	Settings   *settings.Store
	Cache      *ocrcache.Store
	Engines    *recognize.Registry
	Metrics    *metrics.Recorder
	Processor  *enrich.Processor
	Hook       *enrich.Hook
	View       *view.Model
	Driver     *enrich.Driver
	Controller *enrich.Controller

	home   *home.Dir
	logger *slog.Logger

	mu  sync.Mutex
	cfg *config.Config
}

// New wires settings, cache, engine, processor, hook, view, driver and
// controller in that order.
func New(cfg Config) (*App, error) {
	if cfg.Config == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Home == nil {
		return nil, errors.New("home directory is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := cfg.Config

	if err := cfg.Home.EnsureExists(); err != nil {
		return nil, err
	}
	store := settings.New(cfg.Home.DataFilePath(), logger)
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	cache := ocrcache.New(store, logger)

	engines := cfg.Engines
	if engines == nil {
		engines = recognize.NewRegistry(logger)
		engines.Register(tesseract.Name, tesseract.New)
		engines.Register(vision.Name, vision.New)
	}

	a := &App{
		Settings: store,
		Cache:    cache,
		Engines:  engines,
		Metrics:  metrics.NewRecorder(0),
		home:     cfg.Home,
		logger:   logger,
		cfg:      c,
	}

	a.Processor = enrich.NewProcessor(a.processorConfig(c, a.buildEngine(c)))

	opener := cfg.Opener
	if opener == nil {
		opener = pdf.NewOpener(c.Enrichment.Identity, logger)
	}
	a.Hook = enrich.NewHook(enrich.HookConfig{
		Opener:    opener,
		Cache:     cache,
		Processor: a.Processor,
		Logger:    logger,
	})

	a.View = view.New(view.Config{
		PageCount: func() int {
			if sess := a.Hook.Session(); sess != nil {
				return sess.Doc.PageCount()
			}
			return 0
		},
		VisibleRadius:    c.View.VisibleRadius,
		SelectableRadius: c.View.SelectableRadius,
	})

	a.Driver = enrich.NewDriver(enrich.DriverConfig{
		Hook:     a.Hook,
		View:     a.View,
		Enabled:  c.Enrichment.Enabled,
		Interval: c.Enrichment.TickInterval,
		Workers:  c.Enrichment.Workers,
		Logger:   logger,
	})
	a.Controller = enrich.NewController(a.Hook, a.Driver, a.View, logger)

	return a, nil
}

// buildEngine defers engine construction to first use and adds retries and
// call metrics.
func (a *App) buildEngine(c *config.Config) recognize.Engine {
	name := c.Recognition.Engine
	ec := c.EngineConfig(a.logger)
	lazy := recognize.NewLazy(name, func() (recognize.Engine, error) {
		return a.Engines.Build(name, ec)
	})
	retrying := recognize.WithRetry(lazy, c.Recognition.MaxRetries, c.Recognition.RetryDelay, a.logger)
	return metrics.Instrument(retrying, a.Metrics)
}

func (a *App) processorConfig(c *config.Config, engine recognize.Engine) enrich.ProcessorConfig {
	return enrich.ProcessorConfig{
		Engine:        engine,
		MinConfidence: c.Recognition.MinConfidence,
		MinImageSize:  c.Recognition.MinImageSize,
		MaxDimension:  c.Recognition.MaxDimension,
		Languages:     c.Recognition.Languages,
		Debug:         c.Enrichment.Debug,
		Logger:        a.logger,
	}
}

// Services returns the service set for HTTP handlers.
func (a *App) Services(cm *config.Manager) *svcctx.Services {
	return &svcctx.Services{
		Hook:          a.Hook,
		Driver:        a.Driver,
		Controller:    a.Controller,
		View:          a.View,
		Cache:         a.Cache,
		Engines:       a.Engines,
		Metrics:       a.Metrics,
		ConfigManager: cm,
		Logger:        a.logger,
		Home:          a.home,
	}
}

// Config returns the configuration last applied.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Apply re-applies a changed configuration to the running pipeline. The
// worker count and identity mode only change on restart.
func (a *App) Apply(ctx context.Context, c *config.Config) {
	a.mu.Lock()
	prev := a.cfg
	a.cfg = c
	a.mu.Unlock()

	// Runtime toggles and engine-failure disables stand until the key itself changes.
	if prev.Enrichment.Enabled != c.Enrichment.Enabled {
		a.Driver.SetEnabled(c.Enrichment.Enabled)
	}
	a.Driver.SetInterval(c.Enrichment.TickInterval)
	a.View.SetRadii(c.View.VisibleRadius, c.View.SelectableRadius)

	if !reflect.DeepEqual(prev.Recognition, c.Recognition) {
		a.Processor.Configure(a.processorConfig(c, a.buildEngine(c)))
		a.logger.Info("recognition settings reloaded", "engine", c.Recognition.Engine)
	}
	if prev.Enrichment.Debug != c.Enrichment.Debug {
		if err := a.Controller.SetDebug(ctx, c.Enrichment.Debug); err != nil {
			a.logger.Warn("failed to apply debug mode", "error", err)
		}
	}
	if prev.Enrichment.Workers != c.Enrichment.Workers || prev.Enrichment.Identity != c.Enrichment.Identity {
		a.logger.Warn("workers and identity changes take effect after restart")
	}
}

// Close releases the open document.
func (a *App) Close() error {
	return a.Hook.Close()
}
