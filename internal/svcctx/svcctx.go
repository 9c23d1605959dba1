// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/glueous/reader/internal/config"
	"github.com/glueous/reader/internal/enrich"
	"github.com/glueous/reader/internal/home"
	"github.com/glueous/reader/internal/metrics"
	"github.com/glueous/reader/internal/ocrcache"
	"github.com/glueous/reader/internal/recognize"
	"github.com/glueous/reader/internal/view"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Hook          *enrich.Hook
	Driver        *enrich.Driver
	Controller    *enrich.Controller
	View          *view.Model
	Cache         *ocrcache.Store
	Engines       *recognize.Registry
	Metrics       *metrics.Recorder
	ConfigManager *config.Manager
	Logger        *slog.Logger
	Home          *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// HookFrom extracts the document lifecycle hook from context.
func HookFrom(ctx context.Context) *enrich.Hook {
	if s := ServicesFrom(ctx); s != nil {
		return s.Hook
	}
	return nil
}

// DriverFrom extracts the pipeline driver from context.
func DriverFrom(ctx context.Context) *enrich.Driver {
	if s := ServicesFrom(ctx); s != nil {
		return s.Driver
	}
	return nil
}

// ControllerFrom extracts the command controller from context.
func ControllerFrom(ctx context.Context) *enrich.Controller {
	if s := ServicesFrom(ctx); s != nil {
		return s.Controller
	}
	return nil
}

// ViewFrom extracts the view model from context.
func ViewFrom(ctx context.Context) *view.Model {
	if s := ServicesFrom(ctx); s != nil {
		return s.View
	}
	return nil
}

// CacheFrom extracts the OCR cache from context.
func CacheFrom(ctx context.Context) *ocrcache.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Cache
	}
	return nil
}

// EnginesFrom extracts the recognition engine registry from context.
func EnginesFrom(ctx context.Context) *recognize.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Engines
	}
	return nil
}

// MetricsFrom extracts the recognition metrics recorder from context.
func MetricsFrom(ctx context.Context) *metrics.Recorder {
	if s := ServicesFrom(ctx); s != nil {
		return s.Metrics
	}
	return nil
}

// ConfigManagerFrom extracts the config manager from context.
func ConfigManagerFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.ConfigManager
	}
	return nil
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil {
		return s.Logger
	}
	return nil
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
