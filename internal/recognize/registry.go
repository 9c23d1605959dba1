package recognize

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// VisionConfig configures the vision-model engine.
type VisionConfig struct {
	Model     string
	APIKey    string
	BaseURL   string
	RateLimit int // requests per minute
	Timeout   time.Duration
}

// EngineConfig is passed to engine factories.
type EngineConfig struct {
	Languages []string
	Vision    VisionConfig
	Logger    *slog.Logger
}

// Factory builds an engine from configuration.
type Factory func(cfg EngineConfig) (Engine, error)

// Registry maps engine names to factories. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *slog.Logger
}

// NewRegistry creates a registry with the built-in "none" engine.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		factories: make(map[string]Factory),
		logger:    logger,
	}
	r.Register("none", func(EngineConfig) (Engine, error) { return Nop{}, nil })
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
	r.logger.Debug("registered recognition engine", "name", name)
}

// Build constructs the named engine.
func (r *Registry) Build(name string, cfg EngineConfig) (Engine, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEngine, name)
	}
	if cfg.Logger == nil {
		cfg.Logger = r.logger
	}
	engine, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine %s: %w", name, err)
	}
	return engine, nil
}

// Names lists registered engines in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lazy defers engine construction to the first Recognize call. A failed
// build is remembered and returned on every later call.
type Lazy struct {
	name  string
	build func() (Engine, error)

	once   sync.Once
	engine Engine
	err    error
}

// NewLazy wraps a builder for the engine called name.
func NewLazy(name string, build func() (Engine, error)) *Lazy {
	return &Lazy{name: name, build: build}
}

func (l *Lazy) Name() string { return l.name }

// Init builds the engine if it has not been built yet.
func (l *Lazy) Init() (Engine, error) {
	l.once.Do(func() {
		l.engine, l.err = l.build()
	})
	return l.engine, l.err
}

func (l *Lazy) Recognize(ctx context.Context, in Input) ([]Detection, error) {
	engine, err := l.Init()
	if err != nil {
		return nil, err
	}
	return engine.Recognize(ctx, in)
}

// Ready builds a lazily constructed engine, looking through wrappers, and
// returns the build error if any. Other engines are always ready.
func Ready(e Engine) error {
	for e != nil {
		if l, ok := e.(interface{ Init() (Engine, error) }); ok {
			_, err := l.Init()
			return err
		}
		u, ok := e.(interface{ Unwrap() Engine })
		if !ok {
			return nil
		}
		e = u.Unwrap()
	}
	return nil
}
