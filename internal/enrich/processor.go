package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/glueous/reader/internal/document"
	"github.com/glueous/reader/internal/recognize"
)

// Processor defaults.
const (
	DefaultMinConfidence = 0.2
	DefaultMinImageSize  = 10.0
	DefaultMaxDimension  = 2000
)

// ProcessorConfig configures a Processor.
type ProcessorConfig struct {
	Engine recognize.Engine
	// MinConfidence drops detections scored below it.
	MinConfidence float64
	// MinImageSize skips images whose placement is narrower or shorter, in points.
	MinImageSize float64
	// MaxDimension bounds the longest side of images sent to the engine.
	MaxDimension int
	Languages    []string
	Debug        bool
	Logger       *slog.Logger
}

// Processor recognizes the text in a page's images and injects it into the
// page text layer.
type Processor struct {
	mu            sync.RWMutex
	engine        recognize.Engine
	minConfidence float64
	minImageSize  float64
	maxDimension  int
	languages     []string

	debug  atomic.Bool
	logger *slog.Logger
}

// NewProcessor creates a processor. Zero thresholds take the defaults.
func NewProcessor(cfg ProcessorConfig) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{logger: logger.With("component", "processor")}
	p.Configure(cfg)
	p.debug.Store(cfg.Debug)
	return p
}

// Configure replaces the engine and thresholds. A nil engine keeps the current one.
func (p *Processor) Configure(cfg ProcessorConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cfg.Engine != nil {
		p.engine = cfg.Engine
	}
	if p.engine == nil {
		p.engine = recognize.Nop{}
	}
	p.minConfidence = cfg.MinConfidence
	if p.minConfidence <= 0 {
		p.minConfidence = DefaultMinConfidence
	}
	p.minImageSize = cfg.MinImageSize
	if p.minImageSize <= 0 {
		p.minImageSize = DefaultMinImageSize
	}
	p.maxDimension = cfg.MaxDimension
	if p.maxDimension <= 0 {
		p.maxDimension = DefaultMaxDimension
	}
	p.languages = append([]string(nil), cfg.Languages...)
}

// EngineName returns the name of the active engine.
func (p *Processor) EngineName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.engine.Name()
}

// Ready builds the engine if construction was deferred and reports whether
// it can be used.
func (p *Processor) Ready() error {
	p.mu.RLock()
	engine := p.engine
	p.mu.RUnlock()
	return recognize.Ready(engine)
}

// SetDebug makes injected text visible (true) or invisible (false) for
// subsequent injections.
func (p *Processor) SetDebug(on bool) { p.debug.Store(on) }

// Debug reports whether debug mode is on.
func (p *Processor) Debug() bool { return p.debug.Load() }

// Process recognizes and injects the text of page.
func (p *Processor) Process(ctx context.Context, key document.PageKey, page document.Page) ([]document.TextSpan, error) {
	spans, err := p.Recognize(ctx, key, page)
	if err != nil {
		return nil, err
	}
	if err := p.Inject(key, page, spans); err != nil {
		return nil, err
	}
	return spans, nil
}

// Recognize runs the engine over every eligible image on page and returns
// spans in page coordinates. It does not modify the page.
//
// A page with no eligible images succeeds with no spans. Otherwise at least
// one image must yield text or the result is ErrNoText. Failures of single
// images are logged and skipped.
func (p *Processor) Recognize(ctx context.Context, key document.PageKey, page document.Page) ([]document.TextSpan, error) {
	p.mu.RLock()
	engine := p.engine
	minConf, minSize, maxDim := p.minConfidence, p.minImageSize, p.maxDimension
	langs := p.languages
	p.mu.RUnlock()

	logger := p.logger.With("doc", key.Doc, "page", key.Page)

	images, err := page.Images(ctx)
	if err != nil {
		return nil, &PageError{Key: key, Err: fmt.Errorf("enumerate images: %w", err)}
	}

	var spans []document.TextSpan
	eligible := 0
	for _, img := range images {
		if img.Rect.Width() < minSize || img.Rect.Height() < minSize {
			logger.Debug("skipping small image", "image", img.Index, "width", img.Rect.Width(), "height", img.Rect.Height())
			continue
		}
		eligible++

		prepared, err := recognize.Prepare(img.Data, maxDim)
		if err != nil {
			logger.Warn("skipping unreadable image", "image", img.Index, "error", err)
			continue
		}

		dets, err := engine.Recognize(ctx, recognize.Input{
			ID:        fmt.Sprintf("%s/img%d", key, img.Index),
			Data:      prepared.Data,
			Width:     prepared.Width,
			Height:    prepared.Height,
			Languages: langs,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Warn("recognition failed for image", "image", img.Index, "engine", engine.Name(), "error", err)
			continue
		}

		for _, d := range recognize.Filter(dets, minConf) {
			conf := d.Confidence
			spans = append(spans, document.TextSpan{
				Text:       d.Text,
				Box:        MapToPage(d.Box, prepared.Width, prepared.Height, img.Rect),
				Confidence: &conf,
			})
		}
	}

	if eligible == 0 {
		logger.Debug("page has no images to recognize", "images", len(images))
		return []document.TextSpan{}, nil
	}
	if len(spans) == 0 {
		return nil, &PageError{Key: key, Err: ErrNoText}
	}
	logger.Debug("page recognized", "images", eligible, "spans", len(spans))
	return spans, nil
}

// Inject replaces the page's injected text with spans. Injected text is
// invisible unless debug mode is on. Calling Inject again with the same spans
// leaves the page unchanged.
func (p *Processor) Inject(key document.PageKey, page document.Page, spans []document.TextSpan) error {
	if err := page.ClearInjected(); err != nil {
		return &PageError{Key: key, Err: fmt.Errorf("clear text layer: %w", err)}
	}
	visible := p.debug.Load()
	for _, s := range spans {
		if err := page.InsertText(s, visible); err != nil {
			return &PageError{Key: key, Err: fmt.Errorf("insert text: %w", err)}
		}
	}
	return nil
}

// MapToPage converts a box in pixel coordinates of an imgW x imgH image into
// page coordinates of the image's placement rectangle.
func MapToPage(b recognize.Box, imgW, imgH int, placement document.Rect) document.Rect {
	if imgW <= 0 || imgH <= 0 {
		return document.Rect{X0: placement.X0, Y0: placement.Y0, X1: placement.X0, Y1: placement.Y0}
	}
	sx := placement.Width() / float64(imgW)
	sy := placement.Height() / float64(imgH)
	return document.Rect{
		X0: placement.X0 + b.X0*sx,
		Y0: placement.Y0 + b.Y0*sy,
		X1: placement.X0 + b.X1*sx,
		Y1: placement.Y0 + b.Y1*sy,
	}
}

// IsPageFailure reports whether err is a page-level failure that should be
// cached as Failed rather than retried on the next tick.
func IsPageFailure(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, document.ErrClosed)
}
