//go:build ocr

// Package tesseract recognizes text with the Tesseract engine via gosseract.
//
// Tesseract must be installed along with its language data:
//
//	apt-get install tesseract-ocr libtesseract-dev tesseract-ocr-chi-sim
//
// The engine is compiled only with the "ocr" build tag:
//
//	go build -tags ocr ./cmd/glueous
package tesseract

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/glueous/reader/internal/recognize"
)

// Name is the registry name of this engine.
const Name = "tesseract"

// Engine runs Tesseract with a pool of clients so concurrent pages do not
// share native state.
type Engine struct {
	languages []string
	pool      *sync.Pool
	logger    *slog.Logger
}

// New validates the language setup and returns an engine.
func New(cfg recognize.EngineConfig) (recognize.Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	probe := gosseract.NewClient()
	if len(cfg.Languages) > 0 {
		if err := probe.SetLanguage(cfg.Languages...); err != nil {
			probe.Close()
			return nil, fmt.Errorf("failed to set languages %v: %w", cfg.Languages, err)
		}
	}
	probe.Close()

	langs := append([]string(nil), cfg.Languages...)
	return &Engine{
		languages: langs,
		logger:    logger.With("engine", Name),
		pool: &sync.Pool{
			New: func() any {
				c := gosseract.NewClient()
				if len(langs) > 0 {
					_ = c.SetLanguage(langs...)
				}
				// Sparse text finds isolated fragments on scanned figures.
				_ = c.SetPageSegMode(gosseract.PSM_SPARSE_TEXT)
				return c
			},
		},
	}, nil
}

func (e *Engine) Name() string { return Name }

// Recognize returns one detection per text line.
func (e *Engine) Recognize(ctx context.Context, in recognize.Input) ([]recognize.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client := e.pool.Get().(*gosseract.Client)

	type result struct {
		dets []recognize.Detection
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		defer e.pool.Put(client)
		dets, err := e.recognize(client, in)
		ch <- result{dets, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.dets, res.err
	}
}

func (e *Engine) recognize(client *gosseract.Client, in recognize.Input) ([]recognize.Detection, error) {
	if err := client.SetImageFromBytes(in.Data); err != nil {
		return nil, fmt.Errorf("%w: %v", recognize.ErrUnsupportedImage, err)
	}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE)
	if err != nil {
		return nil, fmt.Errorf("tesseract: %w", err)
	}

	dets := make([]recognize.Detection, 0, len(boxes))
	for _, b := range boxes {
		dets = append(dets, recognize.Detection{
			Text: b.Word,
			Box: recognize.Box{
				X0: float64(b.Box.Min.X),
				Y0: float64(b.Box.Min.Y),
				X1: float64(b.Box.Max.X),
				Y1: float64(b.Box.Max.Y),
			},
			Confidence: b.Confidence / 100,
		})
	}
	e.logger.Debug("recognized image", "image", in.ID, "lines", len(dets))
	return dets, nil
}
