// Package recognize defines the text recognition engine contract and the
// helpers shared by engines: image preparation, confidence filtering,
// retries, rate limiting and a name-based engine registry.
package recognize

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrEngineNotEnabled is returned by engines compiled out of the binary.
	ErrEngineNotEnabled = errors.New("recognition engine not enabled in this build")
	// ErrUnknownEngine is returned when no factory is registered for a name.
	ErrUnknownEngine = errors.New("unknown recognition engine")
	// ErrUnsupportedImage marks images an engine can never read; not retried.
	ErrUnsupportedImage = errors.New("unsupported image")
)

// Box is a rectangle in pixel coordinates of the submitted image.
type Box struct {
	X0, Y0, X1, Y1 float64
}

// Detection is one recognized text fragment.
type Detection struct {
	Text       string
	Box        Box
	Confidence float64 // 0..1
}

// Input is one prepared image submitted for recognition.
type Input struct {
	ID string
	// Data is PNG-encoded.
	Data      []byte
	Width     int
	Height    int
	Languages []string
}

// Engine recognizes text in images. Implementations must be safe for
// concurrent use.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, in Input) ([]Detection, error)
}

// Filter trims detection text and drops empty detections and those below
// minConfidence.
func Filter(dets []Detection, minConfidence float64) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		d.Text = strings.TrimSpace(d.Text)
		if d.Text == "" || d.Confidence < minConfidence {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Nop recognizes nothing. Selected by the "none" engine name.
type Nop struct{}

func (Nop) Name() string { return "none" }

func (Nop) Recognize(ctx context.Context, in Input) ([]Detection, error) {
	return nil, ctx.Err()
}
