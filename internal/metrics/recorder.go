package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/glueous/reader/internal/recognize"
)

// DefaultCapacity is the number of metrics kept when none is given.
const DefaultCapacity = 10000

// Recorder keeps the most recent metrics in memory. Safe for concurrent use.
type Recorder struct {
	mu    sync.RWMutex
	buf   []Metric
	next  int
	full  bool
	total int64
}

// NewRecorder creates a recorder that retains up to capacity metrics.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{buf: make([]Metric, capacity)}
}

// Record stores a single metric, evicting the oldest when full.
func (r *Recorder) Record(m Metric) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = m
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	r.total++
}

// RecordCall records the outcome of one recognition call.
func (r *Recorder) RecordCall(engine string, in recognize.Input, dets []recognize.Detection, err error, d time.Duration) {
	r.Record(Metric{
		Engine:     engine,
		ItemKey:    in.ID,
		Detections: len(dets),
		Seconds:    d.Seconds(),
		Success:    err == nil,
		ErrorType:  ErrorType(err),
	})
}

// Total returns the number of metrics ever recorded, including evicted ones.
func (r *Recorder) Total() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.total
}

// snapshot returns retained metrics, oldest first.
func (r *Recorder) snapshot() []Metric {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.full {
		return append([]Metric(nil), r.buf[:r.next]...)
	}
	out := make([]Metric, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}

// ErrorType classifies a recognition error for aggregation.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, recognize.ErrEngineNotEnabled), errors.Is(err, recognize.ErrUnknownEngine):
		return "engine_unavailable"
	case errors.Is(err, recognize.ErrUnsupportedImage):
		return "unsupported_image"
	default:
		return "recognition_error"
	}
}

// Instrumented records a metric for every call to the wrapped engine.
type Instrumented struct {
	Engine   recognize.Engine
	Recorder *Recorder
}

// Instrument wraps engine so its calls are recorded. A nil recorder
// returns engine unchanged.
func Instrument(engine recognize.Engine, r *Recorder) recognize.Engine {
	if r == nil {
		return engine
	}
	return &Instrumented{Engine: engine, Recorder: r}
}

func (e *Instrumented) Name() string { return e.Engine.Name() }

// Unwrap returns the wrapped engine.
func (e *Instrumented) Unwrap() recognize.Engine { return e.Engine }

func (e *Instrumented) Recognize(ctx context.Context, in recognize.Input) ([]recognize.Detection, error) {
	start := time.Now()
	dets, err := e.Engine.Recognize(ctx, in)
	e.Recorder.RecordCall(e.Engine.Name(), in, dets, err, time.Since(start))
	return dets, err
}
