package recognize

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
)

// Retrying retries transient engine failures.
type Retrying struct {
	Engine   Engine
	Attempts uint
	Delay    time.Duration
	Logger   *slog.Logger
}

// WithRetry wraps engine with up to retries extra attempts.
func WithRetry(engine Engine, retries int, delay time.Duration, logger *slog.Logger) Engine {
	if retries <= 0 {
		return engine
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retrying{Engine: engine, Attempts: uint(retries) + 1, Delay: delay, Logger: logger}
}

func (r *Retrying) Name() string { return r.Engine.Name() }

// Unwrap returns the wrapped engine.
func (r *Retrying) Unwrap() Engine { return r.Engine }

func (r *Retrying) Recognize(ctx context.Context, in Input) ([]Detection, error) {
	var out []Detection
	err := retry.Do(
		func() error {
			dets, err := r.Engine.Recognize(ctx, in)
			if err != nil {
				return err
			}
			out = dets
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(r.Attempts),
		retry.Delay(r.Delay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			r.Logger.Debug("retrying recognition", "engine", r.Engine.Name(), "image", in.ID, "attempt", n+1, "error", err)
		}),
	)
	return out, err
}

func isRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrUnsupportedImage),
		errors.Is(err, ErrEngineNotEnabled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
