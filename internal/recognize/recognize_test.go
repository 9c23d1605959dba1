package recognize

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync/atomic"
	"testing"
	"time"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.White)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPrepare(t *testing.T) {
	tests := []struct {
		name         string
		w, h, maxDim int
		wantW, wantH int
	}{
		{"within limit", 300, 200, 2000, 300, 200},
		{"scaled by width", 4000, 1000, 2000, 2000, 500},
		{"scaled by height", 1000, 3000, 1500, 500, 1500},
		{"scaling disabled", 4000, 1000, 0, 4000, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Prepare(encodePNG(t, tt.w, tt.h), tt.maxDim)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Width != tt.wantW || p.Height != tt.wantH {
				t.Errorf("got %dx%d, want %dx%d", p.Width, p.Height, tt.wantW, tt.wantH)
			}
			if p.OrigWidth != tt.w || p.OrigHeight != tt.h {
				t.Errorf("original size lost: %dx%d", p.OrigWidth, p.OrigHeight)
			}
			cfg, err := png.DecodeConfig(bytes.NewReader(p.Data))
			if err != nil {
				t.Fatalf("prepared data is not PNG: %v", err)
			}
			if cfg.Width != tt.wantW || cfg.Height != tt.wantH {
				t.Errorf("encoded size %dx%d", cfg.Width, cfg.Height)
			}
		})
	}
}

func TestPrepare_Garbage(t *testing.T) {
	_, err := Prepare([]byte("not an image"), 100)
	if !errors.Is(err, ErrUnsupportedImage) {
		t.Errorf("expected ErrUnsupportedImage, got %v", err)
	}
}

func TestFilter(t *testing.T) {
	dets := []Detection{
		{Text: "  keep  ", Confidence: 0.9},
		{Text: "low", Confidence: 0.1},
		{Text: "   ", Confidence: 0.99},
		{Text: "edge", Confidence: 0.2},
	}
	got := Filter(dets, 0.2)
	if len(got) != 2 {
		t.Fatalf("expected 2 detections, got %d: %+v", len(got), got)
	}
	if got[0].Text != "keep" || got[1].Text != "edge" {
		t.Errorf("unexpected result %+v", got)
	}
}

type flakyEngine struct {
	failures int32
	calls    atomic.Int32
	err      error
}

func (f *flakyEngine) Name() string { return "flaky" }

func (f *flakyEngine) Recognize(ctx context.Context, in Input) ([]Detection, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return nil, f.err
	}
	return []Detection{{Text: "ok", Confidence: 1}}, nil
}

func TestWithRetry(t *testing.T) {
	t.Run("recovers from transient errors", func(t *testing.T) {
		inner := &flakyEngine{failures: 2, err: errors.New("timeout")}
		e := WithRetry(inner, 2, time.Millisecond, nil)
		dets, err := e.Recognize(context.Background(), Input{ID: "img"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(dets) != 1 || inner.calls.Load() != 3 {
			t.Errorf("expected success on third call, got %d calls", inner.calls.Load())
		}
	})

	t.Run("gives up after attempts", func(t *testing.T) {
		inner := &flakyEngine{failures: 10, err: errors.New("timeout")}
		e := WithRetry(inner, 1, time.Millisecond, nil)
		if _, err := e.Recognize(context.Background(), Input{}); err == nil {
			t.Fatal("expected error")
		}
		if inner.calls.Load() != 2 {
			t.Errorf("expected 2 calls, got %d", inner.calls.Load())
		}
	})

	t.Run("does not retry unsupported images", func(t *testing.T) {
		inner := &flakyEngine{failures: 10, err: ErrUnsupportedImage}
		e := WithRetry(inner, 3, time.Millisecond, nil)
		if _, err := e.Recognize(context.Background(), Input{}); !errors.Is(err, ErrUnsupportedImage) {
			t.Fatalf("expected ErrUnsupportedImage, got %v", err)
		}
		if inner.calls.Load() != 1 {
			t.Errorf("expected 1 call, got %d", inner.calls.Load())
		}
	})

	t.Run("zero retries returns engine unchanged", func(t *testing.T) {
		inner := &flakyEngine{}
		if e := WithRetry(inner, 0, 0, nil); e != Engine(inner) {
			t.Error("expected unwrapped engine")
		}
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("fake", func(cfg EngineConfig) (Engine, error) { return &flakyEngine{}, nil })
	r.Register("broken", func(cfg EngineConfig) (Engine, error) { return nil, ErrEngineNotEnabled })

	if e, err := r.Build("fake", EngineConfig{}); err != nil || e.Name() != "flaky" {
		t.Errorf("Build(fake) = %v, %v", e, err)
	}
	if e, err := r.Build("none", EngineConfig{}); err != nil || e.Name() != "none" {
		t.Errorf("Build(none) = %v, %v", e, err)
	}
	if _, err := r.Build("missing", EngineConfig{}); !errors.Is(err, ErrUnknownEngine) {
		t.Errorf("expected ErrUnknownEngine, got %v", err)
	}
	if _, err := r.Build("broken", EngineConfig{}); !errors.Is(err, ErrEngineNotEnabled) {
		t.Errorf("expected ErrEngineNotEnabled, got %v", err)
	}

	names := r.Names()
	if len(names) != 3 || names[0] != "broken" || names[2] != "none" {
		t.Errorf("unexpected names %v", names)
	}
}

func TestLazy(t *testing.T) {
	var builds atomic.Int32
	l := NewLazy("fake", func() (Engine, error) {
		builds.Add(1)
		return &flakyEngine{}, nil
	})
	if builds.Load() != 0 {
		t.Fatal("expected no build before first use")
	}
	for i := 0; i < 3; i++ {
		if _, err := l.Recognize(context.Background(), Input{}); err != nil {
			t.Fatal(err)
		}
	}
	if builds.Load() != 1 {
		t.Errorf("expected one build, got %d", builds.Load())
	}

	failing := NewLazy("bad", func() (Engine, error) { return nil, ErrEngineNotEnabled })
	if _, err := failing.Recognize(context.Background(), Input{}); !errors.Is(err, ErrEngineNotEnabled) {
		t.Errorf("expected build error, got %v", err)
	}
}

func TestReady(t *testing.T) {
	failing := NewLazy("bad", func() (Engine, error) { return nil, ErrEngineNotEnabled })
	tests := []struct {
		name    string
		engine  Engine
		wantErr bool
	}{
		{"plain engine", Nop{}, false},
		{"lazy ok", NewLazy("ok", func() (Engine, error) { return Nop{}, nil }), false},
		{"lazy failing", failing, true},
		{"wrapped failing", WithRetry(failing, 2, 0, nil), true},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Ready(tt.engine); (err != nil) != tt.wantErr {
				t.Errorf("Ready() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	r := NewRateLimiter(60)
	ctx := context.Background()
	for i := 0; i < 60; i++ {
		if err := r.Wait(ctx); err != nil {
			t.Fatal(err)
		}
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if err := r.Wait(cctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded on empty bucket, got %v", err)
	}
}
