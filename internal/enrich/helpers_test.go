package enrich

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/glueous/reader/internal/document"
	"github.com/glueous/reader/internal/ocrcache"
	"github.com/glueous/reader/internal/recognize"
	"github.com/glueous/reader/internal/settings"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// fakeEngine returns canned detections. Inputs whose ID contains a key of
// errs fail with that error.
type fakeEngine struct {
	mu    sync.Mutex
	dets  []recognize.Detection
	errs  map[string]error
	calls []recognize.Input

	// started and release make Recognize block when non-nil.
	started chan struct{}
	release chan struct{}
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Recognize(ctx context.Context, in recognize.Input) ([]recognize.Detection, error) {
	f.mu.Lock()
	f.calls = append(f.calls, in)
	dets := append([]recognize.Detection(nil), f.dets...)
	var err error
	for k, e := range f.errs {
		if strings.Contains(in.ID, k) {
			err = e
		}
	}
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return dets, nil
}

func (f *fakeEngine) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func helloEngine() *fakeEngine {
	return &fakeEngine{dets: []recognize.Detection{
		{Text: "Hello", Box: recognize.Box{X0: 10, Y0: 10, X1: 50, Y1: 20}, Confidence: 0.9},
	}}
}

func newCache(t *testing.T) (*ocrcache.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), settings.FileName)
	backend := settings.New(path, nil)
	if err := backend.Load(); err != nil {
		t.Fatal(err)
	}
	cache := ocrcache.New(backend, nil)
	if err := cache.Load(); err != nil {
		t.Fatal(err)
	}
	return cache, path
}

func reloadCache(t *testing.T, path string) *ocrcache.Store {
	t.Helper()
	backend := settings.New(path, nil)
	if err := backend.Load(); err != nil {
		t.Fatal(err)
	}
	cache := ocrcache.New(backend, nil)
	if err := cache.Load(); err != nil {
		t.Fatal(err)
	}
	return cache
}

// scannedDoc builds a document whose pages each carry one w x h image placed
// at rect.
func scannedDoc(t *testing.T, id document.Identity, pages int, w, h int, rect document.Rect) *document.Memory {
	t.Helper()
	data := pngBytes(t, w, h)
	specs := make([]document.MemoryPageSpec, pages)
	for i := range specs {
		specs[i] = document.MemoryPageSpec{
			Images: []document.Image{{Index: 0, Rect: rect, Data: data}},
		}
	}
	return document.NewMemory(id, specs...)
}

type fixture struct {
	engine *fakeEngine
	cache  *ocrcache.Store
	path   string
	proc   *Processor
	hook   *Hook
	doc    *document.Memory
	view   View
	driver *Driver
}

func newFixture(t *testing.T, doc *document.Memory, engine *fakeEngine, workers int) *fixture {
	t.Helper()
	f := &fixture{engine: engine, doc: doc}
	f.cache, f.path = newCache(t)
	f.proc = NewProcessor(ProcessorConfig{Engine: engine})
	f.hook = NewHook(HookConfig{
		Opener: document.OpenerFunc(func(ctx context.Context, path string) (document.Document, error) {
			return doc, nil
		}),
		Cache:     f.cache,
		Processor: f.proc,
	})
	f.driver = NewDriver(DriverConfig{
		Hook:    f.hook,
		View:    ViewFunc(func() View { return f.view }),
		Enabled: true,
		Workers: workers,
	})
	return f
}

func (f *fixture) open(t *testing.T) *Session {
	t.Helper()
	sess, err := f.hook.Open(context.Background(), string(f.doc.Identity()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return sess
}

func keys(doc document.Identity, pages ...int) []document.PageKey {
	out := make([]document.PageKey, len(pages))
	for i, p := range pages {
		out[i] = document.PageKey{Doc: doc, Page: p}
	}
	return out
}
