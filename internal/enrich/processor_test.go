package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/glueous/reader/internal/document"
	"github.com/glueous/reader/internal/recognize"
)

func TestMapToPage(t *testing.T) {
	placement := document.Rect{X0: 100, Y0: 100, X1: 400, Y1: 300}
	local := recognize.Box{X0: 10, Y0: 10, X1: 50, Y1: 20}

	tests := []struct {
		name       string
		imgW, imgH int
		want       document.Rect
	}{
		{"one pixel per point", 300, 200, document.Rect{X0: 110, Y0: 110, X1: 150, Y1: 120}},
		{"two pixels per point", 600, 400, document.Rect{X0: 105, Y0: 105, X1: 125, Y1: 110}},
		{"degenerate image", 0, 0, document.Rect{X0: 100, Y0: 100, X1: 100, Y1: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapToPage(local, tt.imgW, tt.imgH, placement); got != tt.want {
				t.Errorf("MapToPage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProcessor_Process(t *testing.T) {
	key := document.PageKey{Doc: "doc", Page: 0}
	placement := document.Rect{X0: 100, Y0: 100, X1: 400, Y1: 300}

	t.Run("maps and injects invisible spans", func(t *testing.T) {
		doc := scannedDoc(t, "doc", 1, 300, 200, placement)
		p := NewProcessor(ProcessorConfig{Engine: helloEngine()})
		page, _ := doc.MemoryPage(0)

		spans, err := p.Process(context.Background(), key, page)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(spans) != 1 || spans[0].Box != (document.Rect{X0: 110, Y0: 110, X1: 150, Y1: 120}) {
			t.Fatalf("unexpected spans %+v", spans)
		}
		if spans[0].Confidence == nil || *spans[0].Confidence != 0.9 {
			t.Errorf("expected confidence 0.9, got %v", spans[0].Confidence)
		}
		if page.Text(nil) != "Hello" {
			t.Errorf("expected injected text to be extractable, got %q", page.Text(nil))
		}
		if len(page.VisibleSpans()) != 0 {
			t.Error("expected injected text to be invisible outside debug mode")
		}
	})

	t.Run("debug mode injects visible text", func(t *testing.T) {
		doc := scannedDoc(t, "doc", 1, 300, 200, placement)
		p := NewProcessor(ProcessorConfig{Engine: helloEngine(), Debug: true})
		page, _ := doc.MemoryPage(0)
		if _, err := p.Process(context.Background(), key, page); err != nil {
			t.Fatal(err)
		}
		if len(page.VisibleSpans()) != 1 {
			t.Error("expected visible span in debug mode")
		}
	})

	t.Run("page without images succeeds empty", func(t *testing.T) {
		doc := document.NewMemory("doc", document.MemoryPageSpec{Text: "native"})
		engine := helloEngine()
		p := NewProcessor(ProcessorConfig{Engine: engine})
		page, _ := doc.Page(0)
		spans, err := p.Process(context.Background(), key, page)
		if err != nil || len(spans) != 0 {
			t.Fatalf("expected empty success, got %v, %v", spans, err)
		}
		if engine.Calls() != 0 {
			t.Errorf("expected no engine calls, got %d", engine.Calls())
		}
	})

	t.Run("tiny images are skipped", func(t *testing.T) {
		doc := scannedDoc(t, "doc", 1, 20, 20, document.Rect{X0: 0, Y0: 0, X1: 5, Y1: 40})
		engine := helloEngine()
		p := NewProcessor(ProcessorConfig{Engine: engine})
		page, _ := doc.Page(0)
		spans, err := p.Process(context.Background(), key, page)
		if err != nil || len(spans) != 0 {
			t.Fatalf("expected empty success, got %v, %v", spans, err)
		}
		if engine.Calls() != 0 {
			t.Errorf("expected tiny image to be skipped, got %d calls", engine.Calls())
		}
	})

	t.Run("all images failing is a page failure", func(t *testing.T) {
		doc := scannedDoc(t, "doc", 1, 300, 200, placement)
		engine := helloEngine()
		engine.errs = map[string]error{"img": errors.New("engine crashed")}
		p := NewProcessor(ProcessorConfig{Engine: engine})
		page, _ := doc.Page(0)

		_, err := p.Process(context.Background(), key, page)
		if !errors.Is(err, ErrNoText) {
			t.Fatalf("expected ErrNoText, got %v", err)
		}
		var pe *PageError
		if !errors.As(err, &pe) || pe.Key != key {
			t.Errorf("expected PageError for %s, got %v", key, err)
		}
	})

	t.Run("one failing image does not fail the page", func(t *testing.T) {
		data := pngBytes(t, 300, 200)
		doc := document.NewMemory("doc", document.MemoryPageSpec{Images: []document.Image{
			{Index: 0, Rect: placement, Data: data},
			{Index: 1, Rect: placement, Data: data},
		}})
		engine := helloEngine()
		engine.errs = map[string]error{"img0": errors.New("bad image")}
		p := NewProcessor(ProcessorConfig{Engine: engine})
		page, _ := doc.Page(0)

		spans, err := p.Process(context.Background(), key, page)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(spans) != 1 {
			t.Errorf("expected spans from the healthy image, got %d", len(spans))
		}
	})

	t.Run("malformed image data is skipped", func(t *testing.T) {
		doc := document.NewMemory("doc", document.MemoryPageSpec{Images: []document.Image{
			{Index: 0, Rect: placement, Data: []byte("garbage")},
		}})
		p := NewProcessor(ProcessorConfig{Engine: helloEngine()})
		page, _ := doc.Page(0)
		if _, err := p.Process(context.Background(), key, page); !errors.Is(err, ErrNoText) {
			t.Errorf("expected ErrNoText, got %v", err)
		}
	})

	t.Run("low confidence detections dropped", func(t *testing.T) {
		doc := scannedDoc(t, "doc", 1, 300, 200, placement)
		engine := &fakeEngine{dets: []recognize.Detection{
			{Text: "noise", Confidence: 0.05},
			{Text: "signal", Confidence: 0.8},
		}}
		p := NewProcessor(ProcessorConfig{Engine: engine, MinConfidence: 0.2})
		page, _ := doc.Page(0)
		spans, err := p.Process(context.Background(), key, page)
		if err != nil {
			t.Fatal(err)
		}
		if len(spans) != 1 || spans[0].Text != "signal" {
			t.Errorf("unexpected spans %+v", spans)
		}
	})

	t.Run("image enumeration failure aborts the page", func(t *testing.T) {
		doc := scannedDoc(t, "doc", 1, 300, 200, placement)
		page, _ := doc.MemoryPage(0)
		page.ImagesErr = errors.New("xref broken")
		p := NewProcessor(ProcessorConfig{Engine: helloEngine()})
		_, err := p.Process(context.Background(), key, page)
		var pe *PageError
		if !errors.As(err, &pe) {
			t.Fatalf("expected PageError, got %v", err)
		}
		if !IsPageFailure(err) {
			t.Error("expected enumeration failure to count as page failure")
		}
	})

	t.Run("injection failure aborts the page", func(t *testing.T) {
		doc := scannedDoc(t, "doc", 1, 300, 200, placement)
		page, _ := doc.MemoryPage(0)
		page.InsertErr = errors.New("read-only page")
		p := NewProcessor(ProcessorConfig{Engine: helloEngine()})
		if _, err := p.Process(context.Background(), key, page); err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("images are downscaled before recognition", func(t *testing.T) {
		doc := scannedDoc(t, "doc", 1, 800, 400, placement)
		engine := helloEngine()
		p := NewProcessor(ProcessorConfig{Engine: engine, MaxDimension: 400})
		page, _ := doc.Page(0)
		spans, err := p.Process(context.Background(), key, page)
		if err != nil {
			t.Fatal(err)
		}
		in := engine.calls[0]
		if in.Width != 400 || in.Height != 200 {
			t.Errorf("expected 400x200 input, got %dx%d", in.Width, in.Height)
		}
		// 300pt wide placement over 400px: 0.75pt per pixel.
		want := document.Rect{X0: 107.5, Y0: 110, X1: 137.5, Y1: 120}
		if spans[0].Box != want {
			t.Errorf("got %v, want %v", spans[0].Box, want)
		}
	})
}

func TestProcessor_InjectIsIdempotent(t *testing.T) {
	doc := document.NewMemory("doc", document.MemoryPageSpec{Text: "native"})
	page, _ := doc.MemoryPage(0)
	p := NewProcessor(ProcessorConfig{})
	spans := []document.TextSpan{{Text: "a"}, {Text: "b"}}
	key := document.PageKey{Doc: "doc"}

	for i := 0; i < 3; i++ {
		if err := p.Inject(key, page, spans); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(page.Injected()); n != 2 {
		t.Errorf("expected 2 injected spans after repeated injection, got %d", n)
	}
	if got := page.Text(nil); got != "native\na\nb" {
		t.Errorf("unexpected text %q", got)
	}
}

func TestProcessor_CancelledContext(t *testing.T) {
	doc := scannedDoc(t, "doc", 1, 300, 200, document.Rect{X1: 300, Y1: 200})
	engine := helloEngine()
	engine.errs = map[string]error{"img": context.Canceled}
	p := NewProcessor(ProcessorConfig{Engine: engine})
	page, _ := doc.Page(0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Process(ctx, document.PageKey{Doc: "doc"}, page)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if IsPageFailure(err) {
		t.Error("cancellation must not be cached as a page failure")
	}
}
