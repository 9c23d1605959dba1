package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/glueous/reader/internal/document"
	"github.com/glueous/reader/internal/ocrcache"
)

func TestHook_OpenReplaysCache(t *testing.T) {
	doc := scannedDoc(t, "book.pdf", 3, 300, 200, document.Rect{X1: 300, Y1: 200})
	f := newFixture(t, doc, helloEngine(), 1)

	if err := f.cache.Put(document.PageKey{Doc: "book.pdf", Page: 0}, ocrcache.Entry{
		Status: ocrcache.StatusDone,
		Spans:  []document.TextSpan{{Text: "cached", Box: document.Rect{X1: 10, Y1: 10}}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := f.cache.Put(document.PageKey{Doc: "book.pdf", Page: 1}, ocrcache.Entry{Status: ocrcache.StatusFailed}); err != nil {
		t.Fatal(err)
	}

	sess := f.open(t)

	page0, _ := doc.Page(0)
	if page0.Text(nil) != "cached" {
		t.Errorf("expected cached text replayed, got %q", page0.Text(nil))
	}
	if s := sess.States.Get(sess.Key(0)); s != StateCached {
		t.Errorf("page 0 state = %s, want cached", s)
	}
	if s := sess.States.Get(sess.Key(1)); s != StateFailedRetryable {
		t.Errorf("page 1 state = %s, want failed", s)
	}
	if s := sess.States.Get(sess.Key(2)); s != StateUnscanned {
		t.Errorf("page 2 state = %s, want unscanned", s)
	}
	if f.engine.Calls() != 0 {
		t.Errorf("replay must not run recognition, got %d calls", f.engine.Calls())
	}
}

func TestHook_ReplayIsIdempotent(t *testing.T) {
	doc := scannedDoc(t, "book.pdf", 1, 300, 200, document.Rect{X1: 300, Y1: 200})
	f := newFixture(t, doc, helloEngine(), 1)
	key := document.PageKey{Doc: "book.pdf", Page: 0}
	if err := f.cache.Put(key, ocrcache.Entry{
		Status: ocrcache.StatusDone,
		Spans:  []document.TextSpan{{Text: "one"}, {Text: "two"}},
	}); err != nil {
		t.Fatal(err)
	}

	f.open(t)
	for i := 0; i < 3; i++ {
		if _, err := f.hook.Replay(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	page, _ := doc.Page(0)
	if n := len(page.Injected()); n != 2 {
		t.Errorf("expected 2 spans after repeated replay, got %d", n)
	}
}

func TestHook_CommandsWithoutDocument(t *testing.T) {
	f := newFixture(t, document.NewMemory("x"), helloEngine(), 1)
	if _, err := f.hook.RerunPage(context.Background(), 0); !errors.Is(err, ErrNoDocument) {
		t.Errorf("RerunPage: expected ErrNoDocument, got %v", err)
	}
	if err := f.hook.RerunDocument(context.Background()); !errors.Is(err, ErrNoDocument) {
		t.Errorf("RerunDocument: expected ErrNoDocument, got %v", err)
	}
	if _, err := f.hook.Replay(context.Background()); !errors.Is(err, ErrNoDocument) {
		t.Errorf("Replay: expected ErrNoDocument, got %v", err)
	}
}

func TestHook_RerunPage(t *testing.T) {
	doc := scannedDoc(t, "book.pdf", 2, 300, 200, document.Rect{X1: 300, Y1: 200})
	f := newFixture(t, doc, helloEngine(), 1)
	keyOther := document.PageKey{Doc: "book.pdf", Page: 1}
	if err := f.cache.Put(keyOther, ocrcache.Entry{
		Status: ocrcache.StatusDone,
		Spans:  []document.TextSpan{{Text: "other"}},
	}); err != nil {
		t.Fatal(err)
	}
	if err := f.cache.Put(document.PageKey{Doc: "book.pdf", Page: 0}, ocrcache.Entry{Status: ocrcache.StatusFailed}); err != nil {
		t.Fatal(err)
	}
	sess := f.open(t)
	f.driver.SetEnabled(false)

	out, err := f.hook.RerunPage(context.Background(), 0)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if out.State != StateCached || out.Spans != 1 {
		t.Errorf("unexpected outcome %+v", out)
	}
	if doc.Resets() != 1 {
		t.Errorf("expected document reset, got %d resets", doc.Resets())
	}
	entry, ok := f.cache.Get(sess.Key(0))
	if !ok || entry.Status != ocrcache.StatusDone {
		t.Errorf("expected new done entry, got %+v", entry)
	}

	// Other pages keep their text across the reset.
	page1, _ := doc.Page(1)
	if page1.Text(nil) != "other" {
		t.Errorf("expected page 1 text replayed after reset, got %q", page1.Text(nil))
	}

	if _, err := f.hook.RerunPage(context.Background(), 9); !errors.Is(err, document.ErrPageOutOfRange) {
		t.Errorf("expected out of range error, got %v", err)
	}
}

func TestHook_RerunDocument(t *testing.T) {
	doc := scannedDoc(t, "book.pdf", 3, 300, 200, document.Rect{X1: 300, Y1: 200})
	f := newFixture(t, doc, helloEngine(), 1)
	f.view = View{Visible: []int{0, 1, 2}}
	sess := f.open(t)

	for i := 0; i < 3; i++ {
		if _, err := f.driver.Tick(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if len(f.cache.Entries(sess.Identity())) != 3 {
		t.Fatalf("expected 3 entries before rerun")
	}

	f.driver.SetEnabled(false)
	if err := f.hook.RerunDocument(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n := len(f.cache.Entries(sess.Identity())); n != 0 {
		t.Errorf("expected all entries deleted, got %d", n)
	}
	page, _ := doc.Page(0)
	if len(page.Injected()) != 0 {
		t.Error("expected reset to drop injected text")
	}

	// Disabled: nothing is re-enriched.
	res, err := f.driver.Tick(context.Background())
	if err != nil || res.Status != TickDisabled {
		t.Fatalf("expected disabled tick, got %+v, %v", res, err)
	}
	if n := len(f.cache.Entries(sess.Identity())); n != 0 {
		t.Errorf("expected document to stay unenriched, got %d entries", n)
	}

	// Enabled: pages are picked up again.
	f.driver.SetEnabled(true)
	if res, _ := f.driver.Tick(context.Background()); res.Status != TickProcessed || res.Key.Page != 0 {
		t.Errorf("expected page 0 processed, got %+v", res)
	}
}

func TestHook_OpenClosesPrevious(t *testing.T) {
	first := document.NewMemory("first")
	second := document.NewMemory("second")
	docs := map[string]*document.Memory{"first": first, "second": second}

	cache, _ := newCache(t)
	hook := NewHook(HookConfig{
		Opener: document.OpenerFunc(func(ctx context.Context, path string) (document.Document, error) {
			return docs[path], nil
		}),
		Cache:     cache,
		Processor: NewProcessor(ProcessorConfig{}),
	})

	if _, err := hook.Open(context.Background(), "first"); err != nil {
		t.Fatal(err)
	}
	if _, err := hook.Open(context.Background(), "second"); err != nil {
		t.Fatal(err)
	}
	if !first.Closed() {
		t.Error("expected first document closed")
	}
	if hook.Session().Identity() != "second" {
		t.Errorf("unexpected session %s", hook.Session().Identity())
	}
	if err := hook.Close(); err != nil {
		t.Fatal(err)
	}
	if !second.Closed() || hook.Session() != nil {
		t.Error("expected second document closed and no session")
	}
}

func TestHook_OpenError(t *testing.T) {
	cache, _ := newCache(t)
	boom := errors.New("bad file")
	hook := NewHook(HookConfig{
		Opener: document.OpenerFunc(func(ctx context.Context, path string) (document.Document, error) {
			return nil, boom
		}),
		Cache:     cache,
		Processor: NewProcessor(ProcessorConfig{}),
	})
	if _, err := hook.Open(context.Background(), "x.pdf"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped open error, got %v", err)
	}
	if hook.Session() != nil {
		t.Error("expected no session after failed open")
	}
}

func TestHook_EnrichReplacedSession(t *testing.T) {
	first := scannedDoc(t, "first.pdf", 2, 300, 200, document.Rect{X1: 300, Y1: 200})
	second := scannedDoc(t, "second.pdf", 2, 300, 200, document.Rect{X1: 300, Y1: 200})
	docs := map[string]*document.Memory{"first.pdf": first, "second.pdf": second}

	engine := helloEngine()
	cache, _ := newCache(t)
	hook := NewHook(HookConfig{
		Opener: document.OpenerFunc(func(ctx context.Context, path string) (document.Document, error) {
			return docs[path], nil
		}),
		Cache:     cache,
		Processor: NewProcessor(ProcessorConfig{Engine: engine}),
	})

	stale, err := hook.Open(context.Background(), "first.pdf")
	if err != nil {
		t.Fatal(err)
	}
	// A second open lands between reading the session and enriching it.
	if _, err := hook.Open(context.Background(), "second.pdf"); err != nil {
		t.Fatal(err)
	}

	key := stale.Key(0)
	if _, err := hook.EnrichPage(context.Background(), stale, key); !errors.Is(err, ErrStaleSession) {
		t.Fatalf("expected ErrStaleSession, got %v", err)
	}
	if _, ok := cache.Get(key); ok {
		t.Error("stale work must not write the cache")
	}
	if engine.Calls() != 0 {
		t.Errorf("stale work must not run recognition, got %d calls", engine.Calls())
	}
	if s := stale.States.Get(key); s != StateUnscanned {
		t.Errorf("stale page state = %s, want unscanned", s)
	}
	if !first.Closed() {
		t.Error("expected first document closed")
	}
}

func TestHook_RerunPageBusy(t *testing.T) {
	doc := scannedDoc(t, "book.pdf", 2, 300, 200, document.Rect{X1: 300, Y1: 200})
	f := newFixture(t, doc, helloEngine(), 1)
	sess := f.open(t)
	key := sess.Key(0)

	// A pool worker holds page 0.
	if err := sess.States.Transition(key, StateQueued); err != nil {
		t.Fatal(err)
	}
	if err := sess.States.Transition(key, StateProcessing); err != nil {
		t.Fatal(err)
	}

	if _, err := f.hook.RerunPage(context.Background(), 0); !errors.Is(err, ErrPageBusy) {
		t.Fatalf("expected ErrPageBusy, got %v", err)
	}
	if s := sess.States.Get(key); s != StateProcessing {
		t.Errorf("page state = %s, want processing", s)
	}
	if f.engine.Calls() != 0 {
		t.Errorf("busy rerun must not run recognition, got %d calls", f.engine.Calls())
	}
	if doc.Resets() != 0 {
		t.Errorf("busy rerun must not reset the document, got %d resets", doc.Resets())
	}
}
