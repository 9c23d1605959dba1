package ocrcache

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/glueous/reader/internal/document"
	"github.com/glueous/reader/internal/settings"
)

func newFileStore(t *testing.T, path string) *Store {
	t.Helper()
	backend := settings.New(path, nil)
	if err := backend.Load(); err != nil {
		t.Fatalf("settings load: %v", err)
	}
	s := New(backend, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("cache load: %v", err)
	}
	return s
}

func conf(v float64) *float64 { return &v }

func TestStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), settings.FileName)
	s := newFileStore(t, path)

	key := document.PageKey{Doc: "A", Page: 2}
	entry := Entry{
		Status: StatusDone,
		Spans: []document.TextSpan{
			{Text: "Hello", Box: document.Rect{X0: 110, Y0: 110, X1: 150, Y1: 120}, Confidence: conf(0.93)},
			{Text: "world", Box: document.Rect{X0: 10, Y0: 20, X1: 30, Y1: 40}},
		},
	}
	if err := s.Put(key, entry); err != nil {
		t.Fatalf("put: %v", err)
	}

	reloaded := newFileStore(t, path)
	got, ok := reloaded.Get(key)
	if !ok {
		t.Fatal("expected entry after reload")
	}
	entry.Key = key
	if !reflect.DeepEqual(got, entry) {
		t.Errorf("round trip mismatch:\n got  %+v\n want %+v", got, entry)
	}
}

func TestStore_PersistedLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), settings.FileName)
	s := newFileStore(t, path)

	if err := s.Put(document.PageKey{Doc: "report.pdf", Page: 0}, Entry{
		Status: StatusDone,
		Spans:  []document.TextSpan{{Text: "Hi", Box: document.Rect{X0: 1, Y0: 2, X1: 3, Y1: 4}}},
	}); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var file map[string]map[string]map[string]struct {
		Status string `json:"status"`
		Spans  []struct {
			Text string     `json:"text"`
			BBox [4]float64 `json:"bbox"`
		} `json:"spans"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		t.Fatalf("unexpected layout: %v\n%s", err, data)
	}
	rec := file[SectionKey]["report.pdf"]["0"]
	if rec.Status != "done" || len(rec.Spans) != 1 || rec.Spans[0].BBox != [4]float64{1, 2, 3, 4} {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestStore_FailedEntryHasEmptySpans(t *testing.T) {
	path := filepath.Join(t.TempDir(), settings.FileName)
	s := newFileStore(t, path)
	key := document.PageKey{Doc: "A", Page: 5}
	if err := s.Put(key, Entry{Status: StatusFailed}); err != nil {
		t.Fatal(err)
	}
	got, ok := newFileStore(t, path).Get(key)
	if !ok || got.Status != StatusFailed || len(got.Spans) != 0 {
		t.Errorf("unexpected entry %+v (ok=%v)", got, ok)
	}
}

func TestStore_CorruptSection(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", `{"ocr_cache": {broken`},
		{"wrong shape", `{"ocr_cache": ["a", "b"]}`},
		{"bad status", `{"ocr_cache": {"A": {"0": {"status": "maybe"}}}}`},
		{"bad page index", `{"ocr_cache": {"A": {"first": {"status": "done"}}}}`},
		{"short bbox", `{"ocr_cache": {"A": {"0": {"status": "done", "spans": [{"text": "x", "bbox": [1, 2]}]}}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), settings.FileName)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			s := newFileStore(t, path)
			if docs := s.Documents(); len(docs) != 0 {
				t.Errorf("expected empty cache, got %v", docs)
			}

			key := document.PageKey{Doc: "B", Page: 1}
			if err := s.Put(key, Entry{Status: StatusDone}); err != nil {
				t.Fatalf("write after corruption: %v", err)
			}
			if _, ok := newFileStore(t, path).Get(key); !ok {
				t.Error("expected new entry to overwrite corruption")
			}
		})
	}
}

func TestStore_DeleteAndDeleteAll(t *testing.T) {
	s := newFileStore(t, filepath.Join(t.TempDir(), settings.FileName))
	for _, k := range []document.PageKey{{Doc: "A", Page: 0}, {Doc: "A", Page: 1}, {Doc: "B", Page: 0}} {
		if err := s.Put(k, Entry{Status: StatusDone}); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.Delete(document.PageKey{Doc: "A", Page: 0}); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Get(document.PageKey{Doc: "A", Page: 0}); ok {
		t.Error("expected A#0 deleted")
	}
	if len(s.Entries("A")) != 1 {
		t.Errorf("expected one entry left for A, got %d", len(s.Entries("A")))
	}

	if err := s.DeleteAll("A"); err != nil {
		t.Fatal(err)
	}
	if got := s.Documents(); !reflect.DeepEqual(got, []document.Identity{"B"}) {
		t.Errorf("expected only B, got %v", got)
	}
}

func TestStore_RejectsUnknownStatus(t *testing.T) {
	s := newFileStore(t, filepath.Join(t.TempDir(), settings.FileName))
	if err := s.Put(document.PageKey{Doc: "A"}, Entry{Status: "pending"}); err == nil {
		t.Error("expected error for unknown status")
	}
}

type failingBackend struct {
	flushErr error
}

func (f *failingBackend) Get(string) (json.RawMessage, bool) { return nil, false }
func (f *failingBackend) Set(string, any) error               { return nil }
func (f *failingBackend) Flush() error                        { return f.flushErr }

func TestStore_FlushErrorKeepsEntry(t *testing.T) {
	boom := errors.New("disk full")
	s := New(&failingBackend{flushErr: boom}, nil)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	key := document.PageKey{Doc: "A", Page: 0}
	if err := s.Put(key, Entry{Status: StatusDone}); !errors.Is(err, boom) {
		t.Errorf("expected flush error, got %v", err)
	}
	if _, ok := s.Get(key); !ok {
		t.Error("expected entry retained in memory after failed flush")
	}
}

func TestStore_ConcurrentWritesPersistNewest(t *testing.T) {
	path := filepath.Join(t.TempDir(), settings.FileName)
	s := newFileStore(t, path)
	if err := s.Put(document.PageKey{Doc: "B", Page: 0}, Entry{Status: StatusDone}); err != nil {
		t.Fatal(err)
	}

	const pages = 20
	var wg sync.WaitGroup
	for i := 0; i < pages; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			if err := s.Put(document.PageKey{Doc: "A", Page: n}, Entry{Status: StatusDone}); err != nil {
				t.Error(err)
			}
		}(i)
		go func() {
			defer wg.Done()
			if err := s.DeleteAll("B"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	reloaded := newFileStore(t, path)
	if n := len(reloaded.Entries("A")); n != pages {
		t.Errorf("expected %d entries on disk, got %d", pages, n)
	}
	if n := len(reloaded.Entries("B")); n != 0 {
		t.Errorf("expected B cleared on disk, got %d", n)
	}
}
