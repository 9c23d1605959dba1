package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestStore_LoadMissingFile(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), FileName), nil)
	if err := s.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Keys()) != 0 {
		t.Errorf("expected empty store, got keys %v", s.Keys())
	}
}

func TestStore_FlushAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	s := New(path, nil)
	if err := s.Load(); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("theme", map[string]string{"name": "dark"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	reloaded := New(path, nil)
	if err := reloaded.Load(); err != nil {
		t.Fatal(err)
	}
	raw, ok := reloaded.Get("theme")
	if !ok {
		t.Fatal("expected theme section after reload")
	}
	var got map[string]string
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got["name"] != "dark" {
		t.Errorf("expected dark, got %q", got["name"])
	}
}

func TestStore_CorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s := New(path, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("expected corrupt file to be tolerated, got %v", err)
	}
	if len(s.Keys()) != 0 {
		t.Errorf("expected empty store, got %v", s.Keys())
	}

	// The next flush replaces the corrupt file.
	if err := s.Set("k", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !json.Valid(data) {
		t.Errorf("expected valid JSON after flush, got %s", data)
	}
}

func TestStore_Delete(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), FileName), nil)
	_ = s.Set("a", 1)
	_ = s.Set("b", 2)
	s.Delete("a")

	keys := s.Keys()
	if len(keys) != 1 || keys[0] != "b" {
		t.Errorf("expected [b], got %v", keys)
	}
	if _, ok := s.Get("a"); ok {
		t.Error("expected a to be gone")
	}
}

func TestStore_UnreadableFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
	s := New(path, nil)
	if err := s.Load(); err != nil {
		t.Fatalf("expected unreadable file to be tolerated, got %v", err)
	}
	if len(s.Keys()) != 0 {
		t.Errorf("expected empty store, got %v", s.Keys())
	}
}
