package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Enrichment.Enabled {
		t.Error("expected automatic enrichment off by default")
	}
	if cfg.Recognition.Vision.APIKey != "${OPENAI_API_KEY}" {
		t.Error("expected OpenAI API key placeholder")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestNewManager_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)

	mgr, err := NewManager("")
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	cfg := mgr.Get()
	want := DefaultConfig()

	if cfg.Enrichment != want.Enrichment {
		t.Errorf("enrichment = %+v, want %+v", cfg.Enrichment, want.Enrichment)
	}
	if cfg.Recognition.Engine != "tesseract" || cfg.Recognition.RetryDelay != 200*time.Millisecond {
		t.Errorf("unexpected recognition defaults %+v", cfg.Recognition)
	}
	if strings.Join(cfg.Recognition.Languages, ",") != "chi_sim,eng" {
		t.Errorf("unexpected languages %v", cfg.Recognition.Languages)
	}
	if cfg.Recognition.Vision != want.Recognition.Vision {
		t.Errorf("vision = %+v, want %+v", cfg.Recognition.Vision, want.Recognition.Vision)
	}
	if cfg.View != want.View || cfg.Server != want.Server || cfg.LogLevel != "info" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if mgr.ConfigFile() != "" {
		t.Errorf("expected no config file, got %s", mgr.ConfigFile())
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, `
enrichment:
  enabled: true
  tick_interval: 2s
  workers: 4
recognition:
  engine: vision
  vision:
    model: gpt-4o
`)
		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if !cfg.Enrichment.Enabled || cfg.Enrichment.TickInterval != 2*time.Second || cfg.Enrichment.Workers != 4 {
			t.Errorf("unexpected enrichment %+v", cfg.Enrichment)
		}
		if cfg.Recognition.Engine != "vision" || cfg.Recognition.Vision.Model != "gpt-4o" {
			t.Errorf("unexpected recognition %+v", cfg.Recognition)
		}
		// Unset keys keep their defaults.
		if cfg.Recognition.Vision.RateLimit != 60 || cfg.Enrichment.Identity != "path" {
			t.Errorf("expected defaults for unset keys, got %+v", cfg)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("GLUEOUS_ENRICHMENT_DEBUG", "true")
		t.Setenv("GLUEOUS_SERVER_PORT", "9999")
		mgr, err := NewManager(writeConfig(t, "enrichment:\n  debug: false\n"))
		if err != nil {
			t.Fatal(err)
		}
		cfg := mgr.Get()
		if !cfg.Enrichment.Debug || cfg.Server.Port != "9999" {
			t.Errorf("expected env overrides, got %+v", cfg)
		}
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		for _, content := range []string{
			"enrichment:\n  identity: hash\n",
			"enrichment:\n  workers: 0\n",
			"recognition:\n  min_confidence: 2\n",
			"log_level: loud\n",
		} {
			if _, err := NewManager(writeConfig(t, content)); err == nil {
				t.Errorf("expected error for %q", content)
			}
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		if _, err := NewManager(writeConfig(t, "enrichment: [\n")); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")
		if result := ResolveEnvVars("${TEST_API_KEY}"); result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		if result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}"); result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		if result := ResolveEnvVars("literal-value"); result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestConfig_EngineConfig(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-123")
	cfg := DefaultConfig()
	cfg.Recognition.Vision.APIKey = "${TEST_OPENAI_KEY}"

	ec := cfg.EngineConfig(slog.Default())
	if ec.Vision.APIKey != "sk-123" {
		t.Errorf("expected resolved key, got %q", ec.Vision.APIKey)
	}
	if ec.Vision.Model != "gpt-4o-mini" || len(ec.Languages) != 2 {
		t.Errorf("unexpected engine config %+v", ec)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{"# Glueous configuration", "tick_interval: 500ms", "${OPENAI_API_KEY}"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in written config:\n%s", want, text)
		}
	}
	if strings.Index(text, "enrichment:") > strings.Index(text, "recognition:") {
		t.Error("expected sections in default order")
	}

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("written config must load: %v", err)
	}
	cfg := mgr.Get()
	want := DefaultConfig()
	if cfg.Enrichment != want.Enrichment || cfg.Recognition.Vision != want.Recognition.Vision {
		t.Errorf("round trip mismatch: %+v", cfg)
	}
}

func TestManager_Reload(t *testing.T) {
	configFile := writeConfig(t, "enrichment:\n  enabled: false\n")
	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	mgr.OnChange(func(cfg *Config) {
		calls.Add(1)
	})

	if err := os.WriteFile(configFile, []byte("enrichment:\n  enabled: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Reload(); err != nil {
		t.Fatal(err)
	}
	if !mgr.Get().Enrichment.Enabled || calls.Load() != 1 {
		t.Errorf("expected reload to apply, enabled=%v calls=%d", mgr.Get().Enrichment.Enabled, calls.Load())
	}

	// An invalid edit keeps the previous configuration.
	if err := os.WriteFile(configFile, []byte("enrichment:\n  workers: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Reload(); err == nil {
		t.Error("expected invalid reload to fail")
	}
	if mgr.Get().Enrichment.Workers != 1 || calls.Load() != 1 {
		t.Errorf("invalid reload must not apply, got %+v", mgr.Get().Enrichment)
	}
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "log_level: debug\n"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				_ = mgr.Get().LogLevel
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, "enrichment:\n  tick_interval: 1s\n")
	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	if mgr.Get().Enrichment.TickInterval != time.Second {
		t.Fatalf("initial value mismatch: %s", mgr.Get().Enrichment.TickInterval)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Value
	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(cfg.Enrichment.TickInterval)
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("enrichment:\n  tick_interval: 3s\n"), 0o644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if mgr.Get().Enrichment.TickInterval != 3*time.Second {
		t.Errorf("config not updated: got %s", mgr.Get().Enrichment.TickInterval)
	}
	if v := lastValue.Load(); v != 3*time.Second {
		t.Errorf("callback received wrong value: %v", v)
	}
}
