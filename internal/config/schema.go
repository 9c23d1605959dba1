package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/glueous/reader/internal/recognize"
)

// Config holds glueous configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Enrichment  EnrichmentCfg  `mapstructure:"enrichment" yaml:"enrichment"`
	Recognition RecognitionCfg `mapstructure:"recognition" yaml:"recognition"`
	View        ViewCfg        `mapstructure:"view" yaml:"view"`
	Server      ServerCfg      `mapstructure:"server" yaml:"server"`
	LogLevel    string         `mapstructure:"log_level" yaml:"log_level"`
}

// EnrichmentCfg controls the pipeline driver.
type EnrichmentCfg struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	TickInterval time.Duration `mapstructure:"tick_interval" yaml:"tick_interval"`
	Debug        bool          `mapstructure:"debug" yaml:"debug"`       // Make injected text visible
	Workers      int           `mapstructure:"workers" yaml:"workers"`   // >1 enables the worker pool
	Identity     string        `mapstructure:"identity" yaml:"identity"` // "path" or "content"
}

// RecognitionCfg selects and tunes the recognition engine.
type RecognitionCfg struct {
	Engine        string        `mapstructure:"engine" yaml:"engine"` // "tesseract", "vision", "none"
	Languages     []string      `mapstructure:"languages" yaml:"languages"`
	MinConfidence float64       `mapstructure:"min_confidence" yaml:"min_confidence"`
	MinImageSize  float64       `mapstructure:"min_image_size" yaml:"min_image_size"` // Points
	MaxDimension  int           `mapstructure:"max_dimension" yaml:"max_dimension"`   // Pixels
	MaxRetries    int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" yaml:"retry_delay"`
	Vision        VisionCfg     `mapstructure:"vision" yaml:"vision"`
}

// VisionCfg configures the vision-model engine.
type VisionCfg struct {
	Model     string        `mapstructure:"model" yaml:"model"`
	APIKey    string        `mapstructure:"api_key" yaml:"api_key"` // Supports ${ENV_VAR} syntax
	BaseURL   string        `mapstructure:"base_url" yaml:"base_url"`
	RateLimit int           `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ViewCfg sets the headless viewport. A radius of -1 covers the whole document.
type ViewCfg struct {
	VisibleRadius    int `mapstructure:"visible_radius" yaml:"visible_radius"`
	SelectableRadius int `mapstructure:"selectable_radius" yaml:"selectable_radius"`
}

// ServerCfg configures the control API.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port string `mapstructure:"port" yaml:"port"`
}

// defaultEntries lists every key with its default, in file order.
var defaultEntries = []struct {
	Key   string
	Value any
}{
	{"enrichment.enabled", false},
	{"enrichment.tick_interval", "500ms"},
	{"enrichment.debug", false},
	{"enrichment.workers", 1},
	{"enrichment.identity", "path"},
	{"recognition.engine", "tesseract"},
	{"recognition.languages", []string{"chi_sim", "eng"}},
	{"recognition.min_confidence", 0.2},
	{"recognition.min_image_size", 10.0},
	{"recognition.max_dimension", 2000},
	{"recognition.max_retries", 2},
	{"recognition.retry_delay", "200ms"},
	{"recognition.vision.model", "gpt-4o-mini"},
	{"recognition.vision.api_key", "${OPENAI_API_KEY}"},
	{"recognition.vision.base_url", ""},
	{"recognition.vision.rate_limit", 60},
	{"recognition.vision.timeout", "60s"},
	{"view.visible_radius", 1},
	{"view.selectable_radius", 3},
	{"server.host", "127.0.0.1"},
	{"server.port", "8080"},
	{"log_level", "info"},
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Enrichment: EnrichmentCfg{
			TickInterval: 500 * time.Millisecond,
			Workers:      1,
			Identity:     "path",
		},
		Recognition: RecognitionCfg{
			Engine:        "tesseract",
			Languages:     []string{"chi_sim", "eng"},
			MinConfidence: 0.2,
			MinImageSize:  10,
			MaxDimension:  2000,
			MaxRetries:    2,
			RetryDelay:    200 * time.Millisecond,
			Vision: VisionCfg{
				Model:     "gpt-4o-mini",
				APIKey:    "${OPENAI_API_KEY}",
				RateLimit: 60,
				Timeout:   60 * time.Second,
			},
		},
		View:     ViewCfg{VisibleRadius: 1, SelectableRadius: 3},
		Server:   ServerCfg{Host: "127.0.0.1", Port: "8080"},
		LogLevel: "info",
	}
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Enrichment.Identity {
	case "path", "content":
	default:
		return fmt.Errorf("enrichment.identity must be \"path\" or \"content\", got %q", c.Enrichment.Identity)
	}
	if c.Enrichment.Workers < 1 {
		return fmt.Errorf("enrichment.workers must be at least 1, got %d", c.Enrichment.Workers)
	}
	if c.Recognition.MinConfidence < 0 || c.Recognition.MinConfidence > 1 {
		return fmt.Errorf("recognition.min_confidence must be within [0, 1], got %g", c.Recognition.MinConfidence)
	}
	if c.Recognition.MaxDimension < 0 {
		return fmt.Errorf("recognition.max_dimension must not be negative, got %d", c.Recognition.MaxDimension)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// EngineConfig converts the recognition settings to engine factory input.
// It resolves ${ENV_VAR} references in the API key.
func (c *Config) EngineConfig(logger *slog.Logger) recognize.EngineConfig {
	v := c.Recognition.Vision
	return recognize.EngineConfig{
		Languages: c.Recognition.Languages,
		Vision: recognize.VisionConfig{
			Model:     v.Model,
			APIKey:    ResolveEnvVars(v.APIKey),
			BaseURL:   v.BaseURL,
			RateLimit: v.RateLimit,
			Timeout:   v.Timeout,
		},
		Logger: logger,
	}
}

// Addr returns the server listen address.
func (s ServerCfg) Addr() string {
	return s.Host + ":" + s.Port
}

// ParseLogLevel maps a level name to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}
