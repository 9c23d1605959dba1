// Package vision recognizes text by asking an OpenAI-compatible vision model
// for line-level transcriptions with pixel bounding boxes.
package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/glueous/reader/internal/recognize"
)

// Name is the registry name of this engine.
const Name = "vision"

const (
	defaultModel     = "gpt-4o-mini"
	defaultTimeout   = 60 * time.Second
	defaultRateLimit = 60
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("vision engine requires an API key")

const systemPrompt = `You transcribe text found in images.
Return only JSON of the form {"lines":[{"text":"...","box":[x0,y0,x1,y1],"confidence":0.0}]}.
Boxes are pixel coordinates in the submitted image with the origin at the top-left.
Confidence is between 0 and 1. Return {"lines":[]} when the image has no text.`

const responseSchema = `{
  "type": "object",
  "required": ["lines"],
  "properties": {
    "lines": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["text", "box"],
        "properties": {
          "text": {"type": "string"},
          "box": {"type": "array", "items": {"type": "number"}, "minItems": 4, "maxItems": 4},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    }
  }
}`

var schema = jsonschema.MustCompileString("vision_lines.json", responseSchema)

// Engine calls a chat completion endpoint with the image attached.
type Engine struct {
	client  openai.Client
	model   string
	limiter *recognize.RateLimiter
	logger  *slog.Logger
}

// New builds an engine from cfg.Vision.
func New(cfg recognize.EngineConfig) (recognize.Engine, error) {
	return NewEngine(cfg.Vision, cfg.Logger)
}

// NewEngine builds an engine from vision settings.
func NewEngine(cfg recognize.VisionConfig, logger *slog.Logger) (*Engine, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		// Retries are handled by recognize.Retrying.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Engine{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		limiter: recognize.NewRateLimiter(cfg.RateLimit),
		logger:  logger.With("engine", Name, "model", cfg.Model),
	}, nil
}

func (e *Engine) Name() string { return Name }

func (e *Engine) Recognize(ctx context.Context, in recognize.Input) ([]recognize.Detection, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf("Image size: %dx%d pixels.", in.Width, in.Height)
	if len(in.Languages) > 0 {
		prompt += " Expected languages: " + strings.Join(in.Languages, ", ") + "."
	}
	dataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(in.Data)

	start := time.Now()
	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, fmt.Errorf("vision request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("vision response has no choices")
	}

	dets, err := ParseDetections(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("recognized image", "image", in.ID, "lines", len(dets), "duration", time.Since(start))
	return dets, nil
}

type visionLine struct {
	Text       string     `json:"text"`
	Box        [4]float64 `json:"box"`
	Confidence *float64   `json:"confidence"`
}

// ParseDetections extracts and validates the JSON payload of a model reply.
// Lines without a confidence are treated as fully confident.
func ParseDetections(content string) ([]recognize.Detection, error) {
	candidate := extractJSONObject(content)
	if candidate == "" {
		return nil, fmt.Errorf("vision response contains no JSON: %q", truncate(content, 80))
	}

	var doc any
	if err := json.Unmarshal([]byte(candidate), &doc); err != nil {
		return nil, fmt.Errorf("vision response is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("vision response does not match schema: %w", err)
	}

	var parsed struct {
		Lines []visionLine `json:"lines"`
	}
	if err := json.Unmarshal([]byte(candidate), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode vision lines: %w", err)
	}

	dets := make([]recognize.Detection, 0, len(parsed.Lines))
	for _, l := range parsed.Lines {
		conf := 1.0
		if l.Confidence != nil {
			conf = *l.Confidence
		}
		dets = append(dets, recognize.Detection{
			Text:       l.Text,
			Box:        recognize.Box{X0: l.Box[0], Y0: l.Box[1], X1: l.Box[2], Y1: l.Box[3]},
			Confidence: conf,
		})
	}
	return dets, nil
}

// extractJSONObject strips prose and code fences around the first JSON object.
func extractJSONObject(content string) string {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end < start {
		return ""
	}
	return trimmed[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
