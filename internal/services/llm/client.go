package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultEndpoint       = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout    = 120 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryAttempts  = 5
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	VisionModel    string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// DefaultHTTPTimeout returns the default timeout used for LLM requests.
func DefaultHTTPTimeout() time.Duration {
	return defaultHTTPTimeout
}

// Client sends JSON-mode chat completions to an OpenRouter-compatible endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client

	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	onRetry   func(attempt int, delay time.Duration, err error)
	timer     backoff.Timer
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts sets the total attempt budget per request. The
// pipeline passes 1 because its components own their retries.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.attempts = attempts
	}
}

// WithRetryBackoff sets the first delay and the delay ceiling. The delay
// doubles after every retry.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = baseDelay
		c.maxDelay = maxDelay
	}
}

// WithRetryObserver reports every scheduled retry with the delay before it.
func WithRetryObserver(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(c *Client) {
		c.onRetry = fn
	}
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			VisionModel:    strings.TrimSpace(cfg.VisionModel),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
		attempts:   defaultRetryAttempts,
		baseDelay:  defaultRetryBaseDelay,
		maxDelay:   defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultEndpoint
	}
	if client.attempts < 1 {
		client.attempts = 1
	}
	return client
}

// Image is an inline picture attached to a vision request.
type Image struct {
	// Label is rendered as a text part immediately before the image.
	Label    string
	MIMEType string
	Data     []byte
}

// CompleteJSON sends a system/user pair and returns the model's raw JSON payload.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	const op = "llm complete"
	system, user, err := c.prompts(op, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	return c.complete(ctx, op, c.cfg.Model, system, user)
}

// CompleteJSONWithImages sends the prompt followed by each image as a data
// URL. The vision model is used when set.
func (c *Client) CompleteJSONWithImages(ctx context.Context, systemPrompt, userPrompt string, images []Image) (string, error) {
	const op = "llm vision"
	system, user, err := c.prompts(op, systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	parts := make([]contentPart, 0, 1+2*len(images))
	parts = append(parts, contentPart{Type: "text", Text: user})
	for i, img := range images {
		if len(img.Data) == 0 {
			return "", fmt.Errorf("%s: image %d is empty", op, i)
		}
		if label := strings.TrimSpace(img.Label); label != "" {
			parts = append(parts, contentPart{Type: "text", Text: label})
		}
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: dataURL(img)}})
	}
	model := c.cfg.VisionModel
	if model == "" {
		model = c.cfg.Model
	}
	return c.complete(ctx, op, model, system, parts)
}

// HealthCheck sends a trivial JSON request to prove the key and model work.
func (c *Client) HealthCheck(ctx context.Context) error {
	const op = "llm health"
	if c.cfg.APIKey == "" {
		return fmt.Errorf("%s: api key required", op)
	}
	content, err := c.complete(ctx, op, c.cfg.Model, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeLLMJSON(content, &parsed); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

func (c *Client) prompts(op, systemPrompt, userPrompt string) (string, string, error) {
	system := strings.TrimSpace(systemPrompt)
	user := strings.TrimSpace(userPrompt)
	switch {
	case system == "":
		return "", "", fmt.Errorf("%s: system prompt required", op)
	case user == "":
		return "", "", fmt.Errorf("%s: user prompt required", op)
	case c.cfg.APIKey == "":
		return "", "", fmt.Errorf("%s: api key required", op)
	}
	return system, user, nil
}

func dataURL(img Image) string {
	mime := strings.TrimSpace(img.MIMEType)
	if mime == "" {
		mime = http.DetectContentType(img.Data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}
