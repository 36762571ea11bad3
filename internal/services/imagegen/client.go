// Package imagegen synthesizes stills through the Gemini image models.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	defaultModel   = "gemini-2.5-flash-image-preview"
	defaultTimeout = 180 * time.Second
)

// ErrNoImage is returned when the model answered without an image part.
var ErrNoImage = errors.New("imagegen: response contains no image")

// Config captures the image synthesis settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Width   int
	Height  int
	Timeout time.Duration
}

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client renders images from a prompt and optional reference images.
type Client struct {
	cfg    Config
	models contentGenerator
}

// New constructs a client backed by the Gemini API.
func New(ctx context.Context, cfg Config) (*Client, error) {
	cfg = withDefaults(cfg)
	if cfg.APIKey == "" {
		return nil, errors.New("imagegen: api key is required")
	}
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL, APIVersion: "v1beta"}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("imagegen: create client: %w", err)
	}
	return &Client{cfg: cfg, models: client.Models}, nil
}

func newWithGenerator(cfg Config, models contentGenerator) *Client {
	return &Client{cfg: withDefaults(cfg), models: models}
}

func withDefaults(cfg Config) Config {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	if cfg.Width <= 0 {
		cfg.Width = 1600
	}
	if cfg.Height <= 0 {
		cfg.Height = 900
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return cfg
}

// AspectRatio reduces the configured frame size, e.g. 1600x900 to "16:9".
func (c *Client) AspectRatio() string {
	w, h := c.cfg.Width, c.cfg.Height
	g := gcd(w, h)
	return fmt.Sprintf("%d:%d", w/g, h/g)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Contents orders the reference images ahead of the prompt text, which ends
// with the requested frame geometry.
func (c *Client) Contents(prompt string, refs [][]byte) []*genai.Content {
	parts := make([]*genai.Part, 0, len(refs)+1)
	for _, data := range refs {
		parts = append(parts, genai.NewPartFromBytes(data, http.DetectContentType(data)))
	}
	text := fmt.Sprintf("%s\nAspect ratio %s, %dx%d.", strings.TrimSpace(prompt), c.AspectRatio(), c.cfg.Width, c.cfg.Height)
	parts = append(parts, genai.NewPartFromText(text))
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// GenerateImage renders prompt conditioned on the images at refPaths and
// writes the first returned image to outPath.
func (c *Client) GenerateImage(ctx context.Context, prompt string, refPaths []string, outPath string) error {
	refs := make([][]byte, 0, len(refPaths))
	for _, path := range refPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("imagegen: read reference: %w", err)
		}
		refs = append(refs, data)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	resp, err := c.models.GenerateContent(ctx, c.cfg.Model, c.Contents(prompt, refs), &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	})
	if err != nil {
		return fmt.Errorf("imagegen: generate: %w", err)
	}
	data, err := firstImage(resp)
	if err != nil {
		return err
	}
	return writeAtomic(outPath, data)
}

func firstImage(resp *genai.GenerateContentResponse) ([]byte, error) {
	var text strings.Builder
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand == nil || cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part == nil {
					continue
				}
				if part.InlineData != nil && len(part.InlineData.Data) > 0 {
					return part.InlineData.Data, nil
				}
				text.WriteString(part.Text)
			}
		}
	}
	if snippet := strings.TrimSpace(text.String()); snippet != "" {
		return nil, fmt.Errorf("%w (model said %q)", ErrNoImage, truncate(snippet, 200))
	}
	return nil, ErrNoImage
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("imagegen: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".image-*")
	if err != nil {
		return fmt.Errorf("imagegen: temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("imagegen: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("imagegen: close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("imagegen: rename: %w", err)
	}
	return nil
}
