package videogen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	tasksPath              = "/volc/v1/contents/generations/tasks"
	defaultBaseURL         = "https://yunwu.ai"
	defaultPollInterval    = 2 * time.Second
	defaultTimeout         = 15 * time.Minute
	defaultRequestTimeout  = 60 * time.Second
	maxConsecutivePollErrs = 3
)

// Task states reported by the poll endpoint. Anything else means pending.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Config captures the task API settings.
type Config struct {
	APIKey          string
	BaseURL         string
	ModelT2V        string
	ModelFF2V       string
	ModelFLF2V      string
	Resolution      string
	AspectRatio     string
	FPS             int
	DurationSeconds int
	PollInterval    time.Duration
	Timeout         time.Duration
}

// Client talks to the task API.
type Client struct {
	cfg        Config
	httpClient *http.Client
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

// NewClient constructs a client, filling unset fields with defaults.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Resolution == "" {
		cfg.Resolution = "720p"
	}
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = "16:9"
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 16
	}
	if cfg.DurationSeconds <= 0 {
		cfg.DurationSeconds = 5
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type imageURL struct {
	URL string `json:"url"`
}

type contentItem struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
	Role     string    `json:"role,omitempty"`
}

type createRequest struct {
	Model   string        `json:"model"`
	Content []contentItem `json:"content"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type createResponse struct {
	ID    string    `json:"id"`
	Error *apiError `json:"error,omitempty"`
}

type taskResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Content struct {
		VideoURL string `json:"video_url"`
	} `json:"content"`
	Error *apiError `json:"error,omitempty"`
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Op, e.StatusCode, strings.TrimSpace(e.Body))
}

// TaskFailedError reports a task the service marked failed.
type TaskFailedError struct {
	TaskID  string
	Message string
}

func (e *TaskFailedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("video task %s failed", e.TaskID)
	}
	return fmt.Sprintf("video task %s failed: %s", e.TaskID, e.Message)
}

// Model returns the model used for the given number of conditioning frames.
func (c *Client) Model(frames int) (string, error) {
	switch frames {
	case 0:
		return c.cfg.ModelT2V, nil
	case 1:
		return c.cfg.ModelFF2V, nil
	case 2:
		return c.cfg.ModelFLF2V, nil
	default:
		return "", fmt.Errorf("videogen: %d conditioning frames, want 0, 1 or 2", frames)
	}
}

// PromptWithFlags appends the generation parameters to prompt.
func (c *Client) PromptWithFlags(prompt string) string {
	return fmt.Sprintf("%s --rs %s --rt %s --dur %d --fps %d --wm false --seed -1 --cf false",
		strings.TrimSpace(prompt), c.cfg.Resolution, c.cfg.AspectRatio, c.cfg.DurationSeconds, c.cfg.FPS)
}

// GenerateVideo renders a clip and writes it to outPath. framePaths holds
// zero, one (first frame) or two (first and last frame) images.
func (c *Client) GenerateVideo(ctx context.Context, prompt string, framePaths []string, outPath string) error {
	model, err := c.Model(len(framePaths))
	if err != nil {
		return err
	}
	content := []contentItem{{Type: "text", Text: c.PromptWithFlags(prompt)}}
	for i, path := range framePaths {
		dataURL, err := encodeDataURL(path)
		if err != nil {
			return err
		}
		role := "first_frame"
		if i == 1 {
			role = "last_frame"
		}
		content = append(content, contentItem{Type: "image_url", ImageURL: &imageURL{URL: dataURL}, Role: role})
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	taskID, err := c.createTask(ctx, createRequest{Model: model, Content: content})
	if err != nil {
		return err
	}
	videoURL, err := c.waitForTask(ctx, taskID)
	if err != nil {
		return err
	}
	return c.download(ctx, videoURL, outPath)
}

func (c *Client) createTask(ctx context.Context, payload createRequest) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("video create: encode body: %w", err)
	}
	body, err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+tasksPath, bytes.NewReader(encoded), "video create")
	if err != nil {
		return "", err
	}
	var resp createResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("video create: decode response: %w", err)
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return "", fmt.Errorf("video create: api error: %s", resp.Error.Message)
	}
	if strings.TrimSpace(resp.ID) == "" {
		return "", errors.New("video create: response missing task id")
	}
	return resp.ID, nil
}

func (c *Client) waitForTask(ctx context.Context, taskID string) (string, error) {
	endpoint := c.cfg.BaseURL + tasksPath + "/" + taskID
	failures := 0
	for {
		task, err := c.queryTask(ctx, endpoint)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return "", fmt.Errorf("video poll %s: %w", taskID, ctx.Err())
			}
			failures++
			if failures >= maxConsecutivePollErrs {
				return "", fmt.Errorf("video poll %s: %w", taskID, err)
			}
		case task.Status == StatusSucceeded:
			if task.Content.VideoURL == "" {
				return "", fmt.Errorf("video poll %s: succeeded without video_url", taskID)
			}
			return task.Content.VideoURL, nil
		case task.Status == StatusFailed:
			message := ""
			if task.Error != nil {
				message = task.Error.Message
			}
			return "", &TaskFailedError{TaskID: taskID, Message: message}
		default:
			failures = 0
		}

		timer := time.NewTimer(c.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("video poll %s: %w", taskID, ctx.Err())
		case <-timer.C:
		}
	}
}

func (c *Client) queryTask(ctx context.Context, endpoint string) (taskResponse, error) {
	var task taskResponse
	body, err := c.do(ctx, http.MethodGet, endpoint, nil, "video poll")
	if err != nil {
		return task, err
	}
	if err := json.Unmarshal(body, &task); err != nil {
		return task, fmt.Errorf("video poll: decode response: %w", err)
	}
	return task, nil
}

func (c *Client) download(ctx context.Context, videoURL, outPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return fmt.Errorf("video download: new request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("video download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Op: "video download", StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("video download: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".download-*")
	if err != nil {
		return fmt.Errorf("video download: temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("video download: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("video download: close: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("video download: rename: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader, op string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: http error: %w", op, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

func encodeDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("videogen: read frame: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("videogen: frame %s is empty", filepath.Base(path))
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("videogen: frame %s is %s, not an image", filepath.Base(path), mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
