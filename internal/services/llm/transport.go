package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"framewright/internal/services"
)

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

// chatMessage content is either a string or a []contentPart.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// chatChoice also accepts the streaming "delta" shape and the legacy
// completion "text" field, which some providers return with stream=false.
type chatChoice struct {
	Message      choiceMessage `json:"message"`
	Delta        choiceMessage `json:"delta"`
	Text         string        `json:"text"`
	FinishReason string        `json:"finish_reason"`
}

type choiceMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

// content returns the first non-empty payload plus the finish reason and
// refusal seen along the way.
func (r chatResponse) content() (text, finishReason, refusal string) {
	for _, choice := range r.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if refusal == "" {
			refusal = firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal)
		}
		if text = firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); text != "" {
			return text, finishReason, refusal
		}
	}
	return "", finishReason, refusal
}

// statusError is a non-2xx reply. RetryAfter is zero when the header is absent.
type statusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// emptyContentError is a 2xx reply whose choices carry no payload.
type emptyContentError struct {
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("empty content (finish_reason=%q, refusal=%q, response_snippet=%s)", e.FinishReason, e.Refusal, e.Snippet)
}

// complete sends one JSON-mode request under the client's retry schedule.
// Failures are tagged ErrConfiguration for rejected credentials, ErrTransient
// when retryable errors outlast the budget, and ErrExternalTool otherwise.
func (c *Client) complete(ctx context.Context, op, model, system string, user any) (string, error) {
	payload := chatRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%s: encode body: %w", op, err)
	}

	sched := newSchedule(c.baseDelay, c.maxDelay)
	var (
		attempt int
		content string
	)
	operation := func() error {
		attempt++
		text, err := c.send(ctx, encoded)
		if err == nil {
			content = text
			return nil
		}
		hint, ok := retryable(ctx, err)
		if !ok {
			return backoff.Permanent(err)
		}
		sched.hint = hint
		return err
	}
	notify := func(err error, delay time.Duration) {
		if c.onRetry != nil {
			c.onRetry(attempt, delay, err)
		}
	}
	b := backoff.WithContext(backoff.WithMaxRetries(sched, uint64(c.attempts-1)), ctx)
	if err := backoff.RetryNotifyWithTimer(operation, b, notify, c.timer); err != nil {
		return "", classify(ctx, op, attempt, err)
	}
	return content, nil
}

func (c *Client) send(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
		req.Header.Set("Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &statusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("empty choices")
	}
	text, finish, refusal := decoded.content()
	if text == "" {
		return "", &emptyContentError{FinishReason: finish, Refusal: refusal, Snippet: snippet(string(raw))}
	}
	return text, nil
}

// retryable reports whether err is worth another attempt, and the delay the
// server asked for, if any.
func retryable(ctx context.Context, err error) (time.Duration, bool) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	var empty *emptyContentError
	if errors.As(err, &empty) {
		return 0, true
	}
	var status *statusError
	if errors.As(err, &status) {
		switch {
		case status.StatusCode == http.StatusRequestTimeout,
			status.StatusCode == http.StatusTooManyRequests,
			status.StatusCode >= http.StatusInternalServerError:
			return status.RetryAfter, true
		}
		return 0, false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return 0, true
	}
	return 0, false
}

func classify(ctx context.Context, op string, attempts int, err error) error {
	detail := fmt.Sprintf("%d attempt(s)", attempts)
	var status *statusError
	switch {
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", op, err)
	case errors.As(err, &status) && (status.StatusCode == http.StatusUnauthorized || status.StatusCode == http.StatusForbidden):
		return services.Wrap(services.ErrConfiguration, "", op, "credentials rejected", err)
	}
	if _, ok := retryable(ctx, err); ok {
		return services.Wrap(services.ErrTransient, "", op, detail, err)
	}
	return services.Wrap(services.ErrExternalTool, "", op, detail, err)
}

// schedule doubles its delay from base up to ceiling, except that a server
// Retry-After hint replaces the next delay once.
type schedule struct {
	base, ceiling time.Duration
	next          time.Duration
	hint          time.Duration
}

func newSchedule(base, ceiling time.Duration) *schedule {
	s := &schedule{base: max(base, 0), ceiling: ceiling}
	s.Reset()
	return s
}

func (s *schedule) Reset() {
	s.next = s.base
	s.hint = 0
}

func (s *schedule) NextBackOff() time.Duration {
	delay := s.next
	if s.hint > 0 {
		delay = s.hint
		s.hint = 0
	} else if s.next > 0 {
		s.next *= 2
	}
	if s.ceiling > 0 && delay > s.ceiling {
		delay = s.ceiling
	}
	if s.ceiling > 0 && s.next > s.ceiling {
		s.next = s.ceiling
	}
	return delay
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(max(seconds, 0)) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		return max(time.Until(when), 0)
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
