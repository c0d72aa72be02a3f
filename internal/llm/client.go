// Package llm talks to an OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mind-engage/mindengage-qbank/internal/prompt"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("openai integration is not configured")
	ErrUnavailable   = errors.New("openai request failed")
	ErrNoContent     = errors.New("openai returned no content")
	ErrTimeout       = errors.New("openai request timed out")
)

const DefaultTimeout = 60 * time.Second

type Config struct {
	APIKey  string
	BaseURL string // empty means api.openai.com
	Model   string
	Timeout time.Duration
}

type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func New(cfg Config) *Client {
	c := &Client{model: cfg.Model, timeout: cfg.Timeout}
	if c.model == "" {
		c.model = openai.GPT4oMini
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if cfg.APIKey == "" {
		return c
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	c.client = openai.NewClientWithConfig(oc)
	return c
}

func (c *Client) Enabled() bool { return c != nil && c.client != nil }

func (c *Client) Model() string { return c.model }

// fixedTemperature lists models that reject any temperature but the default.
func fixedTemperature(model string) bool {
	return strings.HasPrefix(model, "gpt-5-mini") || strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3")
}

// Complete sends one system+user exchange in JSON mode and returns the first
// choice with surrounding code fences removed.
func (c *Client) Complete(ctx context.Context, m prompt.Messages) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: m.System},
			{Role: openai.ChatMessageRoleUser, Content: m.User},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}
	if !fixedTemperature(c.model) {
		req.Temperature = 0.7
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	VerboseLog("llm: request model=%s system=%d chars user=%d chars", c.model, len(m.System), len(m.User))
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classify(ctx, err)
	}
	VerboseLog("llm: response in %s, %d choices", time.Since(start).Round(time.Millisecond), len(resp.Choices))

	if len(resp.Choices) == 0 {
		return "", ErrNoContent
	}
	out := StripFences(resp.Choices[0].Message.Content)
	if out == "" {
		return "", ErrNoContent
	}
	return out, nil
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 408 || apiErr.HTTPStatusCode == 504 {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, apiErr.HTTPStatusCode, apiErr.Message)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

// StripFences trims whitespace and a markdown code fence (```json or ```)
// wrapped around s.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimPrefix(s, "JSON")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Title asks the model for a passage title. Callers fall back to a
// content-derived title on error.
func (c *Client) Title(ctx context.Context, content string) (string, error) {
	raw, err := c.Complete(ctx, prompt.BuildTitle(content))
	if err != nil {
		return "", err
	}
	var out struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return "", fmt.Errorf("decode title: %w", err)
	}
	t := strings.TrimSpace(out.Title)
	if t == "" {
		return "", errors.New("generated title is empty")
	}
	return t, nil
}
