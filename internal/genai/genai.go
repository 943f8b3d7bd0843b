// Package genai provides language model operations over an OpenAI-compatible
// chat completions API. The default configuration targets Gemini through its
// compatibility endpoint.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/digicsc/sevaflow/internal/models"
)

// Default configuration for the Gemini compatibility endpoint.
const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultModel   = "gemini-2.0-flash"
	// DefaultCallTimeout is the hard budget for a single completion call.
	DefaultCallTimeout = 15 * time.Second
	// maxAttempts bounds retries against transient provider failures.
	maxAttempts = 3
)

// ErrNoChoicesReturned indicates the model responded without any choices.
var ErrNoChoicesReturned = errors.New("no choices returned")

// ClientInterface defines the language model operations the dialogue engine
// depends on.
type ClientInterface interface {
	// GeneratePrompt generates a completion for the given system and user
	// prompts. Implementations retry transient failures internally; a
	// returned error wraps models.ErrModelUnavailable once retries are
	// exhausted.
	GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// chatService defines the minimal chat completions surface used by Client.
type chatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client wraps an OpenAI-compatible chat completions service.
type Client struct {
	chat        chatService
	model       string
	callTimeout time.Duration
}

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey      string
	BaseURL     string
	Model       string
	CallTimeout time.Duration
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL overrides the completion endpoint base URL.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithCallTimeout overrides the per-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Opts) { o.CallTimeout = d }
}

// NewClient initializes a GenAI client. The API key falls back to the
// GEMINI_API_KEY environment variable when not supplied as an option.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key not set")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	slog.Debug("genai.NewClient: initializing client", "baseURL", cfg.BaseURL, "model", cfg.Model, "callTimeout", cfg.CallTimeout)

	cli := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
	)
	return &Client{
		chat:        &cli.Chat.Completions,
		model:       cfg.Model,
		callTimeout: cfg.CallTimeout,
	}, nil
}

// GeneratePrompt generates a completion for the provided system and user
// prompts. Transient failures are retried twice with exponential spacing
// (2s, then 4s) before the call degrades to models.ErrModelUnavailable.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := retryBackoff(attempt)
			slog.Debug("genai.GeneratePrompt: retrying after backoff", "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", models.ErrModelUnavailable, ctx.Err())
			case <-time.After(backoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		resp, err := c.chat.New(callCtx, params)
		cancel()
		if err != nil {
			slog.Warn("genai.GeneratePrompt: completion call failed", "attempt", attempt, "error", err)
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			slog.Warn("genai.GeneratePrompt: completion returned no choices", "attempt", attempt)
			lastErr = ErrNoChoicesReturned
			continue
		}
		slog.Debug("genai.GeneratePrompt succeeded", "attempt", attempt, "responseLength", len(resp.Choices[0].Message.Content))
		return resp.Choices[0].Message.Content, nil
	}

	slog.Error("genai.GeneratePrompt: all attempts exhausted", "attempts", maxAttempts, "error", lastErr)
	return "", fmt.Errorf("%w: %v", models.ErrModelUnavailable, lastErr)
}

// retryBackoff returns the pre-attempt delay: 2s, 4s, 8s... capped at 10s.
func retryBackoff(attempt int) time.Duration {
	backoff := time.Duration(1<<attempt) * time.Second
	if backoff > 10*time.Second {
		backoff = 10 * time.Second
	}
	return backoff
}
