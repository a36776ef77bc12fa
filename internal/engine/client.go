// Package engine wraps the external LLM capability behind a structured-output
// client. Callers hand it a prompt and a target struct; anything the model
// returns that cannot be decoded into the target is an upstream failure, never
// a partially-trusted result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// ErrUpstream marks engine transport failures, timeouts, and unparseable
// responses. Callers branch on it with errors.Is to distinguish upstream
// faults from their own input errors.
var ErrUpstream = errors.New("engine upstream failure")

// Client generates a structured response for a prompt, decoding the engine's
// JSON output into target.
type Client interface {
	GenerateStructured(ctx context.Context, prompt string, target any) error
}

// Config for the langchain-backed client.
type Config struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// LangchainClient implements Client on top of langchaingo's Google AI backend.
type LangchainClient struct {
	llm     llms.Model
	timeout time.Duration
}

// New initializes the LLM connection. The API key is required; model and
// token limits fall back to safe defaults.
func New(ctx context.Context, cfg Config) (*LangchainClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("engine API key is required")
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}
	opts := []googleai.Option{
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultModel(model),
		googleai.WithDefaultMaxTokens(maxTokens),
	}
	if cfg.Temperature > 0 {
		opts = append(opts, googleai.WithDefaultTemperature(cfg.Temperature))
	}
	llm, err := googleai.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	log.Debug().Str("model", model).Int("max_tokens", maxTokens).Msg("engine client initialized")
	return &LangchainClient{llm: llm, timeout: timeout}, nil
}

// GenerateStructured calls the model with a bounded timeout and decodes the
// response into target. The core never retries; a failed call is reported once
// and retry is the caller's decision.
func (c *LangchainClient) GenerateStructured(ctx context.Context, prompt string, target any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt)
	if err != nil {
		log.Error().Err(err).Msg("LLM call failed")
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if err := DecodeStrict(raw, target); err != nil {
		log.Error().Err(err).Int("response_bytes", len(raw)).Msg("LLM response failed strict decode")
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return nil
}
