package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
)

// Provider constants for LLM provider selection.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds LLM client configuration.
type Config struct {
	Provider  string // "openai" or "anthropic"
	APIKey    string // Required: API key for the provider
	BaseURL   string // Optional: custom API endpoint
	Model     string
	MaxTokens int // Default completion budget when a request sets none
}

// New creates a structured-output Client for cfg.Provider. Defaults to OpenAI.
func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	switch cfg.Provider {
	case "", ProviderOpenAI:
		return newOpenAIClient(cfg), nil
	case ProviderAnthropic:
		return newAnthropicClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// GenerateSchema reflects a strict JSON schema for T.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

func Temp(t float64) *float64 {
	return &t
}

func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.DebugContext(ctx, "llm error not retryable: context cancelled or deadline exceeded")
		return false
	}

	statusCode := 0
	var openaiErr *openai.Error
	var anthropicErr *anthropic.Error
	switch {
	case errors.As(err, &openaiErr):
		statusCode = openaiErr.StatusCode
	case errors.As(err, &anthropicErr):
		statusCode = anthropicErr.StatusCode
	default:
		// Network errors (no API response) are generally retryable
		slog.WarnContext(ctx, "llm network error, will retry", "error", err)
		return true
	}

	switch {
	case statusCode == 429:
		slog.WarnContext(ctx, "llm rate limited, will retry", "status_code", statusCode)
		return true
	case statusCode >= 500:
		slog.WarnContext(ctx, "llm server error, will retry", "status_code", statusCode)
		return true
	default:
		slog.ErrorContext(ctx, "llm client error, not retryable", "status_code", statusCode)
		return false
	}
}
