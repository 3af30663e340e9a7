package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

type EmbedderConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

type openaiEmbedder struct {
	openai     openai.Client
	model      string
	dimensions int
}

// NewEmbedder creates an Embedder backed by an OpenAI-compatible embeddings endpoint.
func NewEmbedder(cfg EmbedderConfig) (Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = string(openai.EmbeddingModelTextEmbedding3Small)
	}

	return &openaiEmbedder{
		openai:     openai.NewClient(opts...),
		model:      model,
		dimensions: cfg.Dimensions,
	}, nil
}

func (e *openaiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model:          openai.EmbeddingModel(e.model),
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	start := time.Now()
	resp, err := e.openai.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	slog.DebugContext(ctx, "embedding generated",
		"model", e.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens)

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}

	vector := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float32(v)
	}
	return vector, nil
}

func (e *openaiEmbedder) Dimensions() int {
	return e.dimensions
}
