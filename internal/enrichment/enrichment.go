// Package enrichment turns scraped text into structured insights with an LLM.
package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cognito.app/sentinel/common/llm"
	"cognito.app/sentinel/internal/model"
)

// ErrEmbeddingsDisabled is returned by GenerateEmbedding when no embedder is configured.
var ErrEmbeddingsDisabled = errors.New("embeddings disabled")

const (
	processTemperature   = 0.3
	relevanceTemperature = 0.1

	// NoSummary replaces a summary the model did not return.
	NoSummary = "No summary available"
)

type ContentInput struct {
	Text         string
	TargetEntity string
	Keywords     []string
	Context      string
}

// Analysis is a structured read of one piece of content plus the raw exchange for audit.
type Analysis struct {
	Summary                string
	Sentiment              model.Sentiment
	Entities               []string
	Topics                 []string
	CrisisOpportunityFlag  model.Flag
	CrisisOpportunityScore float64
	PotentialImpact        string

	Prompt      string
	RawResponse string
	Model       string
}

type RelevanceInput struct {
	URL          string
	Content      string
	TargetEntity string
	IndustryTags []string
}

type Relevance struct {
	IsRelevant bool    `json:"isRelevant"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// TextEnrichment is the contract the pipeline and discovery depend on.
type TextEnrichment interface {
	ProcessContent(ctx context.Context, in ContentInput) (*Analysis, error)
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	EvaluateSourceRelevance(ctx context.Context, in RelevanceInput) (*Relevance, error)
}

type Options struct {
	MaxAttempts   int           // LLM attempts for retryable errors; default 3
	RetryDelay    time.Duration // first backoff step; doubles per attempt; default 1s
	MaxInputChars int           // content is truncated beyond this; default 12000
}

type Service struct {
	llm      llm.Client
	embedder llm.Embedder
	opts     Options
}

// New creates a Service. embedder may be nil, in which case insights are stored without vectors.
func New(client llm.Client, embedder llm.Embedder, opts Options) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = 12000
	}
	return &Service{llm: client, embedder: embedder, opts: opts}
}

var _ TextEnrichment = (*Service)(nil)

func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, ErrEmbeddingsDisabled
	}
	vector, err := s.embedder.Embed(ctx, truncate(text, s.opts.MaxInputChars))
	if err != nil {
		return nil, fmt.Errorf("generating embedding: %w", err)
	}
	return vector, nil
}

// chat retries retryable LLM errors with exponential backoff.
func (s *Service) chat(ctx context.Context, stage string, req llm.Request, result any) (*llm.Response, error) {
	var (
		resp *llm.Response
		err  error
	)
	for attempt := 0; attempt < s.opts.MaxAttempts; attempt++ {
		resp, err = s.llm.Chat(ctx, req, result)
		if err == nil {
			return resp, nil
		}
		if !llm.IsRetryable(ctx, err) || attempt == s.opts.MaxAttempts-1 {
			break
		}
		slog.WarnContext(ctx, "llm call retry", "stage", stage, "attempt", attempt+1, "error", err)

		timer := time.NewTimer(s.opts.RetryDelay << attempt)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return nil, fmt.Errorf("%s: %w", stage, err)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
