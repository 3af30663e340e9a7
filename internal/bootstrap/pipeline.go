// Package bootstrap assembles the monitoring pipeline from configuration. The
// server and the worker both build it: the server to expose stage functions, the
// worker to run scheduled cycles.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"cognito.app/sentinel/common/llm"
	"cognito.app/sentinel/core/config"
	"cognito.app/sentinel/internal/blob"
	"cognito.app/sentinel/internal/discovery"
	"cognito.app/sentinel/internal/enrichment"
	"cognito.app/sentinel/internal/fetcher"
	"cognito.app/sentinel/internal/notify"
	"cognito.app/sentinel/internal/pipeline"
	"cognito.app/sentinel/internal/queue"
	"cognito.app/sentinel/internal/realtime"
	"cognito.app/sentinel/internal/store"
)

// schemaDimensions is the width of the vector column in schema.sql.
const schemaDimensions = 1536

type Pipeline struct {
	Stages       *pipeline.Stages
	Orchestrator *pipeline.Orchestrator
	Discoverer   *discovery.Discoverer
	Notifier     *notify.Notifier

	provider fetcher.Provider
}

// Close releases the fetcher's browser or HTTP resources.
func (p *Pipeline) Close() error {
	return p.provider.Close()
}

func NewPipeline(cfg config.Config, stores *store.Stores, redisClient redis.UniversalClient) (*Pipeline, error) {
	blobs, err := blob.NewLocalStore(cfg.Blob.Dir, cfg.Blob.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening blob store: %w", err)
	}

	provider, err := fetcher.New(cfg.Fetcher, cfg.Monitoring.MaxDiscoveryResults)
	if err != nil {
		return nil, fmt.Errorf("creating fetcher: %w", err)
	}
	contentFetcher := fetcher.NewSnapshotting(provider, blobs)

	llmClient, err := llm.New(llm.Config{
		Provider:  cfg.LLM.Provider,
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
	})
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("creating llm client: %w", err)
	}

	var embedder llm.Embedder
	switch {
	case !cfg.Embedding.Enabled():
		slog.Warn("embeddings disabled, insights will be stored without vectors")
	case cfg.Embedding.Dimensions != schemaDimensions:
		_ = provider.Close()
		return nil, fmt.Errorf("embedding dimensions %d do not match the schema (%d)", cfg.Embedding.Dimensions, schemaDimensions)
	default:
		embedder, err = llm.NewEmbedder(llm.EmbedderConfig{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
		if err != nil {
			_ = provider.Close()
			return nil, fmt.Errorf("creating embedder: %w", err)
		}
	}

	enrich := enrichment.New(llmClient, embedder, enrichment.Options{})

	// Email and webhook deliveries go through the Redis stream so the worker can retry them.
	notifier := notify.NewNotifier(
		realtime.NewPublisher(redisClient, cfg.Redis.ChannelPrefix),
		queue.NewRedisProducer(redisClient, cfg.Redis.DeliveryStream),
		stores.Users(),
		cfg.Notify.DashboardURL,
	)

	poll := fetcher.PollConfig{
		Initial: cfg.Monitoring.PollInitial,
		Max:     cfg.Monitoring.PollMax,
		Timeout: cfg.Monitoring.PollTimeout,
	}

	pipelineStores := pipeline.Stores{
		Profiles: stores.Profiles(),
		Sources:  stores.Sources(),
		Contents: stores.Contents(),
		Insights: stores.Insights(),
		Alerts:   stores.Alerts(),
	}

	stages := pipeline.NewStages(pipelineStores, contentFetcher, enrich, notifier, pipeline.StagesConfig{
		Poll:   poll,
		Scrape: pipeline.DefaultScrape,
	})

	discoverer := discovery.New(stores.Profiles(), stores.Sources(), contentFetcher, enrich, discovery.Config{
		Poll:          poll,
		MaxCandidates: cfg.Monitoring.MaxDiscoveryResults,
	})

	orchestrator := pipeline.NewOrchestrator(pipelineStores, stages, discoverer, pipeline.OrchestratorConfig{
		ProfileInterval:       cfg.Monitoring.ProfileInterval,
		ClaimLease:            cfg.Monitoring.ClaimLease,
		BatchSize:             cfg.Monitoring.ProfileBatchSize,
		MaxConcurrentProfiles: cfg.Monitoring.MaxConcurrentProfiles,
	})

	slog.Info("pipeline assembled",
		"fetcher", cfg.Fetcher.Provider,
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"embeddings", embedder != nil)

	return &Pipeline{
		Stages:       stages,
		Orchestrator: orchestrator,
		Discoverer:   discoverer,
		Notifier:     notifier,
		provider:     provider,
	}, nil
}
