// Package pipeline runs the scrape, enrich and alert stages for monitoring profiles.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cognito.app/sentinel/common/id"
	"cognito.app/sentinel/common/logger"
	"cognito.app/sentinel/internal/alerting"
	"cognito.app/sentinel/internal/enrichment"
	"cognito.app/sentinel/internal/fetcher"
	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/store"
)

// ErrNoText is returned when a scrape completes without any extracted text.
var ErrNoText = errors.New("scrape returned no text")

// AlertNotifier fans a new alert out to the profile's channels. Failures never surface.
type AlertNotifier interface {
	Notify(ctx context.Context, alert *model.Alert, profile *model.MonitoringProfile)
}

type Stores struct {
	Profiles store.ProfileStore
	Sources  store.SourceStore
	Contents store.ContentStore
	Insights store.InsightStore
	Alerts   store.AlertStore
}

type StagesConfig struct {
	Poll   fetcher.PollConfig
	Scrape fetcher.ScrapeOptions
}

// DefaultScrape keeps an HTML snapshot and a screenshot of every monitored page.
var DefaultScrape = fetcher.ScrapeOptions{SaveHTML: true, TakeScreenshot: true}

// Stages holds the per-item pipeline steps. Each step can run on its own
// (the /api/functions endpoints) or chained by the Orchestrator.
type Stages struct {
	stores     Stores
	fetcher    fetcher.ContentFetcher
	enrichment enrichment.TextEnrichment
	notifier   AlertNotifier
	cfg        StagesConfig
	now        func() time.Time
}

func NewStages(stores Stores, f fetcher.ContentFetcher, enrich enrichment.TextEnrichment, notifier AlertNotifier, cfg StagesConfig) *Stages {
	if cfg.Scrape == (fetcher.ScrapeOptions{}) {
		cfg.Scrape = DefaultScrape
	}
	return &Stages{
		stores:     stores,
		fetcher:    f,
		enrichment: enrich,
		notifier:   notifier,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

type ScrapeResult struct {
	SourceID int64  `json:"sourceId"`
	JobID    string `json:"jobId,omitempty"`
	// Content is set when it still needs enrichment: new text, or unchanged text
	// whose earlier enrichment never produced an insight.
	Content   *model.RawContent `json:"content,omitempty"`
	Duplicate bool              `json:"duplicate"`
	Failure   FailureKind       `json:"failure,omitempty"`
	NextDueAt time.Time         `json:"nextDueAt"`
}

// ScrapeSource fetches one source, stores new content and reschedules the source.
// Every attempt moves next_scrape_due_at forward: by the type cadence on success,
// duplicate, transient or storage failure, by model.UnreachableBackoff when the
// fetch failure looks permanent. A failed attempt returns the result alongside the error.
func (s *Stages) ScrapeSource(ctx context.Context, source *model.DataSource, keywords []string) (*ScrapeResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{SourceID: &source.ID, Component: "sentinel.pipeline.scrape"})
	span := logger.StartSpan(ctx, "pipeline.scrape_source")
	defer span.End()
	ctx = span.Context()
	span.SetInt64("source.id", source.ID)
	span.SetString("source.url", source.URL)

	attemptAt := s.now()
	out := &ScrapeResult{SourceID: source.ID}

	jobID, result, err := s.fetch(ctx, source.URL, keywords)
	out.JobID = jobID
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		out.Failure = ClassifyFailure(err)
		out.NextDueAt = s.recordFailure(ctx, source, attemptAt, out.Failure, err)
		return out, fmt.Errorf("scraping %s: %w", source.URL, err)
	}

	hash := model.ContentHash(result.Text)
	out.NextDueAt = model.NextScrapeDue(source.SourceType, attemptAt)

	out.Content, out.Duplicate, err = s.storeContent(ctx, source, jobID, hash, result, attemptAt)
	if err != nil {
		span.RecordError(err)
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		// The page was fetched; a database error says nothing about the source.
		out.Failure = FailureTransient
		out.NextDueAt = s.recordFailure(ctx, source, attemptAt, FailureTransient, err)
		return out, err
	}

	if err := s.stores.Sources.RecordAttempt(ctx, source.ID, attemptAt, out.NextDueAt, nil); err != nil {
		return out, fmt.Errorf("rescheduling source: %w", err)
	}

	switch {
	case out.Duplicate && out.Content == nil:
		slog.DebugContext(ctx, "content unchanged, skipping", "hash", hash)
	case out.Duplicate:
		slog.InfoContext(ctx, "content unchanged but never enriched, retrying", "content_id", out.Content.ID)
	default:
		slog.InfoContext(ctx, "content stored",
			"content_id", out.Content.ID,
			"text_len", len(result.Text),
			"next_due_at", out.NextDueAt)
	}
	return out, nil
}

// storeContent inserts the fetched text unless its hash is already stored. Known
// content comes back only when no insight references it yet.
func (s *Stages) storeContent(ctx context.Context, source *model.DataSource, jobID, hash string, result *fetcher.Result, at time.Time) (*model.RawContent, bool, error) {
	seen, err := s.stores.Contents.LookupHash(ctx, hash)
	if err != nil {
		return nil, false, fmt.Errorf("checking content hash: %w", err)
	}
	if seen.Exists {
		if seen.Enriched {
			return nil, true, nil
		}
		content, err := s.stores.Contents.GetByID(ctx, seen.ContentID)
		if err != nil {
			return nil, true, fmt.Errorf("loading unenriched content: %w", err)
		}
		return content, true, nil
	}

	content := newRawContent(source, jobID, hash, result, at)
	switch err := s.stores.Contents.Create(ctx, content); {
	case errors.Is(err, store.ErrDuplicate):
		// Another worker stored the same text first and owns its enrichment.
		return nil, true, nil
	case err != nil:
		return nil, false, fmt.Errorf("storing content: %w", err)
	}
	return content, false, nil
}

func (s *Stages) fetch(ctx context.Context, url string, keywords []string) (string, *fetcher.Result, error) {
	job, err := s.fetcher.Scrape(ctx, url, keywords, s.cfg.Scrape)
	if err != nil {
		return "", nil, err
	}
	jobID := job.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{JobID: &jobID})

	job, err = fetcher.Await(ctx, s.fetcher, jobID, s.cfg.Poll)
	if err != nil {
		return jobID, nil, err
	}
	if job.Result == nil || strings.TrimSpace(job.Result.Text) == "" {
		return jobID, nil, ErrNoText
	}
	return jobID, job.Result, nil
}

// recordFailure reschedules a source after a failed attempt and returns the next due time.
func (s *Stages) recordFailure(ctx context.Context, source *model.DataSource, at time.Time, kind FailureKind, cause error) time.Time {
	msg := logger.Truncate(cause.Error(), 500)

	var (
		next time.Time
		err  error
	)
	if kind == FailureUnreachable {
		next = at.Add(model.UnreachableBackoff)
		err = s.stores.Sources.MarkUnreachable(ctx, source.ID, at, next, msg)
		slog.WarnContext(ctx, "source marked unreachable", "error", cause, "next_due_at", next)
	} else {
		next = model.NextScrapeDue(source.SourceType, at)
		err = s.stores.Sources.RecordAttempt(ctx, source.ID, at, next, &msg)
		slog.WarnContext(ctx, "scrape failed, retrying next cadence", "error", cause, "next_due_at", next)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to reschedule source", "error", err)
	}
	return next
}

func newRawContent(source *model.DataSource, jobID, hash string, result *fetcher.Result, at time.Time) *model.RawContent {
	contentURL := result.URL
	if contentURL == "" {
		contentURL = source.URL
	}
	metadata := result.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	content := &model.RawContent{
		ID:                id.New(),
		SourceID:          &source.ID,
		ProfileID:         source.ProfileID,
		ContentURL:        contentURL,
		ContentHash:       hash,
		ExtractedText:     result.Text,
		ExtractedMetadata: metadata,
		ScrapeJobID:       jobID,
		ScrapedAt:         at,
	}
	if result.HTMLPath != "" {
		content.HTMLSnapshotURL = logger.Ptr(result.HTMLPath)
	}
	if result.ScreenshotPath != "" {
		content.ScreenshotURL = logger.Ptr(result.ScreenshotPath)
	}
	return content
}

// ProcessContent enriches raw content and stores the insight. Embedding failures
// are logged and the insight is stored without a vector.
func (s *Stages) ProcessContent(ctx context.Context, content *model.RawContent, profile *model.MonitoringProfile) (*model.Insight, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{ContentID: &content.ID, Component: "sentinel.pipeline.process"})
	span := logger.StartSpan(ctx, "pipeline.process_content")
	defer span.End()
	ctx = span.Context()
	span.SetInt64("content.id", content.ID)

	analysis, err := s.enrichment.ProcessContent(ctx, enrichment.ContentInput{
		Text:         content.ExtractedText,
		TargetEntity: profile.TargetEntityDescription,
		Keywords:     profile.Keywords,
		Context:      contentContext(content),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("enriching content: %w", err)
	}

	embedding, err := s.enrichment.GenerateEmbedding(ctx, content.ExtractedText)
	switch {
	case errors.Is(err, enrichment.ErrEmbeddingsDisabled):
	case err != nil:
		slog.WarnContext(ctx, "embedding failed, storing insight without vector", "error", err)
		embedding = nil
	}

	insight := &model.Insight{
		ID:                     id.New(),
		RawContentID:           content.ID,
		ProfileID:              profile.ID,
		SummaryText:            analysis.Summary,
		Sentiment:              analysis.Sentiment,
		IdentifiedEntities:     analysis.Entities,
		TopicClassification:    analysis.Topics,
		CrisisOpportunityFlag:  analysis.CrisisOpportunityFlag,
		CrisisOpportunityScore: analysis.CrisisOpportunityScore,
		PotentialImpact:        analysis.PotentialImpact,
		LLMPrompt:              analysis.Prompt,
		LLMResponse:            analysis.RawResponse,
		LLMModel:               analysis.Model,
		Embedding:              embedding,
	}
	if err := s.stores.Insights.Create(ctx, insight); err != nil {
		return nil, fmt.Errorf("storing insight: %w", err)
	}

	slog.InfoContext(ctx, "insight stored",
		"insight_id", insight.ID,
		"flag", insight.CrisisOpportunityFlag,
		"score", insight.CrisisOpportunityScore,
		"sentiment", insight.Sentiment.Label)
	return insight, nil
}

func contentContext(content *model.RawContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source URL: %s", content.ContentURL)
	if title, ok := content.ExtractedMetadata["title"].(string); ok && title != "" {
		fmt.Fprintf(&b, "\nTitle: %s", title)
	}
	fmt.Fprintf(&b, "\nScraped at: %s", content.ScrapedAt.Format(time.RFC3339))
	return b.String()
}

type EvaluateResult struct {
	Decision alerting.Decision `json:"decision"`
	Alert    *model.Alert      `json:"alert,omitempty"`
}

// EvaluateInsight applies the alert rules to an insight and, when they fire,
// stores a new alert and notifies the profile's channels.
func (s *Stages) EvaluateInsight(ctx context.Context, insight *model.Insight, profile *model.MonitoringProfile) (*EvaluateResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{InsightID: &insight.ID, Component: "sentinel.pipeline.evaluate"})
	span := logger.StartSpan(ctx, "pipeline.evaluate_insight")
	defer span.End()
	ctx = span.Context()

	decision := alerting.Decide(alerting.InputFor(insight, profile.AlertConfig))
	out := &EvaluateResult{Decision: decision}
	if !decision.Fire {
		slog.DebugContext(ctx, "below alert threshold", "threshold", decision.Threshold)
		return out, nil
	}

	alert := &model.Alert{
		ID:          id.New(),
		ProfileID:   profile.ID,
		InsightID:   insight.ID,
		Severity:    decision.Severity,
		Title:       alerting.Title(insight.CrisisOpportunityFlag, decision.Severity, profile.Name),
		Description: alerting.Description(insight),
		Status:      model.AlertStatusNew,
	}
	if err := s.stores.Alerts.Create(ctx, alert); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("storing alert: %w", err)
	}
	out.Alert = alert

	ctx = logger.WithLogFields(ctx, logger.LogFields{AlertID: &alert.ID})
	slog.InfoContext(ctx, "alert created", "severity", alert.Severity, "title", alert.Title)

	s.notifier.Notify(ctx, alert, profile)
	return out, nil
}
