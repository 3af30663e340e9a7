// Package discovery finds new candidate sources for a profile and keeps the relevant ones.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"

	"cognito.app/sentinel/common/id"
	"cognito.app/sentinel/common/logger"
	"cognito.app/sentinel/internal/enrichment"
	"cognito.app/sentinel/internal/fetcher"
	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/store"
)

// RelevanceEvaluator is the slice of enrichment discovery needs.
type RelevanceEvaluator interface {
	EvaluateSourceRelevance(ctx context.Context, in enrichment.RelevanceInput) (*enrichment.Relevance, error)
}

type Config struct {
	Poll          fetcher.PollConfig
	MaxCandidates int // candidates probed per run; default 10
}

// Result summarizes one discovery run.
type Result struct {
	Candidates  int                `json:"candidates"`
	Added       []model.DataSource `json:"added"`
	Irrelevant  int                `json:"irrelevant"`
	Unavailable int                `json:"unavailable"`
	Failed      int                `json:"failed"`
}

type Discoverer struct {
	profiles  store.ProfileStore
	sources   store.SourceStore
	fetcher   fetcher.ContentFetcher
	relevance RelevanceEvaluator
	cfg       Config
	now       func() time.Time
}

func New(profiles store.ProfileStore, sources store.SourceStore, f fetcher.ContentFetcher, relevance RelevanceEvaluator, cfg Config) *Discoverer {
	if cfg.MaxCandidates <= 0 {
		cfg.MaxCandidates = 10
	}
	return &Discoverer{
		profiles:  profiles,
		sources:   sources,
		fetcher:   f,
		relevance: relevance,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Discover searches for new sources for profileID and registers the relevant ones.
// Empty discoveryKeywords fall back to the profile's configuration. A missing
// profile returns store.ErrNotFound; per-candidate failures are logged and counted.
func (d *Discoverer) Discover(ctx context.Context, profileID int64, discoveryKeywords, excludedURLs []string) (*Result, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ProfileID: &profileID,
		Component: "sentinel.discovery",
	})

	profile, err := d.profiles.GetByID(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	existing, err := d.sources.ListByProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}

	keywords := discoveryKeywords
	if len(keywords) == 0 {
		keywords = profile.DiscoveryKeywords()
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("no discovery keywords for profile %d", profileID)
	}

	excluded := knownURLs(existing, excludedURLs, profile.SourceConfig.ExcludedURLs)

	candidates, err := d.fetcher.DiscoverSources(ctx, keywords, excluded)
	if err != nil {
		return nil, fmt.Errorf("discovering sources: %w", err)
	}

	candidates = filterCandidates(candidates, excluded, profile.SourceConfig.BlockedDomains)
	if len(candidates) > d.cfg.MaxCandidates {
		candidates = candidates[:d.cfg.MaxCandidates]
	}

	slog.InfoContext(ctx, "discovery candidates found",
		"keywords", keywords,
		"candidates", len(candidates),
		"excluded", len(excluded))

	result := &Result{Candidates: len(candidates), Added: []model.DataSource{}}
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		source, outcome, err := d.evaluate(ctx, profile, candidate)
		switch outcome {
		case outcomeAdded:
			result.Added = append(result.Added, *source)
		case outcomeIrrelevant:
			result.Irrelevant++
		case outcomeUnavailable:
			result.Unavailable++
		case outcomeFailed:
			result.Failed++
			slog.WarnContext(ctx, "discovery candidate failed", "url", candidate, "error", err)
		}
	}

	slog.InfoContext(ctx, "discovery completed",
		"added", len(result.Added),
		"irrelevant", result.Irrelevant,
		"unavailable", result.Unavailable,
		"failed", result.Failed)

	return result, nil
}

type outcome int

const (
	outcomeAdded outcome = iota
	outcomeIrrelevant
	outcomeUnavailable
	outcomeFailed
)

func (d *Discoverer) evaluate(ctx context.Context, profile *model.MonitoringProfile, candidate string) (*model.DataSource, outcome, error) {
	job, err := d.fetcher.Scrape(ctx, candidate, profile.Keywords, fetcher.QuickScrape)
	if err != nil {
		return nil, outcomeFailed, fmt.Errorf("submitting probe: %w", err)
	}

	job, err = fetcher.Await(ctx, d.fetcher, job.ID, d.cfg.Poll)
	if err != nil || job.Status != fetcher.JobCompleted || job.Result == nil {
		slog.DebugContext(ctx, "discovery probe did not complete", "url", candidate, "error", err)
		return nil, outcomeUnavailable, nil
	}

	verdict, err := d.relevance.EvaluateSourceRelevance(ctx, enrichment.RelevanceInput{
		URL:          candidate,
		Content:      job.Result.Text,
		TargetEntity: profile.TargetEntityDescription,
		IndustryTags: profile.IndustryTags,
	})
	if err != nil {
		return nil, outcomeFailed, fmt.Errorf("evaluating relevance: %w", err)
	}
	if !verdict.IsRelevant {
		slog.DebugContext(ctx, "discovery candidate not relevant",
			"url", candidate,
			"confidence", verdict.Confidence,
			"reasoning", verdict.Reasoning)
		return nil, outcomeIrrelevant, nil
	}

	now := d.now()
	source := &model.DataSource{
		ID:                id.New(),
		ProfileID:         &profile.ID,
		URL:               candidate,
		SourceType:        model.ClassifySourceType(candidate),
		DiscoveredByAgent: true,
		CredibilityScore:  model.DiscoveredCredibility,
		Status:            model.SourceStatusActive,
		NextScrapeDueAt:   &now,
	}
	if err := d.sources.Create(ctx, source); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, outcomeIrrelevant, nil
		}
		return nil, outcomeFailed, fmt.Errorf("creating source: %w", err)
	}

	slog.InfoContext(ctx, "discovered source added",
		"url", candidate,
		"source_type", source.SourceType,
		"confidence", verdict.Confidence)
	return source, outcomeAdded, nil
}

// knownURLs is the normalized union of existing source URLs and explicit exclusions.
func knownURLs(existing []model.DataSource, excluded ...[]string) []string {
	urls := lo.Map(existing, func(s model.DataSource, _ int) string { return s.URL })
	urls = append(urls, lo.Flatten(excluded)...)
	urls = lo.Map(urls, func(u string, _ int) string { return model.NormalizeURL(u) })
	return lo.Uniq(lo.Compact(urls))
}

func filterCandidates(candidates, excluded, blockedDomains []string) []string {
	skip := lo.SliceToMap(excluded, func(u string) (string, struct{}) { return u, struct{}{} })
	seen := make(map[string]struct{}, len(candidates))

	return lo.Filter(candidates, func(c string, _ int) bool {
		norm := model.NormalizeURL(c)
		if _, ok := skip[norm]; ok {
			return false
		}
		if _, ok := seen[norm]; ok {
			return false
		}
		seen[norm] = struct{}{}
		return !hostBlocked(model.Hostname(c), blockedDomains)
	})
}

// hostBlocked matches host against blocked domains, including their subdomains.
func hostBlocked(host string, blocked []string) bool {
	return lo.ContainsBy(blocked, func(domain string) bool {
		domain = model.Hostname("https://" + domain)
		return domain != "" && (host == domain || strings.HasSuffix(host, "."+domain))
	})
}
