package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"cognito.app/sentinel/common/logger"
	"cognito.app/sentinel/internal/discovery"
	"cognito.app/sentinel/internal/model"
)

// ErrCycleInProgress is returned by RunCycle while another cycle is running in this process.
var ErrCycleInProgress = errors.New("monitoring cycle already in progress")

// SourceDiscoverer is the slice of discovery the orchestrator needs.
type SourceDiscoverer interface {
	Discover(ctx context.Context, profileID int64, keywords, excludedURLs []string) (*discovery.Result, error)
}

type OrchestratorConfig struct {
	ProfileInterval       time.Duration // minimum gap between runs of one profile; default 1h
	ClaimLease            time.Duration // how long a claimed profile stays invisible to other workers; default 30m
	BatchSize             int           // profiles claimed per cycle; default 10
	MaxConcurrentProfiles int           // default 1, sequential
}

// CycleStats summarizes one monitoring cycle.
type CycleStats struct {
	StartedAt         time.Time `json:"startedAt"`
	FinishedAt        time.Time `json:"finishedAt"`
	ProfilesProcessed int       `json:"profilesProcessed"`
	SourcesDiscovered int       `json:"sourcesDiscovered"`
	SourcesScraped    int       `json:"sourcesScraped"`
	SourcesFailed     int       `json:"sourcesFailed"`
	DuplicatesSkipped int       `json:"duplicatesSkipped"`
	InsightsCreated   int       `json:"insightsCreated"`
	AlertsCreated     int       `json:"alertsCreated"`
}

func (s *CycleStats) add(p profileStats) {
	s.ProfilesProcessed++
	s.SourcesDiscovered += p.discovered
	s.SourcesScraped += p.scraped
	s.SourcesFailed += p.failed
	s.DuplicatesSkipped += p.duplicates
	s.InsightsCreated += p.insights
	s.AlertsCreated += p.alerts
}

type profileStats struct {
	discovered int
	scraped    int
	failed     int
	duplicates int
	insights   int
	alerts     int
}

type Orchestrator struct {
	stores     Stores
	stages     *Stages
	discoverer SourceDiscoverer
	cfg        OrchestratorConfig
	running    atomic.Bool
	now        func() time.Time
}

// NewOrchestrator wires the stages into a cycle. discoverer may be nil to disable auto-discovery.
func NewOrchestrator(stores Stores, stages *Stages, discoverer SourceDiscoverer, cfg OrchestratorConfig) *Orchestrator {
	if cfg.ProfileInterval <= 0 {
		cfg.ProfileInterval = time.Hour
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = 30 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.MaxConcurrentProfiles <= 0 {
		cfg.MaxConcurrentProfiles = 1
	}
	return &Orchestrator{
		stores:     stores,
		stages:     stages,
		discoverer: discoverer,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RunCycle claims due profiles and runs every due source of each through the pipeline.
// Per-source and per-profile failures are logged and counted, never returned.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleStats, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer o.running.Store(false)

	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "sentinel.pipeline.cycle"})
	span := logger.StartSpan(ctx, "pipeline.run_cycle")
	defer span.End()
	ctx = span.Context()

	stats := &CycleStats{StartedAt: o.now()}

	profiles, err := o.stores.Profiles.ClaimDue(ctx, o.cfg.ProfileInterval, o.cfg.ClaimLease, o.cfg.BatchSize)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("claiming due profiles: %w", err)
	}
	slog.InfoContext(ctx, "monitoring cycle started", "profiles", len(profiles))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.MaxConcurrentProfiles)

	for i := range profiles {
		profile := &profiles[i]
		g.Go(func() error {
			ps := o.runProfile(gctx, profile)
			mu.Lock()
			stats.add(ps)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	stats.FinishedAt = o.now()
	span.SetInt64("cycle.profiles", int64(stats.ProfilesProcessed))
	span.SetInt64("cycle.alerts", int64(stats.AlertsCreated))

	slog.InfoContext(ctx, "monitoring cycle finished",
		"profiles", stats.ProfilesProcessed,
		"scraped", stats.SourcesScraped,
		"failed", stats.SourcesFailed,
		"duplicates", stats.DuplicatesSkipped,
		"insights", stats.InsightsCreated,
		"alerts", stats.AlertsCreated,
		"duration_ms", stats.FinishedAt.Sub(stats.StartedAt).Milliseconds())

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (o *Orchestrator) runProfile(ctx context.Context, profile *model.MonitoringProfile) profileStats {
	ctx = logger.WithLogFields(ctx, logger.LogFields{ProfileID: &profile.ID, UserID: &profile.UserID})
	span := logger.StartSpan(ctx, "pipeline.run_profile")
	defer span.End()
	ctx = span.Context()

	var ps profileStats

	if profile.SourceConfig.AutoDiscoverSources && o.discoverer != nil {
		res, err := o.discoverer.Discover(ctx, profile.ID, nil, profile.SourceConfig.ExcludedURLs)
		if err != nil {
			slog.WarnContext(ctx, "source discovery failed", "error", err)
		} else {
			ps.discovered = len(res.Added)
		}
	}

	now := o.now()
	sources, err := o.stores.Sources.ListDue(ctx, profile.ID, now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list due sources", "error", err)
		o.releaseClaim(ctx, profile.ID)
		return ps
	}
	sources = lo.Filter(sources, func(s model.DataSource, _ int) bool { return s.IsDue(now) })

	for i := range sources {
		if ctx.Err() != nil {
			break
		}
		o.runSource(ctx, profile, &sources[i], &ps)
	}

	if ctx.Err() != nil {
		o.releaseClaim(ctx, profile.ID)
		return ps
	}

	if err := o.stores.Profiles.MarkRun(ctx, profile.ID, o.now()); err != nil {
		slog.ErrorContext(ctx, "failed to stamp profile run", "error", err)
		o.releaseClaim(ctx, profile.ID)
	}

	slog.InfoContext(ctx, "profile processed",
		"sources", len(sources),
		"insights", ps.insights,
		"alerts", ps.alerts)
	return ps
}

func (o *Orchestrator) runSource(ctx context.Context, profile *model.MonitoringProfile, source *model.DataSource, ps *profileStats) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{SourceID: &source.ID})

	scraped, err := o.stages.ScrapeSource(ctx, source, profile.Keywords)
	if err != nil {
		ps.failed++
		slog.WarnContext(ctx, "source scrape failed", "error", err, "url", source.URL)
		return
	}
	ps.scraped++
	if scraped.Duplicate {
		ps.duplicates++
	}
	if scraped.Content == nil {
		return
	}

	insight, err := o.stages.ProcessContent(ctx, scraped.Content, profile)
	if err != nil {
		ps.failed++
		slog.ErrorContext(ctx, "content processing failed", "error", err)
		return
	}
	ps.insights++

	evaluated, err := o.stages.EvaluateInsight(ctx, insight, profile)
	if err != nil {
		ps.failed++
		slog.ErrorContext(ctx, "alert evaluation failed", "error", err)
		return
	}
	if evaluated.Alert != nil {
		ps.alerts++
	}
}

// releaseClaim frees the lease so the profile is picked up again without waiting for it to expire.
func (o *Orchestrator) releaseClaim(ctx context.Context, profileID int64) {
	if err := o.stores.Profiles.ReleaseClaim(context.WithoutCancel(ctx), profileID); err != nil {
		slog.ErrorContext(ctx, "failed to release profile claim", "error", err)
	}
}
