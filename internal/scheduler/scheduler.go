// Package scheduler runs periodic jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"cognito.app/sentinel/common/logger"
)

// Job is one scheduled unit of work. ctx carries the per-run timeout.
type Job func(ctx context.Context) error

type Config struct {
	Location   *time.Location
	RunTimeout time.Duration
}

type Scheduler struct {
	cron    *cron.Cron
	cfg     Config
	baseCtx context.Context
	cancel  context.CancelFunc

	mu   sync.Mutex
	jobs map[string]cron.EntryID
}

// New creates a scheduler. Overlapping runs of the same job are skipped, not queued.
func New(cfg Config) *Scheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Minute
	}

	log := cronLogger{}
	c := cron.New(
		cron.WithLocation(cfg.Location),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    c,
		cfg:     cfg,
		baseCtx: ctx,
		cancel:  cancel,
		jobs:    make(map[string]cron.EntryID),
	}
}

// AddJob schedules job under name. spec uses the standard five-field cron format.
func (s *Scheduler) AddJob(name, spec string, job Job) error {
	entryID, err := s.cron.AddFunc(spec, func() {
		s.run(name, job)
	})
	if err != nil {
		return fmt.Errorf("scheduling job %s: %w", name, err)
	}

	s.mu.Lock()
	s.jobs[name] = entryID
	s.mu.Unlock()

	slog.Info("scheduled job added", "job", name, "schedule", spec)
	return nil
}

func (s *Scheduler) run(name string, job Job) {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.cfg.RunTimeout)
	defer cancel()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "sentinel.scheduler",
	})

	slog.InfoContext(ctx, "scheduled job starting", "job", name)
	start := time.Now()

	if err := job(ctx); err != nil {
		slog.ErrorContext(ctx, "scheduled job failed",
			"job", name,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())
		return
	}

	slog.InfoContext(ctx, "scheduled job completed",
		"job", name,
		"duration_ms", time.Since(start).Milliseconds())
}

// Next returns the next activation time of a job, or false if it is unknown.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	entry := s.cron.Entry(id)
	return entry.Next, entry.Valid()
}

func (s *Scheduler) Start() {
	slog.Info("scheduler starting")
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	slog.Info("scheduler stopping")
	done := s.cron.Stop()
	s.cancel()

	select {
	case <-done.Done():
	case <-ctx.Done():
		slog.Warn("scheduler stop timed out with jobs still running")
	}
}

// cronLogger routes cron's internal logging to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
