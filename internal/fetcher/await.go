package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type PollConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Timeout    time.Duration
}

func (c PollConfig) withDefaults() PollConfig {
	if c.Initial <= 0 {
		c.Initial = time.Second
	}
	if c.Max <= 0 {
		c.Max = 10 * time.Second
	}
	if c.Max < c.Initial {
		c.Max = c.Initial
	}
	if c.Multiplier < 1 {
		c.Multiplier = 2
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Minute
	}
	return c
}

// Await polls a job with exponential backoff until it reaches a terminal state.
// A failed job returns ErrJobFailed, exceeding cfg.Timeout returns ErrJobTimeout.
// Cancelling ctx returns ctx's error.
func Await(ctx context.Context, f ContentFetcher, jobID string, cfg PollConfig) (*Job, error) {
	cfg = cfg.withDefaults()

	pollCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	delay := cfg.Initial
	attempts := 0
	for {
		attempts++
		job, err := f.CheckStatus(pollCtx, jobID)
		if err != nil {
			if pollCtx.Err() != nil {
				return nil, expired(ctx, jobID)
			}
			return nil, fmt.Errorf("checking job %s: %w", jobID, err)
		}

		switch job.Status {
		case JobCompleted:
			slog.DebugContext(ctx, "scrape job completed", "job_id", jobID, "polls", attempts)
			return job, nil
		case JobFailed:
			return job, fmt.Errorf("%w: %s", ErrJobFailed, job.Error)
		}

		timer := time.NewTimer(delay)
		select {
		case <-pollCtx.Done():
			timer.Stop()
			return nil, expired(ctx, jobID)
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.Max {
			delay = cfg.Max
		}
	}
}

func expired(parent context.Context, jobID string) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrJobTimeout, jobID)
}
