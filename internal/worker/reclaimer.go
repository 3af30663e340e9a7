package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"cognito.app/sentinel/common/logger"
	"cognito.app/sentinel/internal/queue"
)

type RedisReclaimerConfig struct {
	Stream   string
	Group    string
	Consumer string

	// MinIdle is how long a delivery may sit unacknowledged before another worker takes it.
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64

	// MaxDeliveries dead-letters entries that keep getting stuck, e.g. a payload that
	// kills the process every time it is sent.
	MaxDeliveries int64
}

// RedisReclaimer sweeps the delivery stream's pending list for entries a dead
// worker read but never settled, and sends them again.
type RedisReclaimer struct {
	client    redis.UniversalClient
	cfg       RedisReclaimerConfig
	consumer  Consumer
	processor queue.MessageProcessor

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

type sweepStats struct {
	claimed      int
	delivered    int
	deadLettered int
}

func NewRedisReclaimer(client redis.UniversalClient, cfg RedisReclaimerConfig, consumer Consumer, processor queue.MessageProcessor) *RedisReclaimer {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.MinIdle <= 0 {
		cfg.MinIdle = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = 10
	}
	return &RedisReclaimer{
		client:    client,
		cfg:       cfg,
		consumer:  consumer,
		processor: processor,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run sweeps every Interval until Stop is called or ctx ends.
func (r *RedisReclaimer) Run(ctx context.Context) {
	defer close(r.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "sentinel.worker.reclaimer",
	})
	slog.InfoContext(ctx, "reclaimer started",
		"stream", r.cfg.Stream,
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle,
		"max_deliveries", r.cfg.MaxDeliveries)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			stats, err := r.sweep(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "reclaim sweep failed", "error", err)
				continue
			}
			if stats.claimed > 0 || stats.deadLettered > 0 {
				slog.InfoContext(ctx, "reclaim sweep finished",
					"claimed", stats.claimed,
					"delivered", stats.delivered,
					"dead_lettered", stats.deadLettered)
			}
		}
	}
}

func (r *RedisReclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

func (r *RedisReclaimer) sweep(ctx context.Context) (sweepStats, error) {
	var stats sweepStats

	pending, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: r.cfg.Stream,
		Group:  r.cfg.Group,
		Idle:   r.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  r.cfg.BatchSize,
	}).Result()
	if err != nil {
		return stats, fmt.Errorf("listing pending deliveries: %w", err)
	}
	if len(pending) == 0 {
		return stats, nil
	}

	ids := make([]string, 0, len(pending))
	exhausted := make(map[string]int64)
	for _, p := range pending {
		ids = append(ids, p.ID)
		if p.RetryCount >= r.cfg.MaxDeliveries {
			exhausted[p.ID] = p.RetryCount
		}
	}

	// XCLAIM re-checks MinIdle, so entries another reclaimer just took are skipped.
	claimed, err := r.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   r.cfg.Stream,
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		MinIdle:  r.cfg.MinIdle,
		Messages: ids,
	}).Result()
	if err != nil {
		return stats, fmt.Errorf("claiming pending deliveries: %w", err)
	}
	stats.claimed = len(claimed)

	for _, raw := range claimed {
		msgID := raw.ID
		msgCtx := logger.WithLogFields(ctx, logger.LogFields{MessageID: &msgID})

		msg, parseErr := queue.ParseMessage(raw)
		if parseErr != nil {
			slog.ErrorContext(msgCtx, "dropping unparseable pending delivery", "error", parseErr)
			_ = r.consumer.Ack(msgCtx, queue.Message{ID: raw.ID, Raw: raw})
			continue
		}

		if count, ok := exhausted[raw.ID]; ok {
			reason := fmt.Sprintf("delivery stuck after %d reads", count)
			if err := r.consumer.SendDLQ(msgCtx, msg, reason); err != nil {
				slog.ErrorContext(msgCtx, "failed to dead-letter stuck delivery", "error", err)
				continue
			}
			stats.deadLettered++
			continue
		}

		if err := r.processor(msgCtx, msg); err != nil {
			slog.WarnContext(msgCtx, "reclaimed delivery failed", "error", err)
			continue
		}
		stats.delivered++
	}

	return stats, nil
}
