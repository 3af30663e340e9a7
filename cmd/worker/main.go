package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"cognito.app/sentinel/common/id"
	"cognito.app/sentinel/common/logger"
	"cognito.app/sentinel/common/otel"
	"cognito.app/sentinel/core/config"
	"cognito.app/sentinel/core/db"
	"cognito.app/sentinel/internal/bootstrap"
	"cognito.app/sentinel/internal/notify"
	"cognito.app/sentinel/internal/queue"
	"cognito.app/sentinel/internal/scheduler"
	"cognito.app/sentinel/internal/store"
	"cognito.app/sentinel/internal/worker"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}
	logger.Setup(cfg)

	slog.InfoContext(ctx, "sentinel worker starting",
		"env", cfg.Env,
		"cron", cfg.Monitoring.Cron,
		"consumer_group", cfg.Redis.DeliveryGroup,
		"consumer_name", cfg.Redis.ConsumerName)

	if err := id.Init(id.WorkerNode); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to apply schema", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Redis.DeliveryStream)

	stores := store.NewStores(database.Pool())

	pipe, err := bootstrap.NewPipeline(cfg, stores, redisClient)
	if err != nil {
		slog.ErrorContext(ctx, "failed to assemble pipeline", "error", err)
		os.Exit(1)
	}
	defer pipe.Close() //nolint:errcheck

	sched := scheduler.New(scheduler.Config{RunTimeout: cfg.Monitoring.RunTimeout})
	err = sched.AddJob("monitoring-cycle", cfg.Monitoring.Cron, func(ctx context.Context) error {
		stats, err := pipe.Orchestrator.RunCycle(ctx)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "monitoring cycle finished",
			"profiles", stats.ProfilesProcessed,
			"scraped", stats.SourcesScraped,
			"failed", stats.SourcesFailed,
			"duplicates", stats.DuplicatesSkipped,
			"insights", stats.InsightsCreated,
			"alerts", stats.AlertsCreated,
			"duration_ms", stats.FinishedAt.Sub(stats.StartedAt).Milliseconds())
		return nil
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to schedule monitoring cycle", "error", err)
		os.Exit(1)
	}

	consumer, err := queue.NewRedisConsumer(ctx, redisClient, queue.ConsumerConfig{
		Stream:       cfg.Redis.DeliveryStream,
		Group:        cfg.Redis.DeliveryGroup,
		Consumer:     cfg.Redis.ConsumerName,
		DLQStream:    cfg.Redis.DeliveryDLQ,
		BatchSize:    10,
		Block:        5 * time.Second,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	senders := notify.Senders{
		Webhook: notify.NewWebhookSender(cfg.Notify.WebhookTimeout),
	}
	if cfg.Notify.SMTPEnabled() {
		senders.Email = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.Notify.SMTPHost,
			Port:     cfg.Notify.SMTPPort,
			Username: cfg.Notify.SMTPUsername,
			Password: cfg.Notify.SMTPPassword,
			From:     cfg.Notify.EmailFrom,
		})
	} else {
		slog.WarnContext(ctx, "smtp not configured, email deliveries go to the dead letter stream")
	}

	w := worker.New(consumer, senders, worker.Config{MaxAttempts: 5})

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:        cfg.Redis.DeliveryStream,
		Group:         cfg.Redis.DeliveryGroup,
		Consumer:      cfg.Redis.ConsumerName + "-reclaimer",
		MinIdle:       5 * time.Minute,
		Interval:      time.Minute,
		BatchSize:     20,
		MaxDeliveries: 10,
	}, consumer, w.ProcessMessage)

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	errCh := make(chan error, 2)
	go func() {
		errCh <- w.Run(runCtx)
	}()
	go func() {
		reclaimer.Run(runCtx)
		errCh <- nil
	}()

	sched.Start()
	if next, ok := sched.Next("monitoring-cycle"); ok {
		slog.InfoContext(ctx, "worker running", "next_cycle_at", next)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop scheduling first; Stop cancels a running cycle and waits for it to release its claims.
	sched.Stop(shutdownCtx)

	reclaimer.Stop()
	w.Stop()

	stopRun()

drain:
	for range 2 {
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
			}
		case <-shutdownCtx.Done():
			slog.WarnContext(ctx, "shutdown timeout exceeded")
			break drain
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
 ___  ___ _ __ | |_(_)_ __   ___| |
/ __|/ _ \ '_ \| __| | '_ \ / _ \ |
\__ \  __/ | | | |_| | | | |  __/ |
|___/\___|_| |_|\__|_|_| |_|\___|_|  worker
`
