// Package worker runs the notification delivery consumer and its reclaimer.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cognito.app/sentinel/common/logger"
	"cognito.app/sentinel/internal/queue"
)

type Config struct {
	MaxAttempts  int
	ErrorBackoff time.Duration
}

type Worker struct {
	consumer Consumer
	sender   Sender
	cfg      Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, sender Sender, cfg Config) *Worker {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &Worker{
		consumer:  consumer,
		sender:    sender,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "sentinel.worker.delivery",
	})
	slog.InfoContext(ctx, "delivery worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "delivery worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				select {
				case <-ctx.Done():
				case <-w.stopCh:
				case <-time.After(w.cfg.ErrorBackoff):
				}
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.ProcessMessage(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID)
		}
	}

	return nil
}

// ProcessMessage sends one delivery and settles the message: ack on success,
// requeue or dead-letter on failure. Exported so the reclaimer can reuse it.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	msgID := msg.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: &msgID,
		AlertID:   &msg.Delivery.AlertID,
		ProfileID: &msg.Delivery.ProfileID,
	})

	slog.InfoContext(ctx, "processing delivery",
		"channel", msg.Delivery.Channel,
		"attempt", msg.Attempt)

	if err := w.sendSafe(ctx, msg); err != nil {
		w.handleFailedMessage(ctx, msg, err)
		return err
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// The reclaimer will redeliver; a duplicate notification beats a lost one.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}

	slog.InfoContext(ctx, "delivery sent", "channel", msg.Delivery.Channel)
	return nil
}

func (w *Worker) sendSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in delivery", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.sender.Send(ctx, msg.Delivery)
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"attempts", msg.Attempt,
			"error", err)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed delivery",
		"attempt", msg.Attempt,
		"error", err)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
