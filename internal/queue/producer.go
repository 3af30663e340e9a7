package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"cognito.app/sentinel/common/logger"
	"cognito.app/sentinel/internal/notify"
)

type Producer interface {
	Enqueue(ctx context.Context, d notify.Delivery) error
	Close() error
}

type RedisProducer struct {
	client redis.UniversalClient
	stream string
}

var (
	_ Producer          = (*RedisProducer)(nil)
	_ notify.Dispatcher = (*RedisProducer)(nil)
)

func NewRedisProducer(client redis.UniversalClient, stream string) *RedisProducer {
	return &RedisProducer{
		client: client,
		stream: stream,
	}
}

func (p *RedisProducer) Enqueue(ctx context.Context, d notify.Delivery) error {
	values, err := deliveryValues(d, 1, logger.TraceID(ctx))
	if err != nil {
		return err
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}).Result()
	if err != nil {
		return fmt.Errorf("enqueue delivery: %w", err)
	}

	slog.InfoContext(ctx, "enqueued notification delivery",
		"message_id", id,
		"alert_id", d.AlertID,
		"channel", d.Channel)
	return nil
}

// Dispatch lets the producer stand in wherever a notify.Dispatcher is expected.
func (p *RedisProducer) Dispatch(ctx context.Context, d notify.Delivery) error {
	return p.Enqueue(ctx, d)
}

func (p *RedisProducer) Close() error {
	return p.client.Close()
}
