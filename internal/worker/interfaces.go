package worker

import (
	"context"

	"cognito.app/sentinel/internal/notify"
	"cognito.app/sentinel/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// Sender delivers one notification. notify.Senders satisfies it.
type Sender interface {
	Send(ctx context.Context, d notify.Delivery) error
}
