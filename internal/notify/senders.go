package notify

import (
	"context"
	"fmt"

	"cognito.app/sentinel/internal/model"
)

// Sender delivers a single notification over one channel.
type Sender interface {
	Send(ctx context.Context, d Delivery) error
}

// Senders routes deliveries to the sender for their channel. It is the
// delivery worker's processor and, without a queue, a synchronous Dispatcher.
type Senders struct {
	Email   Sender
	Webhook Sender
}

var _ Dispatcher = Senders{}

func (s Senders) Dispatch(ctx context.Context, d Delivery) error {
	return s.Send(ctx, d)
}

func (s Senders) Send(ctx context.Context, d Delivery) error {
	var sender Sender
	switch d.Channel {
	case model.ChannelEmail:
		sender = s.Email
	case model.ChannelWebhook:
		sender = s.Webhook
	default:
		return fmt.Errorf("unsupported delivery channel %q", d.Channel)
	}
	if sender == nil {
		return fmt.Errorf("%s: %w", d.Channel, ErrChannelDisabled)
	}
	return sender.Send(ctx, d)
}
