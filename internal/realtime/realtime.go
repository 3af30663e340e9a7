// Package realtime carries in-app alert notifications from any process to the
// websocket clients of the owning user, over Redis pub/sub.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	"cognito.app/sentinel/internal/notify"
)

// DefaultChannelPrefix is prepended to a user id to form the pub/sub channel.
const DefaultChannelPrefix = "alerts:user:"

// Channel returns the per-user pub/sub channel name.
func Channel(prefix string, userID int64) string {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return prefix + strconv.FormatInt(userID, 10)
}

// Publisher broadcasts alert notifications on Redis pub/sub.
type Publisher struct {
	client redis.UniversalClient
	prefix string
}

var _ notify.Publisher = (*Publisher)(nil)

func NewPublisher(client redis.UniversalClient, prefix string) *Publisher {
	return &Publisher{client: client, prefix: prefix}
}

func (p *Publisher) Publish(ctx context.Context, userID int64, n notify.AlertNotification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}

	channel := Channel(p.prefix, userID)
	receivers, err := p.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", channel, err)
	}

	slog.DebugContext(ctx, "alert notification published",
		"channel", channel,
		"receivers", receivers)
	return nil
}
