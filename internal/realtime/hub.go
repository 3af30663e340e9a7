package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"nhooyr.io/websocket"

	"cognito.app/sentinel/common/logger"
)

type HubConfig struct {
	Prefix         string
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	OriginPatterns []string
}

// Hub bridges a user's pub/sub channel to that user's websocket connections.
// Each connection holds its own subscription, so any server replica can serve it.
type Hub struct {
	client redis.UniversalClient
	cfg    HubConfig
	active atomic.Int64
}

func NewHub(client redis.UniversalClient, cfg HubConfig) *Hub {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Hub{client: client, cfg: cfg}
}

// Connections returns the number of open websocket connections.
func (h *Hub) Connections() int64 {
	return h.active.Load()
}

// Serve upgrades the request and streams userID's notifications until the
// client disconnects or ctx ends.
func (h *Hub) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, userID int64) error {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.OriginPatterns,
	})
	if err != nil {
		return err
	}
	defer conn.CloseNow() //nolint:errcheck

	h.active.Add(1)
	defer h.active.Add(-1)

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		UserID:    &userID,
		Component: "sentinel.realtime.hub",
	})

	channel := Channel(h.cfg.Prefix, userID)
	sub := h.client.Subscribe(ctx, channel)
	defer sub.Close() //nolint:errcheck

	if _, err := sub.Receive(ctx); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "subscription failed")
		return err
	}

	slog.InfoContext(ctx, "realtime client connected", "channel", channel)

	// The client sends nothing; CloseRead handles control frames and cancels on disconnect.
	ctx = conn.CloseRead(ctx)

	err = h.pump(ctx, conn, sub.Channel())
	slog.InfoContext(ctx, "realtime client disconnected", "channel", channel)

	if errors.Is(err, context.Canceled) || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		return nil
	}
	return err
}

func (h *Hub) pump(ctx context.Context, conn *websocket.Conn, messages <-chan *redis.Message) error {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-messages:
			if !ok {
				return conn.Close(websocket.StatusGoingAway, "subscription closed")
			}
			if err := h.write(ctx, conn, []byte(msg.Payload)); err != nil {
				return err
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, h.cfg.WriteTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, conn *websocket.Conn, payload []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, h.cfg.WriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, payload)
}
