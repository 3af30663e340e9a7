package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cognito.app/sentinel/internal/http/middleware"
)

// RealtimeServer streams a user's in-app notifications over a websocket.
type RealtimeServer interface {
	Serve(ctx context.Context, w http.ResponseWriter, r *http.Request, userID int64) error
}

type RealtimeHandler struct {
	hub RealtimeServer
}

func NewRealtimeHandler(hub RealtimeServer) *RealtimeHandler {
	return &RealtimeHandler{hub: hub}
}

func (h *RealtimeHandler) Connect(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.GetUser(ctx)

	// The hub owns the response once the upgrade succeeds.
	if err := h.hub.Serve(ctx, c.Writer, c.Request, user.ID); err != nil {
		slog.WarnContext(ctx, "realtime connection closed with error", "error", err)
	}
}
