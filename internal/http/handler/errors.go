package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cognito.app/sentinel/internal/fetcher"
	"cognito.app/sentinel/internal/pipeline"
	"cognito.app/sentinel/internal/service"
	"cognito.app/sentinel/internal/store"
)

// respondError maps domain errors to HTTP statuses. Anything unrecognised is
// logged and answered with "failed to <action>".
func respondError(c *gin.Context, err error, action string) {
	ctx := c.Request.Context()

	switch {
	// Resources of other users are indistinguishable from missing ones.
	case errors.Is(err, store.ErrNotFound), errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrSourceExists), errors.Is(err, store.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrCycleInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrOrphaned), errors.Is(err, pipeline.ErrNoText):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, fetcher.ErrJobFailed):
		slog.WarnContext(ctx, "upstream scrape failed", "action", action, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, fetcher.ErrJobTimeout), errors.Is(err, context.DeadlineExceeded):
		slog.WarnContext(ctx, "upstream timed out", "action", action, "error", err)
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "failed to " + action + ": timed out"})
	default:
		slog.ErrorContext(ctx, "failed to "+action, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to " + action})
	}
}

// pathID parses a positive int64 path parameter, answering 400 when it is not one.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
