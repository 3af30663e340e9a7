package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cognito.app/sentinel/internal/http/dto"
	"cognito.app/sentinel/internal/http/middleware"
	"cognito.app/sentinel/internal/service"
)

type SourceHandler struct {
	sourceService service.SourceService
}

func NewSourceHandler(sourceService service.SourceService) *SourceHandler {
	return &SourceHandler{sourceService: sourceService}
}

func (h *SourceHandler) ListByProfile(c *gin.Context) {
	ctx := c.Request.Context()
	profileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	sources, err := h.sourceService.ListByProfile(ctx, middleware.GetUser(ctx).ID, profileID)
	if err != nil {
		respondError(c, err, "list sources")
		return
	}
	c.JSON(http.StatusOK, sources)
}

func (h *SourceHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	profileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.CreateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	source, err := h.sourceService.Create(ctx, middleware.GetUser(ctx).ID, profileID, req.ToInput())
	if err != nil {
		respondError(c, err, "create source")
		return
	}
	c.JSON(http.StatusCreated, source)
}

func (h *SourceHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	sourceID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	source, err := h.sourceService.Update(ctx, middleware.GetUser(ctx).ID, sourceID, req.ToUpdate())
	if err != nil {
		respondError(c, err, "update source")
		return
	}
	c.JSON(http.StatusOK, source)
}

func (h *SourceHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	sourceID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.sourceService.Delete(ctx, middleware.GetUser(ctx).ID, sourceID); err != nil {
		respondError(c, err, "delete source")
		return
	}
	c.Status(http.StatusNoContent)
}
