package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cognito.app/sentinel/internal/http/dto"
	"cognito.app/sentinel/internal/http/middleware"
	"cognito.app/sentinel/internal/service"
)

type InsightHandler struct {
	insightService service.InsightService
}

func NewInsightHandler(insightService service.InsightService) *InsightHandler {
	return &InsightHandler{insightService: insightService}
}

func (h *InsightHandler) ListByProfile(c *gin.Context) {
	ctx := c.Request.Context()
	profileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var query dto.ListInsightsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	insights, err := h.insightService.ListByProfile(ctx, middleware.GetUser(ctx).ID, profileID, query.ToFilter())
	if err != nil {
		respondError(c, err, "list insights")
		return
	}
	c.JSON(http.StatusOK, insights)
}

func (h *InsightHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	insightID, ok := pathID(c, "id")
	if !ok {
		return
	}

	insight, err := h.insightService.Get(ctx, middleware.GetUser(ctx).ID, insightID)
	if err != nil {
		respondError(c, err, "get insight")
		return
	}
	c.JSON(http.StatusOK, insight)
}

// Similar returns the nearest insights of the same profile by embedding distance.
func (h *InsightHandler) Similar(c *gin.Context) {
	ctx := c.Request.Context()
	insightID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var query dto.SimilarInsightsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	similar, err := h.insightService.Similar(ctx, middleware.GetUser(ctx).ID, insightID, query.Limit)
	if err != nil {
		respondError(c, err, "find similar insights")
		return
	}
	c.JSON(http.StatusOK, similar)
}
