package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"cognito.app/sentinel/internal/discovery"
	"cognito.app/sentinel/internal/http/dto"
	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/pipeline"
)

// StageRunner runs single pipeline stages against stored entities.
type StageRunner interface {
	ScrapeSourceByID(ctx context.Context, sourceID int64) (*pipeline.ScrapeResult, error)
	ProcessContentByID(ctx context.Context, contentID int64) (*model.Insight, error)
	EvaluateInsightByID(ctx context.Context, insightID int64) (*pipeline.EvaluateResult, error)
}

type CycleRunner interface {
	RunCycle(ctx context.Context) (*pipeline.CycleStats, error)
}

type SourceDiscoverer interface {
	Discover(ctx context.Context, profileID int64, discoveryKeywords, excludedURLs []string) (*discovery.Result, error)
}

// FunctionsHandler exposes each pipeline stage to operators so stages can be
// triggered and tested one at a time.
type FunctionsHandler struct {
	stages     StageRunner
	cycles     CycleRunner
	discoverer SourceDiscoverer
	runTimeout time.Duration
}

func NewFunctionsHandler(stages StageRunner, cycles CycleRunner, discoverer SourceDiscoverer, runTimeout time.Duration) *FunctionsHandler {
	if runTimeout <= 0 {
		runTimeout = 14 * time.Minute
	}
	return &FunctionsHandler{
		stages:     stages,
		cycles:     cycles,
		discoverer: discoverer,
		runTimeout: runTimeout,
	}
}

func (h *FunctionsHandler) ScrapeSource(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ScrapeSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.stages.ScrapeSourceByID(ctx, req.SourceID)
	if err != nil {
		respondError(c, err, "scrape source")
		return
	}

	message := "content stored"
	switch {
	case result.Duplicate && result.Content != nil:
		message = "content unchanged, awaiting processing"
	case result.Duplicate:
		message = "content unchanged, skipped"
	}
	c.JSON(http.StatusOK, dto.ScrapeSourceResponse{Success: true, Message: message, ScrapeResult: result})
}

func (h *FunctionsHandler) ProcessContent(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ProcessContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	insight, err := h.stages.ProcessContentByID(ctx, req.ContentID)
	if err != nil {
		respondError(c, err, "process content")
		return
	}
	c.JSON(http.StatusOK, dto.ProcessContentResponse{Success: true, Message: "insight created", Insight: insight})
}

func (h *FunctionsHandler) EvaluateAlert(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.EvaluateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.stages.EvaluateInsightByID(ctx, req.InsightID)
	if err != nil {
		respondError(c, err, "evaluate alert")
		return
	}

	message := "no alert needed"
	if result.Alert != nil {
		message = fmt.Sprintf("%s alert created", result.Alert.Severity)
	}
	c.JSON(http.StatusOK, dto.EvaluateAlertResponse{Success: true, Message: message, EvaluateResult: result})
}

func (h *FunctionsHandler) DiscoverSources(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.DiscoverSourcesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.discoverer.Discover(ctx, req.ProfileID, req.DiscoveryKeywords, req.ExcludedURLs)
	if err != nil {
		respondError(c, err, "discover sources")
		return
	}
	c.JSON(http.StatusOK, dto.DiscoverSourcesResponse{
		Success: true,
		Message: fmt.Sprintf("discovered %d new sources", len(result.Added)),
		Result:  result,
	})
}

// RunMonitoringCycle runs one full cycle. The cycle outlives a disconnecting
// client and is bounded by the configured run timeout instead.
func (h *FunctionsHandler) RunMonitoringCycle(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.runTimeout)
	defer cancel()

	stats, err := h.cycles.RunCycle(ctx)
	if err != nil {
		respondError(c, err, "run monitoring cycle")
		return
	}

	slog.InfoContext(ctx, "manual monitoring cycle finished",
		"profiles", stats.ProfilesProcessed,
		"insights", stats.InsightsCreated,
		"alerts", stats.AlertsCreated)
	c.JSON(http.StatusOK, dto.ToRunMonitoringResponse(stats))
}
