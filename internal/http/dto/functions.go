package dto

import (
	"cognito.app/sentinel/internal/discovery"
	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/pipeline"
)

// Stage function bodies keep the camelCase keys the dashboard already sends.

type ScrapeSourceRequest struct {
	SourceID int64 `json:"sourceId" binding:"required"`
}

type ProcessContentRequest struct {
	ContentID int64 `json:"contentId" binding:"required"`
}

type EvaluateAlertRequest struct {
	InsightID int64 `json:"insightId" binding:"required"`
}

type DiscoverSourcesRequest struct {
	ProfileID         int64    `json:"profileId" binding:"required"`
	DiscoveryKeywords []string `json:"discoveryKeywords" binding:"max=50,dive,max=200"`
	ExcludedURLs      []string `json:"excludedUrls" binding:"max=500"`
}

type ScrapeSourceResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*pipeline.ScrapeResult
}

type ProcessContentResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Insight *model.Insight `json:"insight"`
}

type EvaluateAlertResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*pipeline.EvaluateResult
}

type DiscoverSourcesResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*discovery.Result
}

type RunMonitoringResponse struct {
	Success           bool                 `json:"success"`
	Message           string               `json:"message"`
	ProfilesProcessed int                  `json:"profilesProcessed"`
	TotalAlerts       int                  `json:"totalAlerts"`
	TotalInsights     int                  `json:"totalInsights"`
	Stats             *pipeline.CycleStats `json:"stats"`
}

func ToRunMonitoringResponse(stats *pipeline.CycleStats) *RunMonitoringResponse {
	return &RunMonitoringResponse{
		Success:           true,
		Message:           "monitoring cycle completed",
		ProfilesProcessed: stats.ProfilesProcessed,
		TotalAlerts:       stats.AlertsCreated,
		TotalInsights:     stats.InsightsCreated,
		Stats:             stats,
	}
}
