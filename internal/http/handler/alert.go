package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cognito.app/sentinel/internal/http/dto"
	"cognito.app/sentinel/internal/http/middleware"
	"cognito.app/sentinel/internal/model"
	"cognito.app/sentinel/internal/service"
)

type AlertHandler struct {
	alertService service.AlertService
}

func NewAlertHandler(alertService service.AlertService) *AlertHandler {
	return &AlertHandler{alertService: alertService}
}

func (h *AlertHandler) ListByProfile(c *gin.Context) {
	ctx := c.Request.Context()
	profileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var query dto.ListAlertsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alerts, err := h.alertService.ListByProfile(ctx, middleware.GetUser(ctx).ID, profileID, query.ToFilter())
	if err != nil {
		respondError(c, err, "list alerts")
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *AlertHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	alertID, ok := pathID(c, "id")
	if !ok {
		return
	}

	alert, err := h.alertService.Get(ctx, middleware.GetUser(ctx).ID, alertID)
	if err != nil {
		respondError(c, err, "get alert")
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *AlertHandler) UpdateStatus(c *gin.Context) {
	ctx := c.Request.Context()
	alertID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateAlertStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alert, err := h.alertService.UpdateStatus(ctx, middleware.GetUser(ctx).ID, alertID, model.AlertStatus(req.Status), req.Notes)
	if err != nil {
		respondError(c, err, "update alert status")
		return
	}
	c.JSON(http.StatusOK, alert)
}
