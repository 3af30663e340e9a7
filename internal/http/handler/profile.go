package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"cognito.app/sentinel/internal/http/dto"
	"cognito.app/sentinel/internal/http/middleware"
	"cognito.app/sentinel/internal/service"
)

type ProfileHandler struct {
	profileService   service.ProfileService
	dashboardService service.DashboardService
}

func NewProfileHandler(profileService service.ProfileService, dashboardService service.DashboardService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService, dashboardService: dashboardService}
}

func (h *ProfileHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.GetUser(ctx)

	profiles, err := h.profileService.List(ctx, user.ID)
	if err != nil {
		respondError(c, err, "list profiles")
		return
	}
	c.JSON(http.StatusOK, profiles)
}

func (h *ProfileHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	profileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	profile, err := h.profileService.Get(ctx, middleware.GetUser(ctx).ID, profileID)
	if err != nil {
		respondError(c, err, "get profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.profileService.Create(ctx, middleware.GetUser(ctx).ID, req.ToInput())
	if err != nil {
		respondError(c, err, "create profile")
		return
	}
	c.JSON(http.StatusCreated, profile)
}

func (h *ProfileHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	profileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.profileService.Update(ctx, middleware.GetUser(ctx).ID, profileID, req.ToInput())
	if err != nil {
		respondError(c, err, "update profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	profileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.profileService.Delete(ctx, middleware.GetUser(ctx).ID, profileID); err != nil {
		respondError(c, err, "delete profile")
		return
	}
	c.Status(http.StatusNoContent)
}

// Dashboard returns new-alert counts by severity with the latest alerts and insights.
func (h *ProfileHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	profileID, ok := pathID(c, "id")
	if !ok {
		return
	}

	dashboard, err := h.dashboardService.Get(ctx, middleware.GetUser(ctx).ID, profileID)
	if err != nil {
		respondError(c, err, "load dashboard")
		return
	}
	c.JSON(http.StatusOK, dashboard)
}
