package router

import (
	"github.com/gin-gonic/gin"

	"cognito.app/sentinel/internal/http/handler"
)

func AuthRouter(rg *gin.RouterGroup, h *handler.AuthHandler, requireAuth gin.HandlerFunc) {
	rg.POST("/signup", h.SignUp)
	rg.POST("/login", h.Login)
	rg.POST("/logout", requireAuth, h.Logout)
	rg.GET("/me", requireAuth, h.Me)
}

// ProfileRouter mounts profile CRUD plus the per-profile collections.
func ProfileRouter(
	rg *gin.RouterGroup,
	profiles *handler.ProfileHandler,
	sources *handler.SourceHandler,
	insights *handler.InsightHandler,
	alerts *handler.AlertHandler,
) {
	rg.GET("", profiles.List)
	rg.POST("", profiles.Create)
	rg.GET("/:id", profiles.Get)
	rg.PUT("/:id", profiles.Update)
	rg.DELETE("/:id", profiles.Delete)
	rg.GET("/:id/dashboard", profiles.Dashboard)

	rg.GET("/:id/sources", sources.ListByProfile)
	rg.POST("/:id/sources", sources.Create)
	rg.GET("/:id/insights", insights.ListByProfile)
	rg.GET("/:id/alerts", alerts.ListByProfile)
}

func SourceRouter(rg *gin.RouterGroup, h *handler.SourceHandler) {
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}

func InsightRouter(rg *gin.RouterGroup, h *handler.InsightHandler) {
	rg.GET("/:id", h.Get)
	rg.GET("/:id/similar", h.Similar)
}

func AlertRouter(rg *gin.RouterGroup, h *handler.AlertHandler) {
	rg.GET("/:id", h.Get)
	rg.PUT("/:id/status", h.UpdateStatus)
}

func FunctionsRouter(rg *gin.RouterGroup, h *handler.FunctionsHandler) {
	rg.POST("/scrape-source", h.ScrapeSource)
	rg.POST("/process-content", h.ProcessContent)
	rg.POST("/evaluate-alert", h.EvaluateAlert)
	rg.POST("/discover-sources", h.DiscoverSources)
	rg.POST("/run-monitoring-cycle", h.RunMonitoringCycle)
}
