package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"cognito.app/sentinel/internal/http/handler"
	"cognito.app/sentinel/internal/http/middleware"
	"cognito.app/sentinel/internal/service"
)

type RouterConfig struct {
	AdminAPIKey     string
	CycleRunTimeout time.Duration
}

// Pipeline holds the pipeline components the HTTP surface can trigger.
type Pipeline struct {
	Stages     handler.StageRunner
	Cycles     handler.CycleRunner
	Discoverer handler.SourceDiscoverer
	Realtime   handler.RealtimeServer
}

func SetupRoutes(router *gin.Engine, services *service.Services, pipeline Pipeline, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	authService := services.Auth()
	requireAuth := middleware.RequireAuth(authService)

	authHandler := handler.NewAuthHandler(authService)
	AuthRouter(router.Group("/auth"), authHandler, requireAuth)

	api := router.Group("/api")

	functionsHandler := handler.NewFunctionsHandler(pipeline.Stages, pipeline.Cycles, pipeline.Discoverer, cfg.CycleRunTimeout)
	operator := api.Group("")
	operator.Use(middleware.RequireAdminAPIKey(cfg.AdminAPIKey))
	{
		operator.POST("/admin/run-monitoring", functionsHandler.RunMonitoringCycle)
		FunctionsRouter(operator.Group("/functions"), functionsHandler)
	}

	user := api.Group("")
	user.Use(requireAuth)
	{
		profileHandler := handler.NewProfileHandler(services.Profiles(), services.Dashboard())
		sourceHandler := handler.NewSourceHandler(services.Sources())
		insightHandler := handler.NewInsightHandler(services.Insights())
		alertHandler := handler.NewAlertHandler(services.Alerts())

		ProfileRouter(user.Group("/profiles"), profileHandler, sourceHandler, insightHandler, alertHandler)
		SourceRouter(user.Group("/sources"), sourceHandler)
		InsightRouter(user.Group("/insights"), insightHandler)
		AlertRouter(user.Group("/alerts"), alertHandler)

		if pipeline.Realtime != nil {
			user.GET("/realtime", handler.NewRealtimeHandler(pipeline.Realtime).Connect)
		}
	}
}
