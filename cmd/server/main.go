package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"cognito.app/sentinel/common/id"
	"cognito.app/sentinel/common/logger"
	"cognito.app/sentinel/common/otel"
	"cognito.app/sentinel/core/config"
	"cognito.app/sentinel/core/db"
	"cognito.app/sentinel/internal/bootstrap"
	"cognito.app/sentinel/internal/http/middleware"
	httprouter "cognito.app/sentinel/internal/http/router"
	"cognito.app/sentinel/internal/realtime"
	"cognito.app/sentinel/internal/service"
	"cognito.app/sentinel/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "sentinel server starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(id.ServerNode); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to apply schema", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "delivery_stream", cfg.Redis.DeliveryStream)

	stores := store.NewStores(database.Pool())

	pipe, err := bootstrap.NewPipeline(cfg, stores, redisClient)
	if err != nil {
		slog.ErrorContext(ctx, "failed to assemble pipeline", "error", err)
		os.Exit(1)
	}
	defer pipe.Close() //nolint:errcheck

	if !cfg.WorkOS.Enabled() {
		slog.WarnContext(ctx, "workos not configured, signup and login will fail")
	}

	services := service.NewServices(
		stores,
		service.NewTxRunner(database),
		service.NewWorkOSIdentity(cfg.WorkOS),
		service.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
	)

	hub := realtime.NewHub(redisClient, realtime.HubConfig{
		Prefix:         cfg.Redis.ChannelPrefix,
		OriginPatterns: originPatterns(cfg),
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(cfg, services, httprouter.Pipeline{
		Stages:     pipe.Stages,
		Cycles:     pipe.Orchestrator,
		Discoverer: pipe.Discoverer,
		Realtime:   hub,
	})

	// No WriteTimeout: websocket connections and manual monitoring cycles are long lived.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...", "realtime_connections", hub.Connections())

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

func setupRouter(cfg config.Config, services *service.Services, pipe httprouter.Pipeline) *gin.Engine {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	httprouter.SetupRoutes(router, services, pipe, httprouter.RouterConfig{
		AdminAPIKey:     cfg.AdminAPIKey,
		CycleRunTimeout: cfg.Monitoring.RunTimeout,
	})

	return router
}

// originPatterns lets the dashboard open websockets from its own origin.
func originPatterns(cfg config.Config) []string {
	if cfg.IsDevelopment() {
		return []string{"*"}
	}
	u, err := url.Parse(cfg.Notify.DashboardURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

const banner = `
 ___  ___ _ __ | |_(_)_ __   ___| |
/ __|/ _ \ '_ \| __| | '_ \ / _ \ |
\__ \  __/ | | | |_| | | | |  __/ |
|___/\___|_| |_|\__|_|_| |_|\___|_|  server
`
