package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/omnitrix-widget/internal/api/router"
	"github.com/wolfman30/omnitrix-widget/internal/app/bootstrap"
	"github.com/wolfman30/omnitrix-widget/internal/bridge"
	appconfig "github.com/wolfman30/omnitrix-widget/internal/config"
	httpmiddleware "github.com/wolfman30/omnitrix-widget/internal/http/middleware"
	"github.com/wolfman30/omnitrix-widget/internal/observability/metrics"
	"github.com/wolfman30/omnitrix-widget/internal/webchat"
	"github.com/wolfman30/omnitrix-widget/pkg/logging"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting omnitrix widget server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()
	widgetMetrics := metrics.NewWidgetMetrics(prometheus.DefaultRegisterer)

	widgetDefaults, err := bootstrap.LoadWidgetDefaults(cfg)
	if err != nil {
		logger.Error("invalid WIDGET_DEFAULTS_JSON", "error", err)
		os.Exit(1)
	}
	rules, err := bootstrap.LoadReplyRules(cfg, logger)
	if err != nil {
		logger.Error("failed to load reply rules", "error", err)
		os.Exit(1)
	}
	widgetJS, err := bootstrap.LoadWidgetJS(cfg, logger)
	if err != nil {
		logger.Error("failed to load widget script", "error", err)
		os.Exit(1)
	}
	verifier, err := bootstrap.BuildVerifier(cfg, widgetMetrics, logger)
	if err != nil {
		logger.Error("failed to configure verification service", "error", err)
		os.Exit(1)
	}

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		defer redisClient.Close()
	} else {
		logger.Info("session store disabled; user lookups limited to live sessions")
	}

	tokens := httpmiddleware.NewSessionTokens(cfg.SessionTokenSecret, cfg.SessionTTL)
	if !tokens.Enabled() {
		logger.Warn("SESSION_TOKEN_SECRET not set; session endpoints are unauthenticated")
	}
	hostOrigins := bridge.NewOriginPolicy(cfg.AllowedHostOrigins)
	if hostOrigins.Permissive() {
		logger.Warn("ALLOWED_HOST_ORIGINS not set; accepting host messages from any origin")
	}

	webchatHandler := webchat.NewHandler(webchat.Options{
		Defaults:      widgetDefaults,
		PublicBaseURL: cfg.PublicBaseURL,
		WidgetJS:      widgetJS,
		Rules:         rules,
		Verifier:      verifier,
		Store:         bootstrap.BuildSessionStore(redisClient, cfg),
		Tokens:        tokens,
		Origins:       hostOrigins,
		Metrics:       widgetMetrics,
		Logger:        logger,
	})

	limiter := httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	stopEviction := make(chan struct{})
	go limiter.Run(stopEviction, time.Minute)

	// Setup router
	r := router.New(&router.Config{
		Logger:             logger,
		Webchat:            webchatHandler,
		MetricsHandler:     promhttp.Handler(),
		SessionTokens:      tokens,
		RateLimiter:        limiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	// Create HTTP server. No write timeout: frame sessions are long-lived WebSockets.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...", "active_sessions", webchatHandler.ActiveSessions())
	close(stopEviction)

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
