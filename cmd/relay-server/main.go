// cmd/relay-server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nomination-relay/internal/common/config"
	"nomination-relay/internal/common/logger"
	"nomination-relay/internal/common/middleware"
	"nomination-relay/internal/common/observability"
	ns "nomination-relay/internal/relay/nomination-submit"
)

const serviceName = "nomination-relay"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	log.Info("Starting nomination relay", map[string]interface{}{
		"environment":  cfg.App.Environment,
		"envFile":      cfg.App.EnvFile,
		"path":         cfg.Server.SubscribePath,
		"smsProvider":  cfg.Relay.SMS.Provider,
		"klaviyoReady": cfg.Integrations.Klaviyo.Configured(),
	})

	obs := observability.New(serviceName, nil, log)

	ctx := context.Background()

	notifier, err := ns.NewNotifier(ctx, cfg)
	if err != nil {
		zapLog.Fatal("failed to create sms notifier", zap.Error(err))
	}

	handler, err := ns.NewHandler(ns.HandlerOptions{
		AppConfig:     cfg,
		Logger:        log,
		Notifier:      notifier,
		Observability: obs,
	})
	if err != nil {
		zapLog.Fatal("failed to create nomination-submit handler", zap.Error(err))
	}

	router := newRouter(cfg, log, handler)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: config.GetDuration(cfg.Server.ReadHeaderTimeout),
	}

	go func() {
		log.Info("HTTP server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutdown signal received, draining requests...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", map[string]interface{}{"error": err})
	}
	if err := obs.Shutdown(shutdownCtx); err != nil {
		log.Error("Observability shutdown failed", map[string]interface{}{"error": err})
	}

	log.Info("Nomination relay stopped gracefully", nil)
}

func newRouter(cfg *config.Config, log logger.Logger, handler *ns.Handler) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoMethod(middleware.MethodNotAllowed())
	router.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.AccessLog(log),
		middleware.CORS(),
	)

	handler.Register(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/ready", func(c *gin.Context) {
		if err := handler.HealthCheck(c.Request.Context()); err != nil {
			log.Warn("Readiness check failed", map[string]interface{}{"error": err})
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"time":   time.Now().Format(time.RFC3339),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}
