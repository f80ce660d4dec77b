package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/radiusdt/sponsor-engine/internal/config"
	"github.com/radiusdt/sponsor-engine/internal/database"
	"github.com/radiusdt/sponsor-engine/internal/httpserver"
	"github.com/radiusdt/sponsor-engine/internal/metrics"
	"github.com/radiusdt/sponsor-engine/internal/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg)
	defer logger.Sync()

	logger.Info("starting sponsor-engine",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
	)

	ctx := context.Background()

	// Try to connect to PostgreSQL
	db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Warn("PostgreSQL not available, using in-memory storage", zap.Error(err))
		db = nil
	} else {
		defer db.Close()
	}

	// Try to connect to Redis
	redis, err := database.NewRedisDB(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis not available, campaign caching disabled", zap.Error(err))
		redis = nil
	} else {
		defer redis.Close()
	}

	// Try to connect to ClickHouse
	var clickhouse *database.ClickHouseDB
	if cfg.ClickHouse.Enabled {
		clickhouse, err = database.NewClickHouseDB(ctx, cfg.ClickHouse, logger)
		if err != nil {
			logger.Warn("ClickHouse not available, event trail disabled", zap.Error(err))
			clickhouse = nil
		} else {
			defer clickhouse.Close()
		}
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics("sponsor")
	}

	// Create HTTP server
	deps := &httpserver.Dependencies{
		DB:         db,
		Redis:      redis,
		ClickHouse: clickhouse,
		Config:     cfg,
		Logger:     logger,
		Metrics:    m,
	}

	handler, err := httpserver.NewServer(ctx, deps)
	if err != nil {
		logger.Fatal("failed to initialize server", zap.Error(err))
	}

	// Middleware chain: recovery wraps everything, then logging, auth and
	// rate limiting closest to the handlers.
	rateLimit := middleware.NewRateLimitMiddleware(cfg.RateLimit, logger)
	rateLimit.SetMetrics(m)
	handler = rateLimit.Handler(handler)
	handler = middleware.NewAuthMiddleware(cfg.Auth, logger).Handler(handler)
	handler = middleware.NewLoggingMiddleware(logger).Handler(handler)
	handler = middleware.NewRecoveryMiddleware(logger).Handler(handler)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func setupLogger(cfg *config.Config) *zap.Logger {
	var zapCfg zap.Config

	if cfg.IsDevelopment() || cfg.Log.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	switch cfg.Log.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	logger, err := zapCfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}

	return logger
}
