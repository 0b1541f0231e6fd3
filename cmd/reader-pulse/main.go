package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mekongwire/reader-pulse/internal/config"
	"github.com/mekongwire/reader-pulse/internal/database"
	"github.com/mekongwire/reader-pulse/internal/httpserver"
	"github.com/mekongwire/reader-pulse/internal/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load .env in development; ignored when absent.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger := setupLogger(cfg)
	defer logger.Sync()

	logger.Info("starting reader-pulse",
		zap.String("addr", cfg.Server.Addr),
		zap.String("env", cfg.Server.Env),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Every backing store is optional: a missing connection downgrades
	// that store to its in-memory implementation so the service still
	// comes up in local development.
	clickhouse, err := database.NewClickHouseDB(ctx, cfg.ClickHouse, logger)
	if err != nil {
		logger.Warn("clickhouse unavailable, using in-memory event store", zap.Error(err))
		clickhouse = nil
	}

	db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Warn("postgres unavailable, using in-memory subscriber store", zap.Error(err))
		db = nil
	}

	redis, err := database.NewRedisDB(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis unavailable, using in-memory heart counters", zap.Error(err))
		redis = nil
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.NewMetrics("pulse")
	}

	handler := httpserver.NewServer(&httpserver.Dependencies{
		ClickHouse: clickhouse,
		DB:         db,
		Redis:      redis,
		Config:     cfg,
		Logger:     logger,
		Metrics:    m,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutting down", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	if clickhouse != nil {
		clickhouse.Close()
	}
	if db != nil {
		db.Close()
	}
	if redis != nil {
		redis.Close()
	}

	logger.Info("shutdown complete")
}

func setupLogger(cfg *config.Config) *zap.Logger {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	if cfg.Log.Format == "console" {
		zapCfg.Encoding = "console"
	}

	logger, err := zapCfg.Build()
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	return logger
}
