// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/venuetrust/internal/analysis"
	"github.com/javajoker/venuetrust/internal/cache"
	"github.com/javajoker/venuetrust/internal/config"
	"github.com/javajoker/venuetrust/internal/database"
	"github.com/javajoker/venuetrust/internal/places"
	"github.com/javajoker/venuetrust/internal/router"
)

func setupLogging(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func buildAnalyzer(cfg *config.Config) *analysis.Chain {
	backoff := cfg.Retry.Backoff()
	var analyzers []analysis.Analyzer
	for _, name := range cfg.Analysis.Order {
		switch name {
		case analysis.OpenAIProvider:
			analyzers = append(analyzers, analysis.NewOpenAIAnalyzer(analysis.ProviderConfig{
				APIKey:            cfg.Analysis.OpenAI.APIKey,
				BaseURL:           cfg.Analysis.OpenAI.BaseURL,
				Model:             cfg.Analysis.OpenAI.Model,
				RequestsPerSecond: cfg.Analysis.OpenAI.RequestsPerSecond,
				Retry:             backoff,
			}))
		case analysis.AnthropicProvider:
			analyzers = append(analyzers, analysis.NewAnthropicAnalyzer(analysis.ProviderConfig{
				APIKey:            cfg.Analysis.Anthropic.APIKey,
				BaseURL:           cfg.Analysis.Anthropic.BaseURL,
				Model:             cfg.Analysis.Anthropic.Model,
				RequestsPerSecond: cfg.Analysis.Anthropic.RequestsPerSecond,
				Retry:             backoff,
			}))
		}
	}
	chain := analysis.NewChain(analyzers...)
	logrus.WithField("providers", chain.Providers()).Info("Analysis chain configured")
	return chain
}

func buildPlaces(cfg *config.Config) *places.Finder {
	if cfg.Places.BaseURL == "" {
		logrus.Warn("PLACES_BASE_URL not set, place lookups disabled")
		return nil
	}
	return places.NewFinder(places.NewHTTPClient(places.HTTPConfig{
		BaseURL:           cfg.Places.BaseURL,
		APIKey:            cfg.Places.APIKey,
		Timeout:           time.Duration(cfg.Places.Timeout) * time.Second,
		RequestsPerSecond: cfg.Places.RequestsPerSecond,
		Retry:             cfg.Retry.Backoff(),
	}))
}

func buildSnapshotStore(cfg *config.Config, fallback cache.Store) (cache.Store, func(), error) {
	if cfg.Cache.Backend != "redis" {
		return fallback, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	store := cache.NewRedisStore(client, nil)
	if err := store.Ping(context.Background(), 5*time.Second); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr(), err)
	}
	logrus.WithField("addr", cfg.Redis.Addr()).Info("Snapshots stored in redis")
	return store, func() { client.Close() }, nil
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	setupLogging(cfg.Log)

	// Initialize database
	db, err := database.Initialize(cfg.Database)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close(db)

	// Run database migrations
	if err := database.RunMigrations(db); err != nil {
		logrus.WithError(err).Fatal("Failed to run migrations")
	}

	snapshotStore, closeSnapshots, err := buildSnapshotStore(cfg, cache.NewGormStore(db))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize snapshot store")
	}
	defer closeSnapshots()

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	r := router.Initialize(db, cfg, router.Dependencies{
		Analyzer:      buildAnalyzer(cfg),
		Places:        buildPlaces(cfg),
		SnapshotStore: snapshotStore,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logrus.WithField("addr", srv.Addr).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down server...")

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown server
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Server forced to shutdown")
	}

	logrus.Info("Server exited")
}
