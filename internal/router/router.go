// internal/router/router.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/javajoker/venuetrust/internal/cache"
	"github.com/javajoker/venuetrust/internal/config"
	"github.com/javajoker/venuetrust/internal/handlers"
	"github.com/javajoker/venuetrust/internal/middleware"
	"github.com/javajoker/venuetrust/internal/places"
	"github.com/javajoker/venuetrust/internal/services"
)

const version = "1.0.0"

// Dependencies are the collaborators built from configuration at startup.
type Dependencies struct {
	Analyzer      services.ReviewAnalyzer
	Places        *places.Finder // nil when no place provider is configured
	SnapshotStore cache.Store
	Spawn         func(func()) // nil runs background work on goroutines
}

func Initialize(db *gorm.DB, cfg *config.Config, deps Dependencies) *gin.Engine {
	snapshotOpts := []cache.Option{cache.WithTTL(cfg.Cache.SnapshotTTL())}
	var detailOpts []services.DetailOption
	if deps.Spawn != nil {
		snapshotOpts = append(snapshotOpts, cache.WithSpawn(deps.Spawn))
		detailOpts = append(detailOpts, services.WithDetailSpawn(deps.Spawn))
	}
	snapshots := cache.NewSnapshots(deps.SnapshotStore, snapshotOpts...)

	// Only hand typed nils to the services when a finder exists.
	var finder services.PlaceFinder
	var nearby services.NearbySearcher
	if deps.Places != nil {
		finder, nearby = deps.Places, deps.Places
	}

	// Initialize services
	storeService := services.NewStoreService(db, cfg.Dedup.GeoMatchMeters)
	summaryService := services.NewSummaryService(db)
	reviewService := services.NewReviewService(db, deps.Analyzer, summaryService,
		time.Duration(cfg.Analysis.Timeout)*time.Second)
	peerService := services.NewPeerService(db, storeService, summaryService, nearby)
	detailService := services.NewDetailService(db, storeService, reviewService, summaryService,
		peerService, finder, snapshots, detailOpts...)
	dedupService := services.NewDedupService(db, summaryService, snapshots, services.DedupOptions{
		DefaultMaxGroups: cfg.Dedup.DefaultMaxGroups,
		PageSize:         cfg.Dedup.PageSize,
		Parallelism:      cfg.Dedup.Parallelism,
	})

	// Initialize handlers
	storeHandler := handlers.NewStoreHandler(storeService, summaryService, peerService, detailService)
	reviewHandler := handlers.NewReviewHandler(reviewService)
	adminHandler := handlers.NewAdminHandler(dedupService, reviewService)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.RateLimit(cfg.Server.RequestsPerSecond, cfg.Server.Burst))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "healthy", "version": version}
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unhealthy"
		}
		c.JSON(status, body)
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		stores := v1.Group("/stores")
		{
			stores.POST("", storeHandler.CreateStore)
			stores.GET("/:id", storeHandler.GetStore)
			stores.GET("/:id/summary", storeHandler.GetSummary)
			stores.GET("/:id/rating-trust", storeHandler.GetRatingTrust)
			stores.GET("/:id/peers", storeHandler.GetPeers)
			stores.POST("/:id/reviews", reviewHandler.SubmitReview)
			stores.GET("/:id/reviews", reviewHandler.ListReviews)
		}

		admin := v1.Group("/admin")
		{
			admin.POST("/dedup", adminHandler.RunDedup)
			admin.POST("/stores/:id/reanalyze", adminHandler.ReanalyzeStore)
		}
	}

	return r
}
