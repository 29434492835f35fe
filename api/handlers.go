package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gcbaptista/go-titlematch/config"
	"github.com/gcbaptista/go-titlematch/internal/engine"
	"github.com/gcbaptista/go-titlematch/internal/jobs"
	"github.com/gcbaptista/go-titlematch/internal/resultstore"
	"github.com/gcbaptista/go-titlematch/internal/scoring"
	"github.com/gcbaptista/go-titlematch/services"
)

// defaultMaxBodySize bounds request bodies; collection builds carry whole document sets.
const defaultMaxBodySize = 64 << 20

// Deps are the components served by the API.
type Deps struct {
	Provider         services.CandidateProvider
	Lister           services.CollectionLister // Optional; defaults to Provider when it implements the interface
	MatchSettings    config.MatchSettings
	ProviderSettings config.ProviderSettings
	Jobs             *jobs.Manager
	Engine           *engine.Engine     // Local collections; nil when targets live in Elasticsearch
	Results          *resultstore.Store // Optional result persistence
	Logger           *slog.Logger
}

// API holds dependencies for API handlers.
type API struct {
	provider         services.CandidateProvider
	lister           services.CollectionLister
	scorer           *scoring.Scorer
	matchSettings    config.MatchSettings
	providerSettings config.ProviderSettings
	jobs             *jobs.Manager
	engine           *engine.Engine
	results          *resultstore.Store
	logger           *slog.Logger
	startedAt        time.Time
}

// NewAPI creates a new API handler structure.
func NewAPI(deps Deps) (*API, error) {
	if deps.Provider == nil {
		return nil, errors.New("candidate provider is required")
	}
	if deps.Jobs == nil {
		return nil, errors.New("job manager is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	deps.MatchSettings.ApplyDefaults()
	deps.ProviderSettings.ApplyDefaults()
	scorer, err := scoring.NewScorer(deps.MatchSettings, scoring.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	lister := deps.Lister
	if lister == nil {
		lister, _ = deps.Provider.(services.CollectionLister)
	}

	return &API{
		provider:         deps.Provider,
		lister:           lister,
		scorer:           scorer,
		matchSettings:    deps.MatchSettings,
		providerSettings: deps.ProviderSettings,
		jobs:             deps.Jobs,
		engine:           deps.Engine,
		results:          deps.Results,
		logger:           logger.With("component", "api"),
		startedAt:        time.Now(),
	}, nil
}

// NewRouter creates a gin engine with the standard middleware and every route.
func NewRouter(api *API) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(api.logger), CORSMiddleware(),
		RequestSizeLimitMiddleware(defaultMaxBodySize))
	SetupRoutes(router, api)
	return router
}

// SetupRoutes defines all the API routes.
func SetupRoutes(router *gin.Engine, api *API) {
	router.GET("/health", api.HealthCheckHandler)

	// Matching routes
	router.POST("/match", api.MatchHandler)

	// Job management routes
	jobRoutes := router.Group("/jobs")
	{
		jobRoutes.GET("", api.ListJobsHandler)                     // List jobs, optionally by collection and status
		jobRoutes.GET("/metrics", api.GetJobMetricsHandler)        // Get job performance metrics
		jobRoutes.GET("/:jobId", api.GetJobHandler)                // Get job status by ID
		jobRoutes.GET("/:jobId/results", api.GetJobResultsHandler) // Get the result of a matching job
	}

	// Collection routes
	collectionRoutes := router.Group("/collections")
	{
		collectionRoutes.GET("", api.ListCollectionsHandler)                 // List target collections
		collectionRoutes.POST("", api.BuildCollectionHandler)                // Build a local collection
		collectionRoutes.POST("/match", api.MatchCollectionHandler)          // Match a batch of origins
		collectionRoutes.GET("/:collection", api.GetCollectionHandler)       // Local collection settings and size
		collectionRoutes.DELETE("/:collection", api.DeleteCollectionHandler) // Delete a local collection
	}

	// Stored run routes
	runRoutes := router.Group("/runs")
	{
		runRoutes.GET("", api.ListRunsHandler)
		runRoutes.GET("/:runId", api.GetRunHandler)
		runRoutes.DELETE("/:runId", api.DeleteRunHandler)
	}
}

// HealthCheckHandler reports liveness and which optional components are configured.
func (api *API) HealthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"uptime_seconds":    int64(time.Since(api.startedAt).Seconds()),
		"provider":          api.providerSettings.Kind,
		"local_collections": api.engine != nil,
		"result_store":      api.results != nil,
		"current_workload":  api.jobs.GetCurrentWorkload(),
	})
}

// requestContext bounds a synchronous handler by the provider timeout.
func (api *API) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), api.providerSettings.Timeout())
}
