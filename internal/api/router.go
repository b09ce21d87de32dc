package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/fluxtrace/internal/domain"
	"github.com/persistorai/fluxtrace/internal/middleware"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log           *logrus.Logger
	Probe         DatabaseProbe        // nil for an in-memory graph
	Traces        domain.TraceService
	Imports       domain.ImportService // nil for an in-memory graph
	CORSOrigins   []string
	APIKey        string
	Version       string
	SchemaVersion int64
}

// streamRoutes hold the connection open for the length of a trace.
var streamRoutes = []string{"/api/v1/trace/:key", "/api/v1/trace/:key/ws"}

// Router-level limits.
const (
	maxBodySize = 64 << 20 // 64 MB, graph documents
	rateLimit   = 100      // requests per second per IP
	rateBurst   = 200      // token bucket burst size
)

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID())
	r.Use(ginLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     deps.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader, TrailerHits, TrailerTruncated},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(ctx, rateLimit, rateBurst).Handler())
	r.Use(middleware.PrometheusMiddleware(streamRoutes...))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Probe, log, deps.Version, deps.SchemaVersion)
	traces := NewTraceHandler(deps.Traces, log, deps.CORSOrigins)
	graph := NewGraphHandler(deps.Imports, log)

	// Health and readiness are unauthenticated.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	// All other API routes require the API key when one is configured.
	guard := middleware.NewBruteForceGuard(ctx, log)
	api.Use(middleware.APIKeyAuth(deps.APIKey, log, guard))

	api.GET("/trace/:key", traces.Stream)
	api.GET("/trace/:key/ws", traces.WebSocket)

	api.POST("/graph/import", graph.Import)
}

// NewRouter creates and configures the Gin engine with all middleware and
// routes. Metrics are served by a separate listener.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
