// Package api provides HTTP handlers for the fluxtrace server.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	probe         DatabaseProbe
	log           *logrus.Logger
	version       string
	schemaVersion int64
	startTime     time.Time
}

// NewHealthHandler creates a HealthHandler. probe is nil when the server runs
// on an in-memory graph; schemaVersion is the migration version the binary
// expects.
func NewHealthHandler(probe DatabaseProbe, log *logrus.Logger, version string, schemaVersion int64) *HealthHandler {
	return &HealthHandler{
		probe:         probe,
		log:           log,
		version:       version,
		schemaVersion: schemaVersion,
		startTime:     time.Now(),
	}
}

// readinessResponse is the JSON payload returned by the readiness endpoint.
type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// healthResponse is the JSON payload returned by the health/liveness endpoint.
type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Source        string  `json:"source"`
	Database      string  `json:"database"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Liveness handles GET /api/v1/health.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		Source:        "memory",
		Database:      "not_configured",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	// Best-effort database ping (non-fatal for liveness).
	if h.probe != nil {
		resp.Source = "postgres"
		resp.Database = "connected"

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.probe.HealthCheck(ctx); err != nil {
			resp.Database = "disconnected"
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness handles GET /api/v1/ready. An in-memory server is always ready;
// a Postgres-backed one needs a reachable database at the expected schema
// version.
func (h *HealthHandler) Readiness(c *gin.Context) {
	if h.probe == nil {
		c.JSON(http.StatusOK, readinessResponse{
			Status: "ready",
			Checks: map[string]string{"graph": "memory"},
		})

		return
	}

	checks := map[string]string{
		"database": "ok",
		"schema":   "ok",
	}
	status := "ready"
	statusCode := http.StatusOK

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.probe.HealthCheck(ctx); err != nil {
		h.log.WithError(err).Error("readiness: database health check failed")
		checks["database"] = "error"
		checks["schema"] = "unknown"
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	} else if applied, err := h.probe.AppliedVersion(ctx); err != nil || applied < h.schemaVersion {
		h.log.WithError(err).WithFields(logrus.Fields{
			"applied":  applied,
			"expected": h.schemaVersion,
		}).Error("readiness: schema check failed")
		checks["schema"] = "error"
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, readinessResponse{
		Status: status,
		Checks: checks,
	})
}
