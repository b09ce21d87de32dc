package api

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/fluxtrace/internal/middleware"
	"github.com/persistorai/fluxtrace/internal/models"
)

var errInvalidQuery = errors.New("invalid query parameter")

func ginLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		}
		if rid, exists := c.Get(middleware.RequestIDKey); exists {
			fields["request_id"] = rid
		}
		log.WithFields(fields).Info("request")
	}
}

// parseTraceRequest builds a TraceRequest from the :key path parameter and
// the query string. It rejects unparsable numbers; range checks are left to
// TraceRequest.Validate.
func parseTraceRequest(c *gin.Context) (models.TraceRequest, error) {
	req := models.TraceRequest{
		StartKey:      c.Param("key"),
		Category:      c.Query("category"),
		TerminalLabel: c.Query("terminal_label"),
		Emit:          models.EmitMode(c.Query("emit")),
	}

	var err error

	if req.MinContribution, err = parseFloat(c, "min_contribution"); err != nil {
		return req, err
	}

	if req.MaxDepth, err = parseInt(c, "max_depth"); err != nil {
		return req, err
	}

	if req.MaxResults, err = parseInt(c, "max_results"); err != nil {
		return req, err
	}

	return req, nil
}

// parseFloat reads an optional float query parameter. Absent means zero.
func parseFloat(c *gin.Context, name string) (float64, error) {
	s := c.Query(name)
	if s == "" {
		return 0, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %s must be a finite number", errInvalidQuery, name)
	}

	return v, nil
}

// parseInt reads an optional integer query parameter. Absent means zero.
func parseInt(c *gin.Context, name string) (int, error) {
	s := c.Query(name)
	if s == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errInvalidQuery, name)
	}

	return v, nil
}
