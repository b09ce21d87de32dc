package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/persistorai/fluxtrace/internal/httputil"
	"github.com/persistorai/fluxtrace/internal/metrics"
	"github.com/persistorai/fluxtrace/internal/models"
)

// Error code constants for standardized API responses.
const (
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeInternalError   = "internal_error"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeValidationError = "validation_error"
	ErrCodeTimeout         = "timeout"
	ErrCodeUnavailable     = "unavailable"
)

// respondError writes a standardized JSON error response, pulling the request
// ID from the Gin context (set by the request ID middleware).
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}

// classifyError maps a service error to an HTTP status, an error code and a
// client-safe message. Request validation happens in the handlers, so
// anything unrecognized here is an internal error.
func classifyError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, models.ErrNodeNotFound):
		return http.StatusNotFound, ErrCodeNotFound, err.Error()
	case errors.Is(err, models.ErrMalformedWeight):
		return http.StatusUnprocessableEntity, ErrCodeValidationError, err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeTimeout, "trace timed out"
	default:
		return http.StatusInternalServerError, ErrCodeInternalError, "internal server error"
	}
}

// respondValidation writes a 422 for malformed edge amounts and a 400 for
// every other validation failure.
func respondValidation(c *gin.Context, err error) {
	if errors.Is(err, models.ErrMalformedWeight) {
		respondError(c, http.StatusUnprocessableEntity, ErrCodeValidationError, err.Error())
		return
	}

	respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
}
