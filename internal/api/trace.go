package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/fluxtrace/internal/domain"
	"github.com/persistorai/fluxtrace/internal/httputil"
	"github.com/persistorai/fluxtrace/internal/metrics"
	"github.com/persistorai/fluxtrace/internal/ws"
)

// Trailers sent after an NDJSON trace body.
const (
	TrailerHits      = "X-Trace-Hits"
	TrailerTruncated = "X-Trace-Truncated"
)

// streamError is the final line of an NDJSON trace that failed mid-stream.
type streamError struct {
	Error httputil.ErrorBody `json:"error"`
}

// TraceHandler serves the trace endpoints.
type TraceHandler struct {
	traces      domain.TraceService
	log         *logrus.Logger
	corsOrigins []string
}

// NewTraceHandler creates a TraceHandler. corsOrigins are reused as websocket
// origin patterns.
func NewTraceHandler(traces domain.TraceService, log *logrus.Logger, corsOrigins []string) *TraceHandler {
	return &TraceHandler{traces: traces, log: log, corsOrigins: corsOrigins}
}

// prepare parses and validates the request and starts the trace. On failure
// it writes the error response and returns nil.
func (h *TraceHandler) prepare(ctx context.Context, c *gin.Context) domain.TraceStream {
	req, err := parseTraceRequest(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error())
		return nil
	}

	if err := req.Validate(); err != nil {
		respondValidation(c, err)
		return nil
	}

	stream, err := h.traces.Trace(ctx, req)
	if err != nil {
		status, code, msg := classifyError(err)
		if status >= http.StatusInternalServerError {
			h.log.WithError(err).WithField("start_key", req.StartKey).Error("starting trace")
		}

		respondError(c, status, code, msg)

		return nil
	}

	return stream
}

// Stream handles GET /api/v1/trace/:key. Hits are written as NDJSON, one
// flushed line each. Once the body has started, a failure is reported as a
// final {"error": ...} line; the hit count and truncation flag follow as
// trailers.
func (h *TraceHandler) Stream(c *gin.Context) {
	stream := h.prepare(c.Request.Context(), c)
	if stream == nil {
		return
	}
	defer stream.Close()

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-store")
	c.Header("X-Accel-Buffering", "no")
	c.Header("Trailer", TrailerHits+", "+TrailerTruncated)
	c.Status(http.StatusOK)

	enc := json.NewEncoder(c.Writer)
	n := 0

	for hit, err := range stream.Hits() {
		if err != nil {
			if c.Request.Context().Err() != nil {
				h.log.WithError(err).Debug("trace client went away")
				return
			}

			_, code, msg := classifyError(err)
			h.log.WithError(err).Warn("trace failed mid-stream")
			metrics.ErrorsTotal.WithLabelValues(code).Inc()

			if werr := enc.Encode(streamError{Error: httputil.NewErrorBody(c, code, msg)}); werr == nil {
				c.Writer.Flush()
			}

			return
		}

		if err := enc.Encode(hit); err != nil {
			h.log.WithError(err).Debug("writing trace line")
			return
		}

		c.Writer.Flush()

		n++
	}

	c.Writer.Header().Set(TrailerHits, strconv.Itoa(n))
	c.Writer.Header().Set(TrailerTruncated, strconv.FormatBool(stream.Truncated()))
}

// WebSocket handles GET /api/v1/trace/:key/ws. Request errors are returned as
// plain HTTP responses before the upgrade. Closing the socket stops the trace.
func (h *TraceHandler) WebSocket(c *gin.Context) {
	// The hijacked request's context is not cancelled when the peer leaves;
	// the session cancels this one instead.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	stream := h.prepare(ctx, c)
	if stream == nil {
		return
	}

	conn, err := websocket.Accept(hijackWriter(c.Writer), c.Request, &websocket.AcceptOptions{
		OriginPatterns:       h.corsOrigins,
		CompressionMode:      websocket.CompressionContextTakeover,
		CompressionThreshold: 128,
	})
	if err != nil {
		stream.Close()
		h.log.WithError(err).Error("websocket accept failed")

		return
	}

	if err := ws.NewSession(conn, cancel, h.log).Run(ctx, stream); err != nil {
		h.log.WithError(err).Warn("websocket trace ended with error")
	}
}

// hijackWriter returns the net/http writer under gin's. websocket.Accept
// writes the 101 status before hijacking, and gin refuses to hijack a
// response it has marked as written.
func hijackWriter(w gin.ResponseWriter) http.ResponseWriter {
	if u, ok := w.(interface{ Unwrap() http.ResponseWriter }); ok {
		return u.Unwrap()
	}

	return w
}
