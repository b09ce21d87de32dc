// Package service provides the trace and import logic between the API
// handlers and the graph stores.
package service

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/persistorai/fluxtrace/internal/domain"
	"github.com/persistorai/fluxtrace/internal/flux"
	"github.com/persistorai/fluxtrace/internal/metrics"
	"github.com/persistorai/fluxtrace/internal/models"
)

const closeTimeout = 5 * time.Second

// Trace outcomes reported to metrics and logs.
const (
	outcomeCompleted = "completed"
	outcomeStopped   = "stopped"
	outcomeTruncated = "truncated"
	outcomeFailed    = "failed"
)

// TraceLimits holds the server-side defaults and ceilings applied to every
// trace request.
type TraceLimits struct {
	Category   string
	MaxDepth   int
	MaxResults int
	Timeout    time.Duration
}

var _ domain.TraceService = (*TraceService)(nil)

// TraceService runs flux traversals over snapshots from a SnapshotOpener.
type TraceService struct {
	snapshots domain.SnapshotOpener
	limits    TraceLimits
	log       *logrus.Logger
}

// NewTraceService creates a TraceService.
func NewTraceService(snapshots domain.SnapshotOpener, limits TraceLimits, log *logrus.Logger) *TraceService {
	return &TraceService{snapshots: snapshots, limits: limits, log: log}
}

// Trace validates req, opens a snapshot and prepares the traversal. Errors
// that occur before the first hit, such as an unknown start key, are
// returned here and leave nothing open.
func (s *TraceService) Trace(ctx context.Context, req models.TraceRequest) (domain.TraceStream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	req = s.applyLimits(req)

	s.log.WithFields(logrus.Fields{
		"start_key":        req.StartKey,
		"category":         req.Category,
		"min_contribution": req.MinContribution,
		"terminal_label":   req.TerminalLabel,
		"emit":             req.Emit,
		"max_depth":        req.MaxDepth,
	}).Debug("trace.start")

	var cancel context.CancelFunc = func() {}
	if s.limits.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.limits.Timeout)
	}

	snap, err := s.snapshots.OpenSnapshot(ctx)
	if err != nil {
		cancel()
		metrics.TracesTotal.WithLabelValues(outcomeFailed).Inc()

		return nil, fmt.Errorf("opening snapshot: %w", err)
	}

	engine := flux.New(
		flux.WithLogger(s.log),
		flux.WithMaxDepth(req.MaxDepth),
		flux.WithEmitMode(req.Emit),
	)

	run, err := engine.Traverse(ctx, snap, flux.Query{
		StartKey:        req.StartKey,
		StartCategory:   req.Category,
		MinContribution: req.MinContribution,
		TerminalLabel:   req.TerminalLabel,
	})
	if err != nil {
		closeSnapshot(snap, s.log)
		cancel()
		metrics.TracesTotal.WithLabelValues(outcomeFailed).Inc()

		return nil, err
	}

	metrics.ActiveTraces.Inc()

	return &TraceStream{
		req:     req,
		run:     run,
		snap:    snap,
		cancel:  cancel,
		log:     s.log,
		started: time.Now(),
	}, nil
}

// applyLimits fills defaults and clamps depth and result count to the
// configured ceilings.
func (s *TraceService) applyLimits(req models.TraceRequest) models.TraceRequest {
	if req.Category == "" {
		req.Category = s.limits.Category
	}

	if req.Emit == "" {
		req.Emit = models.EmitAll
	}

	if s.limits.MaxDepth > 0 && (req.MaxDepth == 0 || req.MaxDepth > s.limits.MaxDepth) {
		req.MaxDepth = s.limits.MaxDepth
	}

	if s.limits.MaxResults > 0 && (req.MaxResults == 0 || req.MaxResults > s.limits.MaxResults) {
		req.MaxResults = s.limits.MaxResults
	}

	return req
}

// TraceStream is one running trace. It owns a snapshot until iteration
// ends or Close is called.
type TraceStream struct {
	req     models.TraceRequest
	run     *flux.Run
	snap    domain.GraphSnapshot
	cancel  context.CancelFunc
	log     *logrus.Logger
	started time.Time

	mu        sync.Mutex
	consumed  bool
	truncated bool
	closeOnce sync.Once
}

// Start returns the resolved start node.
func (t *TraceStream) Start() models.Node {
	return t.run.Start()
}

// Stats returns the traversal counters collected so far.
func (t *TraceStream) Stats() flux.Stats {
	return t.run.Stats()
}

// Truncated reports whether the hit cap stopped the trace.
func (t *TraceStream) Truncated() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.truncated
}

// Hits yields the trace's hits, at most MaxResults of them. The snapshot is
// closed when the range ends, whether by exhaustion, error or break.
func (t *TraceStream) Hits() iter.Seq2[models.TraceHit, error] {
	return func(yield func(models.TraceHit, error) bool) {
		t.mu.Lock()
		if t.consumed {
			t.mu.Unlock()
			return
		}
		t.consumed = true
		t.mu.Unlock()

		defer t.Close()

		n := 0
		outcome := outcomeCompleted

		for hit, err := range t.run.Hits() {
			if err != nil {
				outcome = outcomeFailed
				t.log.WithError(err).WithField("start_key", t.req.StartKey).Warn("trace failed mid-stream")
				yield(models.TraceHit{}, err)

				break
			}

			if t.req.MaxResults > 0 && n == t.req.MaxResults {
				outcome = outcomeTruncated
				t.mu.Lock()
				t.truncated = true
				t.mu.Unlock()

				break
			}

			n++

			if !yield(hit, nil) {
				outcome = outcomeStopped
				break
			}
		}

		t.finish(n, outcome)
	}
}

func (t *TraceStream) finish(hits int, outcome string) {
	stats := t.run.Stats()
	elapsed := time.Since(t.started)

	metrics.TracesTotal.WithLabelValues(outcome).Inc()
	metrics.TraceDuration.Observe(elapsed.Seconds())
	metrics.TraceHits.Observe(float64(hits))
	metrics.TracePrunedEdges.Add(float64(stats.Pruned))
	metrics.TraceSkippedBranches.Add(float64(stats.Skipped))

	t.log.WithFields(logrus.Fields{
		"start_key":     t.req.StartKey,
		"outcome":       outcome,
		"hits":          hits,
		"visited":       stats.Visited,
		"pruned":        stats.Pruned,
		"reused":        stats.Reused,
		"skipped":       stats.Skipped,
		"depth_limited": stats.DepthLimited,
		"duration_ms":   elapsed.Milliseconds(),
	}).Info("trace finished")
}

// Close releases the snapshot and the trace deadline. It is idempotent.
func (t *TraceStream) Close() {
	t.closeOnce.Do(func() {
		closeSnapshot(t.snap, t.log)
		t.cancel()
		metrics.ActiveTraces.Dec()
	})
}

// closeSnapshot uses a fresh context so a cancelled request still releases
// its connection.
func closeSnapshot(snap domain.GraphSnapshot, log *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if err := snap.Close(ctx); err != nil {
		log.WithError(err).Warn("failed to close graph snapshot")
	}
}
