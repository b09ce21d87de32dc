package api_test

import (
	"context"
	"iter"
	"sync/atomic"

	"github.com/persistorai/fluxtrace/internal/domain"
	"github.com/persistorai/fluxtrace/internal/flux"
	"github.com/persistorai/fluxtrace/internal/models"
)

// mockTraceService implements domain.TraceService for testing.
type mockTraceService struct {
	traceFn func(ctx context.Context, req models.TraceRequest) (domain.TraceStream, error)
}

func (m *mockTraceService) Trace(ctx context.Context, req models.TraceRequest) (domain.TraceStream, error) {
	return m.traceFn(ctx, req)
}

// mockTraceStream implements domain.TraceStream over a fixed hit list,
// optionally ending with err.
type mockTraceStream struct {
	hits      []models.TraceHit
	err       error
	truncated bool
	closed    atomic.Int32
}

func (m *mockTraceStream) Start() models.Node {
	if len(m.hits) == 0 {
		return models.Node{}
	}

	return m.hits[0].Node
}

func (m *mockTraceStream) Hits() iter.Seq2[models.TraceHit, error] {
	return func(yield func(models.TraceHit, error) bool) {
		for _, h := range m.hits {
			if !yield(h, nil) {
				return
			}
		}

		if m.err != nil {
			yield(models.TraceHit{}, m.err)
		}
	}
}

func (m *mockTraceStream) Stats() flux.Stats { return flux.Stats{Emitted: len(m.hits)} }

func (m *mockTraceStream) Truncated() bool { return m.truncated }

func (m *mockTraceStream) Close() { m.closed.Add(1) }

// mockImportService implements domain.ImportService for testing.
type mockImportService struct {
	importFn func(ctx context.Context, doc *models.GraphDocument) (*models.ImportResult, error)
}

func (m *mockImportService) Import(ctx context.Context, doc *models.GraphDocument) (*models.ImportResult, error) {
	return m.importFn(ctx, doc)
}

// mockProbe implements api.DatabaseProbe for testing.
type mockProbe struct {
	healthErr  error
	version    int64
	versionErr error
}

func (m *mockProbe) HealthCheck(context.Context) error { return m.healthErr }

func (m *mockProbe) AppliedVersion(context.Context) (int64, error) { return m.version, m.versionErr }

// sampleHits is the scenario trace S <- A <- {B, C}.
func sampleHits() []models.TraceHit {
	return []models.TraceHit{
		{Node: models.Node{ID: "S", Key: "0x5"}, Contribution: 1, Influx: 10, Path: []string{"S"}},
		{Node: models.Node{ID: "A", Key: "0xa"}, Contribution: 1, Influx: 10, Depth: 1, Path: []string{"S", "A"}},
		{Node: models.Node{ID: "B", Key: "0xb"}, Contribution: 0.4, Depth: 2, Terminal: true, Path: []string{"S", "A", "B"}},
		{Node: models.Node{ID: "C", Key: "0xc"}, Contribution: 0.6, Depth: 2, Path: []string{"S", "A", "C"}},
	}
}

// streamingService returns a service that records the request it saw and
// answers with stream.
func streamingService(stream *mockTraceStream, seen *models.TraceRequest) *mockTraceService {
	return &mockTraceService{
		traceFn: func(_ context.Context, req models.TraceRequest) (domain.TraceStream, error) {
			if seen != nil {
				*seen = req
			}

			return stream, nil
		},
	}
}

// blockingTraceStream yields its first hit, then waits for the trace context
// received on ctxs to end and reports the error it saw on ctxErr.
type blockingTraceStream struct {
	*mockTraceStream
	ctxs   chan context.Context
	ctxErr chan error
}

func (b *blockingTraceStream) Hits() iter.Seq2[models.TraceHit, error] {
	return func(yield func(models.TraceHit, error) bool) {
		ctx := <-b.ctxs

		if !yield(b.hits[0], nil) {
			return
		}

		<-ctx.Done()
		b.ctxErr <- ctx.Err()
		yield(models.TraceHit{}, ctx.Err())
	}
}
