package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/persistorai/fluxtrace/internal/domain"
	"github.com/persistorai/fluxtrace/internal/models"
	"github.com/persistorai/fluxtrace/internal/store"
)

func amount(v float64) *float64 { return &v }

// chainGraph is S <- A <- B <- C with B labeled Exchange, plus D -> S.
func chainGraph(t *testing.T) *store.MemoryGraph {
	t.Helper()

	g, err := store.NewMemoryGraph(&models.GraphDocument{
		Nodes: []models.CreateNodeRequest{
			{ID: "S", Key: "0xs", Labels: []string{"Address"}},
			{ID: "A", Key: "0xa", Labels: []string{"Address"}},
			{ID: "B", Key: "0xb", Labels: []string{"Address"}},
			{ID: "C", Key: "0xc", Labels: []string{"Address", "Exchange"}},
			{ID: "D", Key: "0xd", Labels: []string{"Address"}},
		},
		Edges: []models.CreateEdgeRequest{
			{ID: "e1", Source: "A", Target: "S", Amount: amount(3)},
			{ID: "e2", Source: "B", Target: "A", Amount: amount(5)},
			{ID: "e3", Source: "C", Target: "B", Amount: amount(2)},
			{ID: "e4", Source: "D", Target: "S", Amount: amount(1)},
		},
	})
	if err != nil {
		t.Fatalf("NewMemoryGraph: %v", err)
	}

	return g
}

func newTestTraceService(t *testing.T, limits TraceLimits) (*TraceService, *mockSnapshots, *countingSnapshot) {
	t.Helper()

	snap := &countingSnapshot{MemoryGraph: chainGraph(t)}
	opener := &mockSnapshots{open: func(context.Context) (domain.GraphSnapshot, error) { return snap, nil }}

	if limits.Category == "" {
		limits.Category = "Address"
	}

	return NewTraceService(opener, limits, testLogger()), opener, snap
}

func validRequest() models.TraceRequest {
	return models.TraceRequest{StartKey: "0xs", TerminalLabel: "Exchange"}
}

func drain(t *testing.T, stream domain.TraceStream) []string {
	t.Helper()

	var ids []string
	for hit, err := range stream.Hits() {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ids = append(ids, hit.Node.ID)
	}

	return ids
}

func TestTraceService_Completes(t *testing.T) {
	svc, _, snap := newTestTraceService(t, TraceLimits{})

	stream, err := svc.Trace(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}

	if stream.Start().ID != "S" {
		t.Errorf("start = %q, want S", stream.Start().ID)
	}

	got := drain(t, stream)
	want := []string{"S", "A", "B", "C", "D"}
	if len(got) != len(want) {
		t.Fatalf("hits = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("hits = %v, want %v", got, want)
		}
	}

	if snap.closeCount() != 1 {
		t.Errorf("snapshot closed %d times, want 1", snap.closeCount())
	}

	stream.Close()
	if snap.closeCount() != 1 {
		t.Errorf("Close after iteration closed the snapshot again")
	}
}

func TestTraceService_ValidationOpensNothing(t *testing.T) {
	svc, opener, _ := newTestTraceService(t, TraceLimits{})

	req := validRequest()
	req.MinContribution = -1

	if _, err := svc.Trace(context.Background(), req); !errors.Is(err, models.ErrInvalidThreshold) {
		t.Fatalf("err = %v, want ErrInvalidThreshold", err)
	}

	if opener.opened != 0 {
		t.Errorf("opened %d snapshots for an invalid request", opener.opened)
	}
}

func TestTraceService_NotFoundClosesSnapshot(t *testing.T) {
	svc, _, snap := newTestTraceService(t, TraceLimits{})

	req := validRequest()
	req.StartKey = "0xmissing"

	if _, err := svc.Trace(context.Background(), req); !errors.Is(err, models.ErrNodeNotFound) {
		t.Fatalf("err = %v, want ErrNodeNotFound", err)
	}

	if snap.closeCount() != 1 {
		t.Errorf("snapshot closed %d times, want 1", snap.closeCount())
	}
}

func TestTraceService_OpenError(t *testing.T) {
	boom := errors.New("pool exhausted")
	opener := &mockSnapshots{open: func(context.Context) (domain.GraphSnapshot, error) { return nil, boom }}
	svc := NewTraceService(opener, TraceLimits{Category: "Address"}, testLogger())

	if _, err := svc.Trace(context.Background(), validRequest()); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestTraceService_MaxResultsTruncates(t *testing.T) {
	svc, _, snap := newTestTraceService(t, TraceLimits{MaxResults: 100})

	req := validRequest()
	req.MaxResults = 2

	stream, err := svc.Trace(context.Background(), req)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}

	if got := drain(t, stream); len(got) != 2 {
		t.Fatalf("got %d hits, want 2", len(got))
	}

	if !stream.(*TraceStream).Truncated() {
		t.Error("expected Truncated=true")
	}

	if snap.closeCount() != 1 {
		t.Errorf("snapshot closed %d times, want 1", snap.closeCount())
	}
}

func TestTraceService_ExactResultCountIsNotTruncated(t *testing.T) {
	svc, _, _ := newTestTraceService(t, TraceLimits{})

	req := validRequest()
	req.MaxResults = 5

	stream, err := svc.Trace(context.Background(), req)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}

	if got := drain(t, stream); len(got) != 5 {
		t.Fatalf("got %d hits, want 5", len(got))
	}

	if stream.(*TraceStream).Truncated() {
		t.Error("expected Truncated=false")
	}
}

func TestTraceService_ApplyLimits(t *testing.T) {
	svc := NewTraceService(nil, TraceLimits{Category: "Address", MaxDepth: 8, MaxResults: 50}, testLogger())

	tests := []struct {
		name         string
		req          models.TraceRequest
		wantDepth    int
		wantResults  int
		wantCategory string
	}{
		{name: "defaults", req: models.TraceRequest{}, wantDepth: 8, wantResults: 50, wantCategory: "Address"},
		{name: "within limits", req: models.TraceRequest{MaxDepth: 3, MaxResults: 10, Category: "Contract"}, wantDepth: 3, wantResults: 10, wantCategory: "Contract"},
		{name: "above limits", req: models.TraceRequest{MaxDepth: 100, MaxResults: 1000}, wantDepth: 8, wantResults: 50, wantCategory: "Address"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.applyLimits(tc.req)
			if got.MaxDepth != tc.wantDepth || got.MaxResults != tc.wantResults || got.Category != tc.wantCategory {
				t.Errorf("got depth=%d results=%d category=%q", got.MaxDepth, got.MaxResults, got.Category)
			}
			if got.Emit != models.EmitAll {
				t.Errorf("emit = %q, want all", got.Emit)
			}
		})
	}
}

func TestTraceService_MaxDepthLimit(t *testing.T) {
	svc, _, _ := newTestTraceService(t, TraceLimits{MaxDepth: 1})

	got := func() []string {
		stream, err := svc.Trace(context.Background(), validRequest())
		if err != nil {
			t.Fatalf("Trace: %v", err)
		}
		return drain(t, stream)
	}()

	if len(got) != 3 {
		t.Errorf("hits = %v, want S, A and D", got)
	}
}

func TestTraceService_BreakClosesSnapshot(t *testing.T) {
	svc, _, snap := newTestTraceService(t, TraceLimits{})

	stream, err := svc.Trace(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}

	for range stream.Hits() {
		break
	}

	if snap.closeCount() != 1 {
		t.Errorf("snapshot closed %d times, want 1", snap.closeCount())
	}

	for range stream.Hits() {
		t.Fatal("second range yielded a hit")
	}
}

func TestTraceService_CloseWithoutIterating(t *testing.T) {
	svc, _, snap := newTestTraceService(t, TraceLimits{})

	stream, err := svc.Trace(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}

	stream.Close()
	stream.Close()

	if snap.closeCount() != 1 {
		t.Errorf("snapshot closed %d times, want 1", snap.closeCount())
	}
}

func TestTraceService_TimeoutEndsStream(t *testing.T) {
	svc, _, _ := newTestTraceService(t, TraceLimits{Timeout: time.Nanosecond})

	stream, err := svc.Trace(context.Background(), validRequest())
	if err != nil {
		// The deadline may already have passed while loading the start node.
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Trace: %v", err)
		}
		return
	}

	var gotErr error
	for _, err := range stream.Hits() {
		if err != nil {
			gotErr = err
		}
	}

	if !errors.Is(gotErr, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", gotErr)
	}
}
