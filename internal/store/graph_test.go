package store_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/persistorai/fluxtrace/internal/flux"
	"github.com/persistorai/fluxtrace/internal/store"
)

func importScenario(t *testing.T, base store.Base) {
	t.Helper()

	doc, err := store.DecodeDocument([]byte(scenarioYAML), ".yaml")
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}

	if err := doc.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	res, err := store.NewImportStore(base).ImportGraph(context.Background(), doc)
	if err != nil {
		t.Fatalf("ImportGraph: %v", err)
	}

	if res.Nodes != 4 || res.Edges != 3 {
		t.Fatalf("ImportGraph result = %+v", res)
	}
}

func TestSnapshot_FindAndIncoming(t *testing.T) {
	base := setupTestBase(t)
	importScenario(t, base)
	ctx := context.Background()

	snap, err := store.NewGraphStore(base).OpenSnapshot(ctx)
	if err != nil {
		t.Fatalf("OpenSnapshot: %v", err)
	}
	defer snap.Close(ctx) //nolint:errcheck // test cleanup.

	n, err := snap.FindNodeByKey(ctx, "Address", "0xb")
	if err != nil {
		t.Fatalf("FindNodeByKey: %v", err)
	}
	if n == nil || n.ID != "B" || !n.HasLabel("Exchange") {
		t.Fatalf("got %+v, want node B with Exchange label", n)
	}

	missing, err := snap.FindNodeByKey(ctx, "Contract", "0xb")
	if err != nil || missing != nil {
		t.Errorf("wrong category: got %+v, %v", missing, err)
	}

	in, err := snap.IncomingEdges(ctx, "A")
	if err != nil {
		t.Fatalf("IncomingEdges: %v", err)
	}

	var got []string
	for _, e := range in {
		got = append(got, e.Edge.ID+":"+e.Source.ID)
	}

	if diff := cmp.Diff([]string{"e2:B", "e3:C"}, got); diff != "" {
		t.Errorf("incoming mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshot_MatchesMemoryGraph(t *testing.T) {
	base := setupTestBase(t)
	importScenario(t, base)
	ctx := context.Background()

	snap, err := store.NewGraphStore(base).OpenSnapshot(ctx)
	if err != nil {
		t.Fatalf("OpenSnapshot: %v", err)
	}
	defer snap.Close(ctx) //nolint:errcheck // test cleanup.

	trace := func(view flux.GraphView) []string {
		run, err := flux.New().Traverse(ctx, view, flux.Query{StartKey: "0x5", MinContribution: 0.3, TerminalLabel: "Exchange"})
		if err != nil {
			t.Fatalf("Traverse: %v", err)
		}

		var out []string
		for h, err := range run.Hits() {
			if err != nil {
				t.Fatalf("Hits: %v", err)
			}
			out = append(out, h.Node.ID)
		}

		return out
	}

	if diff := cmp.Diff(trace(loadScenario(t)), trace(snap)); diff != "" {
		t.Errorf("postgres and memory traces differ (-memory +postgres):\n%s", diff)
	}
}

func TestSnapshot_IsolatedFromLaterWrites(t *testing.T) {
	base := setupTestBase(t)
	importScenario(t, base)
	ctx := context.Background()

	snap, err := store.NewGraphStore(base).OpenSnapshot(ctx)
	if err != nil {
		t.Fatalf("OpenSnapshot: %v", err)
	}
	defer snap.Close(ctx) //nolint:errcheck // test cleanup.

	// First read pins the snapshot.
	if _, err := snap.IncomingEdges(ctx, "A"); err != nil {
		t.Fatalf("IncomingEdges: %v", err)
	}

	if _, err := base.Pool.Exec(ctx, `INSERT INTO flux_edges (id, source, target, amount) VALUES ('e9', 'S', 'A', 1)`); err != nil {
		t.Fatalf("inserting edge: %v", err)
	}

	in, err := snap.IncomingEdges(ctx, "A")
	if err != nil {
		t.Fatalf("IncomingEdges: %v", err)
	}

	if len(in) != 2 {
		t.Errorf("snapshot saw %d incoming edges, want 2", len(in))
	}
}

func TestSnapshot_CloseIsIdempotent(t *testing.T) {
	base := setupTestBase(t)
	ctx := context.Background()

	snap, err := store.NewGraphStore(base).OpenSnapshot(ctx)
	if err != nil {
		t.Fatalf("OpenSnapshot: %v", err)
	}

	if err := snap.Close(ctx); err != nil {
		t.Fatalf("first Close: %v", err)
	}

	if err := snap.Close(ctx); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
