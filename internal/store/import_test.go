package store_test

import (
	"context"
	"testing"

	"github.com/persistorai/fluxtrace/internal/models"
	"github.com/persistorai/fluxtrace/internal/store"
)

func TestImportGraph_Upserts(t *testing.T) {
	base := setupTestBase(t)
	importScenario(t, base)
	ctx := context.Background()

	amount := 99.0
	doc := &models.GraphDocument{
		Nodes: []models.CreateNodeRequest{{ID: "A", Key: "0xa", Labels: []string{"Address"}}, {ID: "S", Key: "0x5", Labels: []string{"Address"}}},
		Edges: []models.CreateEdgeRequest{{ID: "e1", Source: "A", Target: "S", Amount: &amount}},
	}
	if err := doc.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if _, err := store.NewImportStore(base).ImportGraph(ctx, doc); err != nil {
		t.Fatalf("ImportGraph: %v", err)
	}

	var got float64
	if err := base.Pool.QueryRow(ctx, `SELECT amount FROM flux_edges WHERE id = 'e1'`).Scan(&got); err != nil {
		t.Fatalf("reading edge: %v", err)
	}

	if got != amount {
		t.Errorf("amount = %v, want %v", got, amount)
	}

	var edges int
	if err := base.Pool.QueryRow(ctx, `SELECT count(*) FROM flux_edges`).Scan(&edges); err != nil {
		t.Fatalf("counting edges: %v", err)
	}

	if edges != 3 {
		t.Errorf("edge count = %d, want 3", edges)
	}
}

func TestImportGraph_RollsBackOnFailure(t *testing.T) {
	base := setupTestBase(t)
	ctx := context.Background()

	amount := 1.0
	// Skips Validate so the dangling edge reaches the foreign key.
	doc := &models.GraphDocument{
		Nodes: []models.CreateNodeRequest{{ID: "a", Key: "a"}},
		Edges: []models.CreateEdgeRequest{{ID: "e", Source: "a", Target: "ghost", Amount: &amount}},
	}

	if _, err := store.NewImportStore(base).ImportGraph(ctx, doc); err == nil {
		t.Fatal("expected foreign key error")
	}

	var nodes int
	if err := base.Pool.QueryRow(ctx, `SELECT count(*) FROM flux_nodes`).Scan(&nodes); err != nil {
		t.Fatalf("counting nodes: %v", err)
	}

	if nodes != 0 {
		t.Errorf("node count = %d after failed import, want 0", nodes)
	}
}
