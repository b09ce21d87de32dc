package store_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/persistorai/fluxtrace/internal/flux"
	"github.com/persistorai/fluxtrace/internal/models"
	"github.com/persistorai/fluxtrace/internal/store"
)

const scenarioYAML = `
nodes:
  - id: S
    key: "0x5"
    labels: [Address]
  - id: A
    key: "0xa"
    labels: [Address]
  - id: B
    key: "0xb"
    labels: [Address, Exchange]
  - id: C
    key: "0xc"
    labels: [Address]
edges:
  - {id: e1, source: A, target: S, amount: 10}
  - {id: e3, source: C, target: A, amount: 6}
  - {id: e2, source: B, target: A, amount: 4}
`

func loadScenario(t *testing.T) *store.MemoryGraph {
	t.Helper()

	doc, err := store.DecodeDocument([]byte(scenarioYAML), ".yaml")
	if err != nil {
		t.Fatalf("DecodeDocument: %v", err)
	}

	g, err := store.NewMemoryGraph(doc)
	if err != nil {
		t.Fatalf("NewMemoryGraph: %v", err)
	}

	return g
}

func TestMemoryGraph_FindNodeByKey(t *testing.T) {
	g := loadScenario(t)
	ctx := context.Background()

	n, err := g.FindNodeByKey(ctx, "Address", "0xb")
	if err != nil {
		t.Fatalf("FindNodeByKey: %v", err)
	}
	if n == nil || n.ID != "B" {
		t.Fatalf("got %+v, want node B", n)
	}

	n, err = g.FindNodeByKey(ctx, "Contract", "0xb")
	if err != nil || n != nil {
		t.Errorf("wrong category: got %+v, %v; want nil, nil", n, err)
	}

	n, err = g.FindNodeByKey(ctx, "Address", "0xmissing")
	if err != nil || n != nil {
		t.Errorf("unknown key: got %+v, %v; want nil, nil", n, err)
	}
}

func TestMemoryGraph_IncomingOrderedByEdgeID(t *testing.T) {
	g := loadScenario(t)

	in, err := g.IncomingEdges(context.Background(), "A")
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

	if g.NodeCount() != 4 || g.EdgeCount() != 3 {
		t.Errorf("counts = %d nodes, %d edges", g.NodeCount(), g.EdgeCount())
	}
}

func TestMemoryGraph_Trace(t *testing.T) {
	g := loadScenario(t)

	run, err := flux.New().Traverse(context.Background(), g, flux.Query{
		StartKey:        "0x5",
		MinContribution: 0.3,
		TerminalLabel:   "Exchange",
	})
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}

	type hit struct {
		ID           string
		Contribution float64
		Terminal     bool
	}

	var got []hit
	for h, err := range run.Hits() {
		if err != nil {
			t.Fatalf("Hits: %v", err)
		}
		got = append(got, hit{h.Node.ID, h.Contribution, h.Terminal})
	}

	want := []hit{
		{"S", 1, false},
		{"A", 1, false},
		{"B", 0.4, true},
		{"C", 0.6, false},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("hits mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryGraph_CancelledContext(t *testing.T) {
	g := loadScenario(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.IncomingEdges(ctx, "S"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestNewMemoryGraph_RejectsInvalidDocument(t *testing.T) {
	amount := -1.0
	doc := &models.GraphDocument{
		Nodes: []models.CreateNodeRequest{{ID: "a"}, {ID: "b"}},
		Edges: []models.CreateEdgeRequest{{Source: "a", Target: "b", Amount: &amount}},
	}

	if _, err := store.NewMemoryGraph(doc); !errors.Is(err, models.ErrMalformedWeight) {
		t.Errorf("err = %v, want ErrMalformedWeight", err)
	}
}

func TestLoadDocument(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr bool
	}{
		{name: "json", file: "g.json", content: `{"nodes":[{"id":"a"}],"edges":[]}`},
		{name: "yaml", file: "g.yaml", content: "nodes:\n  - id: a\n"},
		{name: "unknown json field", file: "bad.json", content: `{"nodes":[],"vertices":[]}`, wantErr: true},
		{name: "unknown yaml field", file: "bad.yml", content: "vertices: []\n", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.file)
			if err := os.WriteFile(path, []byte(tc.content), 0o600); err != nil {
				t.Fatalf("writing fixture: %v", err)
			}

			doc, err := store.LoadDocument(path)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadDocument: %v", err)
			}
			if len(doc.Nodes) != 1 || doc.Nodes[0].ID != "a" {
				t.Errorf("doc = %+v", doc)
			}
		})
	}

	if _, err := store.LoadDocument(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
