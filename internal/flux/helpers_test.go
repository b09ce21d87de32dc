package flux

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/persistorai/fluxtrace/internal/models"
)

// fakeGraph is a minimal GraphView over literal nodes and edges.
type fakeGraph struct {
	nodes    map[string]models.Node
	edges    []models.Edge
	failOn   string
	calls    int
	callsFor map[string]int
}

func newFakeGraph() *fakeGraph {
	return &fakeGraph{nodes: make(map[string]models.Node), callsFor: make(map[string]int)}
}

func (g *fakeGraph) node(id string, labels ...string) *fakeGraph {
	g.nodes[id] = models.Node{ID: id, Key: "key-" + id, Labels: append([]string{"Address"}, labels...)}
	return g
}

func (g *fakeGraph) edge(id, source, target string, amount float64) *fakeGraph {
	g.edges = append(g.edges, models.Edge{ID: id, Source: source, Target: target, Amount: amount})
	return g
}

func (g *fakeGraph) FindNodeByKey(_ context.Context, category, key string) (*models.Node, error) {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		n := g.nodes[id]
		if n.Key == key && n.HasLabel(category) {
			return &n, nil
		}
	}

	return nil, nil
}

func (g *fakeGraph) IncomingEdges(_ context.Context, nodeID string) ([]Incoming, error) {
	g.calls++
	g.callsFor[nodeID]++

	if nodeID == g.failOn {
		return nil, errors.New("view unavailable")
	}

	var out []Incoming
	for _, e := range g.edges {
		if e.Target == nodeID {
			out = append(out, Incoming{Edge: e, Source: g.nodes[e.Source]})
		}
	}

	return out, nil
}

// collect drains a run, failing the test on any yielded error.
func collect(t *testing.T, run *Run) []models.TraceHit {
	t.Helper()

	var hits []models.TraceHit
	for hit, err := range run.Hits() {
		if err != nil {
			t.Fatalf("unexpected traversal error: %v", err)
		}
		hits = append(hits, hit)
	}

	return hits
}

// traverse runs a query with default options and collects every hit.
func traverse(t *testing.T, g GraphView, startKey string, minContribution float64, opts ...Option) []models.TraceHit {
	t.Helper()

	run, err := New(opts...).Traverse(context.Background(), g, Query{
		StartKey:        startKey,
		MinContribution: minContribution,
		TerminalLabel:   "Target",
	})
	if err != nil {
		t.Fatalf("Traverse: %v", err)
	}

	return collect(t, run)
}

// summary is a comparable view of a hit.
type summary struct {
	Node         string
	Contribution float64
	Terminal     bool
	Path         string
}

func summarize(hits []models.TraceHit) []summary {
	out := make([]summary, 0, len(hits))
	for _, h := range hits {
		out = append(out, summary{
			Node:         h.Node.ID,
			Contribution: h.Contribution,
			Terminal:     h.Terminal,
			Path:         strings.Join(h.Path, ">"),
		})
	}

	return out
}
