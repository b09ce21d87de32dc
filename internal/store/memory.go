package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/persistorai/fluxtrace/internal/flux"
	"github.com/persistorai/fluxtrace/internal/models"
)

// MemoryGraph is an immutable in-memory graph. It is its own snapshot and is
// safe for concurrent traversals.
type MemoryGraph struct {
	nodes    map[string]models.Node
	byKey    map[string][]string
	incoming map[string][]flux.Incoming
	edges    int
}

var _ flux.GraphView = (*MemoryGraph)(nil)

// NewMemoryGraph validates doc and indexes it. Incoming edges are ordered by
// edge ID, matching the Postgres view.
func NewMemoryGraph(doc *models.GraphDocument) (*MemoryGraph, error) {
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph document: %w", err)
	}

	g := &MemoryGraph{
		nodes:    make(map[string]models.Node, len(doc.Nodes)),
		byKey:    make(map[string][]string, len(doc.Nodes)),
		incoming: make(map[string][]flux.Incoming),
		edges:    len(doc.Edges),
	}

	for i := range doc.Nodes {
		n := doc.Nodes[i].Node()
		g.nodes[n.ID] = n
		g.byKey[n.Key] = append(g.byKey[n.Key], n.ID)
	}

	for _, ids := range g.byKey {
		slices.Sort(ids)
	}

	for i := range doc.Edges {
		e := doc.Edges[i].Edge()
		g.incoming[e.Target] = append(g.incoming[e.Target], flux.Incoming{Edge: e, Source: g.nodes[e.Source]})
	}

	for _, in := range g.incoming {
		slices.SortFunc(in, func(a, b flux.Incoming) int {
			return strings.Compare(a.Edge.ID, b.Edge.ID)
		})
	}

	return g, nil
}

// NodeCount returns the number of nodes.
func (g *MemoryGraph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *MemoryGraph) EdgeCount() int { return g.edges }

// FindNodeByKey returns the first node, by ID, with the given key and label.
func (g *MemoryGraph) FindNodeByKey(_ context.Context, category, key string) (*models.Node, error) {
	for _, id := range g.byKey[key] {
		n := g.nodes[id]
		if n.HasLabel(category) {
			return &n, nil
		}
	}

	return nil, nil //nolint:nilnil // absence is not an error for the view.
}

// IncomingEdges returns the edges whose target is nodeID. The returned slice
// must not be modified.
func (g *MemoryGraph) IncomingEdges(ctx context.Context, nodeID string) ([]flux.Incoming, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return g.incoming[nodeID], nil
}

// Close is a no-op. MemoryGraph satisfies the same snapshot contract as the
// Postgres view.
func (g *MemoryGraph) Close(context.Context) error { return nil }

// LoadDocument reads a graph document from a .json, .yaml or .yml file.
func LoadDocument(path string) (*models.GraphDocument, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied.
	if err != nil {
		return nil, fmt.Errorf("reading graph file: %w", err)
	}

	return DecodeDocument(data, filepath.Ext(path))
}

// DecodeDocument parses data as JSON when ext is ".json" and as YAML
// otherwise.
func DecodeDocument(data []byte, ext string) (*models.GraphDocument, error) {
	var doc models.GraphDocument

	if strings.EqualFold(ext, ".json") {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()

		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding JSON graph document: %w", err)
		}

		return &doc, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding YAML graph document: %w", err)
	}

	return &doc, nil
}
