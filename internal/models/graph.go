package models

import (
	"fmt"

	"github.com/google/uuid"
)

// Document size limits.
const (
	maxDocumentNodes = 1_000_000
	maxDocumentEdges = 5_000_000
)

// GraphDocument is a whole graph in one payload, used for import and for
// in-memory graphs loaded from YAML or JSON files.
type GraphDocument struct {
	Nodes []CreateNodeRequest `json:"nodes" yaml:"nodes"`
	Edges []CreateEdgeRequest `json:"edges" yaml:"edges"`
}

// Validate checks every node and edge, rejects duplicate IDs and dangling
// edges, and assigns a UUID to each edge without an ID.
func (d *GraphDocument) Validate() error {
	if len(d.Nodes) > maxDocumentNodes {
		return fmt.Errorf("document has %d nodes, limit is %d", len(d.Nodes), maxDocumentNodes)
	}

	if len(d.Edges) > maxDocumentEdges {
		return fmt.Errorf("document has %d edges, limit is %d", len(d.Edges), maxDocumentEdges)
	}

	nodeIDs := make(map[string]bool, len(d.Nodes))
	for i := range d.Nodes {
		n := &d.Nodes[i]
		if err := n.Validate(); err != nil {
			return fmt.Errorf("node %d: %w", i, err)
		}

		if nodeIDs[n.ID] {
			return fmt.Errorf("node %s: %w", n.ID, ErrDuplicateKey)
		}

		nodeIDs[n.ID] = true
	}

	edgeIDs := make(map[string]bool, len(d.Edges))
	for i := range d.Edges {
		e := &d.Edges[i]
		if err := e.Validate(); err != nil {
			return fmt.Errorf("edge %d: %w", i, err)
		}

		if !nodeIDs[e.Source] {
			return fmt.Errorf("edge %d source %s: %w", i, e.Source, ErrUnknownNode)
		}

		if !nodeIDs[e.Target] {
			return fmt.Errorf("edge %d target %s: %w", i, e.Target, ErrUnknownNode)
		}

		if e.ID == "" {
			e.ID = uuid.New().String()
		}

		if edgeIDs[e.ID] {
			return fmt.Errorf("edge %s: %w", e.ID, ErrDuplicateKey)
		}

		edgeIDs[e.ID] = true
	}

	return nil
}

// ImportResult reports how many rows an import wrote.
type ImportResult struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}
