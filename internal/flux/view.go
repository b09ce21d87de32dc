// Package flux computes flow-attributed reachability. A traversal walks
// incoming edges depth-first from a start node, carries on every path the
// share of the start node's influence that reached the path's end, and
// prunes continuations whose share falls below a threshold. Nodes carrying
// the terminal label are reported and not expanded.
//
// Branch state lives on the traversal stack, one entry per path. The same
// node reached over two paths has two independent states.
package flux

import (
	"context"

	"github.com/persistorai/fluxtrace/internal/models"
)

// DefaultCategory is the label the start node is looked up under when a
// query does not name one.
const DefaultCategory = "Address"

// Incoming is an edge ending at the current node, paired with its source node.
type Incoming struct {
	Edge   models.Edge
	Source models.Node
}

// GraphView is the read-only graph a traversal runs against. It must present
// a consistent snapshot for the lifetime of one traversal.
type GraphView interface {
	// FindNodeByKey returns the node with the given key that carries the
	// category label, or (nil, nil) when there is none.
	FindNodeByKey(ctx context.Context, category, key string) (*models.Node, error)

	// IncomingEdges returns every edge whose target is nodeID, in a stable order.
	IncomingEdges(ctx context.Context, nodeID string) ([]Incoming, error)
}
