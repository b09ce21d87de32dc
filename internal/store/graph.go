package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/persistorai/fluxtrace/internal/flux"
	"github.com/persistorai/fluxtrace/internal/models"
)

// GraphStore opens consistent read views of the graph.
type GraphStore struct {
	Base
}

// NewGraphStore creates a GraphStore with the given shared base.
func NewGraphStore(base Base) *GraphStore {
	return &GraphStore{Base: base}
}

// Snapshot is a flux.GraphView backed by one read-only transaction. It must
// be closed when the traversal ends.
type Snapshot struct {
	tx pgx.Tx
}

var _ flux.GraphView = (*Snapshot)(nil)

// OpenSnapshot starts a repeatable-read transaction. The snapshot holds a
// pooled connection until Close is called.
func (s *GraphStore) OpenSnapshot(ctx context.Context) (*Snapshot, error) {
	tx, err := s.beginSnapshotTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening graph snapshot: %w", err)
	}

	return &Snapshot{tx: tx}, nil
}

// FindNodeByKey returns the node with the given key and category label, or
// nil if there is none. Ties are broken by node ID.
func (s *Snapshot) FindNodeByKey(ctx context.Context, category, key string) (*models.Node, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.tx.QueryRow(ctx,
		`SELECT `+nodeColumns+` FROM flux_nodes
		 WHERE key = $1 AND $2 = ANY(labels)
		 ORDER BY id
		 LIMIT 1`,
		key, category,
	)

	n, err := scanNode(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil //nolint:nilnil // absence is not an error for the view.
	}

	if err != nil {
		return nil, fmt.Errorf("finding node by key: %w", err)
	}

	return n, nil
}

// IncomingEdges returns the edges whose target is nodeID, each with its
// source node, ordered by edge ID.
func (s *Snapshot) IncomingEdges(ctx context.Context, nodeID string) ([]flux.Incoming, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.tx.Query(ctx,
		`SELECT `+incomingColumns+`
		 FROM flux_edges e
		 JOIN flux_nodes n ON n.id = e.source
		 WHERE e.target = $1
		 ORDER BY e.id`,
		nodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying incoming edges: %w", err)
	}
	defer rows.Close()

	out := make([]flux.Incoming, 0, 8)

	for rows.Next() {
		in, err := scanIncoming(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning incoming edge row: %w", err)
		}

		out = append(out, *in)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating incoming edge rows: %w", err)
	}

	return out, nil
}

// Close releases the snapshot's transaction.
func (s *Snapshot) Close(ctx context.Context) error {
	if err := s.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("closing graph snapshot: %w", err)
	}

	return nil
}
