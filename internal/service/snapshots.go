package service

import (
	"context"

	"github.com/persistorai/fluxtrace/internal/domain"
	"github.com/persistorai/fluxtrace/internal/store"
)

// SnapshotFunc adapts a function to domain.SnapshotOpener.
type SnapshotFunc func(ctx context.Context) (domain.GraphSnapshot, error)

// OpenSnapshot calls f.
func (f SnapshotFunc) OpenSnapshot(ctx context.Context) (domain.GraphSnapshot, error) {
	return f(ctx)
}

// PostgresSnapshots opens one repeatable-read transaction per trace.
func PostgresSnapshots(gs *store.GraphStore) SnapshotFunc {
	return func(ctx context.Context) (domain.GraphSnapshot, error) {
		snap, err := gs.OpenSnapshot(ctx)
		if err != nil {
			return nil, err
		}

		return snap, nil
	}
}

// MemorySnapshots serves every trace from the same immutable graph.
func MemorySnapshots(g *store.MemoryGraph) SnapshotFunc {
	return func(context.Context) (domain.GraphSnapshot, error) {
		return g, nil
	}
}
