// Package domain defines the service interfaces shared by the HTTP API, the
// websocket stream and the CLI. Consumers depend on these interfaces rather
// than on concrete services.
package domain

import (
	"context"
	"iter"

	"github.com/persistorai/fluxtrace/internal/flux"
	"github.com/persistorai/fluxtrace/internal/models"
)

// GraphSnapshot is a consistent read view that must be closed after use.
type GraphSnapshot interface {
	flux.GraphView
	Close(ctx context.Context) error
}

// SnapshotOpener opens one GraphSnapshot per trace.
type SnapshotOpener interface {
	OpenSnapshot(ctx context.Context) (GraphSnapshot, error)
}

// TraceStream is a prepared trace. Hits may be ranged once; Close releases
// the snapshot when Hits is never ranged and is safe to call repeatedly.
type TraceStream interface {
	Start() models.Node
	Hits() iter.Seq2[models.TraceHit, error]
	Stats() flux.Stats
	Truncated() bool
	Close()
}

// TraceService runs flow-attributed traces.
type TraceService interface {
	Trace(ctx context.Context, req models.TraceRequest) (TraceStream, error)
}

// ImportService loads graph documents into persistent storage.
type ImportService interface {
	Import(ctx context.Context, doc *models.GraphDocument) (*models.ImportResult, error)
}
