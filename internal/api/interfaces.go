package api

import (
	"context"
)

// DatabaseProbe checks the database behind a Postgres-backed server.
type DatabaseProbe interface {
	HealthCheck(ctx context.Context) error
	AppliedVersion(ctx context.Context) (int64, error)
}
