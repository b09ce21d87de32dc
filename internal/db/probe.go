package db

import (
	"context"
	"io/fs"

	"github.com/persistorai/fluxtrace/internal/dbpool"
)

// Probe reports database connectivity and the applied schema version for
// readiness checks.
type Probe struct {
	pool *dbpool.Pool
	fsys fs.FS
}

// NewProbe creates a Probe over pool using the migrations in fsys.
func NewProbe(pool *dbpool.Pool, fsys fs.FS) *Probe {
	return &Probe{pool: pool, fsys: fsys}
}

// HealthCheck pings the database.
func (p *Probe) HealthCheck(ctx context.Context) error {
	return p.pool.HealthCheck(ctx)
}

// AppliedVersion returns the highest applied migration version.
func (p *Probe) AppliedVersion(ctx context.Context) (int64, error) {
	return AppliedVersion(ctx, p.pool, p.fsys)
}
