// Package main provides a standalone script that copies a flow graph from a
// SQLite ledger into the fluxtrace PostgreSQL schema.
//
// The SQLite database must hold two tables:
//
//	nodes(id TEXT PRIMARY KEY, key TEXT, labels TEXT, properties TEXT)
//	transfers(id TEXT PRIMARY KEY, source TEXT, target TEXT, amount REAL, properties TEXT)
//
// labels is a JSON array of strings. The target schema must already exist
// (the server applies its migrations on start).
//
// Usage:
//
//	SQLITE_PATH=/path/to/ledger.sqlite DATABASE_URL=postgres://... go run ./scripts/migrate
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	_ "modernc.org/sqlite"
)

// config holds environment-driven migration settings.
type config struct {
	SQLitePath  string
	DatabaseURL string
	DryRun      bool
}

// skippedEdge records a transfer that was not copied.
type skippedEdge struct {
	ID     string
	Source string
	Target string
	Reason string
}

// report holds the final migration summary.
type report struct {
	Source        string
	Target        string
	NodesRead     int
	NodesInserted int
	NodesVerified int
	EdgesRead     int
	EdgesInserted int
	EdgesSkipped  int
	EdgesVerified int
	SkippedEdges  []skippedEdge
	SpotChecks    []string
	Duration      time.Duration
	DryRun        bool
	Err           error
}

func main() {
	cfg := loadConfig()
	if cfg.DatabaseURL == "" && !cfg.DryRun {
		slog.Error("DATABASE_URL is required unless DRY_RUN is set")
		os.Exit(1)
	}

	slog.Info("starting migration",
		"sqlite", cfg.SQLitePath,
		"dry_run", cfg.DryRun,
	)

	start := time.Now()
	r, err := runMigration(context.Background(), cfg)
	r.Duration = time.Since(start)
	if err != nil {
		r.Err = err
		slog.Error("migration failed", "error", err)
	}
	printReport(&r)
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration from environment variables.
func loadConfig() config {
	return config{
		SQLitePath:  envOr("SQLITE_PATH", "ledger.sqlite"),
		DatabaseURL: envOr("DATABASE_URL", ""),
		DryRun:      os.Getenv("DRY_RUN") == "true" || os.Getenv("DRY_RUN") == "1",
	}
}

// runMigration executes the full migration pipeline.
//
//nolint:funlen // Migration pipeline is sequential; splitting would hurt readability.
func runMigration(ctx context.Context, cfg config) (report, error) {
	r := report{
		Source: cfg.SQLitePath,
		Target: sanitizeURL(cfg.DatabaseURL),
		DryRun: cfg.DryRun,
	}

	// Open SQLite (read-only).
	lite, err := sql.Open("sqlite", cfg.SQLitePath+"?mode=ro")
	if err != nil {
		return r, fmt.Errorf("open sqlite: %w", err)
	}
	defer lite.Close()

	nodes, err := readNodes(ctx, lite)
	if err != nil {
		return r, fmt.Errorf("read nodes: %w", err)
	}
	r.NodesRead = len(nodes)
	slog.Info("read nodes from sqlite", "count", r.NodesRead)

	edges, err := readEdges(ctx, lite)
	if err != nil {
		return r, fmt.Errorf("read transfers: %w", err)
	}
	r.EdgesRead = len(edges)
	slog.Info("read transfers from sqlite", "count", r.EdgesRead)

	usable, skipped := partitionEdges(edges, buildNodeSet(nodes))
	r.EdgesSkipped = len(skipped)
	r.SkippedEdges = skipped

	if cfg.DryRun {
		slog.Info("dry run, skipping PostgreSQL writes")
		r.NodesInserted = r.NodesRead
		r.EdgesInserted = len(usable)
		return r, nil
	}

	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return r, fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close(ctx)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return r, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	if err := insertNodes(ctx, tx, nodes); err != nil {
		return r, fmt.Errorf("insert nodes: %w", err)
	}
	r.NodesInserted = len(nodes)
	slog.Info("inserted nodes", "count", r.NodesInserted)

	if err := insertEdges(ctx, tx, usable); err != nil {
		return r, fmt.Errorf("insert edges: %w", err)
	}
	r.EdgesInserted = len(usable)
	slog.Info("inserted edges", "count", r.EdgesInserted, "skipped", r.EdgesSkipped)

	r.NodesVerified, err = countRows(ctx, tx, "flux_nodes")
	if err != nil {
		return r, fmt.Errorf("verify node count: %w", err)
	}
	r.EdgesVerified, err = countRows(ctx, tx, "flux_edges")
	if err != nil {
		return r, fmt.Errorf("verify edge count: %w", err)
	}

	r.SpotChecks, err = spotCheck(ctx, tx, nodes)
	if err != nil {
		return r, fmt.Errorf("spot check: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return r, fmt.Errorf("commit: %w", err)
	}
	slog.Info("transaction committed")
	return r, nil
}
