package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math"

	"github.com/jackc/pgx/v5"
)

// edge is a transfer read from SQLite. Amount is NULL-able in the ledger.
type edge struct {
	ID         string
	Source     string
	Target     string
	Amount     sql.NullFloat64
	Properties string
}

// readEdges reads all transfers from SQLite.
func readEdges(ctx context.Context, db *sql.DB) ([]edge, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, source, target, amount, properties FROM transfers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []edge
	for rows.Next() {
		var e edge
		var props sql.NullString
		if err := rows.Scan(&e.ID, &e.Source, &e.Target, &e.Amount, &props); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		e.Properties = normalizeJSON(props)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// partitionEdges splits transfers into those that can be copied and those
// skipped for a missing endpoint or an amount the schema would reject.
func partitionEdges(edges []edge, nodeIDs map[string]bool) ([]edge, []skippedEdge) {
	var usable []edge
	var skipped []skippedEdge

	for _, e := range edges {
		var reason string
		switch {
		case !nodeIDs[e.Source]:
			reason = "source node not found"
		case !nodeIDs[e.Target]:
			reason = "target node not found"
		case !e.Amount.Valid:
			reason = "amount is NULL"
		case !validAmount(e.Amount.Float64):
			reason = fmt.Sprintf("malformed amount %v", e.Amount.Float64)
		}

		if reason != "" {
			slog.Warn("skipping transfer", "id", e.ID, "source", e.Source, "target", e.Target, "reason", reason)
			skipped = append(skipped, skippedEdge{e.ID, e.Source, e.Target, reason})
			continue
		}

		usable = append(usable, e)
	}
	return usable, skipped
}

// validAmount mirrors the flux_edges CHECK constraint.
func validAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// insertEdges upserts transfers as flux_edges in batches of 500.
func insertEdges(ctx context.Context, tx pgx.Tx, edges []edge) error {
	const batchSize = 500
	for i := 0; i < len(edges); i += batchSize {
		end := min(i+batchSize, len(edges))

		batch := &pgx.Batch{}
		for j := i; j < end; j++ {
			e := &edges[j]
			batch.Queue(
				`INSERT INTO flux_edges (id, source, target, amount, properties)
				 VALUES ($1, $2, $3, $4, $5)
				 ON CONFLICT (id) DO UPDATE
				 SET source = EXCLUDED.source, target = EXCLUDED.target,
				     amount = EXCLUDED.amount, properties = EXCLUDED.properties,
				     updated_at = NOW()`,
				e.ID, e.Source, e.Target, e.Amount.Float64, e.Properties,
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}
