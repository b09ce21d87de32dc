package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// node is a graph node read from SQLite.
type node struct {
	ID         string
	Key        sql.NullString
	Labels     []string
	Properties string
}

// readNodes reads all nodes from SQLite.
func readNodes(ctx context.Context, db *sql.DB) ([]node, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, key, labels, properties FROM nodes ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []node
	for rows.Next() {
		var n node
		var labels, props sql.NullString
		if err := rows.Scan(&n.ID, &n.Key, &labels, &props); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		n.Labels = parseLabels(labels)
		n.Properties = normalizeJSON(props)
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// nodeKey returns the lookup key, which defaults to the node ID.
func (n *node) nodeKey() string {
	if n.Key.Valid && n.Key.String != "" {
		return n.Key.String
	}
	return n.ID
}

// insertNodes upserts nodes into PostgreSQL in batches of 500.
func insertNodes(ctx context.Context, tx pgx.Tx, nodes []node) error {
	const batchSize = 500
	for i := 0; i < len(nodes); i += batchSize {
		end := min(i+batchSize, len(nodes))

		batch := &pgx.Batch{}
		for j := i; j < end; j++ {
			n := &nodes[j]
			batch.Queue(
				`INSERT INTO flux_nodes (id, key, labels, properties)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (id) DO UPDATE
				 SET key = EXCLUDED.key, labels = EXCLUDED.labels,
				     properties = EXCLUDED.properties, updated_at = NOW()`,
				n.ID, n.nodeKey(), n.Labels, n.Properties,
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// buildNodeSet creates a set of node IDs for fast lookup.
func buildNodeSet(nodes []node) map[string]bool {
	m := make(map[string]bool, len(nodes))
	for i := range nodes {
		m[nodes[i].ID] = true
	}
	return m
}
