package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"os"
	"slices"

	"github.com/jackc/pgx/v5"
)

// parseLabels decodes a JSON array of labels. Anything else yields no labels.
func parseLabels(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return []string{}
	}
	var labels []string
	if err := json.Unmarshal([]byte(s.String), &labels); err != nil {
		slog.Warn("invalid labels, using none", "value", s.String)
		return []string{}
	}
	return labels
}

// normalizeJSON ensures a properties value is a JSON object, defaulting to "{}".
func normalizeJSON(s sql.NullString) string {
	if !s.Valid || s.String == "" {
		return "{}"
	}
	var obj map[string]any
	if json.Unmarshal([]byte(s.String), &obj) != nil {
		slog.Warn("invalid JSON in properties, using empty object", "value", s.String)
		return "{}"
	}
	return s.String
}

// sanitizeURL removes credentials from a database URL for display.
func sanitizeURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable URL]"
	}
	u.User = nil
	return u.String()
}

// envOr returns the environment variable value or a default.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// allowedTables is the set of table names that countRows may query.
var allowedTables = map[string]bool{
	"flux_nodes": true,
	"flux_edges": true,
}

// countRows counts rows in a table.
func countRows(ctx context.Context, tx pgx.Tx, table string) (int, error) {
	if !allowedTables[table] {
		return 0, fmt.Errorf("disallowed table name: %s", table)
	}

	var count int
	sanitized := pgx.Identifier{table}.Sanitize()
	err := tx.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", sanitized)).Scan(&count)
	return count, err
}

// spotCheck verifies up to 5 random nodes match between SQLite and PostgreSQL.
//
//nolint:unparam // error return kept for future use when spot-check failures become fatal.
func spotCheck(ctx context.Context, tx pgx.Tx, nodes []node) ([]string, error) {
	if len(nodes) == 0 {
		return nil, nil
	}
	count := min(5, len(nodes))
	indices := rand.Perm(len(nodes))[:count]
	var checks []string

	for _, idx := range indices {
		n := nodes[idx]
		var pgKey string
		var pgLabels []string
		err := tx.QueryRow(ctx,
			`SELECT key, labels FROM flux_nodes WHERE id = $1`, n.ID,
		).Scan(&pgKey, &pgLabels)
		if err != nil {
			checks = append(checks, fmt.Sprintf("FAIL %s: not found in postgres: %v", n.ID, err))
			continue
		}
		if pgKey == n.nodeKey() && slices.Equal(pgLabels, n.Labels) {
			checks = append(checks, fmt.Sprintf("ok   %s: key=%s, labels=%v", n.ID, pgKey, pgLabels))
		} else {
			checks = append(checks, fmt.Sprintf("FAIL %s: mismatch: pg(%s/%v) vs sqlite(%s/%v)",
				n.ID, pgKey, pgLabels, n.nodeKey(), n.Labels))
		}
	}
	return checks, nil
}

// printReport outputs the final migration summary.
func printReport(r *report) {
	fmt.Println()
	fmt.Println("=== fluxtrace Ledger Migration Report ===")
	if r.DryRun {
		fmt.Println("MODE: DRY RUN (no changes made)")
	}
	fmt.Printf("Source: %s\n", r.Source)
	fmt.Printf("Target: %s\n", r.Target)
	fmt.Println()
	fmt.Printf("Nodes: %d read, %d inserted, %d in table %s\n",
		r.NodesRead, r.NodesInserted, r.NodesVerified, statusMark(r.NodesInserted, r.NodesVerified, r.DryRun))
	fmt.Printf("Edges: %d read, %d inserted (%d skipped), %d in table %s\n",
		r.EdgesRead, r.EdgesInserted, r.EdgesSkipped, r.EdgesVerified, statusMark(r.EdgesInserted, r.EdgesVerified, r.DryRun))

	if len(r.SkippedEdges) > 0 {
		fmt.Println("\nSkipped transfers:")
		for _, s := range r.SkippedEdges {
			fmt.Printf("  - %s: %s -> %s (reason: %s)\n", s.ID, s.Source, s.Target, s.Reason)
		}
	}

	if len(r.SpotChecks) > 0 {
		fmt.Println("\nSpot checks:")
		for _, c := range r.SpotChecks {
			fmt.Printf("  %s\n", c)
		}
	}

	fmt.Printf("\nDuration: %.1fs\n", r.Duration.Seconds())
	if r.Err != nil {
		fmt.Printf("Status: FAILED: %v\n", r.Err)
	} else {
		fmt.Println("Status: SUCCESS")
	}
}

// statusMark compares inserted rows with the table count. The table may hold
// rows from earlier loads, so it only has to be at least as large.
func statusMark(inserted, verified int, dryRun bool) string {
	switch {
	case dryRun:
		return "(dry run)"
	case verified >= inserted:
		return "[ok]"
	default:
		return "[MISMATCH]"
	}
}
