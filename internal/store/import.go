package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/persistorai/fluxtrace/internal/models"
)

// maxImportBatchSize limits the statements queued per round trip.
const maxImportBatchSize = 1000

const upsertNodeSQL = `INSERT INTO flux_nodes (id, key, labels, properties)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE
	SET key = EXCLUDED.key,
		labels = EXCLUDED.labels,
		properties = EXCLUDED.properties,
		updated_at = NOW()`

const upsertEdgeSQL = `INSERT INTO flux_edges (id, source, target, amount, properties)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (id) DO UPDATE
	SET source = EXCLUDED.source,
		target = EXCLUDED.target,
		amount = EXCLUDED.amount,
		properties = EXCLUDED.properties,
		updated_at = NOW()`

// ImportStore writes graph documents.
type ImportStore struct {
	Base
}

// NewImportStore creates an ImportStore with the given shared base.
func NewImportStore(base Base) *ImportStore {
	return &ImportStore{Base: base}
}

// ImportGraph upserts every node and edge of doc in one transaction. The
// document must already be validated.
func (s *ImportStore) ImportGraph(ctx context.Context, doc *models.GraphDocument) (*models.ImportResult, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("import graph: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	result := &models.ImportResult{}

	for i := 0; i < len(doc.Nodes); i += maxImportBatchSize {
		end := min(i+maxImportBatchSize, len(doc.Nodes))

		batch := &pgx.Batch{}
		for _, n := range doc.Nodes[i:end] {
			props, err := marshalProps(n.Properties)
			if err != nil {
				return nil, fmt.Errorf("encoding node %s properties: %w", n.ID, err)
			}

			labels := n.Labels
			if labels == nil {
				labels = []string{}
			}

			batch.Queue(upsertNodeSQL, n.ID, n.Key, labels, props)
		}

		if err := sendBatch(ctx, tx, batch); err != nil {
			return nil, fmt.Errorf("upserting nodes: %w", err)
		}

		result.Nodes += end - i
	}

	for i := 0; i < len(doc.Edges); i += maxImportBatchSize {
		end := min(i+maxImportBatchSize, len(doc.Edges))

		batch := &pgx.Batch{}
		for _, e := range doc.Edges[i:end] {
			props, err := marshalProps(e.Properties)
			if err != nil {
				return nil, fmt.Errorf("encoding edge %s properties: %w", e.ID, err)
			}

			batch.Queue(upsertEdgeSQL, e.ID, e.Source, e.Target, e.Amount, props)
		}

		if err := sendBatch(ctx, tx, batch); err != nil {
			return nil, fmt.Errorf("upserting edges: %w", err)
		}

		result.Edges += end - i
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing graph import: %w", err)
	}

	s.Log.WithFields(logrus.Fields{
		"nodes": result.Nodes,
		"edges": result.Edges,
	}).Info("graph imported")

	return result, nil
}

// sendBatch runs every queued statement and reports the first failure.
func sendBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) error {
	br := tx.SendBatch(ctx, batch)

	for range batch.Len() {
		if _, err := br.Exec(); err != nil {
			br.Close() //nolint:errcheck // the exec error is the one worth reporting.

			return err
		}
	}

	return br.Close()
}
