package store

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/persistorai/fluxtrace/internal/flux"
	"github.com/persistorai/fluxtrace/internal/models"
)

// nodeColumns lists the columns selected for node queries.
const nodeColumns = `id, key, labels, properties`

// incomingColumns lists the columns of an edge joined with its source node.
const incomingColumns = `e.id, e.source, e.target, e.amount, e.properties,
	n.id, n.key, n.labels, n.properties`

// scanNode scans a single row into a models.Node.
func scanNode(scan func(dest ...any) error) (*models.Node, error) {
	var n models.Node
	var props []byte

	if err := scan(&n.ID, &n.Key, &n.Labels, &props); err != nil {
		return nil, err
	}

	if err := unmarshalProps(props, &n.Properties); err != nil {
		return nil, fmt.Errorf("unmarshalling node properties: %w", err)
	}

	return &n, nil
}

// scanIncoming scans an edge row joined with its source node. A NULL amount
// is read as NaN so the engine treats the edge as malformed.
func scanIncoming(scan func(dest ...any) error) (*flux.Incoming, error) {
	var in flux.Incoming
	var amount *float64
	var edgeProps, nodeProps []byte

	err := scan(
		&in.Edge.ID,
		&in.Edge.Source,
		&in.Edge.Target,
		&amount,
		&edgeProps,
		&in.Source.ID,
		&in.Source.Key,
		&in.Source.Labels,
		&nodeProps,
	)
	if err != nil {
		return nil, err
	}

	in.Edge.Amount = math.NaN()
	if amount != nil {
		in.Edge.Amount = *amount
	}

	if err := unmarshalProps(edgeProps, &in.Edge.Properties); err != nil {
		return nil, fmt.Errorf("unmarshalling edge properties: %w", err)
	}

	if err := unmarshalProps(nodeProps, &in.Source.Properties); err != nil {
		return nil, fmt.Errorf("unmarshalling node properties: %w", err)
	}

	return &in, nil
}

func unmarshalProps(data []byte, dst *map[string]any) error {
	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, dst)
}

// marshalProps encodes properties for a jsonb column, never as NULL.
func marshalProps(props map[string]any) ([]byte, error) {
	if props == nil {
		props = map[string]any{}
	}

	return json.Marshal(props)
}
