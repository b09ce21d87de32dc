package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// Edge represents a directed, weighted transfer from Source to Target.
// Parallel edges between the same pair are distinguished by ID.
type Edge struct {
	ID         string         `json:"id" yaml:"id"`
	Source     string         `json:"source" yaml:"source"`
	Target     string         `json:"target" yaml:"target"`
	Amount     float64        `json:"amount" yaml:"amount"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// CreateEdgeRequest is the payload for creating or upserting an edge.
type CreateEdgeRequest struct {
	ID         string         `json:"id,omitempty" yaml:"id,omitempty"`
	Source     string         `json:"source" yaml:"source"`
	Target     string         `json:"target" yaml:"target"`
	Amount     *float64       `json:"amount" yaml:"amount"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Validate checks that required fields are present and within limits on CreateEdgeRequest.
func (r *CreateEdgeRequest) Validate() error {
	if len(r.ID) > 255 {
		return ErrFieldTooLong("id", 255)
	}

	if r.Source == "" {
		return ErrMissingSource
	}

	if len(r.Source) > 255 {
		return ErrFieldTooLong("source", 255)
	}

	if r.Target == "" {
		return ErrMissingTarget
	}

	if len(r.Target) > 255 {
		return ErrFieldTooLong("target", 255)
	}

	if r.Amount == nil {
		return ErrMissingAmount
	}

	if !ValidAmount(*r.Amount) {
		return fmt.Errorf("edge %s->%s: %w", r.Source, r.Target, ErrMalformedWeight)
	}

	if r.Properties != nil {
		data, err := json.Marshal(r.Properties)
		if err != nil {
			return fmt.Errorf("invalid properties: %w", err)
		}
		if len(data) > 65536 {
			return ErrFieldTooLong("properties", 65536)
		}
	}

	return nil
}

// Edge converts the request into an Edge. Validate must have succeeded.
func (r *CreateEdgeRequest) Edge() Edge {
	return Edge{ID: r.ID, Source: r.Source, Target: r.Target, Amount: *r.Amount, Properties: r.Properties}
}

// ValidAmount reports whether v is usable as an edge weight.
func ValidAmount(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
