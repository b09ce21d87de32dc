// Package models defines data types for the flow graph and trace results.
package models

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Node represents a vertex in the flow graph.
type Node struct {
	ID         string         `json:"id" yaml:"id"`
	Key        string         `json:"key" yaml:"key"`
	Labels     []string       `json:"labels" yaml:"labels"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// HasLabel reports whether the node carries the given category label.
func (n *Node) HasLabel(label string) bool {
	return slices.Contains(n.Labels, label)
}

// CreateNodeRequest is the payload for creating or upserting a node.
type CreateNodeRequest struct {
	ID         string         `json:"id" yaml:"id"`
	Key        string         `json:"key" yaml:"key"`
	Labels     []string       `json:"labels" yaml:"labels"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Validate checks that required fields are present and within limits on CreateNodeRequest.
// If Key is empty, the ID doubles as the lookup key.
func (r *CreateNodeRequest) Validate() error {
	if r.ID == "" {
		return ErrMissingID
	}

	if len(r.ID) > 255 {
		return ErrFieldTooLong("id", 255)
	}

	if r.Key == "" {
		r.Key = r.ID
	}

	if len(r.Key) > 255 {
		return ErrFieldTooLong("key", 255)
	}

	if len(r.Labels) > 32 {
		return fmt.Errorf("node %s has more than 32 labels", r.ID)
	}

	for _, l := range r.Labels {
		if l == "" {
			return fmt.Errorf("node %s has an empty label", r.ID)
		}

		if len(l) > 100 {
			return ErrFieldTooLong("label", 100)
		}
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

// Node converts the request into a Node.
func (r *CreateNodeRequest) Node() Node {
	return Node{ID: r.ID, Key: r.Key, Labels: r.Labels, Properties: r.Properties}
}
