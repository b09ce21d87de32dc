package models

import (
	"math"
)

// EmitMode selects which visited nodes a trace reports.
type EmitMode string

// Emit modes. EmitAll reports every visited node in depth-first pre-order;
// EmitTerminal reports only nodes that carry the terminal label.
const (
	EmitAll      EmitMode = "all"
	EmitTerminal EmitMode = "terminal"
)

// Trace request limits.
const (
	MaxTraceDepth   = 1024
	MaxTraceResults = 1_000_000
)

// TraceRequest describes one flow-attributed traversal.
type TraceRequest struct {
	StartKey        string   `json:"start_key"`
	Category        string   `json:"category,omitempty"`
	MinContribution float64  `json:"min_contribution"`
	TerminalLabel   string   `json:"terminal_label"`
	Emit            EmitMode `json:"emit,omitempty"`
	MaxDepth        int      `json:"max_depth,omitempty"`
	MaxResults      int      `json:"max_results,omitempty"`
}

// Validate checks TraceRequest fields. Zero-valued optional fields are left
// for the caller to default.
func (r *TraceRequest) Validate() error {
	if r.StartKey == "" {
		return ErrMissingKey
	}

	if len(r.StartKey) > 255 {
		return ErrFieldTooLong("start_key", 255)
	}

	if err := ValidateThreshold(r.MinContribution); err != nil {
		return err
	}

	if r.TerminalLabel == "" {
		return ErrMissingTerminalLabel
	}

	if len(r.TerminalLabel) > 100 {
		return ErrFieldTooLong("terminal_label", 100)
	}

	if len(r.Category) > 100 {
		return ErrFieldTooLong("category", 100)
	}

	switch r.Emit {
	case "", EmitAll, EmitTerminal:
	default:
		return ErrInvalidEmitMode
	}

	if r.MaxDepth < 0 || r.MaxDepth > MaxTraceDepth {
		return ErrOutOfRange("max_depth", 0, MaxTraceDepth)
	}

	if r.MaxResults < 0 || r.MaxResults > MaxTraceResults {
		return ErrOutOfRange("max_results", 0, MaxTraceResults)
	}

	return nil
}

// ValidateThreshold rejects negative, NaN and infinite thresholds. A
// negative threshold would admit every edge.
func ValidateThreshold(v float64) error {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return ErrInvalidThreshold
	}

	return nil
}

// TraceHit is one node emitted by a trace, with the branch it was reached on.
type TraceHit struct {
	Node         Node     `json:"node"`
	Contribution float64  `json:"contribution"`
	Influx       float64  `json:"influx"`
	Depth        int      `json:"depth"`
	Terminal     bool     `json:"terminal"`
	Path         []string `json:"path"`
}
