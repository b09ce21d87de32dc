package client

// Node is a graph vertex. Key is the lookup key; Labels carry the category
// and terminal labels.
type Node struct {
	ID         string         `json:"id"`
	Key        string         `json:"key"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties,omitempty"`
}

// TraceHit is one node reached by a trace.
type TraceHit struct {
	Node         Node     `json:"node"`
	Contribution float64  `json:"contribution"`
	Influx       float64  `json:"influx"`
	Depth        int      `json:"depth"`
	Terminal     bool     `json:"terminal"`
	Path         []string `json:"path"`
}

// Emit modes.
const (
	EmitAll      = "all"
	EmitTerminal = "terminal"
)

// TraceOptions are the parameters of a trace. Zero values leave the server
// defaults in place, except TerminalLabel which is required.
type TraceOptions struct {
	MinContribution float64
	TerminalLabel   string
	Category        string
	Emit            string
	MaxDepth        int
	MaxResults      int
}

// TraceResult is a fully collected trace.
type TraceResult struct {
	Hits []TraceHit `json:"hits"`

	// Truncated reports whether the server's result cap cut the trace short.
	Truncated bool `json:"truncated"`
}

// GraphNode is a node in an import document.
type GraphNode struct {
	ID         string         `json:"id" yaml:"id"`
	Key        string         `json:"key,omitempty" yaml:"key,omitempty"`
	Labels     []string       `json:"labels,omitempty" yaml:"labels,omitempty"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// GraphEdge is an edge in an import document. Amount is required.
type GraphEdge struct {
	ID         string         `json:"id,omitempty" yaml:"id,omitempty"`
	Source     string         `json:"source" yaml:"source"`
	Target     string         `json:"target" yaml:"target"`
	Amount     *float64       `json:"amount" yaml:"amount"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// GraphDocument is a whole graph for import.
type GraphDocument struct {
	Nodes []GraphNode `json:"nodes" yaml:"nodes"`
	Edges []GraphEdge `json:"edges" yaml:"edges"`
}

// ImportResult reports how many rows an import wrote.
type ImportResult struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// HealthResponse is the liveness check response.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Source        string  `json:"source"`
	Database      string  `json:"database"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// ReadinessResponse is the readiness check response.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
