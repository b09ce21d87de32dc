package flux

import (
	"fmt"
	"math"

	"github.com/persistorai/fluxtrace/internal/models"
)

// BranchState is the propagation state at the end of one path.
type BranchState struct {
	// Contribution is the fraction of the start node's influence attributed
	// to this path, conceptually in [0, 1].
	Contribution float64

	// Influx is the total amount of the node's incoming edges.
	Influx float64
}

// Contribution returns the share reaching a node over an edge of the given
// weight whose target holds parent. A nil parent denotes the start node.
// The divisor is the parent's influx, not the node's own.
func Contribution(parent *BranchState, weight float64) float64 {
	if parent == nil {
		return 1.0
	}

	if parent.Influx <= 0 {
		return 0
	}

	return parent.Contribution * weight / parent.Influx
}

// Influx sums the amounts of incoming. A node without incoming edges has
// zero influx.
func Influx(incoming []Incoming) (float64, error) {
	var sum float64

	for _, in := range incoming {
		if !models.ValidAmount(in.Edge.Amount) {
			return 0, fmt.Errorf("edge %s amount %v: %w", in.Edge.ID, in.Edge.Amount, models.ErrMalformedWeight)
		}

		sum += in.Edge.Amount
	}

	if math.IsInf(sum, 0) {
		return 0, fmt.Errorf("influx overflows: %w", models.ErrMalformedWeight)
	}

	return sum, nil
}

// Propagate computes the branch state of a node reached from parent over an
// edge of the given weight, where incoming are the node's own incoming edges.
// For the start node pass a nil parent; weight is ignored.
func Propagate(parent *BranchState, weight float64, incoming []Incoming) (BranchState, error) {
	influx, err := Influx(incoming)
	if err != nil {
		return BranchState{}, err
	}

	return BranchState{
		Contribution: Contribution(parent, weight),
		Influx:       influx,
	}, nil
}
