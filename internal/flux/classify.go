package flux

import "slices"

// Decision is the outcome of classifying a visited node.
type Decision uint8

const (
	// Continue emits the node and expands past it.
	Continue Decision = iota
	// ResultPrune emits the node and stops expanding on this branch.
	ResultPrune
)

func (d Decision) String() string {
	switch d {
	case Continue:
		return "continue"
	case ResultPrune:
		return "result+prune"
	default:
		return "unknown"
	}
}

// Classify returns ResultPrune when labels contain the terminal label.
func Classify(labels []string, terminal string) Decision {
	if slices.Contains(labels, terminal) {
		return ResultPrune
	}

	return Continue
}
