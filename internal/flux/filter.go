package flux

// Admit returns the incoming edges whose continuation keeps at least
// minContribution of the start node's influence. The comparison is
// inclusive. A node with zero influx admits nothing.
func Admit(state BranchState, incoming []Incoming, minContribution float64) []Incoming {
	if state.Influx <= 0 {
		return nil
	}

	admitted := make([]Incoming, 0, len(incoming))

	for _, in := range incoming {
		if Contribution(&state, in.Edge.Amount) >= minContribution {
			admitted = append(admitted, in)
		}
	}

	return admitted
}
