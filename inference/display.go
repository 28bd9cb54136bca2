package inference

import "fmt"

// Display selects how much textual reporting the inference loop does.
// It never affects the computed beliefs or messages, only what gets
// printed.
type Display string

const (
	// DisplayOff prints nothing.
	DisplayOff Display = "off"
	// DisplayFinal prints a single summary line after the loop ends.
	DisplayFinal Display = "final"
	// DisplayIter prints one line per iteration with the message change.
	DisplayIter Display = "iter"
	// DisplayFull prints per-iteration change plus the dual objective
	// and calibration disagreement, which are themselves expensive to
	// compute.
	DisplayFull Display = "full"
)

func (d Display) valid() bool {
	switch d {
	case DisplayOff, DisplayFinal, DisplayIter, DisplayFull:
		return true
	}
	return false
}

func (d Display) reportsPerIteration() bool {
	return d == DisplayIter || d == DisplayFull
}

func (d Display) reportsSummary() bool {
	return d == DisplayFinal || d == DisplayIter || d == DisplayFull
}

func printIteration(iter int, change float64, d Display, bp *BeliefPropagator) {
	switch d {
	case DisplayIter:
		fmt.Printf("Iteration %d, change in messages %f.\n", iter, change)
	case DisplayFull:
		// ComputeEnergyFunctional/ComputeInconsistency/ComputeDualObjective
		// all read bp.B/bp.P, which Infer otherwise only refreshes after
		// the loop; refresh them here so mid-loop reporting sees this
		// iteration's messages instead of a nil belief/pairwise-belief.
		bp.computeBeliefs()
		bp.computePairwiseBeliefs()
		energy := bp.ComputeEnergyFunctional()
		disagreement := bp.ComputeInconsistency()
		dual := bp.ComputeDualObjective()
		fmt.Printf("Iteration %d, change in messages %f. Calibration disagreement: %f, energy functional: %f, dual obj: %f\n",
			iter, change, disagreement, energy, dual)
	}
}

func printSummary(iterations int, d Display) {
	if d.reportsSummary() {
		fmt.Printf("Belief propagation finished in %d iterations.\n", iterations)
	}
}
