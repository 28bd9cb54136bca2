package learner

// NewPairedDual returns a Learner configured for paired-dual learning:
// each objective/gradient evaluation runs inner BP for only
// innerIterations sweeps (instead of to convergence) and substitutes
// the dual BP objective for the energy functional. This trades inner
// fidelity for outer progress — the saddle point of the combined
// weight/message optimization is only approached monotonically near
// the end of training, not at every step.
func NewPairedDual(innerIterations int) *Learner {
	if innerIterations <= 0 {
		innerIterations = 5
	}
	l := New()
	l.Mode = PairedDual
	l.PairedDualInnerIterations = innerIterations
	return l
}
