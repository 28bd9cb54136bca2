package learner

import "gonum.org/v1/gonum/optimize"

// Minimizer is the black-box smooth minimizer contract the learner
// needs: given an objective, its gradient, and a starting point, return
// a stationary weight vector. cb, if non-nil, is invoked with every
// iterate the implementation records, for callers that want to log or
// checkpoint training progress.
type Minimizer interface {
	Minimize(w0 []float64, f func([]float64) float64, grad func([]float64) []float64, cb func([]float64)) ([]float64, error)
}

// LBFGS wraps gonum/optimize's L-BFGS method. It is the minimizer
// mrftools itself is built against: a quasi-Newton method that only
// needs function and gradient evaluations, no Hessian.
//
// L-BFGS assumes a smooth objective. Learner.Objective's L1 term is
// only a subgradient at w=0; callers doing a gradient check should set
// λ1 = 0, and callers who need L1 in production should either accept
// the subgradient's practical (if not textbook-guaranteed) convergence
// or soften the penalty before wiring it through this minimizer.
type LBFGS struct {
	Settings optimize.Settings
}

// Minimize runs L-BFGS from w0 until gonum/optimize declares
// convergence or its own iteration/evaluation caps are hit.
func (m LBFGS) Minimize(w0 []float64, f func([]float64) float64, grad func([]float64) []float64, cb func([]float64)) ([]float64, error) {
	problem := optimize.Problem{
		Func: f,
		Grad: func(g, x []float64) {
			copy(g, grad(x))
		},
	}

	settings := m.Settings
	if cb != nil {
		settings.Recorder = callbackRecorder{cb: cb}
	}

	result, err := optimize.Minimize(problem, w0, &settings, &optimize.LBFGS{})
	if err != nil {
		return nil, err
	}
	return result.X, nil
}

// callbackRecorder adapts a plain func([]float64) into gonum/optimize's
// Recorder interface, firing only on major iterations (one per accepted
// step, not per internal line-search trial).
type callbackRecorder struct {
	cb func([]float64)
}

func (r callbackRecorder) Init() error { return nil }

func (r callbackRecorder) Record(loc *optimize.Location, op optimize.Operation, stats *optimize.Stats) error {
	if op&optimize.MajorIteration != 0 {
		r.cb(loc.X)
	}
	return nil
}
