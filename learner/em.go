package learner

import (
	"fmt"
	"math"

	"github.com/mrftools-go/mrftools/featureexpectation"
	"github.com/mrftools-go/mrftools/inference"
)

// RunEM alternates an E-step (re-impute every hidden variable's
// expected sufficient statistics by conditioned inference under the
// current weights) and an M-step (minimize the fully-observed
// subgradient objective with those statistics) until weights stop
// changing within tol, or maxOuterIter E/M rounds have run.
//
// RunEM requires Subgradient mode; paired-dual's small inner budget is
// a separate tradeoff along a different axis and the two are not
// combined here.
func (l *Learner) RunEM(w0 []float64, min Minimizer, maxOuterIter int, tol float64, cb func([]float64)) ([]float64, error) {
	if l.Mode != Subgradient {
		return nil, fmt.Errorf("learner: RunEM requires Subgradient mode")
	}
	if len(w0) != l.weightLen {
		return nil, fmt.Errorf("learner: w0 length %d != expected %d", len(w0), l.weightLen)
	}

	w := append([]float64(nil), w0...)
	for iter := 0; iter < maxOuterIter; iter++ {
		if err := l.eStep(w); err != nil {
			return nil, err
		}

		wNew, err := l.Learn(w, min, cb)
		if err != nil {
			return nil, err
		}

		delta := 0.0
		for i := range w {
			delta += math.Abs(wNew[i] - w[i])
		}
		w = wNew
		if delta <= tol {
			break
		}
	}
	return w, nil
}

// eStep re-imputes ŝ for every example with at least one hidden
// variable, by running conditioned inference under w. Fully observed
// examples' ŝ never changes, since it is already the exact one-hot of
// the labelled state.
func (l *Learner) eStep(w []float64) error {
	for _, ex := range l.examples {
		if !ex.hasHidden {
			continue
		}
		if err := ex.model.SetWeights(w); err != nil {
			return err
		}
		if err := ex.labelBP.Infer(l.bpTol(), l.bpMaxIter(), inference.DisplayOff); err != nil {
			return err
		}
		emp, err := featureexpectation.Compute(ex.model, ex.labelBP)
		if err != nil {
			return err
		}
		ex.empirical = emp
	}
	l.cached = false
	return nil
}
