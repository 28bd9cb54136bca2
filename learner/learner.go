// Package learner computes the maximum-likelihood learning objective
// and gradient for a collection of log-linear MRF training examples,
// and drives a black-box smooth minimizer over the shared weight
// vector. It supports three objective shapes over the same per-example
// state: direct subgradient descent, a paired-dual variant with a small
// fixed inner BP budget, and EM for partially labelled examples.
package learner

import (
	"fmt"
	"math"

	"github.com/mrftools-go/mrftools/featureexpectation"
	"github.com/mrftools-go/mrftools/inference"
	"github.com/mrftools-go/mrftools/loglinear"
)

// HiddenLabel is the sentinel marking a variable as unobserved in the
// states map passed to AddExample.
const HiddenLabel = -100

// Mode selects which energy functional ensureInference's inner BP
// contributes to the objective: the fully-converged energy functional
// for plain subgradient learning, or the dual objective from a small
// fixed inner budget for paired-dual learning.
type Mode int

const (
	Subgradient Mode = iota
	PairedDual
)

type example struct {
	model      *loglinear.LogLinearModel
	modelBP    *inference.BeliefPropagator // p, unconditioned
	labelBP    *inference.BeliefPropagator // q, conditioned on observed labels
	hasHidden  bool
	empirical  []float64 // ŝ_i
}

// Learner holds per-example MarkovNet/BeliefPropagator instances and
// the regularization and inference configuration shared across them.
type Learner struct {
	examples []*example

	lambda1, lambda2 float64

	// Mode and PairedDualInnerIterations govern the inner BP budget and
	// which A_i feeds the objective; see Mode.
	Mode                     Mode
	PairedDualInnerIterations int

	// BPTol, BPMaxIter, BPDisplay configure the inner inference calls
	// used for the unconditioned model BP in Subgradient mode.
	BPTol     float64
	BPMaxIter int
	BPDisplay inference.Display

	weightLen int
	lastW     []float64
	cached    bool
}

// New returns a Learner with the inference defaults mrftools itself
// uses: a tight tolerance, a generous iteration cap, and no display
// output.
func New() *Learner {
	return &Learner{
		Mode:                      Subgradient,
		PairedDualInnerIterations: 5,
		BPTol:                     1e-8,
		BPMaxIter:                 300,
		BPDisplay:                 inference.DisplayOff,
	}
}

// SetRegularization sets λ1 (L1) and λ2 (L2). Both must be non-negative.
func (l *Learner) SetRegularization(lambda1, lambda2 float64) error {
	if lambda1 < 0 || lambda2 < 0 {
		return fmt.Errorf("learner: regularization weights must be non-negative, got λ1=%v λ2=%v", lambda1, lambda2)
	}
	l.lambda1, l.lambda2 = lambda1, lambda2
	return nil
}

// AddExample registers a training example: states maps every variable
// in model to its observed label, or to HiddenLabel if the label is
// unobserved. model must already have CreateMatrices called, and its
// WeightVectorLength must match any examples already added.
//
// The empirical sufficient statistics ŝ for this example are computed
// once, here: fully observed variables contribute their one-hot label,
// and any hidden variables are imputed by a single conditioned
// inference pass over model's current weights (typically zero, if
// called before the first SetWeights).
func (l *Learner) AddExample(states map[int]int, model *loglinear.LogLinearModel) error {
	if l.weightLen == 0 {
		l.weightLen = model.WeightVectorLength()
	} else if model.WeightVectorLength() != l.weightLen {
		return fmt.Errorf("learner: example weight vector length %d != existing examples' %d", model.WeightVectorLength(), l.weightLen)
	}

	modelBP, err := inference.NewBeliefPropagator(model.MarkovNet, inference.Bethe(model.MarkovNet))
	if err != nil {
		return err
	}
	labelBP, err := inference.NewBeliefPropagator(model.MarkovNet, inference.Bethe(model.MarkovNet))
	if err != nil {
		return err
	}

	hasHidden := false
	for _, v := range model.Variables() {
		state, ok := states[v]
		if !ok {
			return fmt.Errorf("learner: no label given for variable %d", v)
		}
		if state == HiddenLabel {
			hasHidden = true
			continue
		}
		if err := labelBP.Condition(v, state); err != nil {
			return fmt.Errorf("learner: variable %d: %w", v, err)
		}
	}
	if err := labelBP.Infer(l.bpTol(), l.bpMaxIter(), inference.DisplayOff); err != nil {
		return err
	}

	empirical, err := featureexpectation.Compute(model, labelBP)
	if err != nil {
		return err
	}

	l.examples = append(l.examples, &example{
		model:     model,
		modelBP:   modelBP,
		labelBP:   labelBP,
		hasHidden: hasHidden,
		empirical: empirical,
	})
	l.cached = false
	return nil
}

func (l *Learner) bpTol() float64 {
	if l.BPTol == 0 {
		return 1e-8
	}
	return l.BPTol
}

func (l *Learner) bpMaxIter() int {
	if l.Mode == PairedDual {
		if l.PairedDualInnerIterations > 0 {
			return l.PairedDualInnerIterations
		}
		return 5
	}
	if l.BPMaxIter == 0 {
		return 300
	}
	return l.BPMaxIter
}

// WeightVectorLength returns the length every w passed to Objective,
// Gradient, or Learn must have.
func (l *Learner) WeightVectorLength() int {
	return l.weightLen
}

// ensureInference sets w on every example's model and, unless w is the
// same vector the last call used, re-runs each example's model BP.
// This is the "skip inference when weights repeat" caching mrftools
// relies on when the minimizer evaluates the same point twice (once
// for the objective, once for the gradient).
func (l *Learner) ensureInference(w []float64) error {
	if l.cached && sameWeights(l.lastW, w) {
		return nil
	}
	for _, ex := range l.examples {
		if err := ex.model.SetWeights(w); err != nil {
			return err
		}
		if err := ex.modelBP.Infer(l.bpTol(), l.bpMaxIter(), l.BPDisplay); err != nil {
			return err
		}
	}
	l.lastW = append([]float64(nil), w...)
	l.cached = true
	return nil
}

func sameWeights(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (l *Learner) meanEmpirical() []float64 {
	out := make([]float64, l.weightLen)
	n := float64(len(l.examples))
	for _, ex := range l.examples {
		for i, v := range ex.empirical {
			out[i] += v / n
		}
	}
	return out
}

// Objective evaluates f(w): λ1‖w‖1 + ½λ2 wᵀw − wᵀ·mean(ŝ) + mean(A_i(w)),
// where A_i is each example's energy functional (Subgradient mode) or
// dual objective (PairedDual mode).
func (l *Learner) Objective(w []float64) (float64, error) {
	if err := l.ensureInference(w); err != nil {
		return 0, err
	}

	l1, l2 := 0.0, 0.0
	for _, wi := range w {
		l1 += math.Abs(wi)
		l2 += wi * wi
	}

	meanA := 0.0
	n := float64(len(l.examples))
	for _, ex := range l.examples {
		if l.Mode == PairedDual {
			meanA += ex.modelBP.ComputeDualObjective() / n
		} else {
			meanA += ex.modelBP.ComputeEnergyFunctional() / n
		}
	}

	meanEmp := l.meanEmpirical()
	dot := 0.0
	for i := range w {
		dot += w[i] * meanEmp[i]
	}

	return l.lambda1*l1 + 0.5*l.lambda2*l2 - dot + meanA, nil
}

// Gradient evaluates ∇f(w) = λ1·sign(w) + λ2·w + mean(μ_i(w) − ŝ_i).
func (l *Learner) Gradient(w []float64) ([]float64, error) {
	if err := l.ensureInference(w); err != nil {
		return nil, err
	}

	grad := make([]float64, l.weightLen)
	n := float64(len(l.examples))
	for _, ex := range l.examples {
		mu, err := featureexpectation.Compute(ex.model, ex.modelBP)
		if err != nil {
			return nil, err
		}
		for i := range grad {
			grad[i] += (mu[i] - ex.empirical[i]) / n
		}
	}

	for i, wi := range w {
		grad[i] += l.lambda2 * wi
		if wi > 0 {
			grad[i] += l.lambda1
		} else if wi < 0 {
			grad[i] -= l.lambda1
		}
	}
	return grad, nil
}

// Learn minimizes the configured objective starting from w0 using min,
// returning the stationary weight vector. If cb is non-nil, it is
// invoked with each iterate the minimizer records.
func (l *Learner) Learn(w0 []float64, min Minimizer, cb func([]float64)) ([]float64, error) {
	if len(w0) != l.weightLen {
		return nil, fmt.Errorf("learner: w0 length %d != expected %d", len(w0), l.weightLen)
	}
	var evalErr error
	f := func(w []float64) float64 {
		v, err := l.Objective(w)
		if err != nil {
			evalErr = err
			return math.NaN()
		}
		return v
	}
	grad := func(w []float64) []float64 {
		g, err := l.Gradient(w)
		if err != nil {
			evalErr = err
			return make([]float64, len(w))
		}
		return g
	}

	w, err := min.Minimize(w0, f, grad, cb)
	if err != nil {
		return nil, err
	}
	if evalErr != nil {
		return nil, evalErr
	}
	return w, nil
}
