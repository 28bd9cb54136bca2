// Package featureexpectation converts a belief propagator's current
// beliefs into the vector of expected sufficient statistics aligned
// with a LogLinearModel's weight vector. The same routine produces both
// the model expectation μ (from an unconditioned propagator) and the
// empirical expectation ŝ (from a propagator conditioned, fully or
// partially, on observed labels): a fully conditioned propagator's
// belief is exactly a one-hot, so no separate one-hot code path is
// needed.
package featureexpectation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mrftools-go/mrftools/inference"
	"github.com/mrftools-go/mrftools/loglinear"
)

// Compute returns concat(vec(μ_unary), vec(μ_edge)), in the same
// column-major layout loglinear.LogLinearModel.Weights uses, where
//
//	μ_unary = F  · exp(B)ᵀ                        ∈ ℝ^{d_u x K}
//	μ_edge  = F_e· reshape(exp(P_fwd), K² x m)ᵀ   ∈ ℝ^{d_e x K²}
//
// bp must have been run (or conditioned) against a propagator built
// over model's MarkovNet, so its beliefs and pairwise beliefs are
// already populated.
func Compute(model *loglinear.LogLinearModel, bp *inference.BeliefPropagator) ([]float64, error) {
	B := bp.Beliefs()
	if B == nil {
		return nil, fmt.Errorf("featureexpectation: propagator has no beliefs yet; call Infer or Condition first")
	}
	expB := expDense(B)

	var muUnary mat.Dense
	muUnary.Mul(model.F, expB.T())
	out := loglinear.FlattenColMajor(&muUnary)

	m := model.NumEdges()
	if m > 0 {
		pairs := bp.PairwiseBeliefs()
		K := model.K
		vecPairs := mat.NewDense(K*K, m, nil)
		for e, slice := range pairs {
			col := loglinear.FlattenColMajor(expDense(slice))
			vecPairs.SetCol(e, col)
		}

		var muEdge mat.Dense
		muEdge.Mul(model.Fe, vecPairs.T())
		out = append(out, loglinear.FlattenColMajor(&muEdge)...)
	}

	return out, nil
}

func expDense(M *mat.Dense) *mat.Dense {
	r, c := M.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, math.Exp(M.At(i, j)))
		}
	}
	return out
}

