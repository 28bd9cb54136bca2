// Package matutils implements the log-domain matrix reductions the
// belief propagation engine runs on every message update.
package matutils

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LogSumExp computes log(Σ exp(values)) in a numerically stable way by
// subtracting the maximum value before exponentiating. Returns -Inf for
// an all -Inf input rather than NaN.
func LogSumExp(values []float64) float64 {
	if len(values) == 0 {
		return math.Inf(-1)
	}
	max := floats.Max(values)
	if math.IsInf(max, -1) {
		return math.Inf(-1)
	}

	shifted := make([]float64, len(values))
	for i, v := range values {
		shifted[i] = math.Exp(v - max)
	}
	return max + math.Log(floats.Sum(shifted))
}

// LogSumExpCols reduces M over its rows, returning one value per column:
// out[j] = LogSumExp(M[:,j]).
func LogSumExpCols(M *mat.Dense) []float64 {
	r, c := M.Dims()
	out := make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			col[i] = M.At(i, j)
		}
		out[j] = LogSumExp(col)
	}
	return out
}

// LogSumExpAll reduces every entry of M to a single scalar.
func LogSumExpAll(M *mat.Dense) float64 {
	r, c := M.Dims()
	flat := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			flat = append(flat, M.At(i, j))
		}
	}
	return LogSumExp(flat)
}

// NanToNum replaces NaN entries of v with 0 in place, matching the
// clamping mrftools applies after subtracting the running max in
// logsumexp-based updates (0 * log 0 cancellations surface as NaN, and
// are defined to contribute 0).
func NanToNum(v []float64) {
	for i, x := range v {
		if math.IsNaN(x) {
			v[i] = 0
		}
	}
}
