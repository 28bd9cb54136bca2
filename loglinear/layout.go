package loglinear

import "gonum.org/v1/gonum/mat"

// FlattenColMajor returns vec(M): M's columns stacked end to end, the
// vectorization convention shared by w, μ, and ŝ. Keeping a single
// flatten/unflatten pair means the weight vector, the model's feature
// expectations, and the empirical sufficient statistics all share one
// linear layout without reshaping logic scattered across packages.
func FlattenColMajor(M *mat.Dense) []float64 {
	r, c := M.Dims()
	out := make([]float64, 0, r*c)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			out = append(out, M.At(i, j))
		}
	}
	return out
}

// UnflattenColMajor is the inverse of FlattenColMajor: it writes v into
// an r x c matrix, column by column.
func UnflattenColMajor(v []float64, r, c int) *mat.Dense {
	M := mat.NewDense(r, c, nil)
	idx := 0
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			M.Set(i, j, v[idx])
			idx++
		}
	}
	return M
}
