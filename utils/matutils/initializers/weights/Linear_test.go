package weights

import (
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

func TestLinearMVZeroFillsEveryRow(t *testing.T) {
	w := mat.NewDense(3, 4, []float64{
		1, 1, 1, 1,
		1, 1, 1, 1,
		1, 1, 1, 1,
	})
	init := NewLinearMV(NewZero(make([]float64, 4)))
	init.Initialize(w)

	r, c := w.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if w.At(i, j) != 0 {
				t.Fatalf("w[%d][%d] = %v, want 0", i, j, w.At(i, j))
			}
		}
	}
}

func TestLinearUVFillsEveryEntry(t *testing.T) {
	w := mat.NewDense(2, 3, nil)
	init := NewLinearUV(distuv.Normal{Mu: 5, Sigma: 0})
	init.Initialize(w)

	r, c := w.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if w.At(i, j) != 5 {
				t.Fatalf("w[%d][%d] = %v, want 5", i, j, w.At(i, j))
			}
		}
	}
}

func TestLinearMVNilWeightsNoPanic(t *testing.T) {
	init := NewLinearMV(NewZero(make([]float64, 4)))
	init.Initialize(nil)
}
