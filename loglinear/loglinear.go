// Package loglinear implements LogLinearModel, which extends a
// markovnet.MarkovNet with per-variable and per-edge feature vectors and
// the weight matrices that map those features to log-potentials.
package loglinear

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mrftools-go/mrftools/markovnet"
)

// LogLinearModel extends a MarkovNet with log-linear factors: unary and
// edge potentials are derived from feature vectors and a learnable
// weight vector rather than being set directly.
type LogLinearModel struct {
	*markovnet.MarkovNet

	unaryFeatures map[int][]float64
	edgeFeatures  map[markovnet.Edge][]float64

	Du, De int // padded feature dimensions, set by CreateMatrices

	// F is the Du x |V| unary feature matrix.
	F *mat.Dense
	// Fe is the De x m edge feature matrix (one column per forward edge).
	Fe *mat.Dense
	// W is the Du x K unary weight matrix.
	W *mat.Dense
	// We is the De x K^2 edge weight matrix.
	We *mat.Dense
}

// NewLogLinearModel returns an empty LogLinearModel.
func NewLogLinearModel() *LogLinearModel {
	return &LogLinearModel{
		MarkovNet:     markovnet.NewMarkovNet(),
		unaryFeatures: make(map[int][]float64),
		edgeFeatures:  make(map[markovnet.Edge][]float64),
	}
}

// SetUnaryFeatures records the unary feature vector for v.
func (l *LogLinearModel) SetUnaryFeatures(v int, f []float64) error {
	if _, err := l.Cardinality(v); err != nil {
		return err
	}
	cp := make([]float64, len(f))
	copy(cp, f)
	l.unaryFeatures[v] = cp
	return nil
}

// SetEdgeFeatures records the (symmetric) edge feature vector for {u,v}.
func (l *LogLinearModel) SetEdgeFeatures(u, v int, f []float64) error {
	if _, err := l.Cardinality(u); err != nil {
		return err
	}
	if _, err := l.Cardinality(v); err != nil {
		return err
	}
	cp := make([]float64, len(f))
	copy(cp, f)
	l.edgeFeatures[canonEdge(u, v)] = cp
	return nil
}

// canonEdge mirrors markovnet's canonical ordering so edge features are
// addressed the same way edge factors are.
func canonEdge(u, v int) markovnet.Edge {
	if u <= v {
		return markovnet.Edge{U: u, V: v}
	}
	return markovnet.Edge{U: v, V: u}
}

// SetUnaryWeights is the legacy per-factor setter: it sets a per-variable
// weight matrix (k(v) x len(features)) and immediately recomputes that
// variable's unary factor as Wv . f(v), bypassing the flat weight vector.
func (l *LogLinearModel) SetUnaryWeights(v int, Wv *mat.Dense) error {
	k, err := l.Cardinality(v)
	if err != nil {
		return err
	}
	f, ok := l.unaryFeatures[v]
	if !ok {
		return fmt.Errorf("loglinear: variable %d has no unary features set", v)
	}
	r, c := Wv.Dims()
	if r != k || c != len(f) {
		return fmt.Errorf("loglinear: variable %d: weight shape (%d,%d) != (%d,%d)", v, r, c, k, len(f))
	}

	phi := make([]float64, k)
	fv := mat.NewVecDense(len(f), f)
	for s := 0; s < k; s++ {
		phi[s] = mat.Dot(Wv.RowView(s), fv)
	}
	return l.SetUnaryFactor(v, phi)
}

// CreateMatrices builds the MarkovNet matrix layout and then the
// log-linear feature/weight matrices (F, Fe, W, We) from the currently
// recorded feature vectors, finally refreshing U and Phi via
// updateUnaryMatrix/updateEdgeTensor.
func (l *LogLinearModel) CreateMatrices() {
	l.MarkovNet.CreateMatrices()

	vars := l.Variables()
	edges := l.Edges()

	l.Du = 1
	for _, v := range vars {
		if f, ok := l.unaryFeatures[v]; ok && len(f) > l.Du {
			l.Du = len(f)
		}
	}
	l.De = 1
	for _, e := range edges {
		if f, ok := l.edgeFeatures[e]; ok && len(f) > l.De {
			l.De = len(f)
		}
	}

	l.F = mat.NewDense(l.Du, len(vars), nil)
	for i, v := range vars {
		if f, ok := l.unaryFeatures[v]; ok {
			col := make([]float64, l.Du)
			copy(col, f)
			l.F.SetCol(i, col)
		}
	}

	l.Fe = mat.NewDense(l.De, len(edges), nil)
	for i, e := range edges {
		if f, ok := l.edgeFeatures[e]; ok {
			col := make([]float64, l.De)
			copy(col, f)
			l.Fe.SetCol(i, col)
		} else {
			// Default edge feature is the indicator [1, 0, 0, ...],
			// matching the original mrftools default of np.array([1.0]).
			col := make([]float64, l.De)
			col[0] = 1
			l.Fe.SetCol(i, col)
		}
	}

	K := l.K
	l.W = mat.NewDense(l.Du, K, nil)
	l.We = mat.NewDense(l.De, K*K, nil)

	l.updateUnaryMatrix()
	l.updateEdgeTensor()
}

// WeightVectorLength returns d_u*K + d_e*K^2, the length SetWeights
// expects.
func (l *LogLinearModel) WeightVectorLength() int {
	return l.Du*l.K + l.De*l.K*l.K
}

// SetWeights decomposes the flat weight vector w into W and We, then
// refreshes U and Phi. w must have length WeightVectorLength().
func (l *LogLinearModel) SetWeights(w []float64) error {
	want := l.WeightVectorLength()
	if len(w) != want {
		return fmt.Errorf("loglinear: weight vector length %d != expected %d", len(w), want)
	}

	uLen := l.Du * l.K
	l.W = UnflattenColMajor(w[:uLen], l.Du, l.K)
	l.We = UnflattenColMajor(w[uLen:], l.De, l.K*l.K)

	l.updateUnaryMatrix()
	l.updateEdgeTensor()
	return nil
}

// Weights flattens the current W and We into a single vector using the
// same layout SetWeights expects: concat(vec(W), vec(We)).
func (l *LogLinearModel) Weights() []float64 {
	out := FlattenColMajor(l.W)
	return append(out, FlattenColMajor(l.We)...)
}

// updateUnaryMatrix sets U = Wᵀ · F, then masks impossible states
// (rows beyond each variable's cardinality) back to -Inf: a matrix
// product has no notion of per-column padding, so the mask has to be
// re-applied every time U is rederived from weights and features.
func (l *LogLinearModel) updateUnaryMatrix() {
	var u mat.Dense
	u.Mul(l.W.T(), l.F)

	vars := l.Variables()
	for i, v := range vars {
		k, _ := l.Cardinality(v)
		for s := k; s < l.K; s++ {
			u.Set(s, i, math.Inf(-1))
		}
	}
	l.U = &u
}

// updateEdgeTensor reshapes Weᵀ · Fe from K² x m to K x K x m (one
// column-major K x K slice per forward edge), masks impossible states
// the same way updateUnaryMatrix does, and concatenates each slice's
// transpose to fill the reverse half-edges.
func (l *LogLinearModel) updateEdgeTensor() {
	K := l.K
	m := l.NumEdges()
	if m == 0 {
		l.Phi = nil
		return
	}

	var half mat.Dense
	half.Mul(l.We.T(), l.Fe) // K^2 x m

	edges := l.Edges()
	phi := make([]*mat.Dense, 2*m)
	for e := 0; e < m; e++ {
		col := mat.Col(nil, e, &half)
		slice := UnflattenColMajor(col, K, K)

		ku, _ := l.Cardinality(edges[e].U)
		kv, _ := l.Cardinality(edges[e].V)
		for r := 0; r < K; r++ {
			for c := 0; c < K; c++ {
				if r >= ku || c >= kv {
					slice.Set(r, c, math.Inf(-1))
				}
			}
		}

		phi[e] = slice
		phi[e+m] = mat.DenseCopyOf(slice.T())
	}
	l.Phi = phi
}

// LoadFactorsFromMatrices is the inverse of updateUnaryMatrix /
// updateEdgeTensor: it reads the current U and Phi matrices back into
// the dictionary factor view, so factors can be inspected by variable
// or edge id rather than by matrix index.
func (l *LogLinearModel) LoadFactorsFromMatrices() error {
	vars := l.Variables()
	for i, v := range vars {
		k, err := l.Cardinality(v)
		if err != nil {
			return err
		}
		phi := make([]float64, k)
		for s := 0; s < k; s++ {
			phi[s] = l.U.At(s, i)
		}
		if err := l.SetUnaryFactor(v, phi); err != nil {
			return err
		}
	}

	edges := l.Edges()
	for i, e := range edges {
		ku, _ := l.Cardinality(e.U)
		kv, _ := l.Cardinality(e.V)
		psi := mat.NewDense(ku, kv, nil)
		for r := 0; r < ku; r++ {
			for c := 0; c < kv; c++ {
				psi.Set(r, c, l.Phi[i].At(r, c))
			}
		}
		if err := l.SetEdgeFactor(e.U, e.V, psi); err != nil {
			return err
		}
	}
	return nil
}
