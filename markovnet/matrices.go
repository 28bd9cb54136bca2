package markovnet

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// CreateMatrices builds U, Phi, From, To, MessageToMap, and Degrees from
// the current variable/edge dictionaries. It is idempotent: calling it
// again rebuilds the matrix view from scratch, reflecting whatever
// factors are currently set.
//
// Once CreateMatrices has been called, SetUnaryFactor and SetEdgeFactor
// keep the matrix view in sync; they must be the only way factors are
// subsequently changed, or the dictionary and matrix views will diverge.
func (m *MarkovNet) CreateMatrices() {
	vars := m.Variables()
	edges := m.Edges()
	nVars := len(vars)
	nEdges := len(edges)

	m.varIndex = make(map[int]int, nVars)
	for i, v := range vars {
		m.varIndex[v] = i
	}
	m.edgeIdx = make(map[Edge]int, nEdges)
	for i, e := range edges {
		m.edgeIdx[e] = i
	}

	K := 1
	for _, v := range vars {
		if k := m.cardinality[v]; k > K {
			K = k
		}
	}
	m.K = K

	m.U = mat.NewDense(K, nVars, nil)
	for i, v := range vars {
		m.fillUnaryColumn(i, v)
	}

	m.From = make([]int, 2*nEdges)
	m.To = make([]int, 2*nEdges)
	m.Degrees = make([]int, nVars)
	m.Phi = make([]*mat.Dense, 2*nEdges)

	for i, e := range edges {
		ui, vi := m.varIndex[e.U], m.varIndex[e.V]
		m.From[i], m.To[i] = ui, vi
		m.From[i+nEdges], m.To[i+nEdges] = vi, ui
		m.Degrees[ui]++
		m.Degrees[vi]++

		m.fillEdgeSlices(i, e)
	}

	m.MessageToMap = mat.NewDense(nVars, 2*nEdges, nil)
	for e := 0; e < 2*nEdges; e++ {
		m.MessageToMap.Set(m.To[e], e, 1)
	}

	m.matricesBuilt = true
}

// fillUnaryColumn writes the padded log-potential for variable v into
// column i of U (or -Inf padding over the full column if v has no
// unary factor yet).
func (m *MarkovNet) fillUnaryColumn(i, v int) {
	k := m.cardinality[v]
	col := make([]float64, m.K)
	negInf(col)

	phi, ok := m.unary[v]
	if ok {
		copy(col, phi)
	} else {
		for s := 0; s < k; s++ {
			col[s] = 0
		}
	}
	m.U.SetCol(i, col)
}

// fillEdgeSlices writes Phi[i] (forward, K x K, padded) and Phi[i+m]
// (its transpose) for the edge at position i.
func (m *MarkovNet) fillEdgeSlices(i int, e Edge) {
	nEdges := len(m.edgeIdx)
	fwd := mat.NewDense(m.K, m.K, nil)
	for r := 0; r < m.K; r++ {
		for c := 0; c < m.K; c++ {
			fwd.Set(r, c, math.Inf(-1))
		}
	}

	ku, kv := m.cardinality[e.U], m.cardinality[e.V]
	psi, ok := m.edgeFactor[e]
	if ok {
		for r := 0; r < ku; r++ {
			for c := 0; c < kv; c++ {
				fwd.Set(r, c, psi.At(r, c))
			}
		}
	} else {
		for r := 0; r < ku; r++ {
			for c := 0; c < kv; c++ {
				fwd.Set(r, c, 0)
			}
		}
	}

	m.Phi[i] = fwd
	m.Phi[i+nEdges] = mat.DenseCopyOf(fwd.T())
}

// updateUnaryColumn refreshes U's column for v after a post-CreateMatrices
// SetUnaryFactor call.
func (m *MarkovNet) updateUnaryColumn(v int) {
	i, ok := m.varIndex[v]
	if !ok {
		return
	}
	m.fillUnaryColumn(i, v)
}

// updateEdgeSlice refreshes Phi's forward/reverse slices for e after a
// post-CreateMatrices SetEdgeFactor call.
func (m *MarkovNet) updateEdgeSlice(e Edge) error {
	i, ok := m.edgeIdx[e]
	if !ok {
		// Edge created after CreateMatrices: rebuild the whole layout,
		// since index arrays and MessageToMap must grow to fit it.
		m.CreateMatrices()
		return nil
	}
	m.fillEdgeSlices(i, e)
	return nil
}

// NumEdges returns m, the number of undirected edges.
func (m *MarkovNet) NumEdges() int {
	return len(m.edgeIdx)
}

// NumVariables returns |V|.
func (m *MarkovNet) NumVariables() int {
	return len(m.varIndex)
}

// VarIndex returns the column index of variable v in U, and whether the
// variable has been indexed (i.e. CreateMatrices has run since it was
// declared).
func (m *MarkovNet) VarIndex(v int) (int, bool) {
	i, ok := m.varIndex[v]
	return i, ok
}

// EdgeIndex returns the forward half-edge index of the canonical edge
// {u,v}.
func (m *MarkovNet) EdgeIndex(u, v int) (int, bool) {
	i, ok := m.edgeIdx[canon(u, v)]
	return i, ok
}
