// Package markovnet implements the graph topology, per-variable
// cardinalities, and pairwise log-potentials of a discrete Markov random
// field, along with the dense matrix layout the inference engine runs
// over.
package markovnet

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Edge is an unordered pair of variables, stored canonically with U < V.
type Edge struct {
	U, V int
}

// canon returns e with its endpoints ordered u < v.
func canon(u, v int) Edge {
	if u <= v {
		return Edge{u, v}
	}
	return Edge{v, u}
}

// MarkovNet holds the topology and pairwise log-linear factors of a
// discrete Markov random field, and, once CreateMatrices has been called,
// the dense matrix layout (U, Φ, topology index arrays) the inference
// engine reads from.
type MarkovNet struct {
	cardinality map[int]int
	unary       map[int][]float64
	edgeFactor  map[Edge]*mat.Dense
	neighbors   map[int]map[int]bool

	variables []int // insertion order, stable once sorted by CreateMatrices
	edges     []Edge

	varIndex map[int]int // variable id -> column in U
	edgeIdx  map[Edge]int

	matricesBuilt bool

	// K is the maximum cardinality over all declared variables. Valid
	// only after CreateMatrices.
	K int

	// U is the K x |V| unary log-potential matrix. Column i is the
	// padded log-potential for the variable at index i; rows beyond
	// that variable's cardinality are -Inf.
	U *mat.Dense

	// Phi holds 2*len(edges) directed K x K log-factor slices. Phi[e]
	// for e < m is the forward factor for edges[e]; Phi[e+m] is its
	// transpose.
	Phi []*mat.Dense

	// From and To give the source and target variable index (not id)
	// of each directed half-edge.
	From, To []int

	// MessageToMap is the |V| x 2m aggregator with a 1 at (To[e], e),
	// used to sum incoming messages into each variable with one matrix
	// product.
	MessageToMap *mat.Dense

	// Degrees[i] is the number of edges incident on the variable at
	// index i.
	Degrees []int
}

// NewMarkovNet returns an empty MarkovNet with no declared variables.
func NewMarkovNet() *MarkovNet {
	return &MarkovNet{
		cardinality: make(map[int]int),
		unary:       make(map[int][]float64),
		edgeFactor:  make(map[Edge]*mat.Dense),
		neighbors:   make(map[int]map[int]bool),
		varIndex:    make(map[int]int),
		edgeIdx:     make(map[Edge]int),
	}
}

// DeclareVariable registers a variable v with cardinality k. It is a
// configuration error to declare the same variable twice or to declare a
// non-positive cardinality.
func (m *MarkovNet) DeclareVariable(v, k int) error {
	if _, exists := m.cardinality[v]; exists {
		return fmt.Errorf("markovnet: variable %d already declared", v)
	}
	if k < 1 {
		return fmt.Errorf("markovnet: variable %d: cardinality must be >= 1, got %d", v, k)
	}
	m.cardinality[v] = k
	m.neighbors[v] = make(map[int]bool)
	m.variables = append(m.variables, v)
	return nil
}

// Cardinality returns k(v), the number of states of variable v.
func (m *MarkovNet) Cardinality(v int) (int, error) {
	k, ok := m.cardinality[v]
	if !ok {
		return 0, fmt.Errorf("markovnet: undeclared variable %d", v)
	}
	return k, nil
}

// Variables returns the declared variable ids in a stable, sorted order.
func (m *MarkovNet) Variables() []int {
	out := make([]int, len(m.variables))
	copy(out, m.variables)
	sort.Ints(out)
	return out
}

// Edges returns the canonical (u < v) edges in a stable, sorted order.
func (m *MarkovNet) Edges() []Edge {
	out := make([]Edge, 0, len(m.edgeFactor))
	for e := range m.edgeFactor {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].U != out[j].U {
			return out[i].U < out[j].U
		}
		return out[i].V < out[j].V
	})
	return out
}

// SetUnaryFactor sets the log-potential for variable v. phi must have
// length k(v).
func (m *MarkovNet) SetUnaryFactor(v int, phi []float64) error {
	k, err := m.Cardinality(v)
	if err != nil {
		return err
	}
	if len(phi) != k {
		return fmt.Errorf("markovnet: variable %d: factor length %d != cardinality %d", v, len(phi), k)
	}
	cp := make([]float64, k)
	copy(cp, phi)
	m.unary[v] = cp
	if m.matricesBuilt {
		m.updateUnaryColumn(v)
	}
	return nil
}

// SetEdgeFactor sets the pairwise log-potential for {u,v}. psi must be
// k(u) x k(v); it is stored canonically, with the transpose available
// through Psi for the reverse orientation.
func (m *MarkovNet) SetEdgeFactor(u, v int, psi *mat.Dense) error {
	ku, err := m.Cardinality(u)
	if err != nil {
		return err
	}
	kv, err := m.Cardinality(v)
	if err != nil {
		return err
	}
	if u == v {
		return fmt.Errorf("markovnet: self-loop edge (%d,%d) not supported", u, v)
	}

	r, c := psi.Dims()
	e := canon(u, v)
	var stored *mat.Dense
	if u < v {
		if r != ku || c != kv {
			return fmt.Errorf("markovnet: edge (%d,%d): factor shape (%d,%d) != (%d,%d)", u, v, r, c, ku, kv)
		}
		stored = mat.DenseCopyOf(psi)
	} else {
		if r != ku || c != kv {
			return fmt.Errorf("markovnet: edge (%d,%d): factor shape (%d,%d) != (%d,%d)", u, v, r, c, ku, kv)
		}
		stored = mat.DenseCopyOf(psi.T())
	}

	if _, exists := m.edgeFactor[e]; !exists {
		m.neighbors[u][v] = true
		m.neighbors[v][u] = true
	}
	m.edgeFactor[e] = stored

	if m.matricesBuilt {
		if err := m.updateEdgeSlice(e); err != nil {
			return err
		}
	}
	return nil
}

// Psi returns the canonical (u < v orientation as declared) pairwise
// log-potential for {u,v}, or an error if the edge has no factor.
func (m *MarkovNet) Psi(u, v int) (*mat.Dense, error) {
	e := canon(u, v)
	psi, ok := m.edgeFactor[e]
	if !ok {
		return nil, fmt.Errorf("markovnet: no factor set for edge (%d,%d)", u, v)
	}
	if u <= v {
		return psi, nil
	}
	return mat.DenseCopyOf(psi.T()), nil
}

// Neighbors returns the set of variables adjacent to v.
func (m *MarkovNet) Neighbors(v int) []int {
	set := m.neighbors[v]
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// EvaluateState returns Σ_v log φ_v(x_v) + Σ_{uv} log ψ_{uv}(x_u, x_v) for
// a complete assignment.
func (m *MarkovNet) EvaluateState(assignment map[int]int) (float64, error) {
	total := 0.0
	for v, state := range assignment {
		phi, ok := m.unary[v]
		if !ok {
			return 0, fmt.Errorf("markovnet: variable %d has no unary factor", v)
		}
		if state < 0 || state >= len(phi) {
			return 0, fmt.Errorf("markovnet: variable %d: state %d out of range [0,%d)", v, state, len(phi))
		}
		total += phi[state]
	}
	for e, psi := range m.edgeFactor {
		su, ok := assignment[e.U]
		if !ok {
			return 0, fmt.Errorf("markovnet: assignment missing variable %d", e.U)
		}
		sv, ok := assignment[e.V]
		if !ok {
			return 0, fmt.Errorf("markovnet: assignment missing variable %d", e.V)
		}
		total += psi.At(su, sv)
	}
	return total, nil
}

// negInf fills dst with -Inf.
func negInf(dst []float64) {
	for i := range dst {
		dst[i] = math.Inf(-1)
	}
}
