package inference

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/mrftools-go/mrftools/markovnet"
	"github.com/mrftools-go/mrftools/utils/matutils"
)

// State is the lifecycle of a single Infer call.
type State int

const (
	Uninitialized State = iota
	Iterating
	Converged
	MaxIter
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case MaxIter:
		return "max_iter"
	default:
		return "unknown"
	}
}

// BeliefPropagator runs matrix-form loopy belief propagation over a
// MarkovNet's dense layout. It is parameterized by CountingNumbers, so a
// single implementation covers Bethe BP, TRBP, and general convex BP: the
// caller picks the variant by constructing the corresponding
// CountingNumbers and nothing else about the propagator changes.
//
// BeliefPropagator holds a non-owning reference to its MarkovNet: the
// net must outlive the propagator and must already have had
// CreateMatrices called on it.
//
// For the shared Φ tensor, half-edge e's K x K slice is indexed
// [source state, target state], i.e. Phi[e].At(r, c) pairs row r with
// From[e]'s state and column c with To[e]'s state. The message-update
// formula below reduces over rows (the source axis) to produce a
// message indexed by the target's states, matching how M[:,e] is used
// everywhere else (belief and pairwise-belief computation index M[:,e]
// by To[e]'s state).
type BeliefPropagator struct {
	net      *markovnet.MarkovNet
	counting CountingNumbers

	M *mat.Dense   // K x 2m messages
	B *mat.Dense   // K x |V| beliefs
	P []*mat.Dense // m forward-edge pairwise beliefs, K x K each

	conditioning   *mat.Dense // K x |V|, 0 unless a variable has been conditioned
	conditionedVar map[int]bool
	fullyConditioned bool

	state          State
	lastChange     float64
	lastIterations int
}

// NewBeliefPropagator builds a propagator over net, which must already
// have CreateMatrices called on it. counting must carry one edge count
// per undirected edge and one variable count per variable.
func NewBeliefPropagator(net *markovnet.MarkovNet, counting CountingNumbers) (*BeliefPropagator, error) {
	if net.NumVariables() == 0 {
		return nil, fmt.Errorf("inference: markov net has no declared variables")
	}
	if net.K == 0 {
		return nil, fmt.Errorf("inference: CreateMatrices must be called before constructing a belief propagator")
	}
	nVars := net.NumVariables()
	if len(counting.Variable) != nVars {
		return nil, fmt.Errorf("inference: counting numbers: %d variable entries, want %d", len(counting.Variable), nVars)
	}
	if len(counting.Edge) != net.NumEdges() {
		return nil, fmt.Errorf("inference: counting numbers: %d edge entries, want %d", len(counting.Edge), net.NumEdges())
	}

	bp := &BeliefPropagator{
		net:            net,
		counting:       counting,
		conditioning:   mat.NewDense(net.K, nVars, nil),
		conditionedVar: make(map[int]bool),
	}
	bp.ResetMessages()
	return bp, nil
}

// ResetMessages zeros M and returns the propagator to the Uninitialized
// state. Infer calls this itself; it is exposed so a caller can re-run
// inference from scratch with the same net and counting numbers.
func (bp *BeliefPropagator) ResetMessages() {
	m := bp.net.NumEdges()
	bp.M = mat.NewDense(bp.net.K, 2*m, nil)
	bp.state = Uninitialized
}

func fillNegInf(dst []float64) {
	for i := range dst {
		dst[i] = math.Inf(-1)
	}
}

// Condition observes x_v = state: conditioning[:,v] becomes -Inf except
// row state, which becomes 0. Once every declared variable has been
// conditioned, beliefs are computed once and frozen, and subsequent
// belief computation is a no-op; this supports EM's E-step.
func (bp *BeliefPropagator) Condition(v, state int) error {
	k, err := bp.net.Cardinality(v)
	if err != nil {
		return err
	}
	if state < 0 || state >= k {
		return fmt.Errorf("inference: condition variable %d: state %d out of range [0,%d)", v, state, k)
	}
	i, ok := bp.net.VarIndex(v)
	if !ok {
		return fmt.Errorf("inference: variable %d not indexed; call CreateMatrices first", v)
	}

	col := make([]float64, bp.net.K)
	fillNegInf(col)
	col[state] = 0
	bp.conditioning.SetCol(i, col)
	bp.conditionedVar[v] = true

	if len(bp.conditionedVar) == bp.net.NumVariables() {
		bp.fullyConditioned = true
		bp.computeBeliefs()
		bp.computePairwiseBeliefs()
	}
	return nil
}

// FullyConditioned reports whether every variable has been conditioned.
func (bp *BeliefPropagator) FullyConditioned() bool {
	return bp.fullyConditioned
}

// effectiveUnary is U with the conditioning override added in; for an
// unconditioned variable conditioning is all zero and this is just U.
func (bp *BeliefPropagator) effectiveUnary() *mat.Dense {
	r, c := bp.net.U.Dims()
	out := mat.NewDense(r, c, nil)
	out.Add(bp.net.U, bp.conditioning)
	return out
}

// incomingSum is M . message_to_map^T: column v is the sum, over every
// half-edge pointing at v, of the message on that half-edge.
func (bp *BeliefPropagator) incomingSum() *mat.Dense {
	var out mat.Dense
	out.Mul(bp.M, bp.net.MessageToMap.T())
	return &out
}

// updateMessages performs one synchronous (Jacobi-style) sweep over all
// 2m half-edges, replacing M with the freshly computed messages, and
// returns the total absolute change.
func (bp *BeliefPropagator) updateMessages() float64 {
	K := bp.net.K
	m := bp.net.NumEdges()
	total := 2 * m

	eff := bp.effectiveUnary()
	inSum := bp.incomingSum()

	newM := mat.NewDense(K, total, nil)

	for e := 0; e < total; e++ {
		u := bp.net.From[e]
		var rev int
		if e < m {
			rev = e + m
		} else {
			rev = e - m
		}

		s := make([]float64, K)
		for r := 0; r < K; r++ {
			s[r] = eff.At(r, u) + inSum.At(r, u) - bp.M.At(r, rev)
		}

		var c float64
		if e < m {
			c = bp.counting.Edge[e]
		} else {
			c = bp.counting.Edge[e-m]
		}

		phi := bp.net.Phi[e]
		adjusted := mat.NewDense(K, K, nil)
		for r := 0; r < K; r++ {
			for col := 0; col < K; col++ {
				adjusted.Set(r, col, phi.At(r, col)/c+s[r])
			}
		}

		raw := matutils.LogSumExpCols(adjusted) // one value per target state
		for i := range raw {
			raw[i] *= c
		}
		norm := matutils.LogSumExp(raw)
		for i := range raw {
			raw[i] -= norm
		}
		matutils.NanToNum(raw)
		newM.SetCol(e, raw)
	}

	change := 0.0
	for e := 0; e < total; e++ {
		for r := 0; r < K; r++ {
			change += math.Abs(newM.At(r, e) - bp.M.At(r, e))
		}
	}
	bp.M = newM
	return change
}

// computeBeliefs refreshes B from the current messages, unary
// potentials, and conditioning. A no-op once the propagator is fully
// conditioned and B has already been computed.
func (bp *BeliefPropagator) computeBeliefs() {
	if bp.fullyConditioned && bp.B != nil {
		return
	}

	K := bp.net.K
	nVars := bp.net.NumVariables()
	inSum := bp.incomingSum()

	B := mat.NewDense(K, nVars, nil)
	for i := 0; i < nVars; i++ {
		col := make([]float64, K)
		for r := 0; r < K; r++ {
			col[r] = bp.net.U.At(r, i) + inSum.At(r, i) + bp.conditioning.At(r, i)
		}
		matutils.NanToNum(col)
		z := matutils.LogSumExp(col)
		for r := range col {
			col[r] -= z
		}
		matutils.NanToNum(col)
		B.SetCol(i, col)
	}
	bp.B = B
}

// computePairwiseBeliefs refreshes P from the current beliefs, messages,
// and edge potentials. A no-op once the propagator is fully conditioned
// and P has already been computed.
func (bp *BeliefPropagator) computePairwiseBeliefs() {
	if bp.fullyConditioned && bp.P != nil {
		return
	}

	K := bp.net.K
	m := bp.net.NumEdges()
	P := make([]*mat.Dense, m)
	for i := 0; i < m; i++ {
		u := bp.net.From[i]
		v := bp.net.To[i]
		rev := i + m

		slice := mat.NewDense(K, K, nil)
		for r := 0; r < K; r++ {
			rowTerm := bp.B.At(r, u) - bp.M.At(r, rev)
			for c := 0; c < K; c++ {
				colTerm := bp.B.At(c, v) - bp.M.At(c, i)
				slice.Set(r, c, bp.net.Phi[i].At(r, c)+rowTerm+colTerm)
			}
		}

		z := matutils.LogSumExpAll(slice)
		for r := 0; r < K; r++ {
			for c := 0; c < K; c++ {
				val := slice.At(r, c) - z
				if math.IsNaN(val) {
					val = 0
				}
				slice.Set(r, c, val)
			}
		}
		P[i] = slice
	}
	bp.P = P
}

// Infer runs the inference loop: initialize M = 0, repeatedly update
// messages, and stop when the total change drops to tol or maxIter
// sweeps have run. Beliefs and pairwise beliefs are computed once at
// the end. If the propagator is already fully conditioned, the loop is
// skipped entirely since beliefs are already frozen.
func (bp *BeliefPropagator) Infer(tol float64, maxIter int, display Display) error {
	if !display.valid() {
		return fmt.Errorf("inference: invalid display mode %q", display)
	}

	if bp.fullyConditioned {
		bp.state = Converged
		bp.lastIterations = 0
		bp.lastChange = 0
		printSummary(0, display)
		return nil
	}

	bp.ResetMessages()
	bp.state = Iterating

	iter := 0
	change := math.Inf(1)
	for iter < maxIter {
		iter++
		change = bp.updateMessages()
		printIteration(iter, change, display, bp)
		if change <= tol {
			bp.state = Converged
			break
		}
	}
	if bp.state != Converged {
		bp.state = MaxIter
	}
	bp.lastIterations = iter
	bp.lastChange = change

	bp.computeBeliefs()
	bp.computePairwiseBeliefs()
	printSummary(bp.lastIterations, display)
	return nil
}

// ComputeEnergy returns Σ_e ⟨Φ_fwd[e], exp(P[e])⟩ + ⟨U, exp(B)⟩.
func (bp *BeliefPropagator) ComputeEnergy() float64 {
	energy := 0.0
	K := bp.net.K

	for i := 0; i < bp.net.NumEdges(); i++ {
		for r := 0; r < K; r++ {
			for c := 0; c < K; c++ {
				term := bp.net.Phi[i].At(r, c) * math.Exp(bp.P[i].At(r, c))
				if !math.IsNaN(term) {
					energy += term
				}
			}
		}
	}

	for i := 0; i < bp.net.NumVariables(); i++ {
		for r := 0; r < K; r++ {
			term := bp.net.U.At(r, i) * math.Exp(bp.B.At(r, i))
			if !math.IsNaN(term) {
				energy += term
			}
		}
	}
	return energy
}

// ComputeEntropy returns the Bethe/convex entropy term, 0 if the
// propagator is fully conditioned.
func (bp *BeliefPropagator) ComputeEntropy() float64 {
	if bp.fullyConditioned {
		return 0
	}

	entropy := 0.0
	K := bp.net.K

	for i := 0; i < bp.net.NumEdges(); i++ {
		c := bp.counting.Edge[i]
		for r := 0; r < K; r++ {
			for col := 0; col < K; col++ {
				p := bp.P[i].At(r, col)
				term := p * math.Exp(p)
				if !math.IsNaN(term) {
					entropy -= c * term
				}
			}
		}
	}

	for i := 0; i < bp.net.NumVariables(); i++ {
		cv := bp.counting.Variable[i]
		for r := 0; r < K; r++ {
			b := bp.B.At(r, i)
			term := b * math.Exp(b)
			if !math.IsNaN(term) {
				entropy -= cv * term
			}
		}
	}
	return entropy
}

// ComputeEnergyFunctional is the primal variational objective: energy +
// entropy.
func (bp *BeliefPropagator) ComputeEnergyFunctional() float64 {
	return bp.ComputeEnergy() + bp.ComputeEntropy()
}

// ComputeInconsistency sums, over every directed half-edge, the
// absolute difference between a variable's belief and the marginal of
// its neighbor edge's pairwise belief toward that variable. It is zero
// at a stationary point of BP.
func (bp *BeliefPropagator) ComputeInconsistency() float64 {
	total := 0.0
	K := bp.net.K

	for i := 0; i < bp.net.NumEdges(); i++ {
		u := bp.net.From[i]
		v := bp.net.To[i]

		for c := 0; c < K; c++ {
			sum := 0.0
			for r := 0; r < K; r++ {
				sum += math.Exp(bp.P[i].At(r, c))
			}
			total += math.Abs(math.Exp(bp.B.At(c, v)) - sum)
		}
		for r := 0; r < K; r++ {
			sum := 0.0
			for c := 0; c < K; c++ {
				sum += math.Exp(bp.P[i].At(r, c))
			}
			total += math.Abs(math.Exp(bp.B.At(r, u)) - sum)
		}
	}
	return total
}

// inconsistencyVector is the signed, per-half-edge version of
// ComputeInconsistency's summands, laid out like M (K x 2m) so it can
// be dotted against the messages for the dual objective.
func (bp *BeliefPropagator) inconsistencyVector() *mat.Dense {
	K := bp.net.K
	m := bp.net.NumEdges()
	out := mat.NewDense(K, 2*m, nil)

	for i := 0; i < m; i++ {
		u := bp.net.From[i]
		v := bp.net.To[i]

		for c := 0; c < K; c++ {
			sum := 0.0
			for r := 0; r < K; r++ {
				sum += math.Exp(bp.P[i].At(r, c))
			}
			out.Set(c, i, math.Exp(bp.B.At(c, v))-sum)
		}
		for r := 0; r < K; r++ {
			sum := 0.0
			for c := 0; c < K; c++ {
				sum += math.Exp(bp.P[i].At(r, c))
			}
			out.Set(r, i+m, math.Exp(bp.B.At(r, u))-sum)
		}
	}
	return out
}

// ComputeDualObjective returns the energy functional plus ⟨M,
// inconsistency_vector⟩, the Lagrangian term that vanishes at a
// stationary point.
func (bp *BeliefPropagator) ComputeDualObjective() float64 {
	ef := bp.ComputeEnergyFunctional()
	iv := bp.inconsistencyVector()

	dot := 0.0
	r, c := bp.M.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dot += bp.M.At(i, j) * iv.At(i, j)
		}
	}
	return ef + dot
}

// Beliefs returns the current K x |V| belief matrix.
func (bp *BeliefPropagator) Beliefs() *mat.Dense { return bp.B }

// PairwiseBeliefs returns the m forward-edge pairwise belief slices.
func (bp *BeliefPropagator) PairwiseBeliefs() []*mat.Dense { return bp.P }

// Messages returns the current K x 2m message matrix.
func (bp *BeliefPropagator) Messages() *mat.Dense { return bp.M }

// State returns the propagator's current lifecycle state.
func (bp *BeliefPropagator) State() State { return bp.state }

// LastChange returns the total message change from the final sweep of
// the most recent Infer call.
func (bp *BeliefPropagator) LastChange() float64 { return bp.lastChange }

// LastIterations returns the number of sweeps the most recent Infer
// call ran.
func (bp *BeliefPropagator) LastIterations() int { return bp.lastIterations }

// UnaryMarginal returns exp(B[:,v]) sliced to v's cardinality.
func (bp *BeliefPropagator) UnaryMarginal(v int) ([]float64, error) {
	k, err := bp.net.Cardinality(v)
	if err != nil {
		return nil, err
	}
	i, ok := bp.net.VarIndex(v)
	if !ok {
		return nil, fmt.Errorf("inference: variable %d not indexed", v)
	}
	if bp.B == nil {
		return nil, fmt.Errorf("inference: beliefs not yet computed; call Infer or Condition first")
	}
	out := make([]float64, k)
	for s := 0; s < k; s++ {
		out[s] = math.Exp(bp.B.At(s, i))
	}
	return out, nil
}

// PairwiseMarginal returns exp(P) for the undirected edge {u,v} in its
// canonical orientation, along with the variable ids that the row and
// column axes correspond to. Callers that need a specific {u,v} order
// must check rowVar/colVar and transpose if needed, since the
// propagator only ever materializes the canonical direction.
func (bp *BeliefPropagator) PairwiseMarginal(u, v int) (marginal [][]float64, rowVar, colVar int, err error) {
	idx, ok := bp.net.EdgeIndex(u, v)
	if !ok {
		return nil, 0, 0, fmt.Errorf("inference: no edge (%d,%d)", u, v)
	}
	if bp.P == nil {
		return nil, 0, 0, fmt.Errorf("inference: pairwise beliefs not yet computed; call Infer or Condition first")
	}

	rowVar = bp.net.From[idx]
	colVar = bp.net.To[idx]
	kr, _ := bp.net.Cardinality(rowVar)
	kc, _ := bp.net.Cardinality(colVar)

	marginal = make([][]float64, kr)
	for r := 0; r < kr; r++ {
		row := make([]float64, kc)
		for c := 0; c < kc; c++ {
			row[c] = math.Exp(bp.P[idx].At(r, c))
		}
		marginal[r] = row
	}
	return marginal, rowVar, colVar, nil
}
