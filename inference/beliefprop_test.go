package inference

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"

	"github.com/mrftools-go/mrftools/markovnet"
)

// buildTree builds a 3-variable path 0-1-2 with fixed, non-trivial
// factors, suitable for brute-force comparison.
func buildTree(t *testing.T) *markovnet.MarkovNet {
	t.Helper()
	net := markovnet.NewMarkovNet()
	cards := map[int]int{0: 2, 1: 3, 2: 2}
	for v, k := range cards {
		if err := net.DeclareVariable(v, k); err != nil {
			t.Fatal(err)
		}
	}
	if err := net.SetUnaryFactor(0, []float64{0.3, -0.2}); err != nil {
		t.Fatal(err)
	}
	if err := net.SetUnaryFactor(1, []float64{0.1, 0.4, -0.5}); err != nil {
		t.Fatal(err)
	}
	if err := net.SetUnaryFactor(2, []float64{-0.1, 0.2}); err != nil {
		t.Fatal(err)
	}
	if err := net.SetEdgeFactor(0, 1, mat.NewDense(2, 3, []float64{
		0.5, -0.3, 0.1,
		-0.2, 0.4, 0.2,
	})); err != nil {
		t.Fatal(err)
	}
	if err := net.SetEdgeFactor(1, 2, mat.NewDense(3, 2, []float64{
		0.2, -0.1,
		-0.3, 0.5,
		0.1, 0.0,
	})); err != nil {
		t.Fatal(err)
	}
	net.CreateMatrices()
	return net
}

// bruteForceMarginals enumerates every joint assignment of net and
// returns exact marginals for each variable, for comparison against BP.
func bruteForceMarginals(t *testing.T, net *markovnet.MarkovNet) map[int][]float64 {
	t.Helper()
	vars := net.Variables()
	cards := make([]int, len(vars))
	for i, v := range vars {
		k, err := net.Cardinality(v)
		if err != nil {
			t.Fatal(err)
		}
		cards[i] = k
	}

	marginals := make(map[int][]float64, len(vars))
	for i, v := range vars {
		marginals[v] = make([]float64, cards[i])
	}

	assignment := make([]int, len(vars))
	var z float64

	var recurse func(pos int)
	var scores []float64
	var combos [][]int

	recurse = func(pos int) {
		if pos == len(vars) {
			m := make(map[int]int, len(vars))
			for i, v := range vars {
				m[v] = assignment[i]
			}
			score, err := net.EvaluateState(m)
			if err != nil {
				t.Fatal(err)
			}
			scores = append(scores, score)
			combo := make([]int, len(vars))
			copy(combo, assignment)
			combos = append(combos, combo)
			return
		}
		for s := 0; s < cards[pos]; s++ {
			assignment[pos] = s
			recurse(pos + 1)
		}
	}
	recurse(0)

	for _, s := range scores {
		z += math.Exp(s)
	}
	for ci, combo := range combos {
		p := math.Exp(scores[ci]) / z
		for i, v := range vars {
			marginals[v][combo[i]] += p
		}
	}
	return marginals
}

func TestBetheAgreesWithBruteForceOnTree(t *testing.T) {
	net := buildTree(t)
	bp, err := NewBeliefPropagator(net, Bethe(net))
	if err != nil {
		t.Fatal(err)
	}
	if err := bp.Infer(1e-12, 200, DisplayOff); err != nil {
		t.Fatal(err)
	}

	exact := bruteForceMarginals(t, net)
	for _, v := range net.Variables() {
		got, err := bp.UnaryMarginal(v)
		if err != nil {
			t.Fatal(err)
		}
		want := exact[v]
		for s := range want {
			if !scalar.EqualWithinAbs(got[s], want[s], 1e-3) {
				t.Fatalf("variable %d state %d: BP marginal %v, brute-force %v", v, s, got[s], want[s])
			}
		}
	}
}

// TestInferDisplayFullDoesNotPanic guards against a prior bug where
// DisplayFull's per-iteration reporting read bp.B/bp.P before the first
// call to computeBeliefs/computePairwiseBeliefs, panicking on the first
// iteration.
func TestInferDisplayFullDoesNotPanic(t *testing.T) {
	net := buildTree(t)
	bp, err := NewBeliefPropagator(net, Bethe(net))
	if err != nil {
		t.Fatal(err)
	}
	if err := bp.Infer(1e-10, 50, DisplayFull); err != nil {
		t.Fatal(err)
	}
}

func TestBeliefsNormalized(t *testing.T) {
	net := buildTree(t)
	bp, err := NewBeliefPropagator(net, Bethe(net))
	if err != nil {
		t.Fatal(err)
	}
	if err := bp.Infer(1e-10, 100, DisplayOff); err != nil {
		t.Fatal(err)
	}
	for _, v := range net.Variables() {
		marg, err := bp.UnaryMarginal(v)
		if err != nil {
			t.Fatal(err)
		}
		sum := 0.0
		for _, p := range marg {
			sum += p
		}
		if !scalar.EqualWithinAbs(sum, 1, 1e-6) {
			t.Fatalf("variable %d: marginal sums to %v, want 1", v, sum)
		}
	}
}

func TestPairwiseBeliefsConsistentAtConvergence(t *testing.T) {
	net := buildTree(t)
	bp, err := NewBeliefPropagator(net, Bethe(net))
	if err != nil {
		t.Fatal(err)
	}
	if err := bp.Infer(1e-12, 200, DisplayOff); err != nil {
		t.Fatal(err)
	}
	if bp.State() != Converged {
		t.Fatalf("expected convergence on a tree, got state %v after %d iterations", bp.State(), bp.LastIterations())
	}

	inconsistency := bp.ComputeInconsistency()
	if inconsistency > 1e-6 {
		t.Fatalf("inconsistency at convergence = %v, want ~0", inconsistency)
	}
}

// buildFiveNodeLoopyGraph reproduces the concrete scenario: cardinalities
// [4,3,6,2,5], edges {(0,1),(1,2),(2,3),(0,3),(0,4)}.
func buildFiveNodeLoopyGraph(t *testing.T) *markovnet.MarkovNet {
	t.Helper()
	net := markovnet.NewMarkovNet()
	cards := []int{4, 3, 6, 2, 5}
	for v, k := range cards {
		if err := net.DeclareVariable(v, k); err != nil {
			t.Fatal(err)
		}
	}
	// Small deterministic pseudo-random factors, fixed by formula so the
	// test is reproducible without a PRNG.
	for v, k := range cards {
		phi := make([]float64, k)
		for s := range phi {
			phi[s] = math.Sin(float64(v*7+s*3)) * 0.5
		}
		if err := net.SetUnaryFactor(v, phi); err != nil {
			t.Fatal(err)
		}
	}
	edges := [][2]int{{0, 1}, {1, 2}, {2, 3}, {0, 3}, {0, 4}}
	for _, e := range edges {
		ku, kv := cards[e[0]], cards[e[1]]
		data := make([]float64, ku*kv)
		for i := range data {
			data[i] = math.Cos(float64(e[0]*11+e[1]*5+i)) * 0.3
		}
		if err := net.SetEdgeFactor(e[0], e[1], mat.NewDense(ku, kv, data)); err != nil {
			t.Fatal(err)
		}
	}
	net.CreateMatrices()
	return net
}

func TestConvexReproducesTRBPWithMatchingCountingNumbers(t *testing.T) {
	net := buildFiveNodeLoopyGraph(t)
	rho := map[markovnet.Edge]float64{
		{U: 0, V: 1}: 0.75,
		{U: 1, V: 2}: 0.75,
		{U: 2, V: 3}: 0.75,
		{U: 0, V: 3}: 0.75,
		{U: 0, V: 4}: 1.0,
	}
	trbpCounting, err := TRBP(net, rho)
	if err != nil {
		t.Fatal(err)
	}

	convexCounting, err := Convex(trbpCounting.Edge, trbpCounting.Variable)
	if err != nil {
		t.Fatal(err)
	}

	bpTRBP, err := NewBeliefPropagator(net, trbpCounting)
	if err != nil {
		t.Fatal(err)
	}
	if err := bpTRBP.Infer(1e-10, 500, DisplayOff); err != nil {
		t.Fatal(err)
	}

	bpConvex, err := NewBeliefPropagator(net, convexCounting)
	if err != nil {
		t.Fatal(err)
	}
	if err := bpConvex.Infer(1e-10, 500, DisplayOff); err != nil {
		t.Fatal(err)
	}

	for _, v := range net.Variables() {
		a, err := bpTRBP.UnaryMarginal(v)
		if err != nil {
			t.Fatal(err)
		}
		b, err := bpConvex.UnaryMarginal(v)
		if err != nil {
			t.Fatal(err)
		}
		for s := range a {
			if !scalar.EqualWithinAbs(a[s], b[s], 1e-6) {
				t.Fatalf("variable %d state %d: TRBP marginal %v != convex marginal %v", v, s, a[s], b[s])
			}
		}
	}

	efTRBP := bpTRBP.ComputeEnergyFunctional()
	efConvex := bpConvex.ComputeEnergyFunctional()
	if !scalar.EqualWithinAbs(efTRBP, efConvex, 1e-6) {
		t.Fatalf("energy functional mismatch: TRBP %v, convex %v", efTRBP, efConvex)
	}
}

func TestConvexReproducesBetheWithBetheCountingNumbers(t *testing.T) {
	net := buildFiveNodeLoopyGraph(t)
	betheCounting := Bethe(net)
	convexCounting, err := Convex(betheCounting.Edge, betheCounting.Variable)
	if err != nil {
		t.Fatal(err)
	}

	bpBethe, err := NewBeliefPropagator(net, betheCounting)
	if err != nil {
		t.Fatal(err)
	}
	if err := bpBethe.Infer(1e-10, 500, DisplayOff); err != nil {
		t.Fatal(err)
	}

	bpConvex, err := NewBeliefPropagator(net, convexCounting)
	if err != nil {
		t.Fatal(err)
	}
	if err := bpConvex.Infer(1e-10, 500, DisplayOff); err != nil {
		t.Fatal(err)
	}

	for _, v := range net.Variables() {
		a, _ := bpBethe.UnaryMarginal(v)
		b, _ := bpConvex.UnaryMarginal(v)
		for s := range a {
			if !scalar.EqualWithinAbs(a[s], b[s], 1e-6) {
				t.Fatalf("variable %d state %d: Bethe marginal %v != convex marginal %v", v, s, a[s], b[s])
			}
		}
	}
}

func TestConditionFreezesBeliefs(t *testing.T) {
	net := buildTree(t)
	bp, err := NewBeliefPropagator(net, Bethe(net))
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range net.Variables() {
		if err := bp.Condition(v, 0); err != nil {
			t.Fatal(err)
		}
	}
	if !bp.FullyConditioned() {
		t.Fatal("expected FullyConditioned after conditioning every variable")
	}

	frozen := mat.DenseCopyOf(bp.Beliefs())
	if err := bp.Infer(1e-10, 50, DisplayOff); err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(frozen, bp.Beliefs()) {
		t.Fatal("beliefs changed after Infer on a fully conditioned propagator")
	}

	for _, v := range net.Variables() {
		marg, err := bp.UnaryMarginal(v)
		if err != nil {
			t.Fatal(err)
		}
		if !scalar.EqualWithinAbs(marg[0], 1, 1e-9) {
			t.Fatalf("variable %d: conditioned marginal at observed state = %v, want 1", v, marg[0])
		}
	}
}

func TestCountingNumbersRejectInvalidInput(t *testing.T) {
	net := buildTree(t)
	if _, err := Convex([]float64{1, -1}, []float64{0, 0, 0}); err == nil {
		t.Fatal("expected error for non-positive edge count")
	}
	if _, err := TRBP(net, map[markovnet.Edge]float64{{U: 0, V: 1}: 1.5, {U: 1, V: 2}: 0.5}); err == nil {
		t.Fatal("expected error for out-of-range rho")
	}
}
