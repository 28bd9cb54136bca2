package inference

import (
	"fmt"

	"github.com/mrftools-go/mrftools/markovnet"
)

// CountingNumbers is the small value object that selects among Bethe BP,
// TRBP, and general convex BP: it carries one entropy coefficient per
// edge (c_uv) and one per variable (c_v). A single inference routine
// branches on these coefficients rather than on a type hierarchy of BP
// variants.
type CountingNumbers struct {
	// Edge holds c_uv for each forward edge index (0..m-1).
	Edge []float64
	// Variable holds c_v for each variable index (0..|V|-1).
	Variable []float64
}

// Bethe returns the counting numbers for standard loopy belief
// propagation: c_uv = 1 for every edge, c_v = 1 - deg(v) for every
// variable.
func Bethe(net *markovnet.MarkovNet) CountingNumbers {
	m := net.NumEdges()
	edge := make([]float64, m)
	for i := range edge {
		edge[i] = 1
	}

	variable := make([]float64, net.NumVariables())
	for i, d := range net.Degrees {
		variable[i] = 1 - float64(d)
	}

	return CountingNumbers{Edge: edge, Variable: variable}
}

// TRBP returns tree-reweighted counting numbers from a map of edge
// appearance probabilities ρ_{uv} in a spanning-tree distribution: 0 <
// ρ_{uv} ≤ 1. c_v = 1 - Σ_{u∈N(v)} ρ_{uv}.
func TRBP(net *markovnet.MarkovNet, rho map[markovnet.Edge]float64) (CountingNumbers, error) {
	edges := net.Edges()
	edge := make([]float64, len(edges))
	variable := make([]float64, net.NumVariables())

	for i, e := range edges {
		r, ok := rho[e]
		if !ok {
			return CountingNumbers{}, fmt.Errorf("inference: TRBP: missing edge probability for (%d,%d)", e.U, e.V)
		}
		if r <= 0 || r > 1 {
			return CountingNumbers{}, fmt.Errorf("inference: TRBP: edge (%d,%d) probability %v not in (0,1]", e.U, e.V, r)
		}
		edge[i] = r

		iu, _ := net.VarIndex(e.U)
		iv, _ := net.VarIndex(e.V)
		variable[iu] += r
		variable[iv] += r
	}
	for i := range variable {
		variable[i] = 1 - variable[i]
	}

	return CountingNumbers{Edge: edge, Variable: variable}, nil
}

// Convex returns general convex-BP counting numbers. edgeCounts must all
// be strictly positive (non-positive edge counts make the variational
// functional non-concave, a programmer error the constructor rejects);
// variableCounts may be any real numbers, chosen by the caller so the
// resulting entropy combination is concave.
func Convex(edgeCounts, variableCounts []float64) (CountingNumbers, error) {
	for i, c := range edgeCounts {
		if c <= 0 {
			return CountingNumbers{}, fmt.Errorf("inference: convex counting numbers: edge count at index %d must be positive, got %v", i, c)
		}
	}
	edge := make([]float64, len(edgeCounts))
	copy(edge, edgeCounts)
	variable := make([]float64, len(variableCounts))
	copy(variable, variableCounts)
	return CountingNumbers{Edge: edge, Variable: variable}, nil
}
