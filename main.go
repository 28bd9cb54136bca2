package main

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/mrftools-go/mrftools/driver"
	"github.com/mrftools-go/mrftools/learner"
	"github.com/mrftools-go/mrftools/loglinear"
	"github.com/mrftools-go/mrftools/solver"
	"github.com/mrftools-go/mrftools/utils/matutils/initializers/weights"
)

// minimizerFromConfig builds a solver.Solver the way a config file on
// disk would: unmarshal a Type-tagged Config and let it construct the
// concrete learner.Minimizer. *solver.Solver itself satisfies
// learner.Minimizer, so it can be handed straight to Trainer.Train.
func minimizerFromConfig(configJSON string) *solver.Solver {
	var sv solver.Solver
	if err := json.Unmarshal([]byte(configJSON), &sv); err != nil {
		panic(err)
	}
	return &sv
}

// buildChain builds a 4-variable binary chain 0-1-2-3 with a single
// shared edge feature, ready to have its weights learned.
func buildChain() *loglinear.LogLinearModel {
	model := loglinear.NewLogLinearModel()
	for v := 0; v < 4; v++ {
		if err := model.DeclareVariable(v, 2); err != nil {
			panic(err)
		}
		if err := model.SetUnaryFeatures(v, []float64{1, float64(v % 2)}); err != nil {
			panic(err)
		}
	}
	for v := 0; v < 3; v++ {
		if err := model.SetEdgeFeatures(v, v+1, []float64{1}); err != nil {
			panic(err)
		}
		if err := model.SetEdgeFactor(v, v+1, mat.NewDense(2, 2, nil)); err != nil {
			panic(err)
		}
	}
	model.CreateMatrices()
	return model
}

func main() {
	model := buildChain()

	// Two noisy observations of the chain's labels, with variable 2
	// hidden in the second example to exercise the EM path below.
	examples := []map[int]int{
		{0: 0, 1: 1, 2: 0, 3: 1},
		{0: 1, 1: 1, 2: learner.HiddenLabel, 3: 0},
	}

	fmt.Println("=== subgradient, fully-observed-friendly objective ===")
	sub := driver.NewTrainer(driver.Config{
		Mode:                 driver.ModeSubgradient,
		Tracker:              driver.NewGobTracker(),
		ReportObjectiveStats: true,
	})
	if err := sub.Learner.SetRegularization(0, 1.0); err != nil {
		panic(err)
	}
	for _, labels := range examples {
		if err := sub.Learner.AddExample(labels, model); err != nil {
			panic(err)
		}
	}

	unaryInit := weights.NewLinearMV(weights.NewZero(make([]float64, model.K)))
	edgeInit := weights.NewLinearMV(weights.NewZero(make([]float64, model.K*model.K)))
	w0 := driver.InitWeights(model, unaryInit, edgeInit)

	min := minimizerFromConfig(`{"Type":"LBFGS","Config":{"majorIterations":100,"gradientThreshold":1e-8}}`)
	w, err := sub.Train(w0, min)
	if err != nil {
		panic(err)
	}
	fmt.Println("learned weights:", w)

	tracker := sub.Config.Tracker.(*driver.GobTracker)
	fmt.Printf("tracked %d iterates; final objective %f\n",
		len(tracker.Iterates), tracker.Iterates[len(tracker.Iterates)-1].Objective)

	fmt.Println()
	fmt.Println("=== EM, same data with variable 2 hidden in example 2 ===")
	em := driver.NewTrainer(driver.Config{Mode: driver.ModeEM})
	if err := em.Learner.SetRegularization(0, 1.0); err != nil {
		panic(err)
	}
	for _, labels := range examples {
		if err := em.Learner.AddExample(labels, model); err != nil {
			panic(err)
		}
	}

	// EM is sensitive to its starting point, so start it from a small
	// random perturbation instead of the zero vector used above.
	randomInit := weights.NewLinearUV(distuv.Normal{Mu: 0, Sigma: 0.01})
	w0EM := driver.InitWeights(model, randomInit, randomInit)

	emMin := minimizerFromConfig(`{"Type":"LBFGS","Config":{"majorIterations":50}}`)
	wEM, err := em.Train(w0EM, emMin)
	if err != nil {
		panic(err)
	}
	fmt.Println("EM weights:", wEM)
}
