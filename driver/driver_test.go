package driver

import (
	"os"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/mrftools-go/mrftools/learner"
	"github.com/mrftools-go/mrftools/loglinear"
)

func buildTrainerModel(t *testing.T) *loglinear.LogLinearModel {
	t.Helper()
	l := loglinear.NewLogLinearModel()
	for v := 0; v < 2; v++ {
		if err := l.DeclareVariable(v, 2); err != nil {
			t.Fatal(err)
		}
		if err := l.SetUnaryFeatures(v, []float64{1, float64(v)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.SetEdgeFeatures(0, 1, []float64{1}); err != nil {
		t.Fatal(err)
	}
	if err := l.SetEdgeFactor(0, 1, mat.NewDense(2, 2, nil)); err != nil {
		t.Fatal(err)
	}
	l.CreateMatrices()
	return l
}

func TestTrainerSubgradientTracksIterates(t *testing.T) {
	trainer := NewTrainer(Config{Mode: ModeSubgradient, Tracker: NewGobTracker()})
	if err := trainer.Learner.SetRegularization(0, 1.0); err != nil {
		t.Fatal(err)
	}
	model := buildTrainerModel(t)
	if err := trainer.Learner.AddExample(map[int]int{0: 0, 1: 1}, model); err != nil {
		t.Fatal(err)
	}

	w0 := make([]float64, trainer.Learner.WeightVectorLength())
	if _, err := trainer.Train(w0, learner.LBFGS{}); err != nil {
		t.Fatal(err)
	}

	tracker := trainer.Config.Tracker.(*GobTracker)
	if len(tracker.Iterates) == 0 {
		t.Fatal("expected at least one tracked iterate")
	}
}

func TestGobTrackerObjectiveStats(t *testing.T) {
	tracker := NewGobTracker()
	tracker.Track(Iterate{Iter: 1, Objective: 1.0})
	tracker.Track(Iterate{Iter: 2, Objective: 3.0})

	mean, stddev := tracker.ObjectiveStats()
	if mean != 2.0 {
		t.Fatalf("mean = %v, want 2.0", mean)
	}
	if stddev <= 0 {
		t.Fatalf("stddev = %v, want > 0", stddev)
	}
}

func TestTrainerReportsObjectiveStatsWithoutError(t *testing.T) {
	trainer := NewTrainer(Config{
		Mode:                 ModeSubgradient,
		Tracker:              NewGobTracker(),
		ReportObjectiveStats: true,
	})
	if err := trainer.Learner.SetRegularization(0, 1.0); err != nil {
		t.Fatal(err)
	}
	model := buildTrainerModel(t)
	if err := trainer.Learner.AddExample(map[int]int{0: 0, 1: 1}, model); err != nil {
		t.Fatal(err)
	}

	w0 := make([]float64, trainer.Learner.WeightVectorLength())
	if _, err := trainer.Train(w0, learner.LBFGS{}); err != nil {
		t.Fatal(err)
	}
}

func TestTrainerPairedDualTracksIterates(t *testing.T) {
	trainer := NewTrainer(Config{
		Mode:                      ModePairedDual,
		PairedDualInnerIterations: 5,
		Tracker:                   NewGobTracker(),
	})
	if err := trainer.Learner.SetRegularization(0, 1.0); err != nil {
		t.Fatal(err)
	}
	model := buildTrainerModel(t)
	if err := trainer.Learner.AddExample(map[int]int{0: 0, 1: 1}, model); err != nil {
		t.Fatal(err)
	}

	w0 := make([]float64, trainer.Learner.WeightVectorLength())
	w, err := trainer.Train(w0, learner.LBFGS{})
	if err != nil {
		t.Fatal(err)
	}
	if len(w) != len(w0) {
		t.Fatalf("len(w) = %d, want %d", len(w), len(w0))
	}

	tracker := trainer.Config.Tracker.(*GobTracker)
	if len(tracker.Iterates) == 0 {
		t.Fatal("expected at least one tracked iterate")
	}
}

func TestTrainerEMHandlesHiddenLabels(t *testing.T) {
	trainer := NewTrainer(Config{
		Mode:                 ModeEM,
		EMMaxOuterIterations: 5,
		EMTolerance:          1e-4,
		Tracker:              NewGobTracker(),
	})
	if err := trainer.Learner.SetRegularization(0, 1.0); err != nil {
		t.Fatal(err)
	}
	model := buildTrainerModel(t)
	if err := trainer.Learner.AddExample(map[int]int{0: 0, 1: learner.HiddenLabel}, model); err != nil {
		t.Fatal(err)
	}

	w0 := make([]float64, trainer.Learner.WeightVectorLength())
	w, err := trainer.Train(w0, learner.LBFGS{})
	if err != nil {
		t.Fatal(err)
	}
	if len(w) != len(w0) {
		t.Fatalf("len(w) = %d, want %d", len(w), len(w0))
	}

	tracker := trainer.Config.Tracker.(*GobTracker)
	if len(tracker.Iterates) == 0 {
		t.Fatal("expected at least one tracked iterate")
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	path := os.TempDir() + "/mrftools_checkpoint_test.gob"
	defer os.Remove(path)

	cp := NStep{N: 1, Path: path}
	w := []float64{0.1, 0.2, 0.3}
	if err := cp.Checkpoint(Iterate{Iter: 1, Weights: w}); err != nil {
		t.Fatal(err)
	}

	got, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(w) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(w))
	}
	for i := range w {
		if got[i] != w[i] {
			t.Fatalf("got[%d] = %v, want %v", i, got[i], w[i])
		}
	}
}
