package driver

import (
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/stat"
)

// Iterate is one recorded point along a training run: the iteration
// index, the weight vector at that point, and the objective value
// there.
type Iterate struct {
	Iter      int
	Weights   []float64
	Objective float64
}

// Tracker records iterates during training and saves them afterward,
// the way mrftools's reference drivers log a training curve for
// plotting. Track is called once per minimizer callback invocation.
type Tracker interface {
	Track(it Iterate)
	Save(path string) error
}

// GobTracker is a Tracker that keeps every iterate in memory and
// persists them with encoding/gob, mirroring how the ambient stack
// round-trips weight vectors and other small numeric artifacts.
type GobTracker struct {
	Iterates []Iterate
}

// NewGobTracker returns an empty GobTracker.
func NewGobTracker() *GobTracker {
	return &GobTracker{}
}

// Track appends it to the in-memory history.
func (t *GobTracker) Track(it Iterate) {
	t.Iterates = append(t.Iterates, it)
}

// ObjectiveStats returns the mean and standard deviation of every
// tracked iterate's objective value, a quick diagnostic for whether a
// run's objective is still swinging widely or has settled.
func (t *GobTracker) ObjectiveStats() (mean, stddev float64) {
	if len(t.Iterates) == 0 {
		return 0, 0
	}
	objectives := make([]float64, len(t.Iterates))
	for i, it := range t.Iterates {
		objectives[i] = it.Objective
	}
	return stat.MeanStdDev(objectives, nil)
}

// Save gob-encodes the recorded iterates to path.
func (t *GobTracker) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("driver: save tracker: %w", err)
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	if err := enc.Encode(t.Iterates); err != nil {
		return fmt.Errorf("driver: save tracker: %w", err)
	}
	return nil
}

// LoadGobIterates loads iterates previously saved by GobTracker.Save.
func LoadGobIterates(path string) ([]Iterate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("driver: load iterates: %w", err)
	}
	defer f.Close()

	var out []Iterate
	dec := gob.NewDecoder(f)
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("driver: load iterates: %w", err)
	}
	return out, nil
}
