// Package driver sequences training data, regularization, and the
// chosen learning mode into a single call: it wires a learner.Learner
// to a minimizer, a Tracker, and an optional Checkpointer, and drives
// the whole run to a final weight vector.
package driver

import (
	"fmt"

	"github.com/mrftools-go/mrftools/learner"
	"github.com/mrftools-go/mrftools/utils/progressbar"
)

// Mode selects which of the three learning variants Train runs.
type Mode int

const (
	ModeSubgradient Mode = iota
	ModePairedDual
	ModeEM
)

// Config collects the knobs Train needs beyond the learner itself.
type Config struct {
	Mode Mode

	// PairedDualInnerIterations is used only when Mode == ModePairedDual.
	PairedDualInnerIterations int

	// EMMaxOuterIterations and EMTolerance are used only when
	// Mode == ModeEM.
	EMMaxOuterIterations int
	EMTolerance          float64

	Tracker      Tracker
	Checkpointer Checkpointer

	// ProgressBarIterations, if non-zero, makes Train display a manual
	// progress bar over that many expected iterations. It is a display
	// hint only: if the minimizer runs longer, the bar simply stops
	// advancing past full.
	ProgressBarIterations int

	// ReportObjectiveStats, if true and Tracker is a *GobTracker, prints
	// the mean/stddev of every tracked objective after Train returns.
	ReportObjectiveStats bool
}

// Trainer owns a learner.Learner and the bookkeeping Train needs to
// turn its callback into tracker/checkpointer calls.
type Trainer struct {
	Learner *learner.Learner
	Config  Config

	iter int
}

// NewTrainer builds a Trainer whose Learner is already configured for
// cfg.Mode (paired-dual's inner iteration budget is applied here; EM
// reuses the plain subgradient Learner and alternates E/M steps in
// Train instead).
func NewTrainer(cfg Config) *Trainer {
	var l *learner.Learner
	if cfg.Mode == ModePairedDual {
		l = learner.NewPairedDual(cfg.PairedDualInnerIterations)
	} else {
		l = learner.New()
	}
	return &Trainer{Learner: l, Config: cfg}
}

// Train runs the configured learning mode from w0 and returns the
// final weight vector. Every iterate the minimizer records is both
// tracked and, if a Checkpointer is configured, checkpointed.
func (t *Trainer) Train(w0 []float64, min learner.Minimizer) ([]float64, error) {
	t.iter = 0
	var bar *progressbar.ManualProgressBar
	if t.Config.ProgressBarIterations > 0 {
		bar = progressbar.NewManualProgressBar(50, t.Config.ProgressBarIterations)
	}
	cb := func(w []float64) {
		t.iter++
		if bar != nil {
			bar.Increment()
			bar.Display()
		}
		obj, err := t.Learner.Objective(w)
		if err != nil {
			// The minimizer's own objective call already surfaces this
			// error through Learn's return value; the callback has no
			// error channel, so just record a placeholder here.
			obj = 0
		}
		it := Iterate{Iter: t.iter, Weights: append([]float64(nil), w...), Objective: obj}
		if t.Config.Tracker != nil {
			t.Config.Tracker.Track(it)
		}
		if t.Config.Checkpointer != nil {
			_ = t.Config.Checkpointer.Checkpoint(it)
		}
	}

	var w []float64
	var err error
	switch t.Config.Mode {
	case ModeSubgradient, ModePairedDual:
		w, err = t.Learner.Learn(w0, min, cb)
	case ModeEM:
		maxIter := t.Config.EMMaxOuterIterations
		if maxIter <= 0 {
			maxIter = 50
		}
		tol := t.Config.EMTolerance
		if tol <= 0 {
			tol = 1e-6
		}
		w, err = t.Learner.RunEM(w0, min, maxIter, tol, cb)
	default:
		return nil, fmt.Errorf("driver: unknown mode %d", t.Config.Mode)
	}
	if err != nil {
		return nil, err
	}

	if t.Config.ReportObjectiveStats {
		if gt, ok := t.Config.Tracker.(*GobTracker); ok {
			mean, stddev := gt.ObjectiveStats()
			fmt.Printf("driver: objective mean %f, stddev %f over %d iterates\n",
				mean, stddev, len(gt.Iterates))
		}
	}
	return w, nil
}
