package solver

import (
	"gonum.org/v1/gonum/optimize"

	"github.com/mrftools-go/mrftools/learner"
	"github.com/mrftools-go/mrftools/utils/floatutils"
	"github.com/mrftools-go/mrftools/utils/intutils"
)

// LBFGSConfig is the JSON-serializable settings for a learner.LBFGS
// minimizer.
type LBFGSConfig struct {
	// GradientThreshold stops the minimizer once the gradient's infinity
	// norm falls below this value. Zero means gonum/optimize's default.
	GradientThreshold float64 `json:"gradientThreshold"`

	// MajorIterations caps the number of major iterations. Zero means
	// unlimited.
	MajorIterations int `json:"majorIterations"`

	// FuncEvaluations caps the number of objective evaluations. Zero
	// means unlimited.
	FuncEvaluations int `json:"funcEvaluations"`
}

// Create builds the learner.LBFGS this config describes.
func (c LBFGSConfig) Create() learner.Minimizer {
	settings := optimize.Settings{
		MajorIterations: intutils.Max(c.MajorIterations, 0),
		FuncEvaluations: intutils.Max(c.FuncEvaluations, 0),
	}
	if c.GradientThreshold > 0 {
		// A non-positive or absurdly loose threshold would either stop
		// immediately or never converge; clamp it to a sane range.
		settings.GradientThreshold = floatutils.Clip(c.GradientThreshold, 1e-12, 1.0)
	}
	return learner.LBFGS{Settings: settings}
}

// ValidType reports whether t names the LBFGS type.
func (c LBFGSConfig) ValidType(t Type) bool {
	return t == LBFGSType
}
