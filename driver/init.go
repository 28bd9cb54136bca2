package driver

import (
	"github.com/mrftools-go/mrftools/loglinear"
	"github.com/mrftools-go/mrftools/utils/matutils/initializers/weights"
)

// InitWeights builds a w0 vector for model by running unaryInit over
// W (Du x K) and edgeInit over We (De x K^2) in place, then flattening
// the result the same way WeightVectorLength/SetWeights do. model must
// already have CreateMatrices called, and unaryInit/edgeInit must be
// sized for K and K*K columns respectively.
func InitWeights(model *loglinear.LogLinearModel, unaryInit, edgeInit weights.Initializer) []float64 {
	unaryInit.Initialize(model.W)
	edgeInit.Initialize(model.We)
	out := loglinear.FlattenColMajor(model.W)
	return append(out, loglinear.FlattenColMajor(model.We)...)
}
