// Package imagemrf is the narrow boundary between pixel-grid image data
// and a trainable LogLinearModel. Everything on the image side of that
// boundary — file formats, color spaces, decoding — is out of scope;
// callers hand this package an in-memory grid of intensities and get
// back a model and a label map ready for learner.Learner.AddExample.
package imagemrf

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/mrftools-go/mrftools/learner"
	"github.com/mrftools-go/mrftools/loglinear"
)

func zeroEdgeFactor(numStates int) *mat.Dense {
	return mat.NewDense(numStates, numStates, nil)
}

// Loader builds a LogLinearModel and its label map from some image
// source. Load returns labels keyed the same way the model's variables
// are: one entry per variable, using learner.HiddenLabel for pixels
// without ground truth.
type Loader interface {
	Load() (*loglinear.LogLinearModel, map[int]int, error)
}

// GridLoader builds a 4-connected grid MRF from an in-memory pixel
// grid: one variable per pixel, unary features derived from intensity,
// and edges to the right and below neighbor of every pixel (so each
// undirected edge is declared exactly once).
type GridLoader struct {
	// Pixels is row-major intensity data; every row must have the same
	// length.
	Pixels [][]float64

	// Labels, if non-nil, must have the same shape as Pixels. A nil
	// Labels means every pixel is hidden.
	Labels [][]int

	// LabelMask, if non-nil, must have the same shape as Pixels: a
	// false entry marks that pixel hidden even though Labels has a
	// value there (e.g. for held-out EM evaluation). A nil LabelMask
	// with non-nil Labels means every pixel is observed.
	LabelMask [][]bool

	// NumStates is the cardinality every pixel variable gets.
	NumStates int

	// UnaryFeature builds the unary feature vector for one pixel's
	// intensity. Defaults to [1, intensity] if nil.
	UnaryFeature func(intensity float64) []float64
}

// VarID returns the variable id GridLoader assigns to the pixel at
// column col and row row of a grid width pixels wide.
func VarID(col, row, width int) int {
	return row*width + col
}

// Load builds the grid model and its label map.
func (g *GridLoader) Load() (*loglinear.LogLinearModel, map[int]int, error) {
	height := len(g.Pixels)
	if height == 0 {
		return nil, nil, fmt.Errorf("imagemrf: empty pixel grid")
	}
	width := len(g.Pixels[0])
	if width == 0 {
		return nil, nil, fmt.Errorf("imagemrf: empty pixel row")
	}
	if g.NumStates < 1 {
		return nil, nil, fmt.Errorf("imagemrf: NumStates must be >= 1, got %d", g.NumStates)
	}

	featureFn := g.UnaryFeature
	if featureFn == nil {
		featureFn = func(intensity float64) []float64 { return []float64{1, intensity} }
	}

	model := loglinear.NewLogLinearModel()
	labels := make(map[int]int, width*height)

	for row := 0; row < height; row++ {
		if len(g.Pixels[row]) != width {
			return nil, nil, fmt.Errorf("imagemrf: row %d has length %d, want %d", row, len(g.Pixels[row]), width)
		}
		for col := 0; col < width; col++ {
			id := VarID(col, row, width)
			if err := model.DeclareVariable(id, g.NumStates); err != nil {
				return nil, nil, err
			}
			if err := model.SetUnaryFeatures(id, featureFn(g.Pixels[row][col])); err != nil {
				return nil, nil, err
			}
			labels[id] = g.labelAt(row, col)
		}
	}

	for row := 0; row < height; row++ {
		for col := 0; col < width; col++ {
			id := VarID(col, row, width)
			if col+1 < width {
				if err := g.declareEdge(model, id, VarID(col+1, row, width)); err != nil {
					return nil, nil, err
				}
			}
			if row+1 < height {
				if err := g.declareEdge(model, id, VarID(col, row+1, width)); err != nil {
					return nil, nil, err
				}
			}
		}
	}

	model.CreateMatrices()
	return model, labels, nil
}

func (g *GridLoader) declareEdge(model *loglinear.LogLinearModel, u, v int) error {
	if err := model.SetEdgeFeatures(u, v, []float64{1}); err != nil {
		return err
	}
	return model.SetEdgeFactor(u, v, zeroEdgeFactor(g.NumStates))
}

func (g *GridLoader) labelAt(row, col int) int {
	if g.Labels == nil {
		return learner.HiddenLabel
	}
	if g.LabelMask != nil && !g.LabelMask[row][col] {
		return learner.HiddenLabel
	}
	return g.Labels[row][col]
}
