package model

import (
	"github.com/Brownie44l1/handwriting-api/internal/glyph"
)

// Classifier is an immutable handle on a loaded model.
type Classifier interface {
	// Predict returns the probability of every class for one input laid out as Layout says.
	Predict(input []float32) ([]float32, error)
	// Layout is the input arrangement the model expects, resolved when it was loaded.
	Layout() glyph.Layout
	// Classes names every output class.
	Classes() []string
}

type Metadata struct {
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes"`
	ImageSize   int      `json:"image_size"`
}

type PredictionRequest struct {
	Image []float32 `json:"image"`
}

type PredictionResponse struct {
	Class       string             `json:"class"`
	Confidence  float32            `json:"confidence"`
	Predictions map[string]float32 `json:"predictions"`
	Ranking     Ranking            `json:"ranking"`
}

// Scored is one class of a ranking.
type Scored struct {
	Rank        int     `json:"rank"`
	Class       int     `json:"class"`
	Label       string  `json:"label"`
	Probability float32 `json:"probability"`
}

// Ranking lists every class by decreasing probability.
type Ranking []Scored
