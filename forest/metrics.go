package forest

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RMSE is the root mean squared error between predictions and truth.
func RMSE(pred, truth []float64) float64 {
	diff := make([]float64, len(pred))
	floats.SubTo(diff, pred, truth)
	floats.Mul(diff, diff)
	return math.Sqrt(stat.Mean(diff, nil))
}
