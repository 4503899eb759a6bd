package assignment

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// CosineDistance returns 1 - cos(a, b). Vectors are normalized here, so
// pre-normalized inputs cost only the extra norms. Mismatched or empty
// vectors are maximally distant.
func CosineDistance(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 2.0
	}
	dot := floats.Dot(a, b)
	na := floats.Norm(a, 2)
	nb := floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 2.0
	}
	d := 1.0 - dot/(na*nb)
	if math.IsNaN(d) {
		return 2.0
	}
	return d
}

// MeanVector returns the element-wise mean of the given vectors. All vectors
// must share a length; nil is returned for empty input.
func MeanVector(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	mean := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		floats.Add(mean, v)
	}
	floats.Scale(1/float64(len(vectors)), mean)
	return mean
}
