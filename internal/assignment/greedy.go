package assignment

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// GreedyMatch performs greedy minimum-distance matching over a distance
// matrix: it repeatedly takes the global minimum below threshold and
// invalidates that row and column, guaranteeing one-to-one matches.
//
// Not the optimal assignment — a simpler cascade stage that works well for
// IoU gating, where ambiguous overlaps are rare.
func GreedyMatch(distanceMatrix *mat.Dense, threshold float64) (rowIndices, colIndices []int) {
	rows, cols := distanceMatrix.Dims()
	if rows == 0 || cols == 0 {
		return nil, nil
	}

	work := mat.DenseCopyOf(distanceMatrix)
	invalid := threshold + 1.0

	for {
		minVal := math.Inf(1)
		minRow, minCol := -1, -1
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				if v := work.At(r, c); v < minVal {
					minVal = v
					minRow, minCol = r, c
				}
			}
		}
		if minVal >= threshold {
			return rowIndices, colIndices
		}

		rowIndices = append(rowIndices, minRow)
		colIndices = append(colIndices, minCol)
		for c := 0; c < cols; c++ {
			work.Set(minRow, c, invalid)
		}
		for r := 0; r < rows; r++ {
			work.Set(r, minCol, invalid)
		}
	}
}
