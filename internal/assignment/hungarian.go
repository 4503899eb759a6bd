// Package assignment provides the matching machinery shared by the tracker
// and re-identification: optimal (Hungarian) and greedy assignment over cost
// matrices, plus the feature-distance helpers that fill those matrices.
package assignment

import (
	hungarian "github.com/arthurkushman/go-hungarian"
)

// Assignment is one matched (row, col) pair.
type Assignment struct {
	Row int
	Col int
}

// maxProfit converts costs to profits for the maximizing solver. Costs fed
// here are bounded distances (cosine ≤ 2, IoU cost ≤ 1), far below this.
const maxProfit = 10.0

// LinearSumAssignment solves the assignment problem over costMatrix,
// rejecting any pairing whose cost exceeds maxCost.
//
// Rectangular matrices are padded to square with zero-profit dummies. Returns
// the accepted assignments and the unmatched row/column indices.
func LinearSumAssignment(costMatrix [][]float64, maxCost float64) (assignments []Assignment, unmatchedRows, unmatchedCols []int) {
	numRows := len(costMatrix)
	if numRows == 0 {
		return nil, nil, nil
	}
	numCols := len(costMatrix[0])
	if numCols == 0 {
		unmatchedRows = make([]int, numRows)
		for i := range unmatchedRows {
			unmatchedRows[i] = i
		}
		return nil, unmatchedRows, nil
	}

	size := numRows
	if numCols > size {
		size = numCols
	}
	profit := make([][]float64, size)
	for i := range profit {
		profit[i] = make([]float64, size)
		for j := range profit[i] {
			if i < numRows && j < numCols {
				profit[i][j] = maxProfit - costMatrix[i][j]
			}
		}
	}

	result := hungarian.SolveMax(profit)

	matchedRows := make(map[int]bool)
	matchedCols := make(map[int]bool)
	for row, cols := range result {
		for col, p := range cols {
			cost := maxProfit - p
			if row < numRows && col < numCols && cost <= maxCost {
				assignments = append(assignments, Assignment{Row: row, Col: col})
				matchedRows[row] = true
				matchedCols[col] = true
			}
		}
	}

	for i := 0; i < numRows; i++ {
		if !matchedRows[i] {
			unmatchedRows = append(unmatchedRows, i)
		}
	}
	for j := 0; j < numCols; j++ {
		if !matchedCols[j] {
			unmatchedCols = append(unmatchedCols, j)
		}
	}
	return assignments, unmatchedRows, unmatchedCols
}
