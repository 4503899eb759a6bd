package assignment

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestGreedyMatchOrder(t *testing.T) {
	// Greedy order: (1,1)=0.3, (2,2)=0.4, (0,0)=0.5.
	distanceMatrix := mat.NewDense(3, 3, []float64{
		0.5, 0.9, 0.8,
		0.9, 0.3, 0.7,
		0.8, 0.7, 0.4,
	})
	rows, cols := GreedyMatch(distanceMatrix, 1.0)
	wantRows := []int{1, 2, 0}
	wantCols := []int{1, 2, 0}
	for i := range wantRows {
		if rows[i] != wantRows[i] || cols[i] != wantCols[i] {
			t.Fatalf("match %d = (%d,%d), want (%d,%d)", i, rows[i], cols[i], wantRows[i], wantCols[i])
		}
	}
}

func TestGreedyMatchThreshold(t *testing.T) {
	distanceMatrix := mat.NewDense(2, 2, []float64{
		0.2, 0.9,
		0.9, 0.8,
	})
	rows, cols := GreedyMatch(distanceMatrix, 0.5)
	if len(rows) != 1 || rows[0] != 0 || cols[0] != 0 {
		t.Fatalf("got rows=%v cols=%v, want single (0,0)", rows, cols)
	}
}

func TestLinearSumAssignment(t *testing.T) {
	cost := [][]float64{
		{0.1, 0.9},
		{0.9, 0.2},
	}
	as, ur, uc := LinearSumAssignment(cost, 0.5)
	if len(as) != 2 {
		t.Fatalf("got %d assignments, want 2: %v", len(as), as)
	}
	got := map[int]int{}
	for _, a := range as {
		got[a.Row] = a.Col
	}
	if got[0] != 0 || got[1] != 1 {
		t.Errorf("assignment = %v", got)
	}
	if len(ur) != 0 || len(uc) != 0 {
		t.Errorf("unexpected unmatched rows=%v cols=%v", ur, uc)
	}
}

func TestLinearSumAssignmentRejectsOverThreshold(t *testing.T) {
	cost := [][]float64{
		{0.1, 0.9},
		{0.9, 0.8},
	}
	as, ur, uc := LinearSumAssignment(cost, 0.5)
	if len(as) != 1 || as[0].Row != 0 || as[0].Col != 0 {
		t.Fatalf("assignments = %v, want single (0,0)", as)
	}
	if len(ur) != 1 || ur[0] != 1 {
		t.Errorf("unmatched rows = %v, want [1]", ur)
	}
	if len(uc) != 1 || uc[0] != 1 {
		t.Errorf("unmatched cols = %v, want [1]", uc)
	}
}

func TestLinearSumAssignmentRectangular(t *testing.T) {
	cost := [][]float64{
		{0.1, 0.4, 0.3},
	}
	as, ur, uc := LinearSumAssignment(cost, 0.5)
	if len(as) != 1 || as[0].Col != 0 {
		t.Fatalf("assignments = %v, want row 0 -> col 0", as)
	}
	if len(ur) != 0 {
		t.Errorf("unmatched rows = %v", ur)
	}
	if len(uc) != 2 {
		t.Errorf("unmatched cols = %v, want two", uc)
	}
}

func TestCosineDistance(t *testing.T) {
	a := []float64{1, 0, 0}
	if d := CosineDistance(a, []float64{1, 0, 0}); math.Abs(d) > 1e-9 {
		t.Errorf("identical vectors: %f", d)
	}
	if d := CosineDistance(a, []float64{0, 1, 0}); math.Abs(d-1) > 1e-9 {
		t.Errorf("orthogonal vectors: %f", d)
	}
	if d := CosineDistance(a, []float64{-1, 0, 0}); math.Abs(d-2) > 1e-9 {
		t.Errorf("opposite vectors: %f", d)
	}
	if d := CosineDistance(a, nil); d != 2.0 {
		t.Errorf("empty vector: %f", d)
	}
}

func TestMeanVector(t *testing.T) {
	m := MeanVector([][]float64{{1, 2}, {3, 4}, {5, 6}})
	if math.Abs(m[0]-3) > 1e-9 || math.Abs(m[1]-4) > 1e-9 {
		t.Errorf("mean = %v, want [3 4]", m)
	}
	if MeanVector(nil) != nil {
		t.Error("mean of nothing should be nil")
	}
}
