package packet

import "math"

// Box is an axis-aligned pixel rectangle [x0, y0, x1, y1].
type Box [4]int

func (b Box) Width() int  { return b[2] - b[0] }
func (b Box) Height() int { return b[3] - b[1] }

// Valid reports whether the box has positive area.
func (b Box) Valid() bool {
	return b[2] > b[0] && b[3] > b[1]
}

// Center returns the box center in float coordinates.
func (b Box) Center() (x, y float64) {
	return float64(b[0]+b[2]) / 2, float64(b[1]+b[3]) / 2
}

// Overlaps reports whether two boxes intersect at all (zero-area touch does
// not count as a miss: shared edges overlap).
func (b Box) Overlaps(o Box) bool {
	if o[0] > b[2] || o[2] < b[0] {
		return false
	}
	if o[1] > b[3] || o[3] < b[1] {
		return false
	}
	return true
}

// CenterDist returns the Euclidean distance between the two box centers.
func (b Box) CenterDist(o Box) float64 {
	bx, by := b.Center()
	ox, oy := o.Center()
	return math.Hypot(bx-ox, by-oy)
}

// IoU returns the intersection-over-union of two boxes. A small epsilon keeps
// the division defined for degenerate boxes.
func (b Box) IoU(o Box) float64 {
	const epsilon = 1e-5

	x1 := maxInt(b[0], o[0])
	y1 := maxInt(b[1], o[1])
	x2 := minInt(b[2], o[2])
	y2 := minInt(b[3], o[3])

	w := x2 - x1
	h := y2 - y1
	if w < 0 || h < 0 {
		return 0
	}
	inter := float64(w * h)

	areaB := float64(b.Width() * b.Height())
	areaO := float64(o.Width() * o.Height())
	return inter / (areaB + areaO - inter + epsilon)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
