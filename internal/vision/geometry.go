// Package vision holds the image plumbing: context-square cropping for tube
// clips, Frame/Mat conversion and the JPEG wire codec.
package vision

import (
	"image"

	"github.com/watchgrid/watchgrid/internal/packet"
)

// ContextRatio scales the context square's edge: L = (w + h) * ContextRatio.
const ContextRatio = 1.3

// CropSize is the output side length of a tube clip image.
const CropSize = 400

// ROI is a box position inside its context square, as ratios in [0,1].
type ROI [4]float64

// ContextSquare describes how to cut a context crop for a box out of a
// frame: the square's edge length, the source region to copy, where it lands
// inside the square, and the box's ROI within the square.
type ContextSquare struct {
	Edge int
	Src  image.Rectangle // region of the frame to copy
	Dst  image.Point     // top-left paste position inside the square
	ROI  ROI
}

// ComputeContextSquare derives the context square for a box inside a
// frameW×frameH frame. The square is centered on the box, its edge is
// 1.3×(w+h) clamped to the frame height, and parts extending beyond the
// frame stay black in the paste.
func ComputeContextSquare(box packet.Box, frameW, frameH int) ContextSquare {
	cx := (box[0] + box[2]) / 2
	cy := (box[1] + box[3]) / 2
	w := box.Width()
	h := box.Height()

	edge := int(float64(w+h) * ContextRatio)
	if frameH > 0 && edge > frameH {
		edge = frameH
	}
	if edge < 2 {
		edge = 2
	}
	half := edge / 2

	left := maxInt(0, cx-half+1)
	top := maxInt(0, cy-half+1)
	right := minInt(frameW-1, cx+half-1)
	bottom := minInt(frameH-1, cy+half-1)

	roi := ROI{
		(float64(half) - float64(w)/2) / float64(edge),
		(float64(half) - float64(h)/2) / float64(edge),
		(float64(half) + float64(w)/2) / float64(edge),
		(float64(half) + float64(h)/2) / float64(edge),
	}
	for i, v := range roi {
		if v < 0 {
			roi[i] = 0
		}
		if v > 1 {
			roi[i] = 1
		}
	}

	return ContextSquare{
		Edge: edge,
		Src:  image.Rect(left, top, right, bottom),
		Dst:  image.Pt(half-(cx-left), half-(cy-top)),
		ROI:  roi,
	}
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
