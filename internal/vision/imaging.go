package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/watchgrid/watchgrid/internal/packet"
)

// MatFromFrame wraps raw BGR pixels in a gocv Mat. The Mat owns a copy; the
// caller must Close it.
func MatFromFrame(f packet.Frame) (gocv.Mat, error) {
	if f.Empty() {
		return gocv.NewMat(), nil
	}
	return gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pix)
}

// FrameFromMat copies a BGR Mat into a Frame.
func FrameFromMat(m gocv.Mat) (packet.Frame, error) {
	if m.Empty() {
		return packet.Frame{}, nil
	}
	pix, err := m.DataPtrUint8()
	if err != nil {
		return packet.Frame{}, fmt.Errorf("mat data: %w", err)
	}
	out := make([]byte, len(pix))
	copy(out, pix)
	return packet.Frame{Width: m.Cols(), Height: m.Rows(), Pix: out}, nil
}

// CropClip cuts the context-square crop for a box out of a frame, pads with
// black where the square leaves the frame, and resizes to CropSize². The ROI
// is always computed; on an empty frame the returned image is empty too
// (meta-only pipelines still know where the box sat).
func CropClip(frame packet.Frame, box packet.Box) (packet.Frame, ROI, error) {
	cs := ComputeContextSquare(box, frame.Width, frame.Height)
	if frame.Empty() {
		return packet.Frame{}, cs.ROI, nil
	}

	src, err := MatFromFrame(frame)
	if err != nil {
		return packet.Frame{}, cs.ROI, err
	}
	defer src.Close()

	square := gocv.NewMatWithSize(cs.Edge, cs.Edge, gocv.MatTypeCV8UC3)
	defer square.Close()

	if cs.Src.Dx() > 0 && cs.Src.Dy() > 0 {
		region := src.Region(cs.Src)
		dstRect := image.Rect(cs.Dst.X, cs.Dst.Y, cs.Dst.X+cs.Src.Dx(), cs.Dst.Y+cs.Src.Dy())
		target := square.Region(dstRect)
		region.CopyTo(&target)
		target.Close()
		region.Close()
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(square, &resized, image.Pt(CropSize, CropSize), 0, 0, gocv.InterpolationLinear)

	out, err := FrameFromMat(resized)
	return out, cs.ROI, err
}
