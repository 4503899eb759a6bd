package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/watchgrid/watchgrid/internal/packet"
)

// EncodeJPEG compresses a frame for the wire. Empty frames encode to nil.
func EncodeJPEG(f packet.Frame) ([]byte, error) {
	if f.Empty() {
		return nil, nil
	}
	m, err := MatFromFrame(f)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, m)
	if err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// DecodeJPEG restores a frame from wire bytes. Nil input yields an empty
// frame.
func DecodeJPEG(data []byte) (packet.Frame, error) {
	if len(data) == 0 {
		return packet.Frame{}, nil
	}
	m, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return packet.Frame{}, fmt.Errorf("jpeg decode: %w", err)
	}
	defer m.Close()
	return FrameFromMat(m)
}
