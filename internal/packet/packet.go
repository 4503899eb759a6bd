// Package packet defines the data model shared by every pipeline stage:
// frames, detections, and the per-frame packets that travel between hops.
//
// Detection is a tagged variant: the required fields (box, label, score) are
// always present; optional fields added by later stages (track id, appearance
// feature, re-identification) carry explicit presence flags instead of the
// loose dictionaries the wire format predates.
package packet

import (
	"fmt"
	"unicode"
)

// Frame holds raw BGR pixels. A zero Frame (Empty() == true) is legal and
// marks a meta-only packet.
type Frame struct {
	Width  int
	Height int
	Pix    []byte // BGR, row-major, len == Width*Height*3
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return len(f.Pix) == 0 || f.Width <= 0 || f.Height <= 0
}

// Uniform returns a solid-color frame, used for padding and dummy batches.
func Uniform(w, h int, value byte) Frame {
	pix := make([]byte, w*h*3)
	for i := range pix {
		pix[i] = value
	}
	return Frame{Width: w, Height: h, Pix: pix}
}

// ReIDRef points at the canonical tube a detection was re-identified to.
type ReIDRef struct {
	Cam string
	ID  int
}

// Detection is one detected object in a frame.
//
// Box, Label and Score come from the detector. Tracked/ID are set by the
// tracker, Feature by the feature extractor, ReID by cross-camera
// re-identification. Presence of the optional fields must be tested
// explicitly: Tracked for ID, len(Feature) for the feature, ReID != nil.
type Detection struct {
	Box   Box
	Label string
	Score float64

	Tracked bool
	ID      int

	Feature []float64

	ReID *ReIDRef
}

// HasFeature reports whether an appearance feature is attached.
func (d *Detection) HasFeature() bool { return len(d.Feature) > 0 }

// Validate rejects records a stage must drop rather than process.
func (d *Detection) Validate() error {
	if d.Label == "" {
		return fmt.Errorf("detection has empty label")
	}
	if !d.Box.Valid() {
		return fmt.Errorf("detection %q has degenerate box %v", d.Label, d.Box)
	}
	if d.Score < 0 || d.Score > 1 {
		return fmt.Errorf("detection %q has score %f outside [0,1]", d.Label, d.Score)
	}
	return nil
}

// ActMeta is the renderable form of a derived act, carried on outbound
// packets for presentation. ID/ID2 are "<label>-<tube>" strings.
type ActMeta struct {
	ID    string
	ID2   string
	Label string
	ActFrameID int
}

// FramePacket is one camera frame plus everything the pipeline has derived
// for it so far.
type FramePacket struct {
	CamID   string
	FrameID int
	Image   Frame
	Meta    []Detection
	Acts    []ActMeta
}

// Validate checks the invariants every stage may assume after ingest.
func (p *FramePacket) Validate() error {
	if p.CamID == "" {
		return fmt.Errorf("packet has empty cam id")
	}
	r := rune(p.CamID[0])
	if !unicode.IsLetter(r) {
		return fmt.Errorf("cam id %q must start with a letter", p.CamID)
	}
	if p.FrameID < 0 {
		return fmt.Errorf("cam %s: negative frame id %d", p.CamID, p.FrameID)
	}
	return nil
}
