package track

import (
	"github.com/watchgrid/watchgrid/internal/monitoring"
	"github.com/watchgrid/watchgrid/internal/packet"
)

// reattachIoUMin is the minimum IoU for copying an input detection's feature
// onto a tracker output box.
const reattachIoUMin = 0.3

// MultiTracker maintains one independent tracker per tracked label and
// rewrites packet metadata with stable ids.
type MultiTracker struct {
	params   Params
	trackers map[string]*labelTracker
	tracked  map[string]bool
	attached map[string]bool
}

// NewMultiTracker builds trackers for trackLabels; attachLabels pass through.
func NewMultiTracker(params Params, trackLabels, attachLabels []string) *MultiTracker {
	mt := &MultiTracker{
		params:   params,
		trackers: make(map[string]*labelTracker, len(trackLabels)),
		tracked:  make(map[string]bool, len(trackLabels)),
		attached: make(map[string]bool, len(attachLabels)),
	}
	for _, l := range trackLabels {
		mt.trackers[l] = newLabelTracker(params)
		mt.tracked[l] = true
	}
	for _, l := range attachLabels {
		mt.attached[l] = true
	}
	return mt
}

// Update replaces pkt.Meta with tracked output records: every confirmed,
// currently-visible track yields one record with box, id and label, plus the
// best-overlapping input feature. Attachment detections are forwarded as-is.
// Malformed records are dropped with a log line, never fatal.
func (mt *MultiTracker) Update(pkt *packet.FramePacket) {
	perLabel := make(map[string][]packet.Detection)
	var out []packet.Detection

	for _, det := range pkt.Meta {
		if err := det.Validate(); err != nil {
			monitoring.Logf("[Tracker] drop record: %v", err)
			continue
		}
		switch {
		case mt.tracked[det.Label]:
			perLabel[det.Label] = append(perLabel[det.Label], det)
		case mt.attached[det.Label]:
			out = append(out, det)
		}
	}

	for label, lt := range mt.trackers {
		tracks := lt.update(perLabel[label])
		for _, t := range tracks {
			if !t.IsConfirmed() || t.TimeSinceUpdate() > 0 {
				continue
			}
			box := t.Box()
			out = append(out, packet.Detection{
				Box:     box,
				Label:   label,
				Score:   1.0,
				Tracked: true,
				ID:      t.ID,
				Feature: findBoxFeature(box, pkt.Meta),
			})
		}
	}

	pkt.Meta = out
}

// findBoxFeature returns the feature of the input detection best overlapping
// box, or nil when no candidate reaches the IoU floor.
func findBoxFeature(box packet.Box, meta []packet.Detection) []float64 {
	maxIoU := reattachIoUMin
	var res []float64
	for _, m := range meta {
		if !m.HasFeature() {
			continue
		}
		if iou := box.IoU(m.Box); iou > maxIoU || (res == nil && iou >= maxIoU) {
			res = m.Feature
			maxIoU = iou
		}
	}
	return res
}
