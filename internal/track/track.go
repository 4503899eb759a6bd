// Package track assigns stable ids to detections across frames.
//
// One tracker instance runs per tracked label. Each implements the standard
// appearance+motion cascade: constant-velocity Kalman prediction, appearance
// matching on cosine distance gated by IoU, and a greedy IoU stage for
// whatever remains. Attachment labels are not tracked and pass through the
// packet unchanged.
package track

import (
	"github.com/watchgrid/watchgrid/internal/kalman"
	"github.com/watchgrid/watchgrid/internal/packet"
)

// State is the lifecycle state of a track.
type State int

const (
	// Tentative tracks are new and awaiting confirmation.
	Tentative State = iota
	// Confirmed tracks have hit nInit consecutive times and are reported.
	Confirmed
	// Deleted tracks are scheduled for removal.
	Deleted
)

// featureBudget caps the per-track appearance gallery.
const featureBudget = 100

// Track is a single tracked object within one camera and label.
type Track struct {
	ID    int
	Label string

	filter          *kalman.BoxFilter
	hits            int
	timeSinceUpdate int
	state           State
	nInit           int
	maxAge          int

	features [][]float64
}

func newTrack(id int, det packet.Detection, nInit, maxAge int) *Track {
	t := &Track{
		ID:     id,
		Label:  det.Label,
		filter: kalman.NewBoxFilter(det.Box),
		hits:   1,
		state:  Tentative,
		nInit:  nInit,
		maxAge: maxAge,
	}
	if det.HasFeature() {
		t.features = append(t.features, det.Feature)
	}
	return t
}

// Predict advances the motion model one frame and ages the track.
func (t *Track) Predict() {
	t.filter.Predict()
	t.timeSinceUpdate++
}

// Update folds a matched detection into the track.
func (t *Track) Update(det packet.Detection) {
	t.filter.Update(det.Box)
	if det.HasFeature() {
		t.features = append(t.features, det.Feature)
		if len(t.features) > featureBudget {
			t.features = t.features[len(t.features)-featureBudget:]
		}
	}
	t.hits++
	t.timeSinceUpdate = 0
	if t.state == Tentative && t.hits >= t.nInit {
		t.state = Confirmed
	}
}

// MarkMissed handles a frame with no matching detection.
func (t *Track) MarkMissed() {
	if t.state == Tentative {
		t.state = Deleted
	} else if t.timeSinceUpdate > t.maxAge {
		t.state = Deleted
	}
}

// Box returns the current box estimate.
func (t *Track) Box() packet.Box { return t.filter.Current() }

// IsConfirmed reports whether the track has left the initialization phase.
func (t *Track) IsConfirmed() bool { return t.state == Confirmed }

// IsDeleted reports whether the track should be removed.
func (t *Track) IsDeleted() bool { return t.state == Deleted }

// TimeSinceUpdate returns frames since the last matched detection.
func (t *Track) TimeSinceUpdate() int { return t.timeSinceUpdate }
