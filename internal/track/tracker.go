package track

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/watchgrid/watchgrid/internal/assignment"
	"github.com/watchgrid/watchgrid/internal/packet"
)

// Params configures one per-label tracker.
type Params struct {
	// MaxCosineDistance is the appearance matching threshold.
	MaxCosineDistance float64
	// MaxIoUDistance is the motion gate: pairs with IoU cost above it never
	// match, in either cascade stage.
	MaxIoUDistance float64
	// MaxAge is how many missed frames a confirmed track survives.
	MaxAge int
	// NInit is how many consecutive hits confirm a tentative track.
	NInit int
}

// DefaultParams mirror the production tracker tuning.
func DefaultParams() Params {
	return Params{
		MaxCosineDistance: 0.2,
		MaxIoUDistance:    0.7,
		MaxAge:            100,
		NInit:             4,
	}
}

// labelTracker tracks all objects of a single label.
type labelTracker struct {
	params Params
	nextID int
	tracks []*Track
}

func newLabelTracker(params Params) *labelTracker {
	return &labelTracker{params: params}
}

// update runs one frame of the cascade and returns the tracks alive after it.
func (lt *labelTracker) update(dets []packet.Detection) []*Track {
	for _, t := range lt.tracks {
		t.Predict()
	}

	// Stage 1: appearance matching of confirmed tracks against
	// feature-bearing detections, IoU-gated.
	confirmed := make([]*Track, 0, len(lt.tracks))
	rest := make([]*Track, 0, len(lt.tracks))
	for _, t := range lt.tracks {
		if t.IsConfirmed() {
			confirmed = append(confirmed, t)
		} else {
			rest = append(rest, t)
		}
	}

	matchedDet := make([]bool, len(dets))
	matchedTrack := make(map[*Track]bool)

	if len(confirmed) > 0 && len(dets) > 0 {
		cost := lt.appearanceCost(confirmed, dets)
		assignments, _, _ := assignment.LinearSumAssignment(cost, lt.params.MaxCosineDistance)
		for _, a := range assignments {
			confirmed[a.Row].Update(dets[a.Col])
			matchedDet[a.Col] = true
			matchedTrack[confirmed[a.Row]] = true
		}
	}

	// Stage 2: greedy IoU matching for everything left over.
	leftTracks := make([]*Track, 0, len(lt.tracks))
	for _, t := range confirmed {
		if !matchedTrack[t] {
			leftTracks = append(leftTracks, t)
		}
	}
	leftTracks = append(leftTracks, rest...)

	leftDetIdx := make([]int, 0, len(dets))
	for i := range dets {
		if !matchedDet[i] {
			leftDetIdx = append(leftDetIdx, i)
		}
	}

	if len(leftTracks) > 0 && len(leftDetIdx) > 0 {
		iouCost := mat.NewDense(len(leftTracks), len(leftDetIdx), nil)
		for r, t := range leftTracks {
			tb := t.Box()
			for c, di := range leftDetIdx {
				iouCost.Set(r, c, 1.0-tb.IoU(dets[di].Box))
			}
		}
		rows, cols := assignment.GreedyMatch(iouCost, lt.params.MaxIoUDistance)
		for i := range rows {
			t := leftTracks[rows[i]]
			di := leftDetIdx[cols[i]]
			t.Update(dets[di])
			matchedDet[di] = true
			matchedTrack[t] = true
		}
	}

	// Unmatched tracks age out; unmatched detections start tentative tracks.
	for _, t := range lt.tracks {
		if !matchedTrack[t] {
			t.MarkMissed()
		}
	}
	for i, det := range dets {
		if !matchedDet[i] {
			lt.nextID++
			lt.tracks = append(lt.tracks, newTrack(lt.nextID, det, lt.params.NInit, lt.params.MaxAge))
		}
	}

	alive := lt.tracks[:0]
	for _, t := range lt.tracks {
		if !t.IsDeleted() {
			alive = append(alive, t)
		}
	}
	lt.tracks = alive
	return lt.tracks
}

// appearanceCost builds the cosine-distance matrix (tracks × detections) with
// IoU gating: pairs that fail the gate, and pairs without features on either
// side, are pushed past any threshold.
func (lt *labelTracker) appearanceCost(tracks []*Track, dets []packet.Detection) [][]float64 {
	gated := lt.params.MaxCosineDistance + 1.0
	cost := make([][]float64, len(tracks))
	for r, t := range tracks {
		cost[r] = make([]float64, len(dets))
		tb := t.Box()
		for c, det := range dets {
			if !det.HasFeature() || len(t.features) == 0 {
				cost[r][c] = gated
				continue
			}
			if 1.0-tb.IoU(det.Box) > lt.params.MaxIoUDistance {
				cost[r][c] = gated
				continue
			}
			cost[r][c] = galleryDistance(t.features, det.Feature)
		}
	}
	return cost
}

// galleryDistance is the smallest cosine distance between the detection
// feature and any feature in the track's gallery.
func galleryDistance(gallery [][]float64, feature []float64) float64 {
	best := math.Inf(1)
	for _, g := range gallery {
		if d := assignment.CosineDistance(g, feature); d < best {
			best = d
		}
	}
	return best
}
