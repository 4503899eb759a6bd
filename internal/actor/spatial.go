// Package actor implements the action-derivation stages that enrich tube
// windows with atomic acts and compose them into named activities.
package actor

import (
	"strconv"

	"github.com/watchgrid/watchgrid/internal/act"
	"github.com/watchgrid/watchgrid/internal/packet"
	"github.com/watchgrid/watchgrid/internal/tube"
)

// Spatial thresholds.
const (
	// MinOverlapFrames is the least shared-frame span two tubes need before
	// their relative movement is judged.
	MinOverlapFrames = 8
	// MovementThresRatio is the normalized distance change that signals an
	// approach/cross/leave event.
	MovementThresRatio = 1.1
	// CloseMaxRatio and NearMaxRatio bucket the mid-window distance.
	CloseMaxRatio = 1.8
	NearMaxRatio  = 3.0

	// MovingSegSize slices a tube for the move/stop test.
	MovingSegSize = 10
	// MovingMoveRatio and MovingStopRatio are the per-segment bounds.
	MovingMoveRatio = 0.4
	MovingStopRatio = 0.3

	// MaxInactiveFrames is how long a tube may be unseen before it ends.
	MaxInactiveFrames = 120
)

type regKey struct {
	cam   string
	label string
	id    int
}

// SpatialActor derives rule-based acts from tube geometry: start/end
// lifecycle, move/stop, and pairwise approach/cross/leave with proximity.
type SpatialActor struct {
	// tubeReg records the last active frame id of each tube.
	tubeReg map[regKey]int
}

// NewSpatialActor creates the stage.
func NewSpatialActor() *SpatialActor {
	return &SpatialActor{tubeReg: make(map[regKey]int)}
}

// Process enriches the packet's actions in place.
func (s *SpatialActor) Process(sp *tube.ServerPkt) {
	var res []act.Act
	for i := range sp.Tubes {
		res = append(res, s.singleActions(sp.CamID, sp.Tubes[i])...)
		for j := i + 1; j < len(sp.Tubes); j++ {
			res = append(res, crossActions(sp.Tubes[i], sp.Tubes[j])...)
		}
	}
	res = append(res, s.endActions(sp.FirstFrameID())...)
	sp.Actions = append(sp.Actions, res...)
}

// singleActions emits start for new tubes plus the move/stop status, and
// refreshes the tube's last-active frame.
func (s *SpatialActor) singleActions(camID string, t *tube.Tube) []act.Act {
	key := regKey{camID, t.Label, t.ID}
	first := t.Clips[0].FrameID

	var res []act.Act
	if _, seen := s.tubeReg[key]; !seen {
		res = append(res, act.New("start", t.Label, t.TubeKey(), first))
	}
	s.tubeReg[key] = t.Clips[len(t.Clips)-1].FrameID

	if status := movingStatus(t); status != "" {
		res = append(res, act.New(status, t.Label, t.TubeKey(), first))
	}
	return res
}

// endActions emits end for tubes unseen for MaxInactiveFrames and drops them
// from the registry.
func (s *SpatialActor) endActions(curFrameID int) []act.Act {
	var res []act.Act
	for key, lastActive := range s.tubeReg {
		if lastActive < curFrameID-MaxInactiveFrames {
			res = append(res, act.New("end", key.label, strconv.Itoa(key.id), curFrameID))
			delete(s.tubeReg, key)
		}
	}
	return res
}

// movingStatus segments the tube and compares segment endpoint centers
// against the average box width: any segment past the move ratio means
// "move"; all segments within the stop ratio means "stop"; in between means
// no verdict.
func movingStatus(t *tube.Tube) string {
	clips := t.Clips
	isStop := true
	for i := 0; i < len(clips); i += MovingSegSize {
		first := clips[i]
		last := clips[minInt(i+MovingSegSize-1, len(clips)-1)]
		boxDimen := float64(first.Box.Width())/2 + float64(last.Box.Width())/2
		if boxDimen == 0 {
			continue
		}
		ratio := first.Box.CenterDist(last.Box) / boxDimen
		if ratio > MovingStopRatio {
			isStop = false
			if ratio > MovingMoveRatio {
				return "move"
			}
		}
	}
	if isStop {
		return "stop"
	}
	return ""
}

// crossActions evaluates one unordered tube pair. Car–car pairs are skipped;
// car–person pairs are canonicalized so the person is the first subject.
// Every relation is emitted symmetrically, both orderings.
func crossActions(t1, t2 *tube.Tube) []act.Act {
	if t1.Label == "car" && t2.Label == "car" {
		return nil
	}
	if t1.Label == "car" && t2.Label == "person" {
		t1, t2 = t2, t1
	}

	relations, startFid := tubeDistRelation(t1, t2)
	var res []act.Act
	for _, r := range relations {
		res = append(res, act.NewCross(r, t1.Label, t1.TubeKey(), t2.Label, t2.TubeKey(), startFid))
		res = append(res, act.NewCross(r, t2.Label, t2.TubeKey(), t1.Label, t1.TubeKey(), startFid))
	}
	return res
}

// tubeDistRelation classifies relative movement over the tubes' shared frame
// range: approach/cross/leave from the start/mid/end distances, plus the
// proximity bucket of the mid distance. Distances are normalized by the
// first tube's average box width.
func tubeDistRelation(t1, t2 *tube.Tube) ([]string, int) {
	startFid := maxInt(t1.Clips[0].FrameID, t2.Clips[0].FrameID)
	endFid := minInt(t1.Clips[len(t1.Clips)-1].FrameID, t2.Clips[len(t2.Clips)-1].FrameID)
	if endFid-startFid < MinOverlapFrames {
		return nil, startFid
	}

	boxes1 := boxesWithinRange(t1, startFid, endFid)
	boxes2 := boxesWithinRange(t2, startFid, endFid)
	if len(boxes1) == 0 || len(boxes2) == 0 {
		return nil, startFid
	}

	widAvg := float64(boxes1[0].Width())/2 + float64(boxes1[len(boxes1)-1].Width())/2
	if widAvg == 0 {
		return nil, startFid
	}

	startDist := boxes1[0].CenterDist(boxes2[0]) / widAvg
	midDist := boxes1[len(boxes1)/2].CenterDist(boxes2[len(boxes2)/2]) / widAvg
	endDist := boxes1[len(boxes1)-1].CenterDist(boxes2[len(boxes2)-1]) / widAvg

	var res []string
	switch {
	case endDist <= midDist && startDist-endDist > MovementThresRatio:
		res = append(res, "approach")
	case minFloat(endDist, startDist)-midDist > MovementThresRatio:
		res = append(res, "cross")
	case startDist <= midDist && endDist-startDist > MovementThresRatio:
		res = append(res, "leave")
	}

	switch {
	case midDist < CloseMaxRatio:
		res = append(res, "close")
	case midDist < NearMaxRatio:
		res = append(res, "near")
	default:
		res = append(res, "far")
	}
	return res, startFid
}

// boxesWithinRange returns the tube's boxes with frame ids in [t1, t2].
func boxesWithinRange(t *tube.Tube, t1, t2 int) []packet.Box {
	var res []packet.Box
	for _, clip := range t.Clips {
		if clip.FrameID > t2 {
			break
		}
		if clip.FrameID < t1 {
			continue
		}
		res = append(res, clip.Box)
	}
	return res
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
