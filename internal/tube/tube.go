// Package tube groups per-frame boxes into fixed-window tubes.
//
// A tube is the ordered sequence of detections of one tracked object within
// a camera window. The batcher accumulates packets per camera and, when a
// window fills, emits a ServerPkt carrying the window, its tubes and the
// re-identifications observed in it.
package tube

import (
	"sort"
	"strconv"

	"github.com/watchgrid/watchgrid/internal/act"
	"github.com/watchgrid/watchgrid/internal/monitoring"
	"github.com/watchgrid/watchgrid/internal/packet"
	"github.com/watchgrid/watchgrid/internal/vision"
)

// Default window bounds: a window closes after MaxTubeSize frames, and a
// (label, id) pair must appear in at least MinTubeSize of them to survive.
const (
	MaxTubeSizeDefault = 16
	MinTubeSizeDefault = 8
)

// Clip is one frame's contribution to a tube.
type Clip struct {
	Box     packet.Box
	FrameID int
	Image   packet.Frame // fixed-size context crop
	ROI     vision.ROI
}

// Tube is immutable after emission.
type Tube struct {
	Label string
	ID    int
	Clips []Clip
	// OverlapObjs collects attachment labels whose boxes overlapped this
	// tube (person tubes only).
	OverlapObjs map[string]bool
}

// TubeKey renders the tube id the way acts reference it.
func (t *Tube) TubeKey() string { return strconv.Itoa(t.ID) }

// ServerPkt is the unit of work flowing through the actor stages.
type ServerPkt struct {
	CamID string
	Pkts  []*packet.FramePacket
	Tubes []*Tube
	// ReID maps a current tube id to the (cam, id) pair it continues.
	ReID map[int]packet.ReIDRef

	Actions []act.Act
}

// NewServerPkt assembles a window output and seeds the attachment acts
// (with_bag, with_bike, …) from each tube's overlap set.
func NewServerPkt(camID string, pkts []*packet.FramePacket, tubes []*Tube, reid map[int]packet.ReIDRef) *ServerPkt {
	sp := &ServerPkt{CamID: camID, Pkts: pkts, Tubes: tubes, ReID: reid}
	for _, t := range tubes {
		objs := make([]string, 0, len(t.OverlapObjs))
		for obj := range t.OverlapObjs {
			objs = append(objs, obj)
		}
		sort.Strings(objs)
		for _, obj := range objs {
			sp.Actions = append(sp.Actions,
				act.New("with_"+obj, t.Label, t.TubeKey(), t.Clips[0].FrameID))
		}
	}
	return sp
}

// FirstFrameID returns the window's first frame id.
func (sp *ServerPkt) FirstFrameID() int {
	if len(sp.Pkts) == 0 {
		return 0
	}
	return sp.Pkts[0].FrameID
}

// ActionMetas renders all derived actions for presentation.
func (sp *ServerPkt) ActionMetas() []packet.ActMeta {
	metas := make([]packet.ActMeta, 0, len(sp.Actions))
	for _, a := range sp.Actions {
		metas = append(metas, a.ToMeta())
	}
	return metas
}

// ActionLogs renders all derived actions for the debug log.
func (sp *ServerPkt) ActionLogs() []string {
	logs := make([]string, 0, len(sp.Actions))
	for _, a := range sp.Actions {
		logs = append(logs, a.ToLog())
	}
	return logs
}

// ToFramePackets folds the act metas onto the window's first packet and
// yields the packets for the next hop.
func (sp *ServerPkt) ToFramePackets() []*packet.FramePacket {
	if len(sp.Pkts) > 0 {
		sp.Pkts[0].Acts = append(sp.Pkts[0].Acts, sp.ActionMetas()...)
	}
	return sp.Pkts
}

type tubeID struct {
	label string
	id    int
}

// pktCache buffers one camera's pending packets.
type pktCache struct {
	pkts []*packet.FramePacket
	reid map[int]packet.ReIDRef

	trackLabels  map[string]bool
	attachLabels map[string]bool
	maxTubeSize  int
	minTubeSize  int
}

func (c *pktCache) full() bool { return len(c.pkts) >= c.maxTubeSize }

// validTubes returns the (label, id) pairs appearing in at least minTubeSize
// packets of the window.
func (c *pktCache) validTubes() map[tubeID]bool {
	counts := make(map[tubeID]int)
	for _, pkt := range c.pkts {
		for _, m := range pkt.Meta {
			if m.Tracked && c.trackLabels[m.Label] {
				counts[tubeID{m.Label, m.ID}]++
			}
		}
	}
	res := make(map[tubeID]bool)
	for k, n := range counts {
		if n >= c.minTubeSize {
			res[k] = true
		}
	}
	return res
}

// attachBoxes lists, per window frame, the attachment boxes by label.
func (c *pktCache) attachBoxes() []map[string][]packet.Box {
	res := make([]map[string][]packet.Box, len(c.pkts))
	for i, pkt := range c.pkts {
		cur := make(map[string][]packet.Box)
		for _, m := range pkt.Meta {
			if c.attachLabels[m.Label] {
				cur[m.Label] = append(cur[m.Label], m.Box)
			}
		}
		res[i] = cur
	}
	return res
}

// generateTubes builds all valid tubes for the cached window, cropping clip
// images, collecting attachment overlaps for person tubes and recording
// re-identifications observed in the window.
func (c *pktCache) generateTubes() []*Tube {
	valid := c.validTubes()
	attach := c.attachBoxes()

	res := make(map[tubeID]*Tube, len(valid))
	var order []tubeID

	for i, pkt := range c.pkts {
		for _, m := range pkt.Meta {
			if !m.Tracked {
				continue
			}
			key := tubeID{m.Label, m.ID}
			if !valid[key] { // too-short tubes are dropped
				continue
			}
			if m.ReID != nil {
				c.reid[m.ID] = *m.ReID
			}

			t, ok := res[key]
			if !ok {
				t = &Tube{Label: m.Label, ID: m.ID, OverlapObjs: make(map[string]bool)}
				res[key] = t
				order = append(order, key)
			}

			img, roi, err := vision.CropClip(pkt.Image, m.Box)
			if err != nil {
				monitoring.Logf("[Batcher] crop %s-%d at frame %d: %v", m.Label, m.ID, pkt.FrameID, err)
				continue
			}
			t.Clips = append(t.Clips, Clip{Box: m.Box, FrameID: pkt.FrameID, Image: img, ROI: roi})

			if m.Label == "person" {
				for objLabel, boxes := range attach[i] {
					if t.OverlapObjs[objLabel] {
						continue
					}
					for _, ob := range boxes {
						if m.Box.Overlaps(ob) {
							t.OverlapObjs[objLabel] = true
							break
						}
					}
				}
			}
		}
	}

	tubes := make([]*Tube, 0, len(order))
	for _, k := range order {
		tubes = append(tubes, res[k])
	}
	return tubes
}
