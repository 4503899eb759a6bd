package tube

import (
	"github.com/watchgrid/watchgrid/internal/monitoring"
	"github.com/watchgrid/watchgrid/internal/packet"
)

// BatcherParams configures the per-camera windowing.
type BatcherParams struct {
	TrackLabels  []string
	AttachLabels []string
	MaxTubeSize  int
	MinTubeSize  int
}

// DefaultBatcherParams returns the production window bounds.
func DefaultBatcherParams(trackLabels, attachLabels []string) BatcherParams {
	return BatcherParams{
		TrackLabels:  trackLabels,
		AttachLabels: attachLabels,
		MaxTubeSize:  MaxTubeSizeDefault,
		MinTubeSize:  MinTubeSizeDefault,
	}
}

// Batcher accumulates per-camera frame packets into fixed windows and emits
// a ServerPkt per closed window.
type Batcher struct {
	params BatcherParams
	caches map[string]*pktCache
}

// NewBatcher creates a batcher.
func NewBatcher(params BatcherParams) *Batcher {
	if params.MaxTubeSize <= 0 {
		params.MaxTubeSize = MaxTubeSizeDefault
	}
	if params.MinTubeSize <= 0 {
		params.MinTubeSize = MinTubeSizeDefault
	}
	return &Batcher{params: params, caches: make(map[string]*pktCache)}
}

// Add buffers one packet. When the camera's window fills, the window's
// ServerPkt is returned and the cache (packets and observed reid map) is
// flushed; otherwise nil.
func (b *Batcher) Add(pkt *packet.FramePacket) *ServerPkt {
	if err := pkt.Validate(); err != nil {
		monitoring.Logf("[Batcher] drop packet: %v", err)
		return nil
	}

	c, ok := b.caches[pkt.CamID]
	if !ok {
		c = &pktCache{
			reid:         make(map[int]packet.ReIDRef),
			trackLabels:  toSet(b.params.TrackLabels),
			attachLabels: toSet(b.params.AttachLabels),
			maxTubeSize:  b.params.MaxTubeSize,
			minTubeSize:  b.params.MinTubeSize,
		}
		b.caches[pkt.CamID] = c
		monitoring.Logf("[Batcher] new camera %s", pkt.CamID)
	}

	c.pkts = append(c.pkts, pkt)
	if !c.full() {
		return nil
	}

	out := NewServerPkt(pkt.CamID, c.pkts, c.generateTubes(), c.reid)
	c.pkts = nil
	c.reid = make(map[int]packet.ReIDRef)
	return out
}

func toSet(labels []string) map[string]bool {
	s := make(map[string]bool, len(labels))
	for _, l := range labels {
		s[l] = true
	}
	return s
}
