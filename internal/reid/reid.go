package reid

import (
	"math"
	"sort"

	"github.com/watchgrid/watchgrid/internal/assignment"
	"github.com/watchgrid/watchgrid/internal/monitoring"
	"github.com/watchgrid/watchgrid/internal/packet"
)

const (
	// MinTubeDuration is how many feature frames consolidate a tube's
	// appearance before it becomes eligible for matching.
	MinTubeDuration = 4
	// EndFrameGap is the minimum frame gap since a candidate tube was last
	// seen before it may be matched (the tube must actually have left).
	EndFrameGap = 5
	// MaxTubeInfoSize caps the per-camera tube table.
	MaxTubeInfoSize = 80
	// FeatureMatchingThres is the maximum cosine distance for a match.
	FeatureMatchingThres = 0.4
)

// TubeKey identifies a tube globally.
type TubeKey struct {
	Cam string
	ID  int
}

type tubeInfo struct {
	tubeLen      int
	firstBox     packet.Box
	lastBox      packet.Box
	lastFrameID  int
	features     [][]float64
	consolidated []float64
}

// camTable is an insertion-ordered tube table for one camera.
type camTable struct {
	order []int
	tubes map[int]*tubeInfo
}

func newCamTable() *camTable {
	return &camTable{tubes: make(map[int]*tubeInfo)}
}

func (ct *camTable) get(id int) *tubeInfo { return ct.tubes[id] }

func (ct *camTable) put(id int, ti *tubeInfo) {
	if _, ok := ct.tubes[id]; !ok {
		ct.order = append(ct.order, id)
	}
	ct.tubes[id] = ti
}

func (ct *camTable) remove(id int) *tubeInfo {
	ti, ok := ct.tubes[id]
	if !ok {
		return nil
	}
	delete(ct.tubes, id)
	for i, v := range ct.order {
		if v == id {
			ct.order = append(ct.order[:i], ct.order[i+1:]...)
			break
		}
	}
	return ti
}

// evictOldest removes entries, oldest first, until the table is within the
// size cap.
func (ct *camTable) evictOldest(maxSize int) {
	for len(ct.tubes) > maxSize && len(ct.order) > 0 {
		oldest := ct.order[0]
		ct.order = ct.order[1:]
		delete(ct.tubes, oldest)
	}
}

// ReID maps per-camera track ids onto global canonical (cam, id) pairs.
type ReID struct {
	idMapping map[TubeKey]TubeKey
	tables    map[string]*camTable
	topo      *Topology
}

// New creates a ReID stage over the given topology.
func New(topo *Topology) *ReID {
	return &ReID{
		idMapping: make(map[TubeKey]TubeKey),
		tables:    make(map[string]*camTable),
		topo:      topo,
	}
}

// Canonical resolves a key through the id mapping transitively, so chained
// re-identifications collapse onto the final pair. The walked path is
// compressed for subsequent lookups.
func (r *ReID) Canonical(k TubeKey) TubeKey {
	seen := map[TubeKey]bool{k: true}
	var path []TubeKey
	cur := k
	for {
		next, ok := r.idMapping[cur]
		if !ok {
			break
		}
		if seen[next] {
			break // defensive: a mapping cycle must not spin the lookup
		}
		seen[next] = true
		path = append(path, cur)
		cur = next
	}
	for _, p := range path {
		r.idMapping[p] = cur
	}
	return cur
}

func (r *ReID) table(cam string) *camTable {
	ct, ok := r.tables[cam]
	if !ok {
		ct = newCamTable()
		r.tables[cam] = ct
	}
	return ct
}

// Update processes one tracked packet: every person detection carrying a
// feature updates its tube's appearance state and may trigger a cross-camera
// match, recorded on the detection as a ReID reference. Feature-less
// detections bypass ReID untouched.
func (r *ReID) Update(pkt *packet.FramePacket) {
	for i := range pkt.Meta {
		m := &pkt.Meta[i]
		if !m.Tracked || !m.HasFeature() || m.Label != "person" {
			continue
		}
		cam, id, reided := r.resolve(pkt.CamID, m.ID, pkt.FrameID, m.Box, m.Feature)
		if reided {
			monitoring.Logf("[REID] !! %d > [%s-%d] [%s-%d]", pkt.FrameID, pkt.CamID, m.ID, cam, id)
			m.ReID = &packet.ReIDRef{Cam: cam, ID: id}
		}
	}
}

// resolve updates the tube state for (cam, id) and returns the canonical
// pair plus whether a new re-identification was just established.
func (r *ReID) resolve(cam string, id, frameID int, box packet.Box, feature []float64) (string, int, bool) {
	ct := r.table(cam)
	ti := ct.get(id)
	if ti == nil {
		ti = &tubeInfo{firstBox: box}
		ct.put(id, ti)
		ct.evictOldest(MaxTubeInfoSize)
	}
	ti.tubeLen++

	// Accumulate appearance until the tube is old enough, then freeze the
	// consolidated feature as the mean of the first few frames.
	if ti.tubeLen < MinTubeDuration {
		ti.features = append(ti.features, feature)
		return cam, id, false
	}
	if ti.tubeLen == MinTubeDuration {
		ti.features = append(ti.features, feature)
		ti.consolidated = assignment.MeanVector(ti.features)
		ti.features = nil
		monitoring.Logf("[REID] %s-%d confirmed", cam, id)
	}

	ti.lastFrameID = frameID
	ti.lastBox = box

	// Already re-identified: rewrite to the canonical pair and reseat the
	// tube state under it (last write wins on collision).
	key := TubeKey{Cam: cam, ID: id}
	if _, ok := r.idMapping[key]; ok {
		canon := r.Canonical(key)
		dst := r.table(canon.Cam)
		if moved := r.table(cam).remove(id); moved != nil {
			dst.remove(canon.ID)
			dst.put(canon.ID, moved)
			dst.evictOldest(MaxTubeInfoSize)
		}
		return canon.Cam, canon.ID, false
	}

	matched := r.findCandidates(cam, id, frameID, ti)
	if len(matched) == 0 {
		return cam, id, false
	}

	winner := bestMatch(matched, frameID, r.tables)
	r.idMapping[key] = winner
	monitoring.Logf("[REID] match (%s:%d) to (%s:%d)", cam, id, winner.Cam, winner.ID)

	r.table(winner.Cam).evictOldest(MaxTubeInfoSize)
	return winner.Cam, winner.ID, true
}

// findCandidates enumerates tubes in connected cameras whose exit matches
// this tube's entry, that ended long enough ago, and whose consolidated
// features are close enough.
func (r *ReID) findCandidates(cam string, id, frameID int, ti *tubeInfo) map[TubeKey]float64 {
	matched := make(map[TubeKey]float64)
	for c, table := range r.tables {
		if c == cam || !r.topo.Connected(cam, c) {
			continue
		}
		for _, t := range table.order {
			cand := table.tubes[t]
			if cand.consolidated == nil {
				continue
			}
			if !r.topo.CanMatch(cam, ti.firstBox, c, cand.lastBox) {
				continue
			}
			if frameID-cand.lastFrameID < EndFrameGap {
				continue
			}
			if fd := assignment.CosineDistance(ti.consolidated, cand.consolidated); fd < FeatureMatchingThres {
				matched[TubeKey{Cam: c, ID: t}] = fd
			}
		}
	}
	return matched
}

// bestMatch breaks ties first by smallest feature distance quantized to one
// decimal, then by smallest time gap.
func bestMatch(matched map[TubeKey]float64, frameID int, tables map[string]*camTable) TubeKey {
	type cand struct {
		key   TubeKey
		qdist int
	}
	cands := make([]cand, 0, len(matched))
	for k, d := range matched {
		cands = append(cands, cand{key: k, qdist: int(d * 10)})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].qdist < cands[j].qdist })

	minGap := math.MaxInt
	var res TubeKey
	for _, c := range cands {
		if c.qdist > cands[0].qdist {
			break
		}
		gap := frameID - tables[c.key.Cam].tubes[c.key.ID].lastFrameID
		if gap < minGap {
			res = c.key
			minGap = gap
		}
	}
	return res
}

// MappingLen reports how many re-identifications are recorded (for tests).
func (r *ReID) MappingLen() int { return len(r.idMapping) }

// TableSize reports the tube-table size for one camera (for tests).
func (r *ReID) TableSize(cam string) int { return len(r.table(cam).tubes) }
