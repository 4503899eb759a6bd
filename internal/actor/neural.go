package actor

import (
	"sort"
	"strconv"

	"github.com/watchgrid/watchgrid/internal/act"
	"github.com/watchgrid/watchgrid/internal/monitoring"
	"github.com/watchgrid/watchgrid/internal/nn"
	"github.com/watchgrid/watchgrid/internal/packet"
	"github.com/watchgrid/watchgrid/internal/tube"
)

const (
	// MaxTubeAgeInCache is how many rounds an under-filled pending batch may
	// wait before it is submitted anyway.
	MaxTubeAgeInCache = 2
	// TopKActs is how many top classes are considered per tube.
	TopKActs = 5
)

// ActThresholds maps emitted classes to their minimum probability. Classes
// outside the table are never emitted regardless of score.
var ActThresholds = map[string]float64{
	"use_phone":    0.20,
	"carry":        0.10,
	"use_computer": 0.20,
	"talk":         0.20,
	"sit":          0.20,
	"ride":         0.18,
}

type ringKey struct {
	cam string
	id  int
}

// NeuralActor batches person-tube windows for the action classifier and
// emits acts for classes that clear their thresholds.
type NeuralActor struct {
	classifier nn.ActionClassifier
	batchSize  int
	tubeSize   int

	// rings hold incoming clips per tube until a classifier-sized run is
	// ready; cache holds runs pending batch submission.
	rings map[ringKey][]tube.Clip
	cache []nn.TubeSample

	nonEmptyRound int
	dummy         nn.TubeSample
}

// NewNeuralActor creates the stage. batchSize is the fixed classifier batch
// (padded with dummy tubes); tubeSize is the clip run length per sample.
func NewNeuralActor(classifier nn.ActionClassifier, batchSize, tubeSize int) *NeuralActor {
	return &NeuralActor{
		classifier: classifier,
		batchSize:  batchSize,
		tubeSize:   tubeSize,
		rings:      make(map[ringKey][]tube.Clip),
		dummy:      nn.NewDummySample(tubeSize),
	}
}

// Process buffers the packet's person tubes, submits ready batches and
// appends any freshly emitted neural acts.
func (n *NeuralActor) Process(sp *tube.ServerPkt) {
	for _, t := range sp.Tubes {
		if t.Label != "person" {
			continue
		}
		key := ringKey{sp.CamID, t.ID}
		n.rings[key] = append(n.rings[key], t.Clips...)

		for len(n.rings[key]) >= n.tubeSize {
			run := n.rings[key][:n.tubeSize]
			n.rings[key] = n.rings[key][n.tubeSize:]

			imgs := make([]packet.Frame, n.tubeSize)
			for i, clip := range run {
				imgs[i] = clip.Image
			}
			n.cache = append(n.cache, nn.TubeSample{
				Images: imgs,
				ROI:    run[0].ROI,
				CamID:  sp.CamID,
				TubeID: strconv.Itoa(t.ID),
			})
		}
	}

	sp.Actions = append(sp.Actions, n.generateActions()...)
}

// generateActions submits the pending batch when it is full enough. An
// under-filled batch (below half capacity) waits up to MaxTubeAgeInCache
// rounds, trading latency for batch efficiency.
func (n *NeuralActor) generateActions() []act.Act {
	if len(n.cache) == 0 {
		return nil
	}
	if len(n.cache) < n.batchSize/2 && n.nonEmptyRound < MaxTubeAgeInCache {
		n.nonEmptyRound++
		return nil
	}
	n.nonEmptyRound = 0

	batch := make([]nn.TubeSample, 0, n.batchSize)
	for i := 0; i < n.batchSize; i++ {
		if len(n.cache) > 0 {
			batch = append(batch, n.cache[0])
			n.cache = n.cache[1:]
		} else {
			batch = append(batch, n.dummy)
		}
	}
	monitoring.Logf("[NNAct] submit batch of %d", n.batchSize)

	probs, err := n.classifier.Classify(batch)
	if err != nil {
		monitoring.Logf("[NNAct] drop batch: %v", err)
		return nil
	}
	if len(probs) != n.batchSize {
		monitoring.Logf("[NNAct] drop batch: model returned %d rows for %d inputs", len(probs), n.batchSize)
		return nil
	}

	classes := n.classifier.Classes()
	var res []act.Act
	for i, sample := range batch {
		if sample.Dummy() { // dummies pad the tail; everything after is dummy too
			break
		}
		if len(probs[i]) != len(classes) {
			monitoring.Logf("[NNAct] drop batch: row %d has %d probs for %d classes", i, len(probs[i]), len(classes))
			return nil
		}
		for _, classID := range topK(probs[i], TopKActs) {
			name := classes[classID]
			thres, listed := ActThresholds[name]
			if listed && probs[i][classID] > thres {
				res = append(res, act.Act{Name: name, Class1: "person", Tube1: sample.TubeID})
			}
		}
	}
	return res
}

// topK returns the indices of the k largest values, descending.
func topK(vals []float64, k int) []int {
	idx := make([]int, len(vals))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return vals[idx[a]] > vals[idx[b]] })
	if k > len(idx) {
		k = len(idx)
	}
	return idx[:k]
}
