package actor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watchgrid/watchgrid/internal/nn"
	"github.com/watchgrid/watchgrid/internal/packet"
	"github.com/watchgrid/watchgrid/internal/tube"
)

// fakeClassifier scores every sample with a fixed probability vector.
type fakeClassifier struct {
	classes []string
	probs   []float64
	batches [][]nn.TubeSample
	fail    bool
	badRows bool
}

func (f *fakeClassifier) Classes() []string { return f.classes }

func (f *fakeClassifier) Classify(batch []nn.TubeSample) ([][]float64, error) {
	f.batches = append(f.batches, batch)
	if f.fail {
		return nil, errFake
	}
	out := make([][]float64, len(batch))
	for i := range batch {
		if f.badRows {
			out[i] = []float64{0.1}
		} else {
			out[i] = append([]float64(nil), f.probs...)
		}
	}
	return out, nil
}

var errFake = &fakeError{}

type fakeError struct{}

func (*fakeError) Error() string { return "model exploded" }

func newFake() *fakeClassifier {
	return &fakeClassifier{
		// Seven classes so top-5 selection is exercised: run and stand rank
		// above ride but are not in the threshold table; walk ranks sixth
		// and must never be considered even if thresholded.
		classes: []string{"use_phone", "carry", "sit", "ride", "run", "stand", "walk"},
		probs:   []float64{0.50, 0.05, 0.01, 0.30, 0.40, 0.35, 0.02},
	}
}

func personWindow(cam string, id, startFrame, clips int) *tube.ServerPkt {
	t := &tube.Tube{Label: "person", ID: id, OverlapObjs: map[string]bool{}}
	for f := 0; f < clips; f++ {
		t.Clips = append(t.Clips, tube.Clip{
			Box:     packet.Box{100, 100, 140, 180},
			FrameID: startFrame + f,
		})
	}
	return &tube.ServerPkt{
		CamID: cam,
		Pkts:  []*packet.FramePacket{{CamID: cam, FrameID: startFrame}},
		Tubes: []*tube.Tube{t},
	}
}

func emptyWindow(cam string) *tube.ServerPkt {
	return &tube.ServerPkt{CamID: cam, Pkts: []*packet.FramePacket{{CamID: cam}}}
}

// Under-filled batch: one real tube waits two rounds, then submits padded
// with dummies; only the real tube's acts appear.
func TestNeuralUnderfillBatch(t *testing.T) {
	fake := newFake()
	n := NewNeuralActor(fake, 4, 32)

	// 32 clips arrive over two windows.
	sp := personWindow("v1", 7, 0, 16)
	n.Process(sp)
	require.Empty(t, sp.Actions)
	sp = personWindow("v1", 7, 16, 16)
	n.Process(sp)
	require.Empty(t, sp.Actions, "under-filled batch must wait")
	require.Empty(t, fake.batches)

	// The cache ages one round per poll; after the second wait it submits.
	sp = emptyWindow("v1")
	n.Process(sp)
	require.Empty(t, sp.Actions)
	require.Empty(t, fake.batches)

	sp = emptyWindow("v1")
	n.Process(sp)
	require.Len(t, fake.batches, 1, "batch must submit after the age-out rounds")

	batch := fake.batches[0]
	require.Len(t, batch, 4)
	require.False(t, batch[0].Dummy())
	for i := 1; i < 4; i++ {
		require.True(t, batch[i].Dummy(), "slot %d should be dummy padding", i)
	}

	// use_phone (0.5 > 0.2) and ride (0.3 > 0.18) clear their thresholds
	// within the top five; run/stand are unlisted; carry (0.05) is below.
	names := actNames(sp.Actions)
	require.Equal(t, 1, names["use_phone"])
	require.Equal(t, 1, names["ride"])
	require.Zero(t, names["carry"])
	require.Zero(t, names["run"])
	require.Len(t, sp.Actions, 2)
	for _, a := range sp.Actions {
		require.Equal(t, "7", a.Tube1)
		require.Equal(t, "person", a.Class1)
	}
}

func TestNeuralFullBatchSubmitsImmediately(t *testing.T) {
	fake := newFake()
	n := NewNeuralActor(fake, 4, 32)

	// Two tubes reach 32 clips in the same window: cache has 2 ≥ batch/2.
	t1 := &tube.Tube{Label: "person", ID: 1, OverlapObjs: map[string]bool{}}
	t2 := &tube.Tube{Label: "person", ID: 2, OverlapObjs: map[string]bool{}}
	for f := 0; f < 32; f++ {
		clip := tube.Clip{Box: packet.Box{100, 100, 140, 180}, FrameID: f}
		t1.Clips = append(t1.Clips, clip)
		t2.Clips = append(t2.Clips, clip)
	}
	sp := &tube.ServerPkt{
		CamID: "v1",
		Pkts:  []*packet.FramePacket{{CamID: "v1"}},
		Tubes: []*tube.Tube{t1, t2},
	}
	n.Process(sp)
	require.Len(t, fake.batches, 1)
	require.Len(t, sp.Actions, 4, "two real tubes, two acts each")
}

func TestNeuralIgnoresNonPerson(t *testing.T) {
	fake := newFake()
	n := NewNeuralActor(fake, 4, 32)

	car := &tube.Tube{Label: "car", ID: 9, OverlapObjs: map[string]bool{}}
	for f := 0; f < 32; f++ {
		car.Clips = append(car.Clips, tube.Clip{Box: packet.Box{0, 0, 100, 60}, FrameID: f})
	}
	sp := &tube.ServerPkt{CamID: "v1", Pkts: []*packet.FramePacket{{CamID: "v1"}}, Tubes: []*tube.Tube{car}}
	n.Process(sp)
	require.Empty(t, fake.batches)
	require.Empty(t, sp.Actions)
}

func TestNeuralModelFailureDropsBatch(t *testing.T) {
	fake := newFake()
	fake.fail = true
	n := NewNeuralActor(fake, 4, 32)

	sp := personWindow("v1", 7, 0, 16)
	n.Process(sp)
	n.Process(personWindow("v1", 7, 16, 16))
	for i := 0; i < 3; i++ {
		sp = emptyWindow("v1")
		n.Process(sp)
	}
	require.NotEmpty(t, fake.batches, "batch must have been attempted")
	require.Empty(t, sp.Actions, "failed batch yields no acts")
}

func TestNeuralWrongShapeDropsBatch(t *testing.T) {
	fake := newFake()
	fake.badRows = true
	n := NewNeuralActor(fake, 4, 32)

	n.Process(personWindow("v1", 7, 0, 16))
	n.Process(personWindow("v1", 7, 16, 16))
	var sp *tube.ServerPkt
	for i := 0; i < 3; i++ {
		sp = emptyWindow("v1")
		n.Process(sp)
	}
	require.Empty(t, sp.Actions)
}
