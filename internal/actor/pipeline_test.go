package actor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watchgrid/watchgrid/internal/act"
	"github.com/watchgrid/watchgrid/internal/packet"
	"github.com/watchgrid/watchgrid/internal/tube"
)

// End to end over the server-side stages: windowed batching, spatial act
// derivation and activity composition. Two people approach across the first
// window and stand close in the second, completing a "meet" activity.
func TestBatchSpatialComposeMeet(t *testing.T) {
	defs := `
>> meet
p1 = Person
p2 = Person
(p1 approach p2)
(p1 close p2)
`
	graphs, err := act.ParseGraphs(defs)
	require.NoError(t, err)

	batcher := tube.NewBatcher(tube.DefaultBatcherParams([]string{"person", "car"}, []string{"bag", "bike"}))
	spatial := NewSpatialActor()
	composer := NewComposer(graphs)

	var completed []act.Act
	push := func(fid int, b1, b2 packet.Box) {
		pkt := &packet.FramePacket{
			CamID:   "v1",
			FrameID: fid,
			Meta: []packet.Detection{
				{Box: b1, Label: "person", Score: 0.9, Tracked: true, ID: 1},
				{Box: b2, Label: "person", Score: 0.9, Tracked: true, ID: 2},
			},
		}
		sp := batcher.Add(pkt)
		if sp == nil {
			return
		}
		spatial.Process(sp)
		composer.Process(sp)
		for _, a := range sp.Actions {
			if a.Name == "meet" {
				completed = append(completed, a)
			}
		}
	}

	// Window 1: fast convergence from afar (normalized start 10, end 4).
	for f := 0; f < 16; f++ {
		x1 := 100 + 8*f
		x2 := 500 - 8*f
		push(f, packet.Box{x1, 100, x1 + 40, 180}, packet.Box{x2, 100, x2 + 40, 180})
	}
	require.Empty(t, completed, "meet must not complete after the approach alone")

	// Window 2: standing close (normalized distance 1.5).
	for f := 16; f < 32; f++ {
		push(f, packet.Box{220, 100, 260, 180}, packet.Box{280, 100, 320, 180})
	}

	require.NotEmpty(t, completed, "meet should complete after approach then close")
	subjects := map[string]bool{completed[0].Tube1: true, completed[0].Tube2: true}
	require.True(t, subjects["1"] && subjects["2"], "completed activity binds both tubes: %+v", completed[0])
}
