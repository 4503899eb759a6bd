package actor

import (
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watchgrid/watchgrid/internal/act"
	"github.com/watchgrid/watchgrid/internal/packet"
	"github.com/watchgrid/watchgrid/internal/tube"
)

const heheDefs = `
>> hehe
p1 = Person
p2 = Person
(p1 approach p2)
(p1 close p2)
(p1 leave p2)
`

func loadDefs(t *testing.T, text string) []*act.Graph {
	t.Helper()
	gs, err := act.ParseGraphs(text)
	require.NoError(t, err)
	return gs
}

func pktWithActs(cam string, acts ...act.Act) *tube.ServerPkt {
	return &tube.ServerPkt{
		CamID:   cam,
		Pkts:    []*packet.FramePacket{{CamID: cam, FrameID: 0}},
		ReID:    map[int]packet.ReIDRef{},
		Actions: acts,
	}
}

// Activity completion: three acts in order complete one instance.
func TestComposerCompletesActivity(t *testing.T) {
	c := NewComposer(loadDefs(t, heheDefs))

	sp := pktWithActs("v1",
		act.NewCross("approach", "person", "1", "person", "2", 0),
		act.NewCross("close", "person", "1", "person", "2", 16),
		act.NewCross("leave", "person", "1", "person", "2", 32),
	)
	c.Process(sp)

	require.Len(t, sp.Actions, 1)
	out := sp.Actions[0]
	require.Equal(t, "hehe", out.Name)
	require.Equal(t, "1", out.Tube1, "tube ids must be rewritten back to bare form")
	require.Equal(t, "2", out.Tube2)
	require.Equal(t, "person", out.Class1)
}

// Conflict rejection: a second act with a different first tube cannot
// advance the bound instance.
func TestComposerRejectsConflictingBinding(t *testing.T) {
	c := NewComposer(loadDefs(t, heheDefs))

	sp := pktWithActs("v1",
		act.NewCross("approach", "person", "1", "person", "2", 0),
		act.NewCross("close", "person", "3", "person", "2", 10),
	)
	c.Process(sp)
	require.Empty(t, sp.Actions, "conflicting act must not complete anything")

	// The instance is still waiting on (1 close 2) and completes later.
	sp = pktWithActs("v1",
		act.NewCross("close", "person", "1", "person", "2", 20),
		act.NewCross("leave", "person", "1", "person", "2", 30),
	)
	c.Process(sp)
	require.Len(t, sp.Actions, 1)
	require.Equal(t, "hehe", sp.Actions[0].Name)
}

// Instances that make no progress within a packet are evicted.
func TestComposerEvictsStalledInstances(t *testing.T) {
	c := NewComposer(loadDefs(t, heheDefs))

	// Activation happens, but the instance only sits at stage 1 after this
	// packet, which counts as progress; feed a packet whose act only
	// activates (stage 0 never completes) by using a two-act conjunction.
	defs := `
>> pair
p1 = Person
p2 = Person
(p1 approach p2) and (p1 far p2)
(p1 close p2)
`
	c = NewComposer(loadDefs(t, defs))
	sp := pktWithActs("v1", act.NewCross("approach", "person", "1", "person", "2", 0))
	c.Process(sp)
	require.Empty(t, c.active, "half-matched stage 0 must be evicted after the packet")

	// Both stage-0 acts in one packet: the instance survives.
	sp = pktWithActs("v1",
		act.NewCross("approach", "person", "1", "person", "2", 0),
		act.NewCross("far", "person", "1", "person", "2", 0),
	)
	c.Process(sp)
	require.Len(t, c.active, 1)
}

// Acts from different cameras must not bind into one instance.
func TestComposerCrossCameraIsolation(t *testing.T) {
	c := NewComposer(loadDefs(t, heheDefs))

	c.Process(pktWithActs("v1", act.NewCross("approach", "person", "1", "person", "2", 0)))
	require.Len(t, c.active, 1)

	// Same bare tube ids, different camera: read as different tubes. The act
	// activates a second instance instead of advancing the first.
	c.Process(pktWithActs("v2", act.NewCross("approach", "person", "1", "person", "2", 5)))
	require.Len(t, c.active, 2)

	// Completing on v1 completes only the v1 instance.
	sp := pktWithActs("v1",
		act.NewCross("close", "person", "1", "person", "2", 10),
		act.NewCross("leave", "person", "1", "person", "2", 20),
	)
	c.Process(sp)
	require.Len(t, sp.Actions, 1)
}

func TestComposerReIDActSynthesis(t *testing.T) {
	c := NewComposer(loadDefs(t, heheDefs))

	// Build up some history for v0's tube 9 by completing an activity there.
	sp := pktWithActs("v0",
		act.NewCross("approach", "person", "9", "person", "2", 0),
		act.NewCross("close", "person", "9", "person", "2", 16),
		act.NewCross("leave", "person", "9", "person", "2", 32),
	)
	c.Process(sp)
	require.Len(t, sp.Actions, 1)

	// A window on v1 reports tube 5 as a continuation of v0/9.
	sp = pktWithActs("v1")
	sp.ReID[5] = packet.ReIDRef{Cam: "v0", ID: 9}
	c.Process(sp)

	require.Len(t, sp.Actions, 1)
	out := sp.Actions[0]
	require.Equal(t, "From Cam-v0: hehe", out.Name)
	require.Equal(t, "person", out.Class1)
	require.Equal(t, "5", out.Tube1)
}

func TestComposerCacheCap(t *testing.T) {
	// A single-stage-pending definition that every act activates.
	defs := `
>> linger
p1 = Person
p2 = Person
(p1 near p2)
(p1 far p2)
`
	c := NewComposer(loadDefs(t, defs))

	for i := 0; i < MaxGraphCacheSize+100; i++ {
		sp := pktWithActs("v1",
			act.NewCross("near", "person", strconv.Itoa(2*i), "person", strconv.Itoa(2*i+1), i),
		)
		c.Process(sp)
		require.LessOrEqual(t, len(c.active), MaxGraphCacheSize)
	}
	require.Equal(t, MaxGraphCacheSize, len(c.active))
}

func TestComposerReloadSwapsDefinitions(t *testing.T) {
	c := NewComposer(loadDefs(t, heheDefs))
	c.Reload(loadDefs(t, `
>> other
q1 = Person
q2 = Person
(q1 cross q2)
(q1 far q2)
`))

	// hehe no longer activates; cross does.
	sp := pktWithActs("v1", act.NewCross("approach", "person", "1", "person", "2", 0))
	c.Process(sp)
	require.Empty(t, c.active)

	sp = pktWithActs("v1", act.NewCross("cross", "person", "1", "person", "2", 0))
	c.Process(sp)
	require.Len(t, c.active, 1)
}

func TestComposerActMetaRendering(t *testing.T) {
	a := act.Act{Name: fmt.Sprintf("From Cam-%s: %s", "v0", "start,move"), Class1: "person", Tube1: "4"}
	m := a.ToMeta()
	require.Equal(t, "person-4", m.ID)
	require.Contains(t, m.Label, "From Cam-v0")
}
