package reid

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watchgrid/watchgrid/internal/packet"
)

const (
	imgW = 640
	imgH = 480
)

// Topology: camera A's right strip connects to camera B's left strip.
func testTopology(t *testing.T) *Topology {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "camera_topology.txt")
	body := "A, 0.8, 0.0, 1.0, 1.0 : B, 0.0, 0.0, 0.2, 1.0\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	topo, err := LoadTopology(path, imgW, imgH)
	require.NoError(t, err)
	return topo
}

func feed(r *ReID, cam string, id, frameID int, box packet.Box, feature []float64) (string, int, bool) {
	return r.resolve(cam, id, frameID, box, feature)
}

var (
	boxA = packet.Box{600, 100, 630, 200} // inside A's transit zone
	boxB = packet.Box{10, 100, 40, 200}   // inside B's transit zone

	featA = []float64{1, 0, 0}
	featB = []float64{0.7, 0.71414284285, 0} // cosine distance ≈ 0.3 from featA
)

func TestTopologyParse(t *testing.T) {
	topo := testTopology(t)
	require.True(t, topo.Connected("A", "B"))
	require.True(t, topo.Connected("B", "A"))
	require.False(t, topo.Connected("A", "C"))

	// B-side entry must overlap B's strip, A-side exit must overlap A's.
	require.True(t, topo.CanMatch("B", boxB, "A", boxA))
	require.False(t, topo.CanMatch("B", packet.Box{300, 100, 340, 200}, "A", boxA))
	require.False(t, topo.CanMatch("B", boxB, "A", packet.Box{100, 100, 140, 200}))
}

func TestTopologySkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "topo.txt")
	body := `
# comment line
A, 0.8, 0.0, 1.0, 1.0 : B, 0.0, 0.0, 0.2, 1.0
not a topology line
C, 1.5, 0.0, 1.0, 1.0 : D, 0.0, 0.0, 0.2, 1.0
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	topo, err := LoadTopology(path, imgW, imgH)
	require.NoError(t, err)
	require.True(t, topo.Connected("A", "B"))
	require.False(t, topo.Connected("C", "D"))
}

func TestMissingTopologyDegrades(t *testing.T) {
	topo, err := LoadTopology(filepath.Join(t.TempDir(), "nope.txt"), imgW, imgH)
	require.NoError(t, err)
	require.False(t, topo.Connected("A", "B"))
}

// Cross-camera match: A/7 exits, B/3 enters with close features.
func TestCrossCameraMatch(t *testing.T) {
	r := New(testTopology(t))

	for f := 97; f <= 100; f++ {
		feed(r, "A", 7, f, boxA, featA)
	}

	var cam string
	var id int
	var reided bool
	for f := 105; f <= 108; f++ {
		cam, id, reided = feed(r, "B", 3, f, boxB, featB)
	}
	require.True(t, reided, "B/3 should be re-identified on consolidation")
	require.Equal(t, "A", cam)
	require.Equal(t, 7, id)

	// Subsequent queries return the canonical pair without re-marking.
	cam, id, reided = feed(r, "B", 3, 109, boxB, featB)
	require.False(t, reided)
	require.Equal(t, "A", cam)
	require.Equal(t, 7, id)
}

func TestNoMatchWhenTubeStillLive(t *testing.T) {
	r := New(testTopology(t))
	for f := 97; f <= 100; f++ {
		feed(r, "A", 7, f, boxA, featA)
	}
	// B consolidates at frame 103: gap to A's last frame (100) is below the
	// end threshold, so A/7 is still considered live.
	var reided bool
	for f := 100; f <= 103; f++ {
		_, _, reided = feed(r, "B", 3, f, boxB, featB)
	}
	require.False(t, reided)
}

func TestNoMatchOnDistantFeatures(t *testing.T) {
	r := New(testTopology(t))
	for f := 97; f <= 100; f++ {
		feed(r, "A", 7, f, boxA, featA)
	}
	far := []float64{0, 0, 1}
	var reided bool
	for f := 105; f <= 108; f++ {
		_, _, reided = feed(r, "B", 3, f, boxB, far)
	}
	require.False(t, reided)
}

func TestShortTubesBypass(t *testing.T) {
	r := New(testTopology(t))
	for f := 97; f <= 100; f++ {
		feed(r, "A", 7, f, boxA, featA)
	}
	// Only 3 frames: never consolidated, never matched.
	for f := 105; f <= 107; f++ {
		cam, id, reided := feed(r, "B", 3, f, boxB, featB)
		require.False(t, reided)
		require.Equal(t, "B", cam)
		require.Equal(t, 3, id)
	}
	require.Equal(t, 0, r.MappingLen())
}

func TestUpdateMarksDetections(t *testing.T) {
	r := New(testTopology(t))
	for f := 97; f <= 100; f++ {
		feed(r, "A", 7, f, boxA, featA)
	}
	for f := 105; f <= 107; f++ {
		feed(r, "B", 3, f, boxB, featB)
	}
	pkt := &packet.FramePacket{
		CamID:   "B",
		FrameID: 108,
		Meta: []packet.Detection{
			{Box: boxB, Label: "person", Score: 0.9, Tracked: true, ID: 3, Feature: featB},
			{Box: packet.Box{300, 80, 340, 120}, Label: "bag", Score: 0.8},
		},
	}
	r.Update(pkt)
	require.NotNil(t, pkt.Meta[0].ReID)
	require.Equal(t, "A", pkt.Meta[0].ReID.Cam)
	require.Equal(t, 7, pkt.Meta[0].ReID.ID)
	require.Nil(t, pkt.Meta[1].ReID, "feature-less detections bypass reid")
}

// Chained mappings canonicalize transitively.
func TestCanonicalChaining(t *testing.T) {
	r := New(testTopology(t))
	a := TubeKey{Cam: "A", ID: 1}
	b := TubeKey{Cam: "B", ID: 2}
	c := TubeKey{Cam: "C", ID: 3}
	r.idMapping[a] = b
	r.idMapping[b] = c

	require.Equal(t, c, r.Canonical(a))
	// Path compression: the direct mapping now exists.
	require.Equal(t, c, r.idMapping[a])
}

func TestCanonicalCycleGuard(t *testing.T) {
	r := New(testTopology(t))
	a := TubeKey{Cam: "A", ID: 1}
	b := TubeKey{Cam: "B", ID: 2}
	r.idMapping[a] = b
	r.idMapping[b] = a
	// Must terminate; the exact answer is irrelevant as long as it returns.
	_ = r.Canonical(a)
}

func TestTubeTableEviction(t *testing.T) {
	r := New(testTopology(t))
	for id := 0; id < 2*MaxTubeInfoSize; id++ {
		feed(r, "A", id, id, boxA, featA)
		require.LessOrEqual(t, r.TableSize("A"), MaxTubeInfoSize)
	}
	require.Equal(t, MaxTubeInfoSize, r.TableSize("A"))
}

func TestTieBreakPrefersSmallerTimeGap(t *testing.T) {
	r := New(testTopology(t))

	// Two A-tubes with features equidistant (same quantized bucket) from the
	// B tube; tube 8 ended later, so its gap is smaller.
	for f := 90; f <= 93; f++ {
		feed(r, "A", 7, f, boxA, featA)
	}
	for f := 97; f <= 100; f++ {
		feed(r, "A", 8, f, boxA, featA)
	}

	var cam string
	var id int
	for f := 105; f <= 108; f++ {
		cam, id, _ = feed(r, "B", 3, f, boxB, featB)
	}
	require.Equal(t, "A", cam)
	require.Equal(t, 8, id)
}
