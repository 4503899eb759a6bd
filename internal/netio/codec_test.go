package netio

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/watchgrid/watchgrid/internal/packet"
)

func samplePacket() *packet.FramePacket {
	return &packet.FramePacket{
		CamID:   "v1",
		FrameID: 42,
		Meta: []packet.Detection{
			{
				Box:     packet.Box{10, 20, 110, 220},
				Label:   "person",
				Score:   0.93,
				Tracked: true,
				ID:      7,
				Feature: []float64{0.1, 0.2, 0.7},
				ReID:    &packet.ReIDRef{Cam: "v0", ID: 3},
			},
			{Box: packet.Box{300, 40, 340, 80}, Label: "bag", Score: 0.6},
		},
		Acts: []packet.ActMeta{
			{ID: "person-7", ID2: "person-8", Label: "approach", ActFrameID: 40},
		},
	}
}

func TestPacketRoundTrip(t *testing.T) {
	in := samplePacket()
	data, err := EncodePacket(in)
	require.NoError(t, err)

	out, err := DecodePacket(data)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeGarbageFails(t *testing.T) {
	_, err := DecodePacket([]byte("definitely not gob"))
	require.Error(t, err)
}

func TestFrameScannerSplitsStream(t *testing.T) {
	p1, err := EncodePacket(samplePacket())
	require.NoError(t, err)
	p2 := samplePacket()
	p2.FrameID = 43
	d2, err := EncodePacket(p2)
	require.NoError(t, err)

	stream := append([]byte("leading garbage"), Marker...)
	stream = append(stream, p1...)
	stream = append(stream, Marker...)
	stream = append(stream, d2...)
	stream = append(stream, Marker...)

	var s frameScanner
	var payloads [][]byte
	// Feed in awkward chunk sizes to exercise partial reads.
	for i := 0; i < len(stream); i += 7 {
		end := i + 7
		if end > len(stream) {
			end = len(stream)
		}
		payloads = append(payloads, s.push(stream[i:end])...)
	}

	require.Len(t, payloads, 2)
	out1, err := DecodePacket(payloads[0])
	require.NoError(t, err)
	require.Equal(t, 42, out1.FrameID)
	out2, err := DecodePacket(payloads[1])
	require.NoError(t, err)
	require.Equal(t, 43, out2.FrameID)
}

func TestFrameScannerNeedsTwoMarkers(t *testing.T) {
	p1, err := EncodePacket(samplePacket())
	require.NoError(t, err)

	var s frameScanner
	require.Empty(t, s.push(Marker))
	require.Empty(t, s.push(p1), "payload without closing marker must wait")
	got := s.push(Marker)
	require.Len(t, got, 1)
}
