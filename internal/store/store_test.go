package store

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/watchgrid/watchgrid/internal/packet"
)

func TestDataWriterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewDataWriter(dir, "v1")
	require.NoError(t, err)

	recs := []Record{
		{
			FrameID: 0,
			Meta: []packet.Detection{
				{Box: packet.Box{1, 2, 3, 4}, Label: "person", Score: 0.9, Tracked: true, ID: 1},
			},
		},
		{
			FrameID: 1,
			Acts:    []packet.ActMeta{{ID: "person-1", Label: "move", ActFrameID: 0}},
		},
	}
	for _, r := range recs {
		w.Save(r)
	}
	require.NoError(t, w.Close())

	got, err := ReadRecords(filepath.Join(dir, "v1.rec"))
	require.NoError(t, err)
	if diff := cmp.Diff(recs, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestDBInsertAndQuery(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "acts.db"))
	require.NoError(t, err)
	defer db.Close()

	acts := []packet.ActMeta{
		{ID: "person-1", ID2: "person-2", Label: "approach", ActFrameID: 10},
		{ID: "person-1", Label: "move", ActFrameID: 12},
	}
	require.NoError(t, db.InsertActs("sess", "v1", acts))
	require.NoError(t, db.InsertActs("sess", "v2", []packet.ActMeta{
		{ID: "person-9", Label: "stop", ActFrameID: 3},
	}))

	got, err := db.ActsForCam("v1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "approach", got[0].Label)
	require.Equal(t, "person-2", got[0].ID2)

	got, err = db.ActsForCam("v2", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestDBEmptyInsertIsNoop(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), "acts.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.InsertActs("sess", "v1", nil))
}
