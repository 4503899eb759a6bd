package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("WATCHGRID_CONFIG_DIR", t.TempDir())

	s, err := Load("tracker")
	require.NoError(t, err)
	require.Equal(t, "localhost:50051", s.LocalAddr)
	require.Equal(t, []string{"person", "car"}, s.TrackLabels)
	require.Equal(t, 128, s.QueueSize)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WATCHGRID_CONFIG_DIR", dir)

	body := `
queue_size = 32
server_addr = 10.0.0.2:6000
track_labels = person
attach_labels = bag, umbrella
upload_data = false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "act.ini"), []byte(body), 0o644))

	s, err := Load("act")
	require.NoError(t, err)
	require.Equal(t, 32, s.QueueSize)
	require.Equal(t, "10.0.0.2:6000", s.ServerAddr)
	require.Equal(t, []string{"person"}, s.TrackLabels)
	require.Equal(t, []string{"bag", "umbrella"}, s.AttachLabels)
	require.False(t, s.UploadData)
}

func TestLoadRejectsBadQueueSize(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("WATCHGRID_CONFIG_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "web.ini"), []byte("queue_size = -1\n"), 0o644))

	_, err := Load("web")
	require.Error(t, err)
}
