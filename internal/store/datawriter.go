// Package store persists stage results: per-camera record files for offline
// analysis and a sqlite store for completed acts.
package store

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/watchgrid/watchgrid/internal/packet"
)

// Record is one frame's saved output.
type Record struct {
	FrameID int
	Meta    []packet.Detection
	Acts    []packet.ActMeta
}

// DataWriter accumulates records for one camera and flushes them to
// "<cam_id>.rec" in the result folder on Close. The on-disk format is an
// opaque gob array; it is not required for pipeline correctness.
type DataWriter struct {
	path    string
	records []Record
}

// NewDataWriter creates a writer for one camera under dir.
func NewDataWriter(dir, camID string) (*DataWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("result folder: %w", err)
	}
	return &DataWriter{path: filepath.Join(dir, camID+".rec")}, nil
}

// Save buffers one frame's output.
func (w *DataWriter) Save(rec Record) {
	w.records = append(w.records, rec)
}

// Close flushes all buffered records to disk.
func (w *DataWriter) Close() error {
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(w.records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return nil
}

// ReadRecords loads a record file written by a DataWriter.
func ReadRecords(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var records []Record
	if err := gob.NewDecoder(f).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return records, nil
}
