package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/watchgrid/watchgrid/internal/packet"
)

// DB persists completed acts for the presentation layer.
type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the act store at path.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS acts (
			session TEXT,
			cam_id TEXT,
			frame_id INTEGER,
			act TEXT,
			id1 TEXT,
			id2 TEXT,
			timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS acts_cam_frame ON acts(cam_id, frame_id);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init act store: %w", err)
	}
	return &DB{DB: db}, nil
}

// InsertActs stores one window's act metas under a session id.
func (d *DB) InsertActs(session, camID string, acts []packet.ActMeta) error {
	if len(acts) == 0 {
		return nil
	}
	tx, err := d.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO acts (session, cam_id, frame_id, act, id1, id2) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, a := range acts {
		if _, err := stmt.Exec(session, camID, a.ActFrameID, a.Label, a.ID, a.ID2); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ActsForCam returns the stored act labels for a camera, oldest first.
func (d *DB) ActsForCam(camID string, limit int) ([]packet.ActMeta, error) {
	rows, err := d.Query(
		`SELECT act, id1, id2, frame_id FROM acts WHERE cam_id = ? ORDER BY frame_id LIMIT ?`,
		camID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var acts []packet.ActMeta
	for rows.Next() {
		var a packet.ActMeta
		if err := rows.Scan(&a.Label, &a.ID, &a.ID2, &a.ActFrameID); err != nil {
			return nil, err
		}
		acts = append(acts, a)
	}
	return acts, rows.Err()
}
