package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrStaleRoom    = errors.New("room was modified concurrently")
	ErrRoomExists   = errors.New("room already exists")
)

const roomSchema = `
CREATE TABLE IF NOT EXISTS room (
	room_id    TEXT PRIMARY KEY,
	generation INTEGER NOT NULL DEFAULT 1,
	state      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// RoomStore persists room snapshots. Saves are optimistic: each carries
// the generation the caller loaded, and a mismatch is rejected so the
// caller can reload and retry.
type RoomStore interface {
	Create(r *Room) error
	Load(id string) (*Room, error)
	Save(r *Room) error
	List() ([]string, error)
}

// SQLStore is the sqlite-backed RoomStore.
type SQLStore struct {
	db  *sqlx.DB
	log *AppLogger
}

func NewSQLStore(db *sqlx.DB, log *AppLogger) (*SQLStore, error) {
	if _, err := db.Exec(roomSchema); err != nil {
		return nil, fmt.Errorf("init room schema: %w", err)
	}
	return &SQLStore{db: db, log: log}, nil
}

func (s *SQLStore) Create(r *Room) error {
	state, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", r.ID, err)
	}
	_, err = s.db.Exec(`INSERT INTO room (room_id, generation, state) VALUES (?, 1, ?)`, r.ID, string(state))
	if err != nil {
		// sqlite reports the primary-key conflict as a generic error
		var existing int
		if s.db.Get(&existing, `SELECT COUNT(*) FROM room WHERE room_id = ?`, r.ID) == nil && existing > 0 {
			return fmt.Errorf("%w: %s", ErrRoomExists, r.ID)
		}
		return fmt.Errorf("insert room %s: %w", r.ID, err)
	}
	r.Generation = 1
	s.log.LogDB(s.db, fmt.Sprintf("after create %s", r.ID))
	return nil
}

func (s *SQLStore) Load(id string) (*Room, error) {
	var row struct {
		Generation int64  `db:"generation"`
		State      string `db:"state"`
	}
	err := s.db.Get(&row, `SELECT generation, state FROM room WHERE room_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", id, err)
	}

	var r Room
	if err := json.Unmarshal([]byte(row.State), &r); err != nil {
		return nil, fmt.Errorf("unmarshal room %s: %w", id, err)
	}
	r.Generation = row.Generation
	return &r, nil
}

// Save writes the snapshot if nobody else saved since the caller loaded.
// On success the room's generation is bumped in place.
func (s *SQLStore) Save(r *Room) error {
	state, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal room %s: %w", r.ID, err)
	}

	res, err := s.db.Exec(`
		UPDATE room
		SET state = ?, generation = generation + 1, updated_at = CURRENT_TIMESTAMP
		WHERE room_id = ? AND generation = ?`,
		string(state), r.ID, r.Generation)
	if err != nil {
		return fmt.Errorf("save room %s: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save room %s: %w", r.ID, err)
	}
	if n == 0 {
		var exists int
		if err := s.db.Get(&exists, `SELECT COUNT(*) FROM room WHERE room_id = ?`, r.ID); err == nil && exists == 0 {
			return fmt.Errorf("%w: %s", ErrRoomNotFound, r.ID)
		}
		return fmt.Errorf("%w: %s at generation %d", ErrStaleRoom, r.ID, r.Generation)
	}

	r.Generation++
	s.log.LogDB(s.db, fmt.Sprintf("after save %s gen %d", r.ID, r.Generation))
	return nil
}

func (s *SQLStore) List() ([]string, error) {
	var ids []string
	if err := s.db.Select(&ids, `SELECT room_id FROM room ORDER BY room_id`); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return ids, nil
}
