// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package recorder stores solved skeleton frames in a SQLite database so a
// session can be replayed or analysed later.
package recorder

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/relabs-tech/body_tracker/internal/monitoring"
	"github.com/relabs-tech/body_tracker/internal/skeleton"
)

//go:embed schema.sql
var schemaSQL string

// ErrUnknownSession is returned for a session id that was never started.
var ErrUnknownSession = errors.New("recorder: unknown session")

// Session describes one recording.
type Session struct {
	ID      string
	Started time.Time
	Ended   time.Time // zero while recording
	Notes   string
	Frames  int
}

// Recorder writes frames into a SQLite file.
type Recorder struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("recorder: create schema: %w", err)
	}
	monitoring.Logf("recorder: session database ready at %s", path)
	return &Recorder{db: db}, nil
}

// StartSession creates a new session and returns its id.
func (r *Recorder) StartSession(started time.Time, notes string) (string, error) {
	id := uuid.NewString()
	_, err := r.db.Exec(
		`INSERT INTO sessions (session_id, started_ns, notes) VALUES (?, ?, ?)`,
		id, started.UnixNano(), notes,
	)
	if err != nil {
		return "", fmt.Errorf("recorder: start session: %w", err)
	}
	return id, nil
}

// EndSession marks a session as finished.
func (r *Recorder) EndSession(id string, ended time.Time) error {
	res, err := r.db.Exec(`UPDATE sessions SET ended_ns = ? WHERE session_id = ?`, ended.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("recorder: end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return nil
}

// RecordFrame appends a frame to a session.
func (r *Recorder) RecordFrame(session string, f skeleton.Frame) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("recorder: encode frame: %w", err)
	}
	_, err = r.db.Exec(
		`INSERT INTO frames (session_id, timestamp_ns, payload) VALUES (?, ?, ?)`,
		session, f.Time.UnixNano(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("recorder: insert frame: %w", err)
	}
	return nil
}

// Sessions lists every session, oldest first.
func (r *Recorder) Sessions() ([]Session, error) {
	rows, err := r.db.Query(`
		SELECT s.session_id, s.started_ns, s.ended_ns, s.notes, COUNT(f.frame_id)
		FROM sessions s LEFT JOIN frames f ON f.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.started_ns, s.session_id
	`)
	if err != nil {
		return nil, fmt.Errorf("recorder: list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			s       Session
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &started, &ended, &s.Notes, &s.Frames); err != nil {
			return nil, err
		}
		s.Started = time.Unix(0, started).UTC()
		if ended.Valid {
			s.Ended = time.Unix(0, ended.Int64).UTC()
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Frames returns the frames of a session in time order.
func (r *Recorder) Frames(session string) ([]skeleton.Frame, error) {
	var exists int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE session_id = ?`, session).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, session)
	}

	rows, err := r.db.Query(
		`SELECT payload FROM frames WHERE session_id = ? ORDER BY timestamp_ns, frame_id`, session)
	if err != nil {
		return nil, fmt.Errorf("recorder: query frames: %w", err)
	}
	defer rows.Close()

	var out []skeleton.Frame
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var f skeleton.Frame
		if err := json.Unmarshal([]byte(payload), &f); err != nil {
			return nil, fmt.Errorf("recorder: decode frame: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Close closes the database.
func (r *Recorder) Close() error {
	return r.db.Close()
}
