package transcript

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested session does not exist.
var ErrNotFound = errors.New("not found")

// Session is one stored decode session.
type Session struct {
	ID        string
	StartedAt time.Time
	EndedAt   time.Time // zero while the session is open
	Sentence  string
	EndReason string
	Resets    int
	Letters   int
}

// Letter is one decoded character with the code that produced it.
type Letter struct {
	Seq       int
	Char      rune
	Code      string
	DecodedAt time.Time
}

// Begin opens a new session starting at startedAt.
func (s *Store) Begin(startedAt time.Time) (*Recording, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, started_at) VALUES (?, ?)`,
		id, startedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &Recording{db: s.db, id: id}, nil
}

// Session retrieves a session by ID.
func (s *Store) Session(id string) (*Session, error) {
	sess, err := scanSession(s.db.QueryRow(sessionQuery+` WHERE s.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// Recent returns up to limit sessions, newest first.
func (s *Store) Recent(limit int) ([]Session, error) {
	rows, err := s.db.Query(sessionQuery+` ORDER BY s.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sess)
	}
	return out, rows.Err()
}

// Letters returns the letters of a session in decode order.
func (s *Store) Letters(sessionID string) ([]Letter, error) {
	rows, err := s.db.Query(
		`SELECT seq, letter, code, decoded_at FROM letters
		 WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Letter
	for rows.Next() {
		var l Letter
		var char string
		if err := rows.Scan(&l.Seq, &char, &l.Code, &l.DecodedAt); err != nil {
			return nil, err
		}
		for _, r := range char {
			l.Char = r
			break
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

const sessionQuery = `SELECT s.id, s.started_at, s.ended_at, s.sentence, s.end_reason, s.resets,
	(SELECT COUNT(*) FROM letters l WHERE l.session_id = s.id)
	FROM sessions s`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var ended sql.NullTime
	err := row.Scan(&sess.ID, &sess.StartedAt, &ended, &sess.Sentence, &sess.EndReason, &sess.Resets, &sess.Letters)
	if err != nil {
		return nil, err
	}
	if ended.Valid {
		sess.EndedAt = ended.Time
	}
	return &sess, nil
}

// Recording appends to one open session. Safe for concurrent use.
type Recording struct {
	db *sql.DB
	id string

	mu  sync.Mutex
	seq int
}

// ID returns the session ID.
func (r *Recording) ID() string {
	return r.id
}

// RecordLetter stores a decoded letter.
func (r *Recording) RecordLetter(letter rune, code string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	_, err := r.db.Exec(
		`INSERT INTO letters (session_id, seq, letter, code, decoded_at) VALUES (?, ?, ?, ?, ?)`,
		r.id, r.seq, string(letter), code, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert letter: %w", err)
	}
	return nil
}

// RecordReset counts a sentence reset.
func (r *Recording) RecordReset(at time.Time) error {
	_, err := r.db.Exec(`UPDATE sessions SET resets = resets + 1 WHERE id = ?`, r.id)
	if err != nil {
		return fmt.Errorf("record reset: %w", err)
	}
	return nil
}

// End closes the session with the final sentence and the reason it ended.
func (r *Recording) End(sentence, reason string, at time.Time) error {
	_, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, sentence = ?, end_reason = ? WHERE id = ?`,
		at.UTC(), sentence, reason, r.id,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}
