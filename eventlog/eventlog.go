// Package eventlog persists confirmed fall and near fall events to a local
// SQLite database so past events can be reviewed after the fact.
package eventlog

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Event kinds as stored in the database
const (
	KindFall     = "fall"
	KindNearFall = "near_fall"
)

// Event is one confirmed detection
type Event struct {
	// ID is assigned by the store on insert
	ID int64
	// Time the event was confirmed
	Time time.Time
	// Kind is KindFall or KindNearFall
	Kind string
	// Rules are the near fall rule names that fired, empty for
	// classifier falls
	Rules []string
	// ClipPath is the evidence clip file, empty when no clip was saved
	ClipPath string
}

// Store wraps SQLite access for event history
type Store struct {
	db *sql.DB
}

// Open opens or creates the event database at the given path
func Open(path string) (*Store, error) {

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating event log directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)

	if err != nil {
		return nil, fmt.Errorf("error opening event database: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error migrating event database: %w", err)
	}

	return s, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {

	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY,
		occurred_at TEXT NOT NULL,
		kind TEXT NOT NULL,
		rules TEXT NOT NULL,
		clip_path TEXT NOT NULL
	);`)

	return err
}

// Insert stores an event and returns its assigned id
func (s *Store) Insert(ev Event) (int64, error) {

	res, err := s.db.Exec(
		`INSERT INTO events (occurred_at, kind, rules, clip_path)
		 VALUES (?, ?, ?, ?)`,
		ev.Time.UTC().Format(time.RFC3339Nano),
		ev.Kind,
		strings.Join(ev.Rules, ","),
		ev.ClipPath,
	)

	if err != nil {
		return 0, fmt.Errorf("error inserting event: %w", err)
	}

	return res.LastInsertId()
}

// AttachClip records the evidence clip path for an already inserted event,
// used because the clip finishes encoding a little after the event is
// confirmed
func (s *Store) AttachClip(id int64, path string) error {

	_, err := s.db.Exec(`UPDATE events SET clip_path = ? WHERE id = ?`, path, id)

	if err != nil {
		return fmt.Errorf("error attaching clip to event %d: %w", id, err)
	}

	return nil
}

// Recent returns the newest events, most recent first
func (s *Store) Recent(limit int) ([]Event, error) {

	rows, err := s.db.Query(
		`SELECT id, occurred_at, kind, rules, clip_path
		 FROM events ORDER BY occurred_at DESC, id DESC LIMIT ?`, limit)

	if err != nil {
		return nil, fmt.Errorf("error querying events: %w", err)
	}

	defer rows.Close()

	var events []Event

	for rows.Next() {

		var (
			ev    Event
			ts    string
			rules string
		)

		if err := rows.Scan(&ev.ID, &ts, &ev.Kind, &rules, &ev.ClipPath); err != nil {
			return nil, fmt.Errorf("error scanning event: %w", err)
		}

		ev.Time, err = time.Parse(time.RFC3339Nano, ts)

		if err != nil {
			return nil, fmt.Errorf("error parsing event time %q: %w", ts, err)
		}

		if rules != "" {
			ev.Rules = strings.Split(rules, ",")
		}

		events = append(events, ev)
	}

	return events, rows.Err()
}
