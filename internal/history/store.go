// Package history records every print operation in a local SQLite file so
// the API can answer "what did I print and did it arrive".
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db *sql.DB
}

// Record is one completed print operation.
type Record struct {
	ID         int64
	TicketID   string
	Kind       string
	Title      string
	Outcome    string
	Error      string
	DurationMS int64
	CreatedAt  time.Time
}

// Stats summarizes the history for the status screen.
type Stats struct {
	Today     int
	ByOutcome map[string]int
	Total     int
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS print_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ticket_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL,
			error_message TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_created ON print_history(created_at)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

// Add inserts a record and returns its id.
func (s *Store) Add(r *Record) (int64, error) {
	res, err := s.db.Exec(insertRecord,
		r.TicketID, r.Kind, r.Title, r.Outcome, r.Error, r.DurationMS)
	if err != nil {
		return 0, fmt.Errorf("failed to insert history record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get record id: %w", err)
	}
	return id, nil
}

// Get returns a single record by id.
func (s *Store) Get(id int64) (*Record, error) {
	r := &Record{}
	err := s.db.QueryRow(getRecordByID, id).Scan(
		&r.ID, &r.TicketID, &r.Kind, &r.Title, &r.Outcome,
		&r.Error, &r.DurationMS, &r.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("history record not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query history record: %w", err)
	}
	return r, nil
}

// List returns records newest first.
func (s *Store) List(limit, offset int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(listRecords, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		r := &Record{}
		if err := rows.Scan(
			&r.ID, &r.TicketID, &r.Kind, &r.Title, &r.Outcome,
			&r.Error, &r.DurationMS, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Stats aggregates outcome counts and today's volume.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{ByOutcome: make(map[string]int)}

	rows, err := s.db.Query(countByOutcome)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcome counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("failed to scan outcome count: %w", err)
		}
		stats.ByOutcome[outcome] = count
		stats.Total += count
	}

	if err := s.db.QueryRow(countToday).Scan(&stats.Today); err != nil {
		return nil, fmt.Errorf("failed to count today's records: %w", err)
	}

	return stats, nil
}

// PruneOlderThan deletes records older than the given age and returns how
// many were removed.
func (s *Store) PruneOlderThan(age time.Duration) (int64, error) {
	// created_at is stored as UTC text by CURRENT_TIMESTAMP; bind the
	// cutoff in the same shape so the comparison is well-defined.
	cutoff := time.Now().UTC().Add(-age).Format("2006-01-02 15:04:05")
	res, err := s.db.Exec(pruneBefore, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

// GetMeta returns the stored value for key, or sql.ErrNoRows if unset.
func (s *Store) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow(getMeta, key).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMeta stores a key/value pair, replacing any previous value.
func (s *Store) SetMeta(key, value string) error {
	if _, err := s.db.Exec(setMeta, key, value); err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}
