// Package store persists session interaction events in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/KaramelBytes/co2lens-cli/internal/hero"
)

// ErrEmptySession is returned when an event is appended without a session id.
var ErrEmptySession = errors.New("session id is required")

// Store is an append-only event log keyed by session id.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serializes writers and keeps an in-memory db alive.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	logger.Debug("event store ready", zap.String("db_path", path))
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		at TEXT NOT NULL,
		payload TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// AppendEvent records e for the session. Missing ids and timestamps are filled in.
func (s *Store) AppendEvent(ctx context.Context, sessionID string, e hero.Event) (hero.Event, error) {
	out, err := s.AppendEvents(ctx, sessionID, []hero.Event{e})
	if err != nil {
		return hero.Event{}, err
	}
	return out[0], nil
}

// AppendEvents records events atomically, in order.
func (s *Store) AppendEvents(ctx context.Context, sessionID string, events []hero.Event) ([]hero.Event, error) {
	if sessionID == "" {
		return nil, ErrEmptySession
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	out := make([]hero.Event, 0, len(events))
	for _, e := range events {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.At.IsZero() {
			e.At = time.Now().UTC()
		}
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal event: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO events (id, session_id, kind, at, payload) VALUES (?, ?, ?, ?, ?)`,
			e.ID, sessionID, string(e.Kind), e.At.Format(time.RFC3339Nano), string(payload),
		); err != nil {
			return nil, fmt.Errorf("insert event: %w", err)
		}
		out = append(out, e)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit events: %w", err)
	}
	s.logger.Debug("events appended", zap.String("session_id", sessionID), zap.Int("count", len(out)))
	return out, nil
}

// Events returns the session's events in insertion order.
func (s *Store) Events(ctx context.Context, sessionID string) ([]hero.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM events WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []hero.Event{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var e hero.Event
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			s.logger.Warn("skipping unreadable event", zap.String("session_id", sessionID), zap.Error(err))
			continue
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// Progress folds the session's events into gamification progress.
func (s *Store) Progress(ctx context.Context, sessionID string) (hero.Progress, error) {
	events, err := s.Events(ctx, sessionID)
	if err != nil {
		return hero.Progress{}, err
	}
	return hero.Fold(events), nil
}

// CountByKind returns how many events of each kind the session has.
func (s *Store) CountByKind(ctx context.Context, sessionID string) (map[hero.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM events WHERE session_id = ? GROUP BY kind`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()
	out := map[hero.Kind]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[hero.Kind(kind)] = n
	}
	return out, rows.Err()
}

// DeleteSession drops every event of the session and reports how many were removed.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("delete events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	s.logger.Info("session events deleted", zap.String("session_id", sessionID), zap.Int64("count", n))
	return n, nil
}
