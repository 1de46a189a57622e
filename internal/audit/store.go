// Package audit persists a log of handled events for operator review.
// This is an operational record, not conversation storage: transcripts
// live only in memory.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry is one handled-event record.
type Entry struct {
	ID         string
	SessionKey string
	ChannelID  string
	UserID     string
	Kind       string // message | mention
	Branch     string // plain | retrieval
	Outcome    string // ok | fallback
	Error      string
	ReplyLen   int
	CreatedAt  time.Time
}

// Store writes entries to SQLite. A nil *Store is a no-op, so callers can
// hold one unconditionally and leave auditing disabled by config.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id          TEXT PRIMARY KEY,
		session_key TEXT NOT NULL,
		channel_id  TEXT NOT NULL,
		user_id     TEXT NOT NULL,
		kind        TEXT NOT NULL,
		branch      TEXT NOT NULL,
		outcome     TEXT NOT NULL,
		error       TEXT,
		reply_len   INTEGER DEFAULT 0,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_events_time ON events(created_at);
	CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_key, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts an entry. Failures are logged, never returned: the audit
// trail must not break dispatch.
func (s *Store) Record(ctx context.Context, e Entry) {
	if s == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, session_key, channel_id, user_id, kind, branch, outcome, error, reply_len, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionKey, e.ChannelID, e.UserID, e.Kind, e.Branch, e.Outcome, e.Error, e.ReplyLen, e.CreatedAt,
	)
	if err != nil {
		s.logger.Warn("audit record failed", "err", err)
	}
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_key, channel_id, user_id, kind, branch, outcome, COALESCE(error, ''), reply_len, created_at
		 FROM events ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SessionKey, &e.ChannelID, &e.UserID, &e.Kind, &e.Branch,
			&e.Outcome, &e.Error, &e.ReplyLen, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
