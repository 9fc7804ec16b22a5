package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/vish/internal/domain"
	"github.com/ashureev/vish/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeAttempts  = 3
	writeBaseDelay = 100 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex // Serializes writers to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, id);
	CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);

	CREATE TABLE IF NOT EXISTS handoffs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		from_role TEXT NOT NULL,
		to_role TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_handoffs_session ON handoffs(session_id, id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// AppendTurn stores one turn.
func (s *SQLiteStore) AppendTurn(ctx context.Context, sessionID string, turn domain.Turn) error {
	err := s.write(ctx, `INSERT INTO turns (session_id, role, text, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, string(turn.Role), turn.Text, turn.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

// ListTurns returns archived turns oldest first.
func (s *SQLiteStore) ListTurns(ctx context.Context, sessionID string, limit int) ([]domain.Turn, error) {
	query := `SELECT role, text, created_at FROM turns WHERE session_id = ? ORDER BY id`
	args := []interface{}{sessionID}
	if limit > 0 {
		// Keep the newest rows but return them oldest first.
		query = `SELECT role, text, created_at FROM (
			SELECT id, role, text, created_at FROM turns WHERE session_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	turns := []domain.Turn{}
	for rows.Next() {
		var role string
		var t domain.Turn
		var createdAt int64
		if err := rows.Scan(&role, &t.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		t.Role = domain.Role(role)
		t.Timestamp = time.UnixMilli(createdAt).UTC()
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

// RecordHandoff stores a persona change.
func (s *SQLiteStore) RecordHandoff(ctx context.Context, sessionID string, h domain.HandoffRecord) error {
	err := s.write(ctx, `INSERT INTO handoffs (session_id, from_role, to_role, reason, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, h.FromRole, h.ToRole, h.Reason, h.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("record handoff: %w", err)
	}
	return nil
}

// ListHandoffs returns persona changes oldest first.
func (s *SQLiteStore) ListHandoffs(ctx context.Context, sessionID string) ([]domain.HandoffRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT from_role, to_role, reason, created_at FROM handoffs WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query handoffs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []domain.HandoffRecord{}
	for rows.Next() {
		var h domain.HandoffRecord
		var createdAt int64
		if err := rows.Scan(&h.FromRole, &h.ToRole, &h.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scan handoff row: %w", err)
		}
		h.Timestamp = time.UnixMilli(createdAt).UTC()
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate handoffs: %w", err)
	}
	return out, nil
}

// DeleteOlderThan removes archived rows created before cutoff.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	threshold := cutoff.UnixMilli()
	var removed int64
	err := shared.RetryOnConflict(ctx, writeAttempts, writeBaseDelay, func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		res, err := s.db.ExecContext(ctx, `DELETE FROM turns WHERE created_at < ?`, threshold)
		if err != nil {
			return err
		}
		if removed, err = res.RowsAffected(); err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, `DELETE FROM handoffs WHERE created_at < ?`, threshold)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("delete expired transcripts: %w", err)
	}
	return removed, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

func (s *SQLiteStore) write(ctx context.Context, query string, args ...interface{}) error {
	return shared.RetryOnConflict(ctx, writeAttempts, writeBaseDelay, func() error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}
