package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/askd/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	sqliteMaxRetries = 3
	sqliteRetryDelay = 50 * time.Millisecond
)

// SQLiteBackend stores documents as rows of a single SQLite table.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the SQLite database at dbPath.
func NewSQLite(dbPath string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	b := newSQLiteWithDB(db)
	if err := b.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return b, nil
}

func newSQLiteWithDB(db *sql.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

func (s *SQLiteBackend) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS documents (
		name TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Read implements Backend.
func (s *SQLiteBackend) Read(ctx context.Context, name string) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE name = ?`, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", name, err)
	}
	return []byte(body), nil
}

// Write implements Backend. SQLITE_BUSY failures are retried with
// exponential backoff.
func (s *SQLiteBackend) Write(ctx context.Context, name string, body []byte) error {
	query := `
	INSERT INTO documents (name, body, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		body = excluded.body,
		updated_at = excluded.updated_at`

	var err error
	for i := 0; i < sqliteMaxRetries; i++ {
		_, err = s.db.ExecContext(ctx, query, name, string(body), time.Now().Unix())
		if err == nil {
			return nil
		}
		if !shared.IsSQLiteConflictError(err) || i == sqliteMaxRetries-1 {
			break
		}
		delay := sqliteRetryDelay * time.Duration(1<<i) // 50ms, 100ms
		slog.Debug("Document write hit SQLITE_BUSY, retrying",
			"document", name,
			"attempt", i+1,
			"delay", delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("write document %s: %w", name, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("write document %s: %w", name, err)
}

// Ping verifies database connectivity.
func (s *SQLiteBackend) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteBackend) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
