package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/moltdash/internal/domain"
	"github.com/google/uuid"
)

// MaxRecent caps how many history rows one query returns.
const MaxRecent = 100

// SQLiteStore implements HistoryRepository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ HistoryRepository = (*SQLiteStore)(nil)

// NewSQLite creates a new SQLite-backed history repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
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
	CREATE TABLE IF NOT EXISTS post_history (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		submolt TEXT NOT NULL,
		title TEXT NOT NULL,
		generated INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL,
		error TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_post_history_created ON post_history(created_at);
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

// Record appends a history entry, retrying briefly on SQLITE_BUSY.
func (s *SQLiteStore) Record(ctx context.Context, entry domain.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
	INSERT INTO post_history (id, source, submolt, title, generated, success, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	var errText interface{}
	if entry.Error != "" {
		errText = entry.Error
	}

	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		_, err := s.db.ExecContext(ctx, query,
			entry.ID, string(entry.Source), entry.Submolt, entry.Title,
			entry.Generated, entry.Success, errText, entry.CreatedAt.UnixMilli(),
		)
		if err == nil {
			return nil
		}

		if isConflict(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // exponential backoff: 50ms, 100ms
			slog.Debug("History insert hit a locked database, retrying",
				"id", entry.ID,
				"attempt", i+1,
				"delay", delay)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return fmt.Errorf("record history: %w", ctx.Err())
			}
		}

		return fmt.Errorf("record history: %w", err)
	}

	return nil
}

// Recent returns up to limit entries, newest first. limit is clamped to [1, MaxRecent].
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}

	query := `
		SELECT id, source, submolt, title, generated, success, error, created_at
		FROM post_history ORDER BY created_at DESC, rowid DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close history rows", "error", closeErr)
		}
	}()

	entries := make([]domain.HistoryEntry, 0, limit)
	for rows.Next() {
		var e domain.HistoryEntry
		var source string
		var errText sql.NullString
		var createdAt int64

		if err := rows.Scan(
			&e.ID, &source, &e.Submolt, &e.Title,
			&e.Generated, &e.Success, &errText, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}

		e.Source = domain.PostSource(source)
		e.Error = errText.String
		e.CreatedAt = time.UnixMilli(createdAt)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	return entries, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
