// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/ashureev/moltdash/internal/domain"
)

// HistoryRepository persists the publish audit log.
//
// It is an append-only record of attempts. Scheduler state is never restored from it.
type HistoryRepository interface {
	// Record appends one publish attempt.
	Record(ctx context.Context, entry domain.HistoryEntry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
