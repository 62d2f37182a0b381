package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/moltdash/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []domain.HistoryEntry{
		{ID: "a", Source: domain.SourceAutoPost, Submolt: "coding", Title: "one", Success: true, CreatedAt: base},
		{ID: "b", Source: domain.SourceManual, Submolt: "general", Title: "two", Success: false, Error: "request failed with status code 429", CreatedAt: base.Add(time.Minute)},
		{ID: "c", Source: domain.SourceAutoPost, Submolt: "agents", Title: "three", Generated: true, Success: true, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record(%s) failed: %v", e.ID, err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("expected newest first [c b], got [%s %s]", got[0].ID, got[1].ID)
	}
	if !got[0].Generated || !got[0].Success {
		t.Errorf("expected generated successful entry, got %+v", got[0])
	}
	if got[1].Error == "" || got[1].Source != domain.SourceManual {
		t.Errorf("expected failed manual entry, got %+v", got[1])
	}
	if !got[1].CreatedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("unexpected created_at %v", got[1].CreatedAt)
	}
}

func TestRecordFillsDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Record(ctx, domain.HistoryEntry{Source: domain.SourceManual, Submolt: "random", Title: "t", Success: true}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 1 || got[0].ID == "" || got[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be filled, got %+v", got)
	}
}

func TestRecentClampsLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < MaxRecent+5; i++ {
		if err := s.Record(ctx, domain.HistoryEntry{ID: fmt.Sprint(i), Source: domain.SourceAutoPost, Submolt: "s", Title: "t"}); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := s.Recent(ctx, 1000)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != MaxRecent {
		t.Errorf("expected %d entries, got %d", MaxRecent, len(got))
	}
}

func TestHistoryRepository(t *testing.T) {
	var repo HistoryRepository = newTestStore(t)
	ctx := context.Background()

	if err := repo.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if err := repo.Record(ctx, domain.HistoryEntry{ID: "x", Source: domain.SourceManual, Submolt: "general", Title: "t"}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	got, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "x" {
		t.Errorf("expected entry x, got %+v", got)
	}
}

func TestIsConflict(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked"), true},
		{fmt.Errorf("exec: %w", errors.New("SQLITE_BUSY")), true},
		{errors.New("no such table"), false},
	}
	for _, tt := range tests {
		if got := isConflict(tt.err); got != tt.want {
			t.Errorf("isConflict(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
