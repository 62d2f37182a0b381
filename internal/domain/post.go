// Package domain contains core domain types for the dashboard.
package domain

import (
	"time"
)

// PostSource identifies what triggered a publish attempt.
type PostSource string

const (
	SourceAutoPost PostSource = "autopost"
	SourceManual   PostSource = "manual"
)

// HistoryEntry is one publish attempt in the audit log.
type HistoryEntry struct {
	ID        string     `json:"id"`
	Source    PostSource `json:"source"`
	Submolt   string     `json:"submolt"`
	Title     string     `json:"title"`
	Generated bool       `json:"generated"`
	Success   bool       `json:"success"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// EventType categorizes scheduler events pushed to dashboards.
type EventType string

const (
	EventStarted EventType = "started"
	EventStopped EventType = "stopped"
	EventPosted  EventType = "posted"
	EventFailed  EventType = "failed"
	EventSkipped EventType = "skipped"
)

// Event is a scheduler state change or tick outcome.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message,omitempty"`
	Submolt string    `json:"submolt,omitempty"`
	Title   string    `json:"title,omitempty"`
	At      time.Time `json:"at"`
}
