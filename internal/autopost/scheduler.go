// Package autopost runs the recurring publish loop for the agent.
package autopost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/moltdash/internal/content"
	"github.com/ashureev/moltdash/internal/credentials"
	"github.com/ashureev/moltdash/internal/domain"
	"github.com/ashureev/moltdash/internal/moltbook"
	"github.com/google/uuid"
)

// DefaultInterval is the publish period.
const DefaultInterval = 40 * time.Minute

const recordTimeout = 5 * time.Second

// ContentSource supplies the next post.
type ContentSource interface {
	GetContent(ctx context.Context, categories []string) (content.Item, error)
}

// Publisher creates a post upstream.
type Publisher interface {
	CreatePost(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
}

// Recorder persists tick outcomes.
type Recorder interface {
	Record(ctx context.Context, entry domain.HistoryEntry) error
}

// Notifier receives scheduler events.
type Notifier interface {
	Notify(event domain.Event)
}

// Ticker is the subset of *time.Ticker the scheduler uses.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Options configures a Scheduler. Source and Publisher are required for ticks to publish.
type Options struct {
	Interval    time.Duration
	Categories  []string
	Credentials credentials.Credentials
	Source      ContentSource
	Publisher   Publisher
	Recorder    Recorder
	Notifier    Notifier
	Logger      *slog.Logger
	NewTicker   func(time.Duration) Ticker
	Now         func() time.Time
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	Running        bool
	AlreadyRunning bool // set by Start when no new ticker was created
	Interval       time.Duration
	LastRunAt      *time.Time
}

// IntervalMinutes returns the interval in whole minutes.
func (s Status) IntervalMinutes() int {
	return int(s.Interval / time.Minute)
}

// Scheduler owns at most one ticker. The zero value is not usable; call New.
type Scheduler struct {
	opts Options
	log  *slog.Logger

	mu        sync.Mutex
	stopCh    chan struct{} // non-nil while active
	loopDone  chan struct{}
	lastRunAt *time.Time

	busy     atomic.Bool
	inflight sync.WaitGroup
}

// New creates an inactive scheduler.
func New(opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.NewTicker == nil {
		opts.NewTicker = newTimeTicker
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scheduler{opts: opts, log: opts.Logger}
}

// Start activates the ticker. Calling it while active creates nothing and reports AlreadyRunning.
func (s *Scheduler) Start() Status {
	s.mu.Lock()
	if s.stopCh != nil {
		st := s.statusLocked()
		s.mu.Unlock()
		st.AlreadyRunning = true
		return st
	}

	ticker := s.opts.NewTicker(s.opts.Interval)
	s.stopCh = make(chan struct{})
	s.loopDone = make(chan struct{})
	go s.loop(ticker, s.stopCh, s.loopDone)
	st := s.statusLocked()
	s.mu.Unlock()

	s.log.Info("Auto-post started", "interval", s.opts.Interval)
	s.notify(domain.Event{Type: domain.EventStarted, Message: "Auto-Post started"})
	return st
}

// Stop cancels the ticker. A tick already in flight is not cancelled and may still
// update the last run time.
func (s *Scheduler) Stop() Status {
	s.mu.Lock()
	if s.stopCh == nil {
		st := s.statusLocked()
		s.mu.Unlock()
		return st
	}
	close(s.stopCh)
	done := s.loopDone
	s.stopCh = nil
	s.loopDone = nil
	st := s.statusLocked()
	s.mu.Unlock()

	<-done
	s.log.Info("Auto-post stopped")
	s.notify(domain.Event{Type: domain.EventStopped, Message: "Auto-Post stopped"})
	return st
}

// Status reports the current state without side effects.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Shutdown stops the scheduler and waits for an in-flight tick, bounded by ctx.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.Stop()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for in-flight auto-post: %w", ctx.Err())
	}
}

func (s *Scheduler) statusLocked() Status {
	st := Status{
		Running:  s.stopCh != nil,
		Interval: s.opts.Interval,
	}
	if s.lastRunAt != nil {
		t := *s.lastRunAt
		st.LastRunAt = &t
	}
	return st
}

func (s *Scheduler) loop(ticker Ticker, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C():
			s.fire()
		case <-stop:
			return
		}
	}
}

// fire starts a tick unless the previous one is still running.
func (s *Scheduler) fire() {
	if !s.busy.CompareAndSwap(false, true) {
		s.log.Warn("Auto-post tick skipped, previous tick still in flight")
		s.notify(domain.Event{Type: domain.EventSkipped, Message: "previous tick still in flight"})
		return
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer s.busy.Store(false)
		s.tick(context.Background())
	}()
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.opts.Credentials.Present() || s.opts.Source == nil || s.opts.Publisher == nil {
		return
	}

	item, err := s.opts.Source.GetContent(ctx, s.opts.Categories)
	if err != nil {
		s.log.Error("Auto-post failed to obtain content", "error", err)
		s.finish(item, err)
		return
	}

	s.log.Info("Auto-post publishing", "submolt", item.Submolt, "title", item.Title, "generated", item.Generated)

	body, err := json.Marshal(item)
	if err != nil {
		s.finish(item, fmt.Errorf("encode post: %w", err))
		return
	}

	if _, err := s.opts.Publisher.CreatePost(ctx, body); err != nil {
		attrs := []any{"error", err, "submolt", item.Submolt}
		var apiErr *moltbook.APIError
		if errors.As(err, &apiErr) && apiErr.Details != nil {
			attrs = append(attrs, "details", string(apiErr.Details))
		}
		s.log.Error("Auto-post publish failed", attrs...)
		s.finish(item, err)
		return
	}

	now := s.opts.Now()
	s.mu.Lock()
	s.lastRunAt = &now
	s.mu.Unlock()

	s.log.Info("Auto-post published", "submolt", item.Submolt)
	s.finish(item, nil)
}

// finish reports a tick outcome to the recorder and notifier.
func (s *Scheduler) finish(item content.Item, tickErr error) {
	entry := domain.HistoryEntry{
		ID:        uuid.NewString(),
		Source:    domain.SourceAutoPost,
		Submolt:   item.Submolt,
		Title:     item.Title,
		Generated: item.Generated,
		Success:   tickErr == nil,
		CreatedAt: s.opts.Now(),
	}
	event := domain.Event{Type: domain.EventPosted, Submolt: item.Submolt, Title: item.Title, At: entry.CreatedAt}
	if tickErr != nil {
		entry.Error = tickErr.Error()
		event.Type = domain.EventFailed
		event.Message = tickErr.Error()
	}

	if s.opts.Recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := s.opts.Recorder.Record(ctx, entry); err != nil {
			s.log.Warn("Failed to record auto-post history", "error", err)
		}
	}
	s.notify(event)
}

func (s *Scheduler) notify(event domain.Event) {
	if s.opts.Notifier == nil {
		return
	}
	if event.At.IsZero() {
		event.At = s.opts.Now()
	}
	s.opts.Notifier.Notify(event)
}
