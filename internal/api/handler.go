// Package api provides HTTP handlers for the dashboard API.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ashureev/moltdash/internal/autopost"
	"github.com/ashureev/moltdash/internal/credentials"
	"github.com/ashureev/moltdash/internal/domain"
)

// credentialsMissing is the fixed configuration-error message.
const credentialsMissing = "Agent credentials not loaded"

// Remote is the upstream Moltbook API.
type Remote interface {
	Feed(ctx context.Context) (json.RawMessage, error)
	Post(ctx context.Context, id string) (json.RawMessage, error)
	Me(ctx context.Context) (json.RawMessage, error)
	CheckDMs(ctx context.Context) (json.RawMessage, error)
	CreatePost(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
}

// Scheduler controls the auto-poster.
type Scheduler interface {
	Start() autopost.Status
	Stop() autopost.Status
	Status() autopost.Status
}

// Translator localizes JSON payloads.
type Translator interface {
	Translate(ctx context.Context, payload json.RawMessage, targetLang string) (json.RawMessage, error)
}

// History reads and appends the publish audit log.
type History interface {
	Record(ctx context.Context, entry domain.HistoryEntry) error
	Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
}

// Handler provides common handler utilities.
type Handler struct {
	creds      credentials.Credentials
	remote     Remote
	scheduler  Scheduler
	translator Translator
	history    History
	now        func() time.Time
}

// Deps bundles the collaborators of a Handler. Remote may be nil when credentials are absent;
// Translator and History are optional.
type Deps struct {
	Credentials credentials.Credentials
	Remote      Remote
	Scheduler   Scheduler
	Translator  Translator
	History     History
}

// NewHandler creates a new Handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		creds:      deps.Credentials,
		remote:     deps.Remote,
		scheduler:  deps.Scheduler,
		translator: deps.Translator,
		history:    deps.History,
		now:        time.Now,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Raw writes an already-encoded JSON body unchanged.
func Raw(w http.ResponseWriter, status int, body json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RequireCredentials rejects requests with 500 when no agent credentials were loaded.
func (h *Handler) RequireCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.creds.Present() || h.remote == nil {
			Error(w, http.StatusInternalServerError, credentialsMissing)
			return
		}
		next.ServeHTTP(w, r)
	})
}
