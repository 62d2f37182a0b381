package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/moltdash/internal/domain"
	"github.com/ashureev/moltdash/internal/moltbook"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxRequestBodySize caps create-post and translate bodies (1MB).
const maxRequestBodySize = 1 << 20

// RegisterRoutes registers the dashboard API. limit wraps the endpoints that spend upstream quota.
func (h *Handler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/debug", h.Debug)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireCredentials)

			r.Get("/feed", h.Feed)
			r.Get("/me", h.Me)
			r.Get("/dms", h.DMs)
			r.Get("/post/{id}", h.Post)
			r.With(limit).Post("/post", h.CreatePost)
			r.With(limit).Post("/translate", h.Translate)

			r.Route("/autopost", func(r chi.Router) {
				r.Post("/start", h.StartAutoPost)
				r.Post("/stop", h.StopAutoPost)
				r.Get("/status", h.AutoPostStatus)
				r.Get("/history", h.AutoPostHistory)
			})
		})
	})
}

// Feed returns the newest posts.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	body, err := h.remote.Feed(r.Context())
	if err != nil {
		upstreamError(w, "feed", err, false)
		return
	}
	Raw(w, http.StatusOK, body)
}

// Me returns the agent profile.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	body, err := h.remote.Me(r.Context())
	if err != nil {
		upstreamError(w, "me", err, false)
		return
	}
	Raw(w, http.StatusOK, body)
}

// DMs returns the direct-message check.
func (h *Handler) DMs(w http.ResponseWriter, r *http.Request) {
	body, err := h.remote.CheckDMs(r.Context())
	if err != nil {
		upstreamError(w, "dms", err, false)
		return
	}
	Raw(w, http.StatusOK, body)
}

// Post returns one post and its comments.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	body, err := h.remote.Post(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		upstreamError(w, "post", err, false)
		return
	}
	Raw(w, http.StatusOK, body)
}

// CreatePost forwards the request body to the upstream create-post call.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	if err != nil {
		Error(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	submolt, title := postSummary(doc)

	body, err := h.remote.CreatePost(r.Context(), json.RawMessage(data))
	h.recordManual(r, submolt, title, err)
	if err != nil {
		upstreamError(w, "create post", err, true)
		return
	}
	Raw(w, http.StatusOK, body)
}

// Translate returns data with its text fields translated into targetLang.
func (h *Handler) Translate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data       json.RawMessage `json:"data"`
		TargetLang string          `json:"targetLang"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "Missing data or targetLang")
		return
	}
	if len(req.Data) == 0 || string(req.Data) == "null" || req.TargetLang == "" {
		Error(w, http.StatusBadRequest, "Missing data or targetLang")
		return
	}
	if h.translator == nil {
		Error(w, http.StatusInternalServerError, "Translation failed: no translation provider configured")
		return
	}

	out, err := h.translator.Translate(r.Context(), req.Data, req.TargetLang)
	if err != nil {
		slog.Error("Translation failed", "error", err, "target_lang", req.TargetLang)
		Error(w, http.StatusInternalServerError, "Translation failed: "+err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]json.RawMessage{"translatedData": out})
}

// StartAutoPost begins recurring posting.
func (h *Handler) StartAutoPost(w http.ResponseWriter, r *http.Request) {
	st := h.scheduler.Start()
	message := "Auto-Post started"
	if st.AlreadyRunning {
		message = "Already running"
	}
	JSON(w, http.StatusOK, map[string]string{"status": "active", "message": message})
}

// StopAutoPost halts recurring posting.
func (h *Handler) StopAutoPost(w http.ResponseWriter, r *http.Request) {
	h.scheduler.Stop()
	JSON(w, http.StatusOK, map[string]string{"status": "inactive", "message": "Auto-Post stopped"})
}

// AutoPostStatus reports scheduler state.
func (h *Handler) AutoPostStatus(w http.ResponseWriter, r *http.Request) {
	st := h.scheduler.Status()
	status := "inactive"
	if st.Running {
		status = "active"
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":           status,
		"interval_minutes": st.IntervalMinutes(),
		"last_post":        st.LastRunAt,
	})
}

// AutoPostHistory lists recent publish attempts.
func (h *Handler) AutoPostHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		JSON(w, http.StatusOK, map[string]interface{}{"entries": []domain.HistoryEntry{}})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to read post history", "error", err)
		Error(w, http.StatusInternalServerError, "failed to read post history")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// Debug reports liveness and whether credentials were loaded. It never requires credentials.
func (h *Handler) Debug(w http.ResponseWriter, r *http.Request) {
	var agentName interface{}
	if h.creds.AgentName != "" {
		agentName = h.creds.AgentName
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"status":      "online",
		"has_api_key": h.creds.Present(),
		"agent_name":  agentName,
		"timestamp":   h.now().UTC().Format(time.RFC3339Nano),
	})
}

func (h *Handler) recordManual(r *http.Request, submolt, title string, postErr error) {
	if h.history == nil {
		return
	}
	entry := domain.HistoryEntry{
		ID:        uuid.NewString(),
		Source:    domain.SourceManual,
		Submolt:   submolt,
		Title:     title,
		Success:   postErr == nil,
		CreatedAt: h.now(),
	}
	if postErr != nil {
		entry.Error = postErr.Error()
	}
	if err := h.history.Record(r.Context(), entry); err != nil {
		slog.Warn("Failed to record manual post", "error", err)
	}
}

// postSummary reads the history fields from a create-post body. The body is
// forwarded as-is, so fields of any other shape are left blank.
func postSummary(doc interface{}) (submolt, title string) {
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return "", ""
	}
	submolt, _ = obj["submolt"].(string)
	title, _ = obj["title"].(string)
	return submolt, title
}

// upstreamError maps a remote failure to a 500 with the upstream message.
func upstreamError(w http.ResponseWriter, op string, err error, withDetails bool) {
	slog.Error("Upstream request failed", "op", op, "error", err)

	resp := map[string]interface{}{"error": err.Error()}
	var apiErr *moltbook.APIError
	if withDetails && errors.As(err, &apiErr) && apiErr.Details != nil {
		resp["details"] = apiErr.Details
	}
	JSON(w, http.StatusInternalServerError, resp)
}
