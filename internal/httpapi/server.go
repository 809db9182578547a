// Package httpapi exposes the editing service over HTTP: session
// lifecycle, token-range and instruction edits, version navigation,
// audio export, and a websocket event stream.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/voxedit/voxedit/internal/config"
	"github.com/voxedit/voxedit/internal/edit"
	"github.com/voxedit/voxedit/internal/history"
	"github.com/voxedit/voxedit/internal/observability"
	"github.com/voxedit/voxedit/internal/pipeline"
	"github.com/voxedit/voxedit/internal/store"
)

type Server struct {
	cfg       config.Config
	registry  *store.Registry
	tokenizer *pipeline.Tokenizer
	applier   store.EditApplier
	resolver  *edit.Resolver
	history   history.Store
	metrics   *observability.Metrics
	events    *EventHub
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, registry *store.Registry, tokenizer *pipeline.Tokenizer, applier store.EditApplier, resolver *edit.Resolver, hist history.Store, metrics *observability.Metrics, events *EventHub) *Server {
	if events == nil {
		events = NewEventHub(metrics)
	}
	return &Server{
		cfg:       cfg,
		registry:  registry,
		tokenizer: tokenizer,
		applier:   applier,
		resolver:  resolver,
		history:   hist,
		metrics:   metrics,
		events:    events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up. Non-browser clients
				// omit Origin and are allowed.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

// Events returns the hub so the pipeline can publish stage progress.
func (s *Server) Events() *EventHub { return s.events }

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/sessions", s.handleCreateSession)
	r.Get("/v1/sessions", s.handleListSessions)
	r.Get("/v1/sessions/{id}", s.handleGetSession)
	r.Delete("/v1/sessions/{id}", s.handleDeleteSession)
	r.Get("/v1/sessions/{id}/audio", s.handleGetAudio)
	r.Get("/v1/sessions/{id}/versions", s.handleListVersions)
	r.Get("/v1/sessions/{id}/history", s.handleListHistory)
	r.Post("/v1/sessions/{id}/edits", s.handleApplyEdit)
	r.Post("/v1/sessions/{id}/edits/batch", s.handleApplyBatch)
	r.Post("/v1/sessions/{id}/instruction", s.handleInstructionEdit)
	r.Post("/v1/sessions/{id}/undo", s.handleUndo)
	r.Post("/v1/sessions/{id}/redo", s.handleRedo)
	r.Post("/v1/sessions/{id}/restore", s.handleRestore)
	r.Get("/v1/sessions/{id}/events", s.handleSessionEvents)

	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"instruction_model":  s.resolver != nil,
		"sessions":           s.registry.Len(),
		"history_store_mode": s.historyStoreMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"generated_at": "",
			"window_size":  0,
			"stages":       []any{},
		})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.StageSnapshot())
}

func (s *Server) historyStoreMode() string {
	switch s.history.(type) {
	case nil:
		return "disabled"
	case *history.InMemoryStore:
		return "in-memory"
	default:
		return "postgres"
	}
}

// session pulls the session id from the route and resolves the store,
// writing the error response itself on failure.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*store.Store, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return nil, false
	}
	st, err := s.registry.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return nil, false
	}
	return st, true
}

// respondStoreError maps store sentinels onto status codes.
func respondStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrAtOldest):
		respondError(w, http.StatusConflict, "at_oldest_version", err.Error())
	case errors.Is(err, store.ErrAtNewest):
		respondError(w, http.StatusConflict, "at_newest_version", err.Error())
	case errors.Is(err, store.ErrVersionNotFound):
		respondError(w, http.StatusNotFound, "version_not_found", err.Error())
	case errors.Is(err, store.ErrNotInitialized):
		respondError(w, http.StatusConflict, "session_not_ready", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "edit_failed", err.Error())
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
