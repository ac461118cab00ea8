package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/happyprime/alertbar/pkg/banner"
	"github.com/happyprime/alertbar/pkg/expiry"
	"github.com/happyprime/alertbar/pkg/levels"
	"github.com/happyprime/alertbar/pkg/model"
	"github.com/happyprime/alertbar/pkg/storage"
)

// Server exposes the banner read path and the authoring/admin write
// paths over HTTP. After every response the request-end hook of the
// expiration scheduler runs, which is what keeps the lazy sweep armed.
type Server struct {
	svc       *banner.Service
	registry  *levels.Registry
	scheduler *expiry.Scheduler
	sweeper   *expiry.Sweeper
	mux       *http.ServeMux
	logger    *slog.Logger
}

// NewServer creates the API server.
func NewServer(svc *banner.Service, registry *levels.Registry, scheduler *expiry.Scheduler, sweeper *expiry.Sweeper, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:       svc,
		registry:  registry,
		scheduler: scheduler,
		sweeper:   sweeper,
		mux:       http.NewServeMux(),
		logger:    logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/banner", s.handleBanner)
	s.mux.HandleFunc("POST /api/v1/alerts", s.handleCreateAlert)
	s.mux.HandleFunc("PUT /api/v1/alerts/{id}", s.handleScheduleAlert)
	s.mux.HandleFunc("DELETE /api/v1/alerts/{id}", s.handleDeleteAlert)
	s.mux.HandleFunc("GET /api/v1/levels", s.handleListLevels)
	s.mux.HandleFunc("POST /api/v1/levels", s.handleCreateLevel)
	s.mux.HandleFunc("PUT /api/v1/levels/{id}/default", s.handleSetDefault)
	s.mux.HandleFunc("DELETE /api/v1/levels/{id}", s.handleDeleteLevel)
	s.mux.HandleFunc("POST /api/v1/sweep", s.handleSweep)
}

// Handler returns the HTTP handler, wrapped so the expiration
// scheduler's request-end check runs after every request.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mux.ServeHTTP(w, r)
		if s.scheduler != nil {
			s.scheduler.OnRequestEnd()
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBanner(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	home := r.URL.Query().Get("home") == "1" || r.URL.Query().Get("home") == "true"
	snap := s.svc.GetActiveAlertForDisplay(ctx, home)
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var alert model.AlertRecord
	if err := json.NewDecoder(r.Body).Decode(&alert); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.svc.SaveAlert(ctx, &alert); err != nil {
		s.fail(w, "save alert", err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

// scheduleRequest is the authoring write path's payload. A null field
// leaves the corresponding value untouched; the clear flags empty it.
type scheduleRequest struct {
	DisplayThrough      *time.Time `json:"display_through"`
	ClearDisplayThrough bool       `json:"clear_display_through"`
	LevelID             *string    `json:"level_id"`
	ClearLevel          bool       `json:"clear_level"`
}

func (s *Server) handleScheduleAlert(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := s.svc.ScheduleAlert(ctx, r.PathValue("id"), banner.ScheduleUpdate{
		DisplayThrough:      req.DisplayThrough,
		ClearDisplayThrough: req.ClearDisplayThrough,
		LevelID:             req.LevelID,
		ClearLevel:          req.ClearLevel,
	})
	if err != nil {
		s.fail(w, "schedule alert", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAlert(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := s.svc.DeleteAlert(ctx, r.PathValue("id")); err != nil {
		s.fail(w, "delete alert", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	all, err := s.registry.List(ctx)
	if err != nil {
		s.fail(w, "list levels", err)
		return
	}
	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleCreateLevel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var level model.SeverityLevel
	if err := json.NewDecoder(r.Body).Decode(&level); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.registry.Create(ctx, &level); err != nil {
		s.fail(w, "create level", err)
		return
	}
	writeJSON(w, http.StatusCreated, level)
}

func (s *Server) handleSetDefault(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := s.registry.SetDefault(ctx, r.PathValue("id")); err != nil {
		s.fail(w, "set default level", err)
		return
	}
	s.svc.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteLevel(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := s.registry.Delete(ctx, r.PathValue("id")); err != nil {
		s.fail(w, "delete level", err)
		return
	}
	s.svc.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := s.sweeper.Sweep(ctx); err != nil {
		s.fail(w, "sweep", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.logger.Error(op, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
