// Package api exposes the read-only query surface over persisted storm
// state, history, and regions, plus the service health endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/storm-advisory-ingest/internal/domain"
)

// StormReader is the query surface the API serves from. The ingestion
// pipeline is the only writer; this server never mutates anything.
type StormReader interface {
	GetStormState(ctx context.Context, stormID string) (*domain.StormState, error)
	ListStorms(ctx context.Context, f domain.StormFilter) ([]domain.StormState, int, error)
	ListHistory(ctx context.Context, stormID string, limit, offset int) ([]domain.HistoryEntry, error)
}

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Server exposes the query API plus health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	reader     StormReader
	logger     *slog.Logger
}

// NewServer creates the HTTP server with all routes mounted.
func NewServer(addr string, reader StormReader, ready ReadinessChecker, logger *slog.Logger) *Server {
	s := &Server{
		reader: reader,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", handleReady(ready))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/storms", func(r chi.Router) {
		r.Get("/", s.handleListStorms)
		r.Get("/active", s.handleActiveStorms)
		r.Get("/name/{stormName}", s.handleStormsByName)
		r.Get("/{stormID}", s.handleStormByID)
		r.Get("/{stormID}/history", s.handleStormHistory)
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// listResponse is the JSON envelope for collection endpoints.
type listResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
	Data    any  `json:"data"`
}

type itemResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) handleListStorms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.StormFilter{
		Status:       q.Get("status"),
		StormType:    q.Get("storm_type"),
		RegionID:     q.Get("region"),
		Season:       queryInt(q.Get("season"), 0),
		MinWindSpeed: queryInt(q.Get("min_wind_speed"), 0),
		Limit:        clampLimit(queryInt(q.Get("limit"), 100)),
		Offset:       queryInt(q.Get("offset"), 0),
	}

	storms, total, err := s.reader.ListStorms(r.Context(), filter)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Success: true, Count: total, Data: stormsOrEmpty(storms)})
}

func (s *Server) handleActiveStorms(w http.ResponseWriter, r *http.Request) {
	filter := domain.StormFilter{
		Status: string(domain.StatusActive),
		Limit:  clampLimit(queryInt(r.URL.Query().Get("limit"), 100)),
	}

	storms, _, err := s.reader.ListStorms(r.Context(), filter)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Success: true, Count: len(storms), Data: stormsOrEmpty(storms)})
}

func (s *Server) handleStormByID(w http.ResponseWriter, r *http.Request) {
	stormID := chi.URLParam(r, "stormID")

	storm, err := s.reader.GetStormState(r.Context(), stormID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if storm == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "storm not found"})
		return
	}
	writeJSON(w, http.StatusOK, itemResponse{Success: true, Data: storm})
}

func (s *Server) handleStormsByName(w http.ResponseWriter, r *http.Request) {
	filter := domain.StormFilter{
		Name:  chi.URLParam(r, "stormName"),
		Limit: clampLimit(queryInt(r.URL.Query().Get("limit"), 100)),
	}

	storms, _, err := s.reader.ListStorms(r.Context(), filter)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if len(storms) == 0 {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no storms found"})
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Success: true, Count: len(storms), Data: storms})
}

func (s *Server) handleStormHistory(w http.ResponseWriter, r *http.Request) {
	stormID := chi.URLParam(r, "stormID")
	q := r.URL.Query()

	storm, err := s.reader.GetStormState(r.Context(), stormID)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if storm == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "storm not found"})
		return
	}

	history, err := s.reader.ListHistory(r.Context(), stormID,
		clampLimit(queryInt(q.Get("limit"), 100)), queryInt(q.Get("offset"), 0))
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if history == nil {
		history = []domain.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, listResponse{Success: true, Count: len(history), Data: history})
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("query failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
}

func stormsOrEmpty(storms []domain.StormState) []domain.StormState {
	if storms == nil {
		return []domain.StormState{}
	}
	return storms
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func clampLimit(n int) int {
	if n < 1 {
		return 100
	}
	if n > 1000 {
		return 1000
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
