// Package api provides the HTTP monitoring API for the go-omnik daemon.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/resident-x/go-omnik/internal/config"
	"github.com/resident-x/go-omnik/internal/domain"
)

const defaultHistoryLimit = 100

// Server exposes the latest registry state and stored history over HTTP.
type Server struct {
	config    *config.Config
	server    *http.Server
	router    *mux.Router
	registry  *domain.StatusRegistry
	store     domain.ReadingStore
	logger    zerolog.Logger
	startTime time.Time
}

// NewServer creates a new HTTP API server. The store may be nil when
// persistence is disabled; history requests then return 404.
func NewServer(cfg *config.Config, registry *domain.StatusRegistry, store domain.ReadingStore, gatherer prometheus.Gatherer) *Server {
	router := mux.NewRouter()

	apiServer := &Server{
		config:    cfg,
		router:    router,
		registry:  registry,
		store:     store,
		logger:    log.With().Str("component", "api").Logger(),
		startTime: time.Now(),
	}

	apiServer.setupRoutes(gatherer)

	return apiServer
}

// setupRoutes configures all API endpoint handlers.
func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/inverters", s.handleListInverters).Methods("GET")
	api.HandleFunc("/inverters/{name}", s.handleGetInverter).Methods("GET")
	api.HandleFunc("/inverters/{name}/history", s.handleHistory).Methods("GET")

	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns the configured router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.API.Host, s.config.API.Port)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info().
			Str("host", s.config.API.Host).
			Int("port", s.config.API.Port).
			Msg("Starting HTTP API server")

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping HTTP API server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if s.server != nil {
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
	}

	return nil
}

// handleStatus returns daemon status information.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]interface{}{
		"status":        "ok",
		"uptime":        time.Since(s.startTime).String(),
		"inverterCount": len(s.registry.All()),
	}

	s.writeJSON(w, status, http.StatusOK)
}

// handleListInverters returns the latest state of every configured inverter.
func (s *Server) handleListInverters(w http.ResponseWriter, _ *http.Request) {
	inverters := s.registry.All()

	s.writeJSON(w, map[string]interface{}{
		"inverters": inverters,
		"count":     len(inverters),
	}, http.StatusOK)
}

// handleGetInverter returns the latest state of a single inverter.
func (s *Server) handleGetInverter(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	status, found := s.registry.Get(name)
	if !found {
		s.writeError(w, "Inverter not found", http.StatusNotFound)
		return
	}

	s.writeJSON(w, status, http.StatusOK)
}

// handleHistory returns stored readings for a single inverter, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if _, found := s.registry.Get(name); !found {
		s.writeError(w, "Inverter not found", http.StatusNotFound)
		return
	}
	if s.store == nil {
		s.writeError(w, "History storage is disabled", http.StatusNotFound)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	readings, err := s.store.History(r.Context(), name, limit)
	if err != nil {
		s.logger.Error().Err(err).Str("inverter", name).Msg("Failed to query history")
		s.writeError(w, "Failed to query history", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"inverter": name,
		"readings": readings,
		"count":    len(readings),
	}, http.StatusOK)
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := map[string]string{"error": message}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode error response")
	}
}
