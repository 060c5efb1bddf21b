package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/cartridge/replay/internal/middleware"
	"github.com/cartridge/replay/internal/storage"
)

// Server exposes health, stats and metrics for a replay backend.
type Server struct {
	backend  storage.Backend
	gatherer prometheus.Gatherer
	logger   zerolog.Logger
}

// NewServer constructs a Server instance.
func NewServer(backend storage.Backend, gatherer prometheus.Gatherer, logger zerolog.Logger) *Server {
	return &Server{backend: backend, gatherer: gatherer, logger: logger}
}

// Routes builds the admin HTTP router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.CorrelationID)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Post("/reset", s.handleReset)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	stats, err := s.backend.GetStats(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	if !stats.Initialized {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":       "filling",
			"size":         stats.Size,
			"initial_size": stats.InitialSize,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "size": stats.Size})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.backend.GetStats(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.Reset(r.Context()); err != nil {
		s.respondError(w, err)
		return
	}
	s.logger.Info().Str("correlation_id", r.Header.Get(middleware.CorrelationHeader)).Msg("Replay buffer reset via admin API")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrClosed):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error().Err(err).Msg("admin request failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}
