// Package server exposes a small read-only HTTP surface next to the bot:
// a health check for deploys and JSON views of the open games and the
// roster. All writes go through the bot; this server never mutates.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/heartpipes/clubbot/internal/middleware"
	"github.com/heartpipes/clubbot/internal/model"
	"github.com/heartpipes/clubbot/internal/repository"
)

// Pinger is the slice of the store the health check needs.
type Pinger interface {
	Ping() error
}

// Server is the ops HTTP server.
type Server struct {
	router  *chi.Mux
	events  repository.EventRepository
	regs    repository.RegistrationRepository
	players repository.PlayerRepository
	pinger  Pinger
	logger  *slog.Logger
}

func New(events repository.EventRepository, regs repository.RegistrationRepository, players repository.PlayerRepository, pinger Pinger, logger *slog.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		events:  events,
		regs:    regs,
		players: players,
		pinger:  pinger,
		logger:  logger,
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(logger))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/api/events", s.handleEvents)
	s.router.Get("/api/players", s.handlePlayers)

	return s
}

// ServeHTTP makes the server mountable and testable as a plain handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		s.logger.Info("ops server starting", slog.Int("port", port))
		errs <- srv.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if err != http.ErrServerClosed {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.pinger.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// eventView is an event decorated with its live seat count.
type eventView struct {
	model.Event
	Registered int `json:"registered"`
	SpotsLeft  int `json:"spotsLeft"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.events.ListOpenEvents(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	views := make([]eventView, 0, len(events))
	for _, ev := range events {
		count, err := s.regs.CountRegistrations(r.Context(), ev.ID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		left := ev.SpotsLeft(count)
		if left < 0 {
			left = 0
		}
		views = append(views, eventView{Event: ev, Registered: count, SpotsLeft: left})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handlePlayers(w http.ResponseWriter, r *http.Request) {
	players, err := s.players.ListPlayers(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if players == nil {
		players = []model.Player{}
	}
	writeJSON(w, http.StatusOK, players)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.logger.Error("ops request failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "internal_error",
		"message": "an internal error occurred",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}
