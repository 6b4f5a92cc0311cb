package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"kokoro/src/app"
)

// Server exposes the companion service over HTTP.
type Server struct {
	app    *app.App
	logger *slog.Logger
	router chi.Router

	listener net.Listener
	server   *http.Server

	mu        sync.RWMutex
	origins   []string
	stats     map[string]int64
	startedAt time.Time
}

// NewServer builds the router for a.
func NewServer(a *app.App) *Server {
	s := &Server{
		app:       a,
		logger:    a.Logger.With("component", "daemon"),
		origins:   a.Settings.Server.AllowedOrigins,
		stats:     make(map[string]int64),
		startedAt: time.Now(),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(s.cors, s.countRequests)

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/images", s.handleImage)
		r.Post("/speech", s.handleSpeech)
		r.Get("/voices", s.handleVoices)

		r.Post("/characters", s.handleCreateCharacter)
		r.Get("/characters/{id}", s.handleGetCharacter)
		r.Post("/chats", s.handleCreateChat)

		r.Post("/sessions", s.handleStartSession)
		r.Post("/sessions/{id}/messages", s.handleSessionMessage)
		r.Delete("/sessions/{id}", s.handleEndSession)

		r.Get("/schema/{name}", s.handleSchema)
	})
	return r
}

// Handler returns the HTTP handler, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetAllowedOrigins replaces the CORS allow list.
func (s *Server) SetAllowedOrigins(origins []string) {
	s.mu.Lock()
	s.origins = origins
	s.mu.Unlock()
}

func (s *Server) originAllowed(origin string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			return
		}
		s.mu.Lock()
		s.stats[r.Method+" "+pattern]++
		s.mu.Unlock()
	})
}

func (s *Server) snapshotStats() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.stats))
	for k, v := range s.stats {
		out[k] = v
	}
	return out
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	cfg := s.app.Settings.Server
	listener, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Listen, err)
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout.Duration,
		WriteTimeout: cfg.WriteTimeout.Duration,
	}

	s.logger.Info("HTTP server listening", "addr", listener.Addr().String())

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", "error", err)
		}
	}()
	return nil
}

// Addr is the bound listen address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	s.logger.Info("HTTP server stopped", "requests", s.snapshotStats())
	return nil
}
