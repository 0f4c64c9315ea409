// Package api exposes the assistant over HTTP: session management, a
// streaming chat endpoint, memory curation, and an HTML transcript view.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/fintalk/fintalk"
)

// Server holds the HTTP handler state.
type Server struct {
	client *fintalk.Client
	logger zerolog.Logger
}

// NewRouter creates the HTTP router for the assistant API.
func NewRouter(client *fintalk.Client, logger zerolog.Logger) http.Handler {
	s := &Server{client: client, logger: logger}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{id}/messages", s.handleGetMessages).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{id}/chat", s.handleChat).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{id}/transcript", s.handleTranscript).Methods(http.MethodGet)
	v1.HandleFunc("/users/{id}/memories", s.handleAddMemory).Methods(http.MethodPost)
	v1.HandleFunc("/users/{id}/memories", s.handleListMemories).Methods(http.MethodGet)

	r.Use(s.loggingMiddleware, s.recoveryMiddleware)
	return r
}

// loggingMiddleware emits one structured log line per request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// recoveryMiddleware turns panics into 500s instead of dropping connections.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error().Interface("panic", err).Str("path", r.URL.Path).Msg("panic recovered")
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
