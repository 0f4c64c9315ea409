package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fintalk/fintalk/store"
	"github.com/fintalk/fintalk/streaming"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	session, err := s.client.NewSession(r.Context(), body.UserID)
	if err != nil {
		s.logger.Error().Err(err).Msg("create session failed")
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.client.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error().Err(err).Msg("get session failed")
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.client.GetMessages(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error().Err(err).Msg("get messages failed")
		writeError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// handleChat runs one turn and relays lifecycle events as SSE until the turn
// completes.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	stream := streaming.NewStream()
	done := make(chan error, 1)
	go func() {
		_, err := s.client.RunTurn(r.Context(), sessionID, body.Message, stream)
		done <- err
	}()

	for event := range stream.Events() {
		if err := streaming.WriteSSE(w, event); err != nil {
			s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("sse write failed")
			break
		}
		flusher.Flush()
	}

	if err := <-done; err != nil {
		// The stream already carried an error event; log for the server side.
		s.logger.Error().Err(err).Str("session_id", sessionID).Msg("chat turn failed")
	}
}

func (s *Server) handleAddMemory(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]

	var body struct {
		Category string `json:"category"`
		Content  string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	mem, err := s.client.Memories().Add(r.Context(), userID, body.Category, body.Content)
	if err != nil {
		s.logger.Error().Err(err).Msg("add memory failed")
		writeError(w, http.StatusInternalServerError, "failed to store memory")
		return
	}
	writeJSON(w, http.StatusCreated, mem)
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	memories, err := s.client.Memories().ListByUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.logger.Error().Err(err).Msg("list memories failed")
		writeError(w, http.StatusInternalServerError, "failed to load memories")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": memories})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"message": msg}})
}
