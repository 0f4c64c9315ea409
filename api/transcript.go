package api

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/fintalk/fintalk/store"
	"github.com/fintalk/fintalk/types"
)

// markdown is shared across requests; goldmark parsers are safe for
// concurrent use.
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// sanitizer strips anything dangerous from rendered model output before it
// reaches a browser.
var sanitizer = bluemonday.UGCPolicy()

// handleTranscript renders the session history as a standalone HTML page.
// Assistant markdown is rendered and sanitized; user text is escaped as-is.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	messages, err := s.client.GetMessages(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		s.logger.Error().Err(err).Msg("load transcript failed")
		writeError(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Transcript</title></head><body>\n")
	fmt.Fprintf(&page, "<h1>Session %s</h1>\n", html.EscapeString(sessionID))

	for _, msg := range messages {
		text := msg.Content.Text()
		if text == "" {
			continue
		}
		switch msg.Role {
		case types.RoleAssistant:
			rendered, err := renderMarkdown(text)
			if err != nil {
				rendered = "<p>" + html.EscapeString(text) + "</p>"
			}
			fmt.Fprintf(&page, "<div class=\"assistant\">%s</div>\n", rendered)
		case types.RoleSystem:
			fmt.Fprintf(&page, "<div class=\"system\"><em>%s</em></div>\n", html.EscapeString(text))
		default:
			fmt.Fprintf(&page, "<div class=\"user\"><p>%s</p></div>\n", html.EscapeString(text))
		}
	}
	page.WriteString("</body></html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page.Bytes())
}

// renderMarkdown converts assistant markdown to sanitized HTML.
func renderMarkdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return sanitizer.Sanitize(buf.String()), nil
}
