package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintalk/fintalk"
	"github.com/fintalk/fintalk/llm"
	"github.com/fintalk/fintalk/memory"
	"github.com/fintalk/fintalk/store"
	"github.com/fintalk/fintalk/types"
)

type scriptedChat struct {
	replies []types.Message
	calls   int
}

func (f *scriptedChat) Complete(_ context.Context, _ string, _ []types.Message, _ []llm.ToolDef, onDelta llm.TextDelta) (types.Message, error) {
	if f.calls >= len(f.replies) {
		return types.Message{}, errors.New("no scripted reply left")
	}
	reply := f.replies[f.calls]
	f.calls++
	if onDelta != nil {
		onDelta(reply.Content.Text())
	}
	return reply, nil
}

func newTestServer(t *testing.T, chat fintalk.ChatModel) (http.Handler, *store.MemStore) {
	t.Helper()
	fintalk.ClearRegistry()
	t.Cleanup(fintalk.ClearRegistry)
	fintalk.RegisterDefaultAgents()

	sessions := store.NewMemStore()
	client, err := fintalk.NewClient(fintalk.Config{
		Store:    sessions,
		Memories: memory.NewMemStore(),
		Chat:     chat,
	}, fintalk.WithAutoCompaction(false))
	require.NoError(t, err)

	return NewRouter(client, zerolog.Nop()), sessions
}

func TestCreateAndGetSession(t *testing.T) {
	router, _ := newTestServer(t, &scriptedChat{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{"user_id":"u1"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var session store.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	assert.Equal(t, "u1", session.UserID)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+session.ID, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetSession_NotFound(t *testing.T) {
	router, _ := newTestServer(t, &scriptedChat{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/does-not-exist", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSession_MissingUserID(t *testing.T) {
	router, _ := newTestServer(t, &scriptedChat{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sessions", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChat_StreamsEvents(t *testing.T) {
	chat := &scriptedChat{replies: []types.Message{
		{Role: types.RoleAssistant, Content: types.PlainText("guest")},
		{Role: types.RoleAssistant, Content: types.PlainText("Index funds track a market index.")},
	}}
	router, sessions := newTestServer(t, chat)
	session, err := sessions.CreateSession(context.Background(), "u1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/v1/sessions/"+session.ID+"/chat", strings.NewReader(`{"message":"What is an index fund?"}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: agent_selected")
	assert.Contains(t, body, "event: text_delta")
	assert.Contains(t, body, "event: turn_complete")
}

func TestMemoriesEndpoints(t *testing.T) {
	router, _ := newTestServer(t, &scriptedChat{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/users/u1/memories",
		strings.NewReader(`{"category":"goal","content":"Saving for a house"}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/users/u1/memories", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Saving for a house")
}

func TestTranscript_RendersSanitizedMarkdown(t *testing.T) {
	chat := &scriptedChat{replies: []types.Message{
		{Role: types.RoleAssistant, Content: types.PlainText("guest")},
		{Role: types.RoleAssistant, Content: types.PlainText("**Diversify** <script>alert(1)</script>")},
	}}
	router, sessions := newTestServer(t, chat)
	session, err := sessions.CreateSession(context.Background(), "u1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/v1/sessions/"+session.ID+"/chat", strings.NewReader(`{"message":"Why diversify?"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sessions/"+session.ID+"/transcript", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "<strong>Diversify</strong>")
	assert.NotContains(t, body, "<script>")
}
