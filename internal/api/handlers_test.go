package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varsilias/oracle-chat/internal/buildinfo"
	"github.com/varsilias/oracle-chat/internal/chat"
	"github.com/varsilias/oracle-chat/pkg/types"
)

type stubRelay struct {
	deltas []string
	err    error
	called bool
	conv   types.Conversation
}

func (s *stubRelay) Run(_ context.Context, conv types.Conversation, sink chat.Sink) error {
	s.called = true
	s.conv = conv
	for _, d := range s.deltas {
		if err := sink.Content(d); err != nil {
			return err
		}
	}
	if s.err != nil {
		_ = sink.Error(s.err.Error())
		return s.err
	}
	return sink.Done()
}

func newTestRouter(relay Relayer, hasKey bool) *chi.Mux {
	h := NewHandlers(slog.New(slog.NewTextHandler(io.Discard, nil)), relay, func() bool { return hasKey })
	mux := chi.NewRouter()
	RegisterRoutes(mux, h)
	return mux
}

func postChat(t *testing.T, mux http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestChatStreamsFrames(t *testing.T) {
	relay := &stubRelay{deltas: []string{"The ", "king is ", "Aldric."}}
	rec := postChat(t, newTestRouter(relay, true), `{"messages":[{"role":"user","content":"Who is the king?"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
	assert.True(t, rec.Flushed)

	want := "data: {\"content\":\"The \"}\n\n" +
		"data: {\"content\":\"king is \"}\n\n" +
		"data: {\"content\":\"Aldric.\"}\n\n" +
		"data: [DONE]\n\n"
	assert.Equal(t, want, rec.Body.String())
	assert.Equal(t, types.Conversation{{Role: types.RoleUser, Content: "Who is the king?"}}, relay.conv)
}

func TestChatUpstreamErrorFrame(t *testing.T) {
	relay := &stubRelay{err: errors.New("invalid x-api-key")}
	rec := postChat(t, newTestRouter(relay, true), `{"messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "data: {\"error\":\"invalid x-api-key\"}\n\n", rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "[DONE]")
}

func TestChatRejectsBadPayload(t *testing.T) {
	cases := map[string]string{
		"invalid json":     `{"messages":`,
		"missing messages": `{}`,
		"null messages":    `{"messages":null}`,
		"string messages":  `{"messages":"hello"}`,
		"object messages":  `{"messages":{"role":"user"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			relay := &stubRelay{}
			rec := postChat(t, newTestRouter(relay, true), body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "Messages array is required", decodeError(t, rec))
			assert.False(t, relay.called)
		})
	}
}

func TestChatRejectsUnknownRole(t *testing.T) {
	relay := &stubRelay{}
	rec := postChat(t, newTestRouter(relay, true), `{"messages":[{"role":"system","content":"x"}]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "invalid conversation")
	assert.False(t, relay.called)
}

func TestChatMissingCredentialsPrecedesValidation(t *testing.T) {
	for _, body := range []string{`{"messages":[{"role":"user","content":"hi"}]}`, `not json`} {
		relay := &stubRelay{}
		rec := postChat(t, newTestRouter(relay, false), body)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Anthropic API key not configured", decodeError(t, rec))
		assert.False(t, relay.called)
	}
}

func TestChatMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	newTestRouter(&stubRelay{}, true).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthAndVersion(t *testing.T) {
	mux := newTestRouter(&stubRelay{}, true)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":true`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var v map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.Equal(t, buildinfo.Version, v["version"])
}
