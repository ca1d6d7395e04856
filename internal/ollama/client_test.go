package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(url+"/", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/version", r.URL.Path)
		fmt.Fprint(w, `{"version":"0.5.0"}`)
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(srv.URL).Ping(context.Background()))
}

func TestPingBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	require.Error(t, newTestClient(srv.URL).Ping(context.Background()))
}

func TestChatStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "llama3", req.Model)
		assert.EqualValues(t, 64, req.Options["num_predict"])
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Hel"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"lo"},"done":false}`)
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	defer srv.Close()

	var got string
	err := newTestClient(srv.URL).ChatStream(context.Background(), "llama3",
		[]Message{{Role: "system", Content: "be brief"}, {Role: "user", Content: "hi"}}, 64,
		func(c ChatChunk) error {
			got += c.Message.Content
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, "Hello", got)
}

func TestChatStreamErrorChunk(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"a"},"done":false}`)
		fmt.Fprintln(w, `{"error":"model crashed"}`)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).ChatStream(context.Background(), "m", nil, 0, func(ChatChunk) error { return nil })
	require.EqualError(t, err, "model crashed")
}

func TestChatStreamTruncated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":"a"},"done":false}`)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).ChatStream(context.Background(), "m", nil, 0, func(ChatChunk) error { return nil })
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestChatStreamHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).ChatStream(context.Background(), "m", nil, 0, func(ChatChunk) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}
