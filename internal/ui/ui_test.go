package ui

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUI(t *testing.T) (*UI, *chi.Mux) {
	t.Helper()
	u, err := New(slog.New(slog.NewTextHandler(io.Discard, nil)), Page{
		Model:       "claude-3-5-sonnet-20241022",
		DocumentURL: "https://docs.google.com/document/d/abc/edit",
	})
	require.NoError(t, err)
	mux := chi.NewRouter()
	RegisterRoutes(mux, u)
	return u, mux
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHomePage(t *testing.T) {
	_, mux := newTestUI(t)
	rec := do(mux, http.MethodGet, "/", "")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "The Oracle - D&amp;D Assistant")
	assert.Contains(t, body, "0 / 200.0K tokens")
	assert.Contains(t, body, "$0.0000")
	assert.Contains(t, body, "0.0% context used")
	assert.Contains(t, body, "Claude 3.5 Sonnet")
	assert.Contains(t, body, `href="https://docs.google.com/document/d/abc/edit"`)
	assert.Contains(t, body, "/static/consumer.js")
	assert.Less(t, strings.Index(body, "/static/consumer.js"), strings.Index(body, "/static/chat.js"))
}

func TestStaticAssets(t *testing.T) {
	_, mux := newTestUI(t)
	for _, path := range []string{"/static/consumer.js", "/static/chat.js", "/static/chat.css"} {
		rec := do(mux, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotEmpty(t, rec.Body.String(), path)
	}
}

func TestRenderAssistantMarkdown(t *testing.T) {
	_, mux := newTestUI(t)
	body := `{"role":"assistant","content":"**Aldric** rules.\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n<script>alert(1)</script>\n\n` + "```go\\nfunc main() {}\\n```" + `"}`
	rec := do(mux, http.MethodPost, "/ui/render", body)

	require.Equal(t, http.StatusOK, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, "<strong>Aldric</strong>")
	assert.Contains(t, html, "<table>")
	assert.Contains(t, html, "<pre")
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "The Oracle")
}

func TestRenderUserMessageIsEscaped(t *testing.T) {
	_, mux := newTestUI(t)
	rec := do(mux, http.MethodPost, "/ui/render", `{"role":"user","content":"<b>hi</b> **there**"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "&lt;b&gt;hi&lt;/b&gt; **there**")
}

func TestRenderRejectsBadInput(t *testing.T) {
	_, mux := newTestUI(t)
	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodPost, "/ui/render", `nope`).Code)
	assert.Equal(t, http.StatusBadRequest, do(mux, http.MethodPost, "/ui/render", `{"role":"system","content":"x"}`).Code)
}

func TestUsageFragment(t *testing.T) {
	_, mux := newTestUI(t)
	rec := do(mux, http.MethodPost, "/ui/usage",
		`{"messages":[{"role":"user","content":"Who is the king?"},{"role":"assistant","content":"The king is Aldric."}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "9 / 200.0K tokens")
	assert.Contains(t, body, "$0.0000")
	assert.Contains(t, body, "level-ok")
}

func TestUsageFragmentCritical(t *testing.T) {
	_, mux := newTestUI(t)
	big := strings.Repeat("a", 4*190000)
	rec := do(mux, http.MethodPost, "/ui/usage", `{"messages":[{"role":"user","content":"`+big+`"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "190.0K / 200.0K tokens")
	assert.Contains(t, body, "95.0% context used")
	assert.Contains(t, body, "level-critical")
}

func TestVersionPill(t *testing.T) {
	_, mux := newTestUI(t)
	rec := do(mux, http.MethodGet, "/ui/version-pill", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "dev")
}

func TestModelLabel(t *testing.T) {
	assert.Equal(t, "Claude 3.5 Sonnet", modelLabel("claude-3-5-sonnet-20241022"))
	assert.Equal(t, "llama3", modelLabel("llama3"))
}

// The page's turn logic runs under node when it is installed.
func TestBrowserConsumer(t *testing.T) {
	node, err := exec.LookPath("node")
	if err != nil {
		t.Skip("node not installed")
	}
	out, err := exec.Command(node, "--test", filepath.Join("testdata", "consumer.test.js")).CombinedOutput()
	require.NoError(t, err, string(out))
}
