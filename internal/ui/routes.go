package ui

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/varsilias/oracle-chat/internal/buildinfo"
	"github.com/varsilias/oracle-chat/internal/usage"
	"github.com/varsilias/oracle-chat/pkg/types"
	"github.com/varsilias/oracle-chat/pkg/utils"
)

const maxFormBody = 1 << 20

func RegisterRoutes(mux *chi.Mux, h *UI) {
	mux.Get("/", h.Home)
	mux.Post("/ui/render", h.Render)
	mux.Post("/ui/usage", h.Usage)
	mux.Get("/ui/version-pill", h.VersionPill)
	mux.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(h.static))))
}

// Home shows the chat page. The conversation lives in the browser; the
// page starts empty.
func (u *UI) Home(w http.ResponseWriter, r *http.Request) {
	u.render(w, "chat.html", map[string]any{
		"Page":    u.page,
		"Usage":   newUsageView(usage.Snapshot{}, u.page.Model),
		"Version": buildinfo.Version,
		"Commit":  buildinfo.Commit,
		"BuiltAt": buildinfo.BuiltAt,
	}, http.StatusOK)
}

// Render POST /ui/render returns one message bubble for {role, content}.
func (u *UI) Render(w http.ResponseWriter, r *http.Request) {
	var m types.Message
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBody)).Decode(&m); err != nil {
		utils.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := (types.Conversation{m}).Validate(); err != nil {
		utils.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	view := MsgView{Role: string(m.Role), Name: u.page.Name, Text: m.Content}
	if m.Role == types.RoleAssistant {
		view.HTML = u.RenderMarkdown(m.Content)
	}
	u.render(w, "message.html", view, http.StatusOK)
}

// Usage POST /ui/usage returns the context bar for {messages: [...]}.
func (u *UI) Usage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Messages []types.Message `json:"messages"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBody)).Decode(&req); err != nil {
		utils.Error(w, http.StatusBadRequest, "invalid json")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	u.render(w, "context-bar.html", newUsageView(usage.Compute(req.Messages), u.page.Model), http.StatusOK)
}

type versionVM struct {
	Version string
	Commit  string
	BuiltAt string
}

func (u *UI) VersionPill(w http.ResponseWriter, r *http.Request) {
	// Fragment response; avoid caching so rollouts show quickly
	w.Header().Set("Cache-Control", "no-store")

	data := versionVM{
		Version: buildinfo.Version,
		Commit:  buildinfo.Commit,
		BuiltAt: buildinfo.BuiltAt,
	}
	u.render(w, "version-pill.html", data, http.StatusOK)
}
