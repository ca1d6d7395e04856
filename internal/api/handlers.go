package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/varsilias/oracle-chat/internal/buildinfo"
	"github.com/varsilias/oracle-chat/internal/chat"
	"github.com/varsilias/oracle-chat/internal/sse"
	"github.com/varsilias/oracle-chat/pkg/types"
	"github.com/varsilias/oracle-chat/pkg/utils"
)

const errMessagesRequired = "Messages array is required"

// Relayer runs one streamed chat turn. *chat.Relay implements it.
type Relayer interface {
	Run(ctx context.Context, conv types.Conversation, sink chat.Sink) error
}

type Handlers struct {
	log   *slog.Logger
	relay Relayer
	// credentials reports whether the upstream is usable
	credentials func() bool
}

func NewHandlers(log *slog.Logger, relay Relayer, credentials func() bool) *Handlers {
	if credentials == nil {
		credentials = func() bool { return true }
	}
	return &Handlers{
		log:         log,
		relay:       relay,
		credentials: credentials,
	}
}

// Health is a basic liveness endpoint.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	res := map[string]any{
		"status":    true,
		"message":   "oracle-chat",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	utils.JSON(w, http.StatusOK, res)
}

func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	res := map[string]any{
		"version":  buildinfo.Version,
		"commit":   buildinfo.Commit,
		"built_at": buildinfo.BuiltAt,
	}

	utils.JSON(w, http.StatusOK, res)
}

// Chat POST /api/chat streams the assistant reply as server-sent events.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	if !h.credentials() {
		h.log.Error("chat rejected", "err", chat.ErrMissingCredentials)
		utils.Error(w, http.StatusInternalServerError, chat.MissingCredentialsMessage)
		return
	}

	var req struct {
		Messages *[]types.Message `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Messages == nil {
		utils.Error(w, http.StatusBadRequest, errMessagesRequired)
		return
	}
	conv := types.Conversation(*req.Messages)
	if err := conv.Validate(); err != nil {
		utils.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	hdr := w.Header()
	hdr.Set("Content-Type", "text/event-stream")
	hdr.Set("Cache-Control", "no-cache")
	hdr.Set("Connection", "keep-alive")
	hdr.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	enc := sse.NewEncoder(w)
	if err := h.relay.Run(r.Context(), conv, enc); err != nil {
		h.log.Warn("chat turn ended with error", "messages", len(conv), "err", err)
	}
}
