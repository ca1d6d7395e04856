// Package sse is the relay's framing protocol. Every frame is a single
// line `data: <payload>` followed by a blank line, where payload is
// {"content": ...}, {"error": ...}, or the terminal marker [DONE].
package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	dataPrefix = "data: "
	DoneMarker = "[DONE]"
)

type payload struct {
	Content *string `json:"content,omitempty"`
	Error   *string `json:"error,omitempty"`
}

// Encoder writes frames and flushes after each one when the writer supports it.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

func NewEncoder(w io.Writer) *Encoder {
	f, _ := w.(http.Flusher)
	return &Encoder{w: w, flusher: f}
}

func (e *Encoder) Content(text string) error {
	return e.writeJSON(payload{Content: &text})
}

func (e *Encoder) Error(msg string) error {
	return e.writeJSON(payload{Error: &msg})
}

func (e *Encoder) Done() error {
	return e.write(DoneMarker)
}

func (e *Encoder) writeJSON(p payload) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return e.write(string(b))
}

func (e *Encoder) write(data string) error {
	if _, err := fmt.Fprintf(e.w, "%s%s\n\n", dataPrefix, data); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}
