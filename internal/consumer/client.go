package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/varsilias/oracle-chat/internal/sse"
)

var (
	ErrInputIgnored = errors.New("input ignored")
	ErrRelayStatus  = errors.New("relay returned an error status")
	ErrStreamClosed = errors.New("stream closed before completion")
)

// Client drives turns against a relay's /api/chat endpoint.
type Client struct {
	baseURL string
	http    *http.Client
	log     *slog.Logger
}

// NewClient returns a client for the relay at baseURL. A nil httpClient
// means http.DefaultClient.
func NewClient(baseURL string, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient, log: log}
}

// Send runs one turn for input and returns the resulting Idle state.
// onDraft, if set, sees the state after every content frame. A failed turn
// still returns a usable state, with the error message committed to
// history, along with the cause.
func (c *Client) Send(ctx context.Context, s State, input string, onDraft func(State)) (State, error) {
	s, ok := s.Submit(input)
	if !ok {
		return s, ErrInputIgnored
	}

	body, err := json.Marshal(map[string]any{"messages": s.History})
	if err != nil {
		return s.Fail(err), err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return s.Fail(err), err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	res, err := c.http.Do(req)
	if err != nil {
		return s.Fail(err), err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		err := statusError(res)
		return s.Fail(err), err
	}

	dec := sse.NewDecoder(res.Body)
	for {
		f, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return s.Fail(ErrStreamClosed), ErrStreamClosed
		}
		if err != nil {
			return s.Fail(err), err
		}

		switch f.Kind {
		case sse.KindContent:
			s = s.Receive(f.Content)
			if onDraft != nil {
				onDraft(s)
			}
		case sse.KindDone:
			return s.Complete(), nil
		case sse.KindError:
			err := errors.New(f.Error)
			return s.Fail(err), err
		case sse.KindMalformed:
			c.log.Warn("skipping malformed frame", "data", f.Raw)
		}
	}
}

const statusFailedMessage = "Failed to get response"

// StatusError is a non-2xx reply from the relay. Its text is what the
// conversation shows, so it keeps the relay's wording.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (%d)", statusFailedMessage, e.Code)
	}
	return fmt.Sprintf("%s (%d): %s", statusFailedMessage, e.Code, e.Message)
}

func (e *StatusError) Is(target error) bool { return target == ErrRelayStatus }

// statusError reads the relay's {"error": ...} body when there is one.
func statusError(res *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	serr := &StatusError{Code: res.StatusCode}
	if json.Unmarshal(data, &body) == nil {
		serr.Message = body.Error
	}
	return serr
}
