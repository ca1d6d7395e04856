package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/varsilias/oracle-chat/pkg/types"
)

// ErrMissingCredentials is returned when the configured provider needs an
// API key and none was supplied.
var ErrMissingCredentials = errors.New("anthropic api key not configured")

// MissingCredentialsMessage is the error text clients see for
// ErrMissingCredentials.
const MissingCredentialsMessage = "Anthropic API key not configured"

// Request is one upstream completion: a system prompt plus the full
// conversation, oldest first.
type Request struct {
	System    string
	Messages  types.Conversation
	Model     string
	MaxTokens int
}

// Delta is one streamed piece of the reply. A Delta with Err set is the
// last value sent before the channel closes.
type Delta struct {
	Text string
	Err  error
}

// Engine opens a streaming completion. The returned channel is closed when
// the reply ends; a clean close means the reply completed.
type Engine interface {
	Stream(ctx context.Context, req Request) (<-chan Delta, error)
	Name() string
}

// send delivers d unless ctx is done first.
func send(ctx context.Context, ch chan<- Delta, d Delta) bool {
	select {
	case ch <- d:
		return true
	case <-ctx.Done():
		return false
	}
}

type EchoEngine struct {
	minLatency time.Duration
}

func NewEchoEngine(minLatency time.Duration) *EchoEngine { return &EchoEngine{minLatency: minLatency} }

func (e *EchoEngine) Name() string { return "echo" }

// Stream echoes the last user message back one word at a time.
func (e *EchoEngine) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	var prompt string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == types.RoleUser {
			prompt = req.Messages[i].Content
			break
		}
	}
	text := fmt.Sprintf("(demo:%s) you said: %s", req.Model, prompt)

	ch := make(chan Delta)
	go func() {
		defer close(ch)
		words := strings.SplitAfter(text, " ")
		for _, w := range words {
			if e.minLatency > 0 {
				select {
				case <-time.After(e.minLatency):
				case <-ctx.Done():
					send(ctx, ch, Delta{Err: ctx.Err()})
					return
				}
			}
			if !send(ctx, ch, Delta{Text: w}) {
				return
			}
		}
	}()
	return ch, nil
}
