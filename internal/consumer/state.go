// Package consumer is the client side of a relayed chat turn. State holds
// the committed history, the in-flight draft and the usage estimate;
// transitions return a new State and never mutate the receiver's history.
package consumer

import (
	"strings"

	"github.com/varsilias/oracle-chat/internal/usage"
	"github.com/varsilias/oracle-chat/pkg/types"
)

type Phase int

const (
	Idle Phase = iota
	// Awaiting is entered on submit and lasts until the first frame arrives.
	Awaiting
	Streaming
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Awaiting:
		return "awaiting"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

type State struct {
	History types.Conversation
	Draft   string
	Phase   Phase
	Usage   usage.Snapshot
}

// Busy reports whether a turn is in flight; input is refused while busy.
func (s State) Busy() bool { return s.Phase != Idle }

// Submit appends input as a user message and moves to Awaiting. Blank
// input, or any input while a turn is in flight, is refused and s is
// returned unchanged.
func (s State) Submit(input string) (State, bool) {
	if s.Busy() || strings.TrimSpace(input) == "" {
		return s, false
	}
	next := State{
		History: s.History.Append(types.Message{Role: types.RoleUser, Content: input}),
		Phase:   Awaiting,
	}
	next.Usage = usage.Compute(next.History)
	return next, true
}

// Receive folds one content frame into the draft.
func (s State) Receive(text string) State {
	if !s.Busy() {
		return s
	}
	s.Phase = Streaming
	s.Draft += text
	return s
}

// Complete commits the draft, possibly empty, as the assistant reply.
func (s State) Complete() State {
	if !s.Busy() {
		return s
	}
	return s.commit(s.Draft)
}

// Fail commits a readable error as the assistant reply so the
// conversation keeps alternating.
func (s State) Fail(err error) State {
	if !s.Busy() {
		return s
	}
	msg := "Unknown error occurred"
	if err != nil {
		msg = err.Error()
	}
	return s.commit("Error: " + msg)
}

func (s State) commit(content string) State {
	next := State{
		History: s.History.Append(types.Message{Role: types.RoleAssistant, Content: content}),
		Phase:   Idle,
	}
	next.Usage = usage.Compute(next.History)
	return next
}
