package types

import (
	"errors"
	"fmt"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

var ErrInvalidConversation = errors.New("invalid conversation")

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is ordered oldest first; that order is what goes upstream.
type Conversation []Message

func (c Conversation) Validate() error {
	for i, m := range c {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return fmt.Errorf("%w: message %d has role %q", ErrInvalidConversation, i, m.Role)
		}
	}
	return nil
}

// Append returns a new conversation with m added; c is left untouched.
func (c Conversation) Append(m Message) Conversation {
	out := make(Conversation, len(c), len(c)+1)
	copy(out, c)
	return append(out, m)
}

func (c Conversation) Contents() []string {
	out := make([]string, 0, len(c))
	for _, m := range c {
		out = append(out, m.Content)
	}
	return out
}
