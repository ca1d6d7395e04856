package chat

import (
	"context"

	"github.com/varsilias/oracle-chat/internal/ollama"
)

// OllamaEngine streams from a local Ollama server through /api/chat.
type OllamaEngine struct {
	c *ollama.Client
}

func NewOllamaEngine(c *ollama.Client) *OllamaEngine {
	return &OllamaEngine{
		c: c,
	}
}

func (e *OllamaEngine) Name() string { return "ollama" }

func (e *OllamaEngine) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	msgs := make([]ollama.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, ollama.Message{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, ollama.Message{Role: string(m.Role), Content: m.Content})
	}

	ch := make(chan Delta)
	go func() {
		defer close(ch)
		err := e.c.ChatStream(ctx, req.Model, msgs, req.MaxTokens, func(chunk ollama.ChatChunk) error {
			if chunk.Message.Content == "" {
				return nil
			}
			if !send(ctx, ch, Delta{Text: chunk.Message.Content}) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			send(ctx, ch, Delta{Err: err})
		}
	}()
	return ch, nil
}
