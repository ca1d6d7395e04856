package chat

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/varsilias/oracle-chat/internal/tracer"
	"github.com/varsilias/oracle-chat/pkg/types"
)

// AnthropicEngine streams from the Anthropic Messages API. The SDK's retry
// loop is switched off: a failed call surfaces as a single error.
type AnthropicEngine struct {
	client anthropic.Client
	log    *slog.Logger
}

// NewAnthropicEngine builds an engine for apiKey. baseURL and httpClient
// are optional.
func NewAnthropicEngine(apiKey, baseURL string, httpClient *http.Client, log *slog.Logger) *AnthropicEngine {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &AnthropicEngine{client: anthropic.NewClient(opts...), log: log}
}

func (e *AnthropicEngine) Name() string { return "anthropic" }

func (e *AnthropicEngine) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
		Messages:  toAnthropicMessages(req.Messages),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	ctx, span := tracer.StartSpan(ctx, "llm.stream")
	span.SetAttributes(
		tracer.StringAttr("llm.provider", e.Name()),
		tracer.StringAttr("llm.model", req.Model),
		tracer.IntAttr("llm.messages", len(req.Messages)),
	)

	// The first event arrives only once the upstream accepted the request,
	// so connection and status failures are returned here.
	stream := e.client.Messages.NewStreaming(ctx, params)
	if !stream.Next() {
		defer span.End()
		stream.Close()
		if err := stream.Err(); err != nil {
			tracer.RecordError(span, err)
			e.log.Error("upstream stream failed to open", "model", req.Model, "err", err)
			return nil, err
		}
		tracer.SetOK(span)
		ch := make(chan Delta)
		close(ch)
		return ch, nil
	}

	ch := make(chan Delta)
	go func() {
		defer close(ch)
		defer span.End()
		defer stream.Close()

		deltas := 0
		for {
			switch ev := stream.Current().AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if td, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && td.Text != "" {
					deltas++
					if !send(ctx, ch, Delta{Text: td.Text}) {
						return
					}
				}
			}
			if !stream.Next() {
				break
			}
		}
		if err := stream.Err(); err != nil {
			tracer.RecordError(span, err)
			e.log.Error("upstream stream failed", "model", req.Model, "deltas", deltas, "err", err)
			send(ctx, ch, Delta{Err: err})
			return
		}
		span.SetAttributes(tracer.IntAttr("llm.deltas", deltas))
		tracer.SetOK(span)
	}()
	return ch, nil
}

func toAnthropicMessages(conv types.Conversation) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(conv))
	for _, m := range conv {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == types.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	return out
}
