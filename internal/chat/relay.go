package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/varsilias/oracle-chat/internal/prompt"
	"github.com/varsilias/oracle-chat/internal/tracer"
	"github.com/varsilias/oracle-chat/pkg/types"
)

// DocumentSource resolves the lore document for a turn. ok is false when
// the document could not be fetched.
type DocumentSource interface {
	FetchURL(ctx context.Context, url string) (doc string, ok bool)
}

// Sink receives the frames of one relayed turn. sse.Encoder implements it.
type Sink interface {
	Content(text string) error
	Error(msg string) error
	Done() error
}

type RelayOptions struct {
	DocumentURL string
	Model       string
	MaxTokens   int
	// Timeout bounds the whole upstream stream. Zero means no deadline.
	Timeout time.Duration
}

// Relay runs one chat turn: fetch the document, build the system prompt,
// stream the upstream reply into a Sink.
type Relay struct {
	log  *slog.Logger
	docs DocumentSource
	asm  *prompt.Assembler
	eng  Engine
	opts RelayOptions
}

func NewRelay(log *slog.Logger, docs DocumentSource, asm *prompt.Assembler, eng Engine, opts RelayOptions) *Relay {
	return &Relay{log: log, docs: docs, asm: asm, eng: eng, opts: opts}
}

// Run relays one turn. Every text delta is written to sink in arrival
// order, followed by Done. On failure sink receives exactly one Error and
// no Done. The returned error is the failure, or a sink write error when
// the client went away.
func (r *Relay) Run(ctx context.Context, conv types.Conversation, sink Sink) error {
	ctx, span := tracer.StartSpan(ctx, "relay.run")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("relay.engine", r.eng.Name()),
		tracer.IntAttr("relay.messages", len(conv)),
	)

	doc, ok := r.docs.FetchURL(ctx, r.opts.DocumentURL)
	system := r.asm.Build(doc, ok)
	if !ok {
		r.log.Warn("relaying without lore document", "url", r.opts.DocumentURL)
	}

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}
	// stops the engine if the sink fails mid-stream
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	ch, err := r.eng.Stream(ctx, Request{
		System:    system,
		Messages:  conv,
		Model:     r.opts.Model,
		MaxTokens: r.opts.MaxTokens,
	})
	if err != nil {
		return r.fail(span, sink, err)
	}

	deltas := 0
	for d := range ch {
		if d.Err != nil {
			return r.fail(span, sink, d.Err)
		}
		deltas++
		if err := sink.Content(d.Text); err != nil {
			tracer.RecordError(span, err)
			r.log.Warn("client write failed, abandoning stream", "deltas", deltas, "err", err)
			return fmt.Errorf("write content: %w", err)
		}
	}
	// the engine may stop without an error value when ctx ends
	if err := ctx.Err(); err != nil {
		return r.fail(span, sink, err)
	}

	if err := sink.Done(); err != nil {
		return fmt.Errorf("write done: %w", err)
	}
	span.SetAttributes(tracer.IntAttr("relay.deltas", deltas))
	tracer.SetOK(span)
	r.log.Info("relay complete", "engine", r.eng.Name(), "deltas", deltas, "document", ok, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (r *Relay) fail(span trace.Span, sink Sink, err error) error {
	tracer.RecordError(span, err)
	msg := err.Error()
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "upstream timed out"
	}
	r.log.Error("relay failed", "engine", r.eng.Name(), "err", err)
	if werr := sink.Error(msg); werr != nil {
		return errors.Join(err, werr)
	}
	return err
}
