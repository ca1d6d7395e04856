package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	defaultBreakerFailures uint32 = 5
	defaultBreakerTimeout         = 30 * time.Second
)

// BreakerEngine fails fast once the wrapped engine has failed to open
// MaxFailures streams in a row. It guards stream initiation only; errors
// that arrive mid-stream travel through the channel and do not trip it.
type BreakerEngine struct {
	inner   Engine
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func NewBreakerEngine(inner Engine, maxFailures uint32, timeout time.Duration, log *slog.Logger) *BreakerEngine {
	if maxFailures == 0 {
		maxFailures = defaultBreakerFailures
	}
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "upstream:" + inner.Name(),
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
		// a cancelled request says nothing about upstream health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerEngine{inner: inner, breaker: cb}
}

func (b *BreakerEngine) Name() string { return b.inner.Name() }

func (b *BreakerEngine) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	var ch <-chan Delta
	_, err := b.breaker.Execute(func() (struct{}, error) {
		var err error
		ch, err = b.inner.Stream(ctx, req)
		return struct{}{}, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("upstream %q unavailable: %w", b.inner.Name(), err)
		}
		return nil, err
	}
	return ch, nil
}

func (b *BreakerEngine) State() gobreaker.State {
	return b.breaker.State()
}

var (
	_ Engine = (*BreakerEngine)(nil)
	_ Engine = (*AnthropicEngine)(nil)
	_ Engine = (*OllamaEngine)(nil)
	_ Engine = (*EchoEngine)(nil)
)
