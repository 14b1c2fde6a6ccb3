package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

// BreakerGateway fails fast with ErrUnavailable while the provider keeps erroring.
type BreakerGateway struct {
	next    Gateway
	intents *gobreaker.CircuitBreaker[*Intent]
}

func NewBreakerGateway(next Gateway, s BreakerSettings, log *slog.Logger) *BreakerGateway {
	st := gobreaker.Settings{
		Name:        "payment-provider",
		MaxRequests: 1,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrRejected)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &BreakerGateway{next: next, intents: gobreaker.NewCircuitBreaker[*Intent](st)}
}

func (g *BreakerGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	return g.execute(func() (*Intent, error) { return g.next.CreateIntent(ctx, req) })
}

func (g *BreakerGateway) GetIntent(ctx context.Context, id string) (*Intent, error) {
	return g.execute(func() (*Intent, error) { return g.next.GetIntent(ctx, id) })
}

func (g *BreakerGateway) CancelIntent(ctx context.Context, id string) error {
	_, err := g.execute(func() (*Intent, error) { return nil, g.next.CancelIntent(ctx, id) })
	return err
}

func (g *BreakerGateway) execute(fn func() (*Intent, error)) (*Intent, error) {
	intent, err := g.intents.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return intent, err
}
