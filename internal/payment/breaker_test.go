package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGateway struct {
	calls int
	err   error
}

func (s *stubGateway) CreateIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Intent{ID: "pi_1", ClientSecret: "pi_1_secret", Amount: req.Amount, Currency: req.Currency}, nil
}

func (s *stubGateway) GetIntent(_ context.Context, id string) (*Intent, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &Intent{ID: id, Status: StatusSucceeded}, nil
}

func (s *stubGateway) CancelIntent(context.Context, string) error {
	s.calls++
	return s.err
}

func newTestBreaker(next Gateway) *BreakerGateway {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewBreakerGateway(next, BreakerSettings{MaxFailures: 2, OpenTimeout: time.Minute}, log)
}

func TestBreakerGateway_PassesThrough(t *testing.T) {
	stub := &stubGateway{}
	gw := newTestBreaker(stub)

	intent, err := gw.CreateIntent(context.Background(), IntentRequest{Amount: 3997, Currency: "usd"})
	require.NoError(t, err)
	assert.Equal(t, int64(3997), intent.Amount)

	got, err := gw.GetIntent(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, got.Status)

	require.NoError(t, gw.CancelIntent(context.Background(), "pi_1"))
	assert.Equal(t, 3, stub.calls)
}

func TestBreakerGateway_OpensAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("connection refused")
	stub := &stubGateway{err: boom}
	gw := newTestBreaker(stub)

	for i := 0; i < 2; i++ {
		_, err := gw.CreateIntent(context.Background(), IntentRequest{Amount: 100})
		assert.ErrorIs(t, err, boom)
	}

	_, err := gw.CreateIntent(context.Background(), IntentRequest{Amount: 100})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, stub.calls)
}

func TestBreakerGateway_RejectionsDoNotTrip(t *testing.T) {
	stub := &stubGateway{err: fmt.Errorf("%w: amount_too_small", ErrRejected)}
	gw := newTestBreaker(stub)

	for i := 0; i < 5; i++ {
		_, err := gw.CreateIntent(context.Background(), IntentRequest{Amount: 10})
		assert.ErrorIs(t, err, ErrRejected)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	stub.err = nil
	intent, err := gw.CreateIntent(context.Background(), IntentRequest{Amount: 5000})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), intent.Amount)
	assert.Equal(t, 6, stub.calls)
}
