// Package payment talks to the external payment-intent provider.
package payment

import (
	"context"
	"errors"
)

const StatusSucceeded = "succeeded"

var (
	ErrUnavailable = errors.New("payment provider unavailable")
	// ErrRejected marks a request the provider refused as invalid. It says
	// nothing about provider health.
	ErrRejected = errors.New("payment request rejected")
)

type IntentRequest struct {
	// Amount is in minor currency units (cents).
	Amount         int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
}

type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
	CancelIntent(ctx context.Context, id string) error
}
