package service

import (
	"errors"
	"fmt"

	"github.com/flicky/go-storefront-api/internal/model"
)

// Error categories. Handlers map these to HTTP statuses with errors.Is;
// the specific errors below wrap exactly one of them.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrPaymentProvider = errors.New("payment provider error")
)

var (
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	ErrMissingProduct  = fmt.Errorf("%w: product_id is required", ErrValidation)
	ErrMissingStatus   = fmt.Errorf("%w: status is required", ErrValidation)
	ErrIntentMismatch  = fmt.Errorf("%w: payment intent does not belong to this order", ErrValidation)
	ErrNothingToUpdate = fmt.Errorf("%w: no fields to update", ErrValidation)

	ErrQuantityTooLarge = fmt.Errorf("%w: quantity must be at most %d", ErrValidation, model.MaxItemQuantity)
	ErrAmountTooSmall   = fmt.Errorf("%w: order total is below the minimum charge", ErrValidation)
	ErrAmountTooLarge   = fmt.Errorf("%w: order total exceeds the maximum charge", ErrValidation)
	ErrMissingIDToken   = fmt.Errorf("%w: credential is required", ErrValidation)

	ErrProductNotFound  = fmt.Errorf("product %w", ErrNotFound)
	ErrCartItemNotFound = fmt.Errorf("cart item %w", ErrNotFound)
	ErrOrderNotFound    = fmt.Errorf("order %w", ErrNotFound)
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)

	ErrGoogleSignInDisabled = fmt.Errorf("google sign-in %w", ErrNotFound)

	ErrOrderAccessDenied = fmt.Errorf("%w: access denied", ErrForbidden)
	ErrAdminOnly         = fmt.Errorf("%w: admin only", ErrForbidden)

	ErrEmptyCart           = fmt.Errorf("%w: cart is empty", ErrConflict)
	ErrPaymentNotConfirmed = fmt.Errorf("%w: payment has not succeeded", ErrConflict)
	ErrProductInUse        = fmt.Errorf("%w: product is referenced by orders", ErrConflict)
	ErrUserAlreadyExists   = fmt.Errorf("%w: user already exists", ErrConflict)
	ErrOrderNotPending     = fmt.Errorf("%w: order is no longer awaiting payment", ErrConflict)

	ErrInvalidCredentials = errors.New("invalid credentials")
)
