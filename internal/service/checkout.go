package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/flicky/go-storefront-api/internal/model"
	"github.com/flicky/go-storefront-api/internal/payment"
	"github.com/flicky/go-storefront-api/internal/repository"
)

// EventPublisher announces paid orders for asynchronous fulfilment.
type EventPublisher interface {
	PublishOrderPaid(ctx context.Context, msg model.OrderMessage) error
}

type PaymentIntent struct {
	OrderID         uuid.UUID
	PaymentIntentID string
	ClientSecret    string
	Amount          int64
	Currency        string
}

type CheckoutService struct {
	orderRepo repository.OrderRepository
	gateway   payment.Gateway
	publisher EventPublisher
	currency  string
	log       *slog.Logger
}

// NewCheckoutService accepts a nil publisher; paid orders are then not announced.
func NewCheckoutService(orderRepo repository.OrderRepository, gateway payment.Gateway, publisher EventPublisher, currency string, log *slog.Logger) *CheckoutService {
	return &CheckoutService{
		orderRepo: orderRepo,
		gateway:   gateway,
		publisher: publisher,
		currency:  currency,
		log:       log,
	}
}

// CreatePaymentIntent snapshots the caller's cart into a Pending order and
// opens a payment intent for its total. The order and the intent share the
// order id as idempotency key; if the order cannot be committed the intent
// is cancelled. The cart itself is left untouched until payment succeeds.
func (s *CheckoutService) CreatePaymentIntent(ctx context.Context, id model.Identity) (*PaymentIntent, error) {
	var intent *payment.Intent

	order, err := s.orderRepo.CreateFromCart(ctx, id.UserID, func(items []model.CartItem) (*model.Order, error) {
		if len(items) == 0 {
			return nil, ErrEmptyCart
		}

		order := &model.Order{
			ID:     uuid.New(),
			UserID: id.UserID,
			Status: model.OrderStatusPending,
			Items:  make([]model.OrderItem, 0, len(items)),
		}
		for _, item := range items {
			order.Items = append(order.Items, model.OrderItem{
				ProductID: item.ProductID,
				Name:      item.Name,
				Quantity:  item.Quantity,
				Price:     item.Price,
			})
		}
		amount, err := ChargeAmount(items)
		if err != nil {
			return nil, err
		}
		order.TotalAmount = FromMinor(amount)

		intent, err = s.gateway.CreateIntent(ctx, payment.IntentRequest{
			Amount:   amount,
			Currency: s.currency,
			Metadata: map[string]string{
				"userId":  id.UserID.String(),
				"orderId": order.ID.String(),
			},
			IdempotencyKey: "order-" + order.ID.String(),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrPaymentProvider, err)
		}
		order.PaymentIntentID = intent.ID
		return order, nil
	})
	if err != nil {
		if intent != nil {
			s.cancelIntent(intent.ID)
		}
		if errors.Is(err, ErrEmptyCart) || errors.Is(err, ErrValidation) || errors.Is(err, ErrPaymentProvider) {
			return nil, err
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.log.Info("payment intent created",
		"order_id", order.ID,
		"user_id", id.UserID,
		"payment_intent_id", intent.ID,
		"amount", intent.Amount,
	)

	return &PaymentIntent{
		OrderID:         order.ID,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
	}, nil
}

// MarkPaid moves a Pending order to Paid once the provider reports the
// intent as succeeded, and removes the ordered lines from the owner's cart
// in the same transaction. Marking an already paid order again is a no-op;
// any other status set after payment is final.
func (s *CheckoutService) MarkPaid(ctx context.Context, id model.Identity, orderID uuid.UUID, paymentIntentID string) (*model.Order, error) {
	if paymentIntentID == "" {
		return nil, ErrIntentMismatch
	}

	transitioned := false
	order, err := s.orderRepo.ConfirmPayment(ctx, orderID, func(order *model.Order) (bool, error) {
		if order.UserID != id.UserID {
			return false, ErrOrderNotFound
		}
		if order.PaymentIntentID != paymentIntentID {
			return false, ErrIntentMismatch
		}
		switch order.Status {
		case model.OrderStatusPaid:
			return false, nil
		case model.OrderStatusPending:
		default:
			return false, ErrOrderNotPending
		}

		intent, err := s.gateway.GetIntent(ctx, paymentIntentID)
		if err != nil {
			return false, fmt.Errorf("%w: %w", ErrPaymentProvider, err)
		}
		if intent.Status != payment.StatusSucceeded {
			return false, ErrPaymentNotConfirmed
		}

		order.Status = model.OrderStatusPaid
		transitioned = true
		return true, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrOrderNotFound
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrValidation),
			errors.Is(err, ErrConflict), errors.Is(err, ErrPaymentProvider):
			return nil, err
		}
		return nil, fmt.Errorf("confirm payment: %w", err)
	}

	if transitioned {
		s.log.Info("order paid", "order_id", order.ID, "user_id", order.UserID)
		s.publishPaid(ctx, order)
	}
	return order, nil
}

func (s *CheckoutService) publishPaid(ctx context.Context, order *model.Order) {
	if s.publisher == nil {
		return
	}
	msg := model.OrderMessage{OrderID: order.ID, UserID: order.UserID}
	if err := s.publisher.PublishOrderPaid(ctx, msg); err != nil {
		s.log.Error("publish order paid", "order_id", order.ID, "error", err)
	}
}

func (s *CheckoutService) cancelIntent(intentID string) {
	ctx := context.Background()
	if err := s.gateway.CancelIntent(ctx, intentID); err != nil {
		s.log.Error("cancel orphaned payment intent", "payment_intent_id", intentID, "error", err)
		return
	}
	s.log.Warn("cancelled orphaned payment intent", "payment_intent_id", intentID)
}
