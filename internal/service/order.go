package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/flicky/go-storefront-api/internal/model"
	"github.com/flicky/go-storefront-api/internal/repository"
)

type OrderService struct {
	orderRepo repository.OrderRepository
}

func NewOrderService(orderRepo repository.OrderRepository) *OrderService {
	return &OrderService{orderRepo: orderRepo}
}

func (s *OrderService) ListMine(ctx context.Context, id model.Identity) ([]model.Order, error) {
	orders, err := s.orderRepo.ListByUserID(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Get returns the order to its owner or to an admin.
func (s *OrderService) Get(ctx context.Context, id model.Identity, orderID uuid.UUID) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != id.UserID && !id.IsAdmin() {
		return nil, ErrOrderAccessDenied
	}
	return order, nil
}

func (s *OrderService) ListAll(ctx context.Context, id model.Identity) ([]model.Order, error) {
	if !id.IsAdmin() {
		return nil, ErrAdminOnly
	}
	orders, err := s.orderRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, id model.Identity, orderID uuid.UUID, status string) (*model.Order, error) {
	if !id.IsAdmin() {
		return nil, ErrAdminOnly
	}
	status = strings.TrimSpace(status)
	if status == "" {
		return nil, ErrMissingStatus
	}

	order, err := s.orderRepo.UpdateStatus(ctx, orderID, status)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) Delete(ctx context.Context, id model.Identity, orderID uuid.UUID) error {
	if !id.IsAdmin() {
		return ErrAdminOnly
	}
	if err := s.orderRepo.Delete(ctx, orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}
