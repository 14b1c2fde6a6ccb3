package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/flicky/go-storefront-api/internal/model"
	"github.com/flicky/go-storefront-api/internal/repository"
)

// CartService manages the single cart each user owns. Every mutation
// returns the refreshed cart so callers never have to re-read it.
type CartService struct {
	cartRepo    repository.CartRepository
	productRepo repository.ProductRepository
}

func NewCartService(cartRepo repository.CartRepository, productRepo repository.ProductRepository) *CartService {
	return &CartService{cartRepo: cartRepo, productRepo: productRepo}
}

func (s *CartService) GetCart(ctx context.Context, id model.Identity) (*model.Cart, error) {
	cart, err := s.cartRepo.GetOrCreateCart(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}
	return s.loadCart(ctx, cart)
}

// AddItem merges into an existing line for the same product by summing
// quantities. The merge happens in a single upsert, so concurrent adds
// never lose increments.
func (s *CartService) AddItem(ctx context.Context, id model.Identity, productID uuid.UUID, quantity int) (*model.Cart, error) {
	if productID == uuid.Nil {
		return nil, ErrMissingProduct
	}
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}

	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	cart, err := s.cartRepo.GetOrCreateCart(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}

	if err := s.cartRepo.AddItem(ctx, &model.CartItem{
		CartID:    cart.ID,
		ProductID: productID,
		Quantity:  quantity,
	}); err != nil {
		if errors.Is(err, repository.ErrQuantityLimit) {
			return nil, ErrQuantityTooLarge
		}
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	return s.loadCart(ctx, cart)
}

// UpdateItem overwrites the quantity of a line in the caller's cart.
// Lines in other users' carts are reported as not found.
func (s *CartService) UpdateItem(ctx context.Context, id model.Identity, itemID uuid.UUID, quantity int) (*model.Cart, error) {
	if err := checkQuantity(quantity); err != nil {
		return nil, err
	}

	cart, err := s.cartRepo.GetOrCreateCart(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}

	if err := s.cartRepo.UpdateItemQuantity(ctx, cart.ID, itemID, quantity); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrCartItemNotFound
		case errors.Is(err, repository.ErrQuantityLimit):
			return nil, ErrQuantityTooLarge
		}
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	return s.loadCart(ctx, cart)
}

func (s *CartService) RemoveItem(ctx context.Context, id model.Identity, itemID uuid.UUID) (*model.Cart, error) {
	cart, err := s.cartRepo.GetOrCreateCart(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("get or create cart: %w", err)
	}

	if err := s.cartRepo.DeleteItem(ctx, cart.ID, itemID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, fmt.Errorf("delete cart item: %w", err)
	}
	return s.loadCart(ctx, cart)
}

func checkQuantity(quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if quantity > model.MaxItemQuantity {
		return ErrQuantityTooLarge
	}
	return nil
}

func (s *CartService) loadCart(ctx context.Context, cart *model.Cart) (*model.Cart, error) {
	full, err := s.cartRepo.GetCartWithItems(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("get cart items: %w", err)
	}
	if full == nil {
		// Removed between the two reads, e.g. the user was deleted.
		return &model.Cart{ID: cart.ID, UserID: cart.UserID, Items: []model.CartItem{}}, nil
	}
	if full.Items == nil {
		full.Items = []model.CartItem{}
	}
	return full, nil
}
