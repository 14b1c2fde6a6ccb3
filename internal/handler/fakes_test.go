package handler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/flicky/go-storefront-api/internal/model"
	"github.com/flicky/go-storefront-api/internal/oauth"
	"github.com/flicky/go-storefront-api/internal/payment"
	"github.com/flicky/go-storefront-api/internal/repository"
)

type memDB struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*model.User
	products map[uuid.UUID]*model.Product
	carts    map[uuid.UUID]uuid.UUID // user id -> cart id
	items    []*model.CartItem
	orders   map[uuid.UUID]*model.Order
}

func newMemDB() *memDB {
	return &memDB{
		users:    map[uuid.UUID]*model.User{},
		products: map[uuid.UUID]*model.Product{},
		carts:    map[uuid.UUID]uuid.UUID{},
		orders:   map[uuid.UUID]*model.Order{},
	}
}

func (db *memDB) lines(cartID uuid.UUID) []model.CartItem {
	out := []model.CartItem{}
	for _, it := range db.items {
		if it.CartID == cartID {
			line := *it
			p := db.products[it.ProductID]
			line.Name, line.Price = p.Name, p.Price
			out = append(out, line)
		}
	}
	return out
}

type userRepo struct{ db *memDB }

func (r userRepo) Create(_ context.Context, u *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicateEmail
		}
	}
	u.ID = uuid.New()
	cp := *u
	r.db.users[u.ID] = &cp
	return nil
}

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if u, ok := r.db.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r userRepo) List(_ context.Context) ([]model.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.User{}
	for _, u := range r.db.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r userRepo) Update(_ context.Context, u *model.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.users[u.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *u
	r.db.users[u.ID] = &cp
	return nil
}

func (r userRepo) UpdateRole(_ context.Context, email, role string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, u := range r.db.users {
		if u.Email == email {
			u.Role = role
			return nil
		}
	}
	return pgx.ErrNoRows
}

type productRepo struct{ db *memDB }

func (r productRepo) Create(_ context.Context, p *model.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	cp := *p
	r.db.products[p.ID] = &cp
	return nil
}

func (r productRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if p, ok := r.db.products[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r productRepo) List(_ context.Context, _, _ int, _, _, _ string) ([]model.Product, int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.Product{}
	for _, p := range r.db.products {
		out = append(out, *p)
	}
	return out, len(out), nil
}

func (r productRepo) Update(_ context.Context, p *model.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.products[p.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *p
	r.db.products[p.ID] = &cp
	return nil
}

func (r productRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.products[id]; !ok {
		return pgx.ErrNoRows
	}
	for _, o := range r.db.orders {
		for _, it := range o.Items {
			if it.ProductID == id {
				return repository.ErrProductInUse
			}
		}
	}
	delete(r.db.products, id)
	return nil
}

func (r productRepo) DecrementStockForOrder(context.Context, []model.OrderItem) error { return nil }

type cartRepo struct{ db *memDB }

func (r cartRepo) GetOrCreateCart(_ context.Context, userID uuid.UUID) (*model.Cart, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	id, ok := r.db.carts[userID]
	if !ok {
		id = uuid.New()
		r.db.carts[userID] = id
	}
	return &model.Cart{ID: id, UserID: userID}, nil
}

func (r cartRepo) GetCartWithItems(_ context.Context, cartID uuid.UUID) (*model.Cart, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for userID, id := range r.db.carts {
		if id == cartID {
			return &model.Cart{ID: id, UserID: userID, Items: r.db.lines(id)}, nil
		}
	}
	return nil, nil
}

func (r cartRepo) AddItem(_ context.Context, item *model.CartItem) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, it := range r.db.items {
		if it.CartID == item.CartID && it.ProductID == item.ProductID {
			if it.Quantity+item.Quantity > model.MaxItemQuantity {
				return repository.ErrQuantityLimit
			}
			it.Quantity += item.Quantity
			return nil
		}
	}
	item.ID = uuid.New()
	cp := *item
	r.db.items = append(r.db.items, &cp)
	return nil
}

func (r cartRepo) UpdateItemQuantity(_ context.Context, cartID, itemID uuid.UUID, quantity int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, it := range r.db.items {
		if it.ID == itemID && it.CartID == cartID {
			it.Quantity = quantity
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r cartRepo) DeleteItem(_ context.Context, cartID, itemID uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for i, it := range r.db.items {
		if it.ID == itemID && it.CartID == cartID {
			r.db.items = append(r.db.items[:i], r.db.items[i+1:]...)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (db *memDB) removeOrdered(cartID uuid.UUID, ordered []model.OrderItem) {
	qty := map[uuid.UUID]int{}
	for _, oi := range ordered {
		qty[oi.ProductID] += oi.Quantity
	}
	kept := db.items[:0]
	for _, it := range db.items {
		if it.CartID == cartID && qty[it.ProductID] > 0 {
			if it.Quantity <= qty[it.ProductID] {
				continue
			}
			it.Quantity -= qty[it.ProductID]
		}
		kept = append(kept, it)
	}
	db.items = kept
}

type orderRepo struct{ db *memDB }

func (r orderRepo) CreateFromCart(_ context.Context, userID uuid.UUID, build repository.BuildOrderFunc) (*model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var lines []model.CartItem
	if id, ok := r.db.carts[userID]; ok {
		lines = r.db.lines(id)
	}
	order, err := build(lines)
	if err != nil {
		return nil, err
	}
	order.UserID = userID
	cp := *order
	r.db.orders[order.ID] = &cp
	return order, nil
}

func (r orderRepo) ConfirmPayment(_ context.Context, orderID uuid.UUID, confirm repository.ConfirmFunc) (*model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.orders[orderID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	order := *stored
	apply, err := confirm(&order)
	if err != nil {
		return nil, err
	}
	if apply {
		*stored = order
		if id, ok := r.db.carts[order.UserID]; ok {
			r.db.removeOrdered(id, order.Items)
		}
	}
	return &order, nil
}

func (r orderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if o, ok := r.db.orders[id]; ok {
		cp := *o
		return &cp, nil
	}
	return nil, nil
}

func (r orderRepo) ListByUserID(_ context.Context, userID uuid.UUID) ([]model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.Order{}
	for _, o := range r.db.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r orderRepo) ListAll(_ context.Context) ([]model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.Order{}
	for _, o := range r.db.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (r orderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) (*model.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, nil
	}
	o.Status = status
	cp := *o
	return &cp, nil
}

func (r orderRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.orders[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.db.orders, id)
	return nil
}

type fakeGateway struct {
	mu       sync.Mutex
	statuses map[string]string
	fail     error
}

func (g *fakeGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail != nil {
		return nil, g.fail
	}
	id := "pi_" + uuid.NewString()
	g.statuses[id] = "requires_payment_method"
	return &payment.Intent{ID: id, ClientSecret: id + "_secret", Amount: req.Amount, Currency: req.Currency}, nil
}

func (g *fakeGateway) GetIntent(_ context.Context, id string) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return &payment.Intent{ID: id, Status: g.statuses[id]}, nil
}

func (g *fakeGateway) CancelIntent(context.Context, string) error { return nil }

func (g *fakeGateway) succeed(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[id] = payment.StatusSucceeded
}

type fakeGoogle map[string]*oauth.GoogleProfile

func (f fakeGoogle) Verify(_ context.Context, credential string) (*oauth.GoogleProfile, error) {
	p, ok := f[credential]
	if !ok {
		return nil, oauth.ErrInvalidToken
	}
	return p, nil
}
