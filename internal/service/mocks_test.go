package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/flicky/go-storefront-api/internal/model"
	"github.com/flicky/go-storefront-api/internal/payment"
	"github.com/flicky/go-storefront-api/internal/repository"
)

// memStore backs every mock repository so that cross-repository behaviour
// (cart lines priced from products, orders clearing carts) matches postgres.
type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*model.User
	products map[uuid.UUID]*model.Product
	carts    map[uuid.UUID]*model.Cart // keyed by user id
	items    map[uuid.UUID]*model.CartItem
	orders   map[uuid.UUID]*model.Order

	// failCommit makes CreateFromCart fail after build succeeds.
	failCommit error
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[uuid.UUID]*model.User),
		products: make(map[uuid.UUID]*model.Product),
		carts:    make(map[uuid.UUID]*model.Cart),
		items:    make(map[uuid.UUID]*model.CartItem),
		orders:   make(map[uuid.UUID]*model.Order),
	}
}

func (s *memStore) addProduct(p model.Product) *model.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.products[p.ID] = &p
	return &p
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

// --- users ---

type mockUserRepo struct{ s *memStore }

var _ repository.UserRepository = (*mockUserRepo)(nil)

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	m.s.users[user.ID] = &cp
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	u, ok := m.s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) List(_ context.Context) ([]model.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	users := make([]model.User, 0, len(m.s.users))
	for _, u := range m.s.users {
		users = append(users, *u)
	}
	return users, nil
}

func (m *mockUserRepo) Update(_ context.Context, user *model.User) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	existing, ok := m.s.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	for _, u := range m.s.users {
		if u.ID != user.ID && u.Email == user.Email {
			return repository.ErrDuplicateEmail
		}
	}
	existing.Name, existing.Email, existing.Password = user.Name, user.Email, user.Password
	return nil
}

func (m *mockUserRepo) UpdateRole(_ context.Context, email, role string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, u := range m.s.users {
		if u.Email == email {
			u.Role = role
			return nil
		}
	}
	return pgx.ErrNoRows
}

// --- products ---

type mockProductRepo struct {
	s          *memStore
	referenced map[uuid.UUID]bool
}

var _ repository.ProductRepository = (*mockProductRepo)(nil)

func (m *mockProductRepo) Create(_ context.Context, p *model.Product) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.s.addProduct(*p)
	return nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.products[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) List(_ context.Context, limit, offset int, _, _, _ string) ([]model.Product, int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	all := make([]model.Product, 0, len(m.s.products))
	for _, p := range m.s.products {
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	total := len(all)
	if offset >= total {
		return []model.Product{}, total, nil
	}
	end := min(offset+limit, total)
	return all[offset:end], total, nil
}

func (m *mockProductRepo) Update(_ context.Context, p *model.Product) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.products[p.ID]; !ok {
		return pgx.ErrNoRows
	}
	cp := *p
	m.s.products[p.ID] = &cp
	return nil
}

func (m *mockProductRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.products[id]; !ok {
		return pgx.ErrNoRows
	}
	if m.referenced[id] {
		return repository.ErrProductInUse
	}
	delete(m.s.products, id)
	return nil
}

func (m *mockProductRepo) DecrementStockForOrder(_ context.Context, items []model.OrderItem) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, it := range items {
		p, ok := m.s.products[it.ProductID]
		if !ok || p.Stock < it.Quantity {
			return repository.ErrInsufficientStock
		}
	}
	for _, it := range items {
		m.s.products[it.ProductID].Stock -= it.Quantity
	}
	return nil
}

// --- carts ---

type mockCartRepo struct{ s *memStore }

var _ repository.CartRepository = (*mockCartRepo)(nil)

func (m *mockCartRepo) GetOrCreateCart(_ context.Context, userID uuid.UUID) (*model.Cart, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c, ok := m.s.carts[userID]; ok {
		return &model.Cart{ID: c.ID, UserID: c.UserID}, nil
	}
	c := &model.Cart{ID: uuid.New(), UserID: userID, CreatedAt: time.Now()}
	m.s.carts[userID] = c
	return &model.Cart{ID: c.ID, UserID: c.UserID}, nil
}

func (m *mockCartRepo) GetCartWithItems(_ context.Context, cartID uuid.UUID) (*model.Cart, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.carts {
		if c.ID == cartID {
			return &model.Cart{ID: c.ID, UserID: c.UserID, Items: m.s.linesLocked(cartID)}, nil
		}
	}
	return nil, nil
}

func (m *mockCartRepo) AddItem(_ context.Context, item *model.CartItem) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, existing := range m.s.items {
		if existing.CartID == item.CartID && existing.ProductID == item.ProductID {
			if existing.Quantity+item.Quantity > model.MaxItemQuantity {
				return repository.ErrQuantityLimit
			}
			existing.Quantity += item.Quantity
			item.ID, item.Quantity = existing.ID, existing.Quantity
			return nil
		}
	}
	item.ID = uuid.New()
	item.CreatedAt = time.Now()
	cp := *item
	m.s.items[item.ID] = &cp
	return nil
}

func (m *mockCartRepo) UpdateItemQuantity(_ context.Context, cartID, itemID uuid.UUID, quantity int) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	item, ok := m.s.items[itemID]
	if !ok || item.CartID != cartID {
		return pgx.ErrNoRows
	}
	item.Quantity = quantity
	return nil
}

func (m *mockCartRepo) DeleteItem(_ context.Context, cartID, itemID uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	item, ok := m.s.items[itemID]
	if !ok || item.CartID != cartID {
		return pgx.ErrNoRows
	}
	delete(m.s.items, itemID)
	return nil
}

func (s *memStore) linesLocked(cartID uuid.UUID) []model.CartItem {
	lines := []model.CartItem{}
	for _, it := range s.items {
		if it.CartID != cartID {
			continue
		}
		line := *it
		if p, ok := s.products[it.ProductID]; ok {
			line.Name, line.Price = p.Name, p.Price
		}
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].CreatedAt.Before(lines[j].CreatedAt) })
	return lines
}

// removeOrderedLocked subtracts the ordered quantities from the cart.
func (s *memStore) removeOrderedLocked(cartID uuid.UUID, ordered []model.OrderItem) {
	for _, oi := range ordered {
		for id, it := range s.items {
			if it.CartID != cartID || it.ProductID != oi.ProductID {
				continue
			}
			if it.Quantity <= oi.Quantity {
				delete(s.items, id)
			} else {
				it.Quantity -= oi.Quantity
			}
		}
	}
}

// --- orders ---

type mockOrderRepo struct{ s *memStore }

var _ repository.OrderRepository = (*mockOrderRepo)(nil)

func (m *mockOrderRepo) CreateFromCart(_ context.Context, userID uuid.UUID, build repository.BuildOrderFunc) (*model.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var lines []model.CartItem
	if c, ok := m.s.carts[userID]; ok {
		lines = m.s.linesLocked(c.ID)
	}
	order, err := build(lines)
	if err != nil {
		return nil, err
	}
	if m.s.failCommit != nil {
		return nil, m.s.failCommit
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.UserID = userID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
	}
	cp := *order
	cp.Items = append([]model.OrderItem(nil), order.Items...)
	m.s.orders[order.ID] = &cp
	return order, nil
}

func (m *mockOrderRepo) ConfirmPayment(_ context.Context, orderID uuid.UUID, confirm repository.ConfirmFunc) (*model.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	stored, ok := m.s.orders[orderID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	order := *stored
	apply, err := confirm(&order)
	if err != nil {
		return nil, err
	}
	if !apply {
		return &order, nil
	}
	order.UpdatedAt = time.Now()
	*stored = order
	if c, ok := m.s.carts[order.UserID]; ok {
		m.s.removeOrderedLocked(c.ID, order.Items)
	}
	return &order, nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.orders[id]
	if !ok {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) ListByUserID(_ context.Context, userID uuid.UUID) ([]model.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	orders := []model.Order{}
	for _, o := range m.s.orders {
		if o.UserID == userID {
			orders = append(orders, *o)
		}
	}
	return orders, nil
}

func (m *mockOrderRepo) ListAll(_ context.Context) ([]model.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	orders := make([]model.Order, 0, len(m.s.orders))
	for _, o := range m.s.orders {
		orders = append(orders, *o)
	}
	return orders, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) (*model.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.orders[id]
	if !ok {
		return nil, nil
	}
	o.Status = status
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.orders[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.s.orders, id)
	return nil
}

// --- payment gateway ---

type fakeGateway struct {
	mu         sync.Mutex
	intents    map[string]*payment.Intent
	createErr  error
	getErr     error
	cancelled  []string
	lastCreate payment.IntentRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: make(map[string]*payment.Intent)}
}

func (g *fakeGateway) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastCreate = req
	if g.createErr != nil {
		return nil, g.createErr
	}
	id := "pi_" + uuid.NewString()[:8]
	intent := &payment.Intent{
		ID:           id,
		ClientSecret: id + "_secret",
		Status:       "requires_payment_method",
		Amount:       req.Amount,
		Currency:     req.Currency,
	}
	g.intents[id] = intent
	cp := *intent
	return &cp, nil
}

func (g *fakeGateway) GetIntent(_ context.Context, id string) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getErr != nil {
		return nil, g.getErr
	}
	intent, ok := g.intents[id]
	if !ok {
		return nil, errors.New("no such payment_intent")
	}
	cp := *intent
	return &cp, nil
}

func (g *fakeGateway) CancelIntent(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelled = append(g.cancelled, id)
	if intent, ok := g.intents[id]; ok {
		intent.Status = "canceled"
	}
	return nil
}

func (g *fakeGateway) succeed(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[id].Status = payment.StatusSucceeded
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []model.OrderMessage
}

func (p *recordingPublisher) PublishOrderPaid(_ context.Context, msg model.OrderMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

type fixture struct {
	store    *memStore
	gateway  *fakeGateway
	events   *recordingPublisher
	products *mockProductRepo
	cart     *CartService
	checkout *CheckoutService
	orders   *OrderService
}

func newFixture() *fixture {
	store := newMemStore()
	gw := newFakeGateway()
	events := &recordingPublisher{}
	products := &mockProductRepo{s: store, referenced: map[uuid.UUID]bool{}}
	cartRepo := &mockCartRepo{s: store}
	orderRepo := &mockOrderRepo{s: store}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		store:    store,
		gateway:  gw,
		events:   events,
		products: products,
		cart:     NewCartService(cartRepo, products),
		checkout: NewCheckoutService(orderRepo, gw, events, "usd", log),
		orders:   NewOrderService(orderRepo),
	}
}

func customer() model.Identity {
	return model.Identity{UserID: uuid.New(), Role: model.RoleUser}
}

func admin() model.Identity {
	return model.Identity{UserID: uuid.New(), Role: model.RoleAdmin}
}
