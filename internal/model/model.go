package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Order statuses written by the checkout flow. Admins may set any other
// fulfilment status (e.g. "shipped"), so the field stays a plain string.
const (
	OrderStatusPending = "Pending"
	OrderStatusPaid    = "Paid"
)

// MaxItemQuantity caps a single cart or order line.
const MaxItemQuantity = 10000

// Identity is the authenticated caller, resolved from the bearer token.
type Identity struct {
	UserID uuid.UUID
	Role   string
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Password  string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Product struct {
	ID          uuid.UUID
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Cart struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem carries the product's current name and price when read
// through a cart; they are never written back.
type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	Name      string
	Price     decimal.Decimal
	Quantity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Order struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	UserEmail       string
	Status          string
	TotalAmount     decimal.Decimal
	PaymentIntentID string
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem.Price is the product price at checkout time.
type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Name      string
	Quantity  int
	Price     decimal.Decimal
}

type OrderMessage struct {
	OrderID uuid.UUID `json:"order_id"`
	UserID  uuid.UUID `json:"user_id"`
}
