package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/flicky/go-storefront-api/internal/model"
)

// BuildOrderFunc receives the caller's cart lines, priced from the catalog,
// and returns the order to persist. An error aborts the transaction.
type BuildOrderFunc func(items []model.CartItem) (*model.Order, error)

// ConfirmFunc inspects and mutates the locked order. apply=false leaves it untouched.
type ConfirmFunc func(order *model.Order) (apply bool, err error)

type OrderRepository interface {
	CreateFromCart(ctx context.Context, userID uuid.UUID, build BuildOrderFunc) (*model.Order, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, confirm ConfirmFunc) (*model.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error)
	ListAll(ctx context.Context) ([]model.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*model.Order, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type pgOrderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepository(pool *pgxpool.Pool) OrderRepository {
	return &pgOrderRepo{pool: pool}
}

// CreateFromCart locks the user's cart and its lines for the whole
// transaction, so a concurrent add either lands before the snapshot or
// waits for the order to be written.
func (r *pgOrderRepo) CreateFromCart(ctx context.Context, userID uuid.UUID, build BuildOrderFunc) (*model.Order, error) {
	var order *model.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		items, err := lockCartLines(ctx, tx, userID)
		if err != nil {
			return err
		}

		order, err = build(items)
		if err != nil {
			return err
		}
		if order.ID == uuid.Nil {
			order.ID = uuid.New()
		}
		order.UserID = userID

		err = tx.QueryRow(ctx,
			`INSERT INTO orders (id, user_id, status, total_amount, payment_intent_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING created_at, updated_at`,
			order.ID, order.UserID, order.Status, order.TotalAmount, order.PaymentIntentID,
		).Scan(&order.CreatedAt, &order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range order.Items {
			order.Items[i].ID = uuid.New()
			order.Items[i].OrderID = order.ID
			_, err = tx.Exec(ctx,
				`INSERT INTO order_items (id, order_id, product_id, name, quantity, price, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
				order.Items[i].ID, order.Items[i].OrderID, order.Items[i].ProductID,
				order.Items[i].Name, order.Items[i].Quantity, order.Items[i].Price,
			)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func lockCartLines(ctx context.Context, tx pgx.Tx, userID uuid.UUID) ([]model.CartItem, error) {
	var cartID uuid.UUID
	err := tx.QueryRow(ctx, `SELECT id FROM carts WHERE user_id = $1 FOR UPDATE`, userID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock cart: %w", err)
	}

	rows, err := tx.Query(ctx,
		`SELECT ci.id, ci.cart_id, ci.product_id, p.name, p.price, ci.quantity, ci.created_at, ci.updated_at
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.cart_id = $1
		 ORDER BY ci.created_at, ci.id
		 FOR UPDATE OF ci`, cartID,
	)
	if err != nil {
		return nil, fmt.Errorf("lock cart items: %w", err)
	}
	return scanCartItems(rows)
}

// ConfirmPayment locks the order row, lets confirm decide, then writes the
// new status and takes the ordered lines out of the owner's cart in the same
// transaction.
func (r *pgOrderRepo) ConfirmPayment(ctx context.Context, orderID uuid.UUID, confirm ConfirmFunc) (*model.Order, error) {
	var order *model.Order
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		order, err = getOrder(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		if order == nil {
			return pgx.ErrNoRows
		}

		apply, err := confirm(order)
		if err != nil || !apply {
			return err
		}

		err = tx.QueryRow(ctx,
			`UPDATE orders SET status = $2, payment_intent_id = $3, updated_at = NOW()
			 WHERE id = $1 RETURNING updated_at`,
			order.ID, order.Status, order.PaymentIntentID,
		).Scan(&order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update order: %w", err)
		}

		return removeOrderedLines(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// removeOrderedLines subtracts the ordered quantities from the owner's cart.
// Lines or quantities added after checkout stay in the cart.
func removeOrderedLines(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	_, err := tx.Exec(ctx,
		`DELETE FROM cart_items ci
		 USING carts c, order_items oi
		 WHERE c.id = ci.cart_id AND c.user_id = $1
		   AND oi.order_id = $2 AND oi.product_id = ci.product_id
		   AND ci.quantity <= oi.quantity`,
		order.UserID, order.ID,
	)
	if err != nil {
		return fmt.Errorf("remove ordered cart lines: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE cart_items ci SET quantity = ci.quantity - oi.quantity, updated_at = NOW()
		 FROM carts c, order_items oi
		 WHERE c.id = ci.cart_id AND c.user_id = $1
		   AND oi.order_id = $2 AND oi.product_id = ci.product_id`,
		order.UserID, order.ID,
	)
	if err != nil {
		return fmt.Errorf("reduce ordered cart lines: %w", err)
	}
	return nil
}

func (r *pgOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return getOrder(ctx, r.pool, id, false)
}

func getOrder(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*model.Order, error) {
	query := `SELECT id, user_id, status, total_amount, payment_intent_id, created_at, updated_at
			  FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	order := &model.Order{}
	err := q.QueryRow(ctx, query, id).Scan(
		&order.ID, &order.UserID, &order.Status, &order.TotalAmount,
		&order.PaymentIntentID, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := q.Query(ctx,
		`SELECT id, product_id, name, quantity, price FROM order_items WHERE order_id = $1 ORDER BY created_at, id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.Name, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		item.OrderID = order.ID
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read order items: %w", err)
	}
	return order, nil
}

func (r *pgOrderRepo) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, status, total_amount, payment_intent_id, created_at, updated_at
		 FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		o.UserID = userID
		if err := rows.Scan(&o.ID, &o.Status, &o.TotalAmount, &o.PaymentIntentID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *pgOrderRepo) ListAll(ctx context.Context) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.user_id, u.email, o.status, o.total_amount, o.payment_intent_id, o.created_at, o.updated_at
		 FROM orders o
		 JOIN users u ON u.id = o.user_id
		 ORDER BY o.created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list all orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.UserEmail, &o.Status, &o.TotalAmount,
			&o.PaymentIntentID, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *pgOrderRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*model.Order, error) {
	ct, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1`, id, status,
	)
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

func (r *pgOrderRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
