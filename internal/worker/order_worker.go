package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/go-storefront-api/internal/model"
	"github.com/flicky/go-storefront-api/internal/repository"
)

const (
	paidQueueName  = "orders.paid"
	dlxExchange    = "orders.paid.dlx"
	dlqQueueName   = "orders.paid.dlq"
	idempotencyTTL = 24 * time.Hour
)

var errOrderGone = errors.New("order not found")

// processedStore is the subset of the redis client used for idempotency.
type processedStore interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// OrderWorker fulfils paid orders by taking their quantities out of stock.
type OrderWorker struct {
	channel     *amqp.Channel
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	processed   processedStore
	log         *slog.Logger
	done        chan struct{}
}

func NewOrderWorker(
	ch *amqp.Channel,
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	redisClient *redis.Client,
	log *slog.Logger,
) *OrderWorker {
	return &OrderWorker{
		channel:     ch,
		orderRepo:   orderRepo,
		productRepo: productRepo,
		processed:   redisClient,
		log:         log,
		done:        make(chan struct{}),
	}
}

// SetupRabbitMQ declares the paid-orders queue and its dead-letter pair.
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, paidQueueName, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(paidQueueName, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": paidQueueName,
	}); err != nil {
		return fmt.Errorf("declare paid queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

func (w *OrderWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(paidQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("order worker started", "queue", paidQueueName)
	return nil
}

func (w *OrderWorker) Stop() { close(w.done) }

func (w *OrderWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var orderMsg model.OrderMessage
	if err := json.Unmarshal(msg.Body, &orderMsg); err != nil {
		w.log.Error("unmarshal order message", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("order_id", orderMsg.OrderID, "user_id", orderMsg.UserID)

	key := processedKey(orderMsg.OrderID)
	exists, err := w.processed.Exists(ctx, key).Result()
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if exists > 0 {
		log.Info("order already fulfilled, skipping")
		_ = msg.Ack(false)
		return
	}

	skipped, err := w.fulfil(ctx, orderMsg.OrderID)
	if err != nil {
		log.Error("fulfil order", "error", err)
		_ = msg.Nack(false, false)
		return
	}
	if skipped {
		log.Warn("order is not paid, skipping")
		_ = msg.Ack(false)
		return
	}

	if err := w.processed.Set(ctx, key, "1", idempotencyTTL).Err(); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("order fulfilled")
}

// fulfil decrements stock for every line of a paid order in one transaction.
func (w *OrderWorker) fulfil(ctx context.Context, orderID uuid.UUID) (skipped bool, err error) {
	order, err := w.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return false, fmt.Errorf("%w: %s", errOrderGone, orderID)
	}
	if order.Status != model.OrderStatusPaid {
		return true, nil
	}

	if err := w.productRepo.DecrementStockForOrder(ctx, order.Items); err != nil {
		return false, fmt.Errorf("decrement stock: %w", err)
	}
	return false, nil
}

func processedKey(orderID uuid.UUID) string {
	return "order_fulfilled:" + orderID.String()
}
