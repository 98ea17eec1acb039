package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ironworks/storefront-api/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

// OrderPlacedRoutingKey is the routing key of events published after checkout
const OrderPlacedRoutingKey = "order.placed"

// OrderEvent is the message published when an order is committed
type OrderEvent struct {
	OrderID     uint               `json:"order_id"`
	Number      string             `json:"number"`
	Status      models.OrderStatus `json:"status"`
	Email       string             `json:"email"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	ItemsCount  int                `json:"items_count"`
	CreatedAt   time.Time          `json:"created_at"`
}

// NewOrderEvent builds the event payload for an order with loaded items
func NewOrderEvent(order *models.Order) OrderEvent {
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}
	return OrderEvent{
		OrderID:     order.ID,
		Number:      order.Number,
		Status:      order.Status,
		Email:       order.Email,
		TotalAmount: order.TotalAmount,
		ItemsCount:  count,
		CreatedAt:   order.CreatedAt,
	}
}

// OrderNotifier publishes order events to downstream consumers (mail, CRM)
type OrderNotifier interface {
	OrderPlaced(ctx context.Context, event OrderEvent) error
}

var orderNotifierInstance OrderNotifier = NoopNotifier{}

// GetOrderNotifier returns the configured notifier
func GetOrderNotifier() OrderNotifier {
	return orderNotifierInstance
}

// SetOrderNotifier sets the notifier instance
func SetOrderNotifier(n OrderNotifier) {
	if n == nil {
		n = NoopNotifier{}
	}
	orderNotifierInstance = n
}

// NoopNotifier drops every event; used when no broker is configured
type NoopNotifier struct{}

// OrderPlaced does nothing
func (NoopNotifier) OrderPlaced(context.Context, OrderEvent) error { return nil }

// AMQPNotifier publishes events to a RabbitMQ topic exchange
type AMQPNotifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	mu       sync.Mutex
}

// NewAMQPNotifier dials the broker and declares the durable topic exchange
func NewAMQPNotifier(url, exchange string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	slog.Info("order events publisher ready", "exchange", exchange)
	return &AMQPNotifier{conn: conn, channel: ch, exchange: exchange}, nil
}

// OrderPlaced publishes the event as persistent JSON
func (n *AMQPNotifier) OrderPlaced(ctx context.Context, event OrderEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode order event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	n.mu.Lock()
	defer n.mu.Unlock()

	err = n.channel.PublishWithContext(ctx, n.exchange, OrderPlacedRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.Number,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}
	return nil
}

// Close releases the channel and connection
func (n *AMQPNotifier) Close() error {
	if err := n.channel.Close(); err != nil {
		slog.Warn("failed to close amqp channel", "error", err)
	}
	return n.conn.Close()
}

// RecordingNotifier keeps published events in memory, for tests
type RecordingNotifier struct {
	mu     sync.Mutex
	events []OrderEvent
	Err    error
}

// OrderPlaced records the event and returns Err
func (r *RecordingNotifier) OrderPlaced(_ context.Context, event OrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return r.Err
}

// Events returns a copy of the recorded events
func (r *RecordingNotifier) Events() []OrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]OrderEvent(nil), r.events...)
}
