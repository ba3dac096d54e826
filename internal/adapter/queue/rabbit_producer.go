package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aq2208/storefront-api/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "storefront.events"

	RoutingOrderPlaced        = "order.placed"
	RoutingOrderStatusChanged = "order.status_changed"

	// QueueOrderPlaced is declared by the Router that consumes it. Nothing
	// in this service consumes order.status_changed, so no queue is
	// declared for it; downstream services bind their own.
	QueueOrderPlaced = "order.placed.q"
)

type exchangeDeclarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
}

type confirmPublisher interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
}

// RabbitProducer implements usecase.EventPublisher.
type RabbitProducer struct {
	mu       sync.Mutex
	ch       confirmPublisher
	exchange string
}

// DeclareExchange declares the durable topic exchange. Safe to repeat.
func DeclareExchange(ch exchangeDeclarer, exchange string) error {
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return nil
}

// NewRabbitProducer declares the exchange and switches the channel to
// publisher-confirm mode. Queues belong to whoever consumes them.
func NewRabbitProducer(ch *amqp.Channel, exchange string) (*RabbitProducer, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := DeclareExchange(ch, exchange); err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}
	return &RabbitProducer{ch: ch, exchange: exchange}, nil
}

func (p *RabbitProducer) PublishPlaced(ctx context.Context, msg usecase.OrderPlacedMsg) error {
	return p.publish(ctx, RoutingOrderPlaced, msg.MessageID, msg)
}

func (p *RabbitProducer) PublishStatusChanged(ctx context.Context, msg usecase.OrderStatusChangedMsg) error {
	return p.publish(ctx, RoutingOrderStatusChanged, msg.MessageID, msg)
}

func (p *RabbitProducer) publish(ctx context.Context, key, messageID string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		MessageId:    messageID,
		Type:         key,
		Body:         body,
	}

	// one in-flight publish per channel
	p.mu.Lock()
	dc, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, key, false, false, pub)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	if dc == nil {
		return nil
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("confirm %s: %w", key, err)
	}
	if !acked {
		return fmt.Errorf("publish %s: nacked by broker", key)
	}
	return nil
}

var _ usecase.EventPublisher = (*RabbitProducer)(nil)
