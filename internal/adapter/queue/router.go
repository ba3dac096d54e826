package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aq2208/storefront-api/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp.Channel the Router needs.
type Channel interface {
	exchangeDeclarer
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	ConsumeWithContext(ctx context.Context, queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Router manages multiple consumers (one per registered queue) on a single
// AMQP channel. Each registered queue is declared and bound to the exchange
// when the Router starts.
type Router struct {
	ch            Channel
	exchange      string
	prefetch      int
	callTimeout   time.Duration
	requeueOnErr  bool
	registrations []registration
	log           *slog.Logger
}

type registration struct {
	queueName   string
	routingKey  string
	handler     Handler
	consumerTag string
}

type RouterOption func(*Router)

func WithExchange(name string) RouterOption    { return func(r *Router) { r.exchange = name } }
func WithPrefetch(n int) RouterOption          { return func(r *Router) { r.prefetch = n } }
func WithTimeout(d time.Duration) RouterOption { return func(r *Router) { r.callTimeout = d } }
func WithRequeue(b bool) RouterOption          { return func(r *Router) { r.requeueOnErr = b } }

// NewRouter constructs a Router. Defaults: exchange=DefaultExchange,
// prefetch=50, timeout=10s, requeueOnErr=true.
func NewRouter(ch Channel, opts ...RouterOption) *Router {
	r := &Router{
		ch:           ch,
		exchange:     DefaultExchange,
		prefetch:     50,
		callTimeout:  10 * time.Second,
		requeueOnErr: true,
		log:          logging.New("rmq-router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.exchange == "" {
		r.exchange = DefaultExchange
	}
	return r
}

// Register binds queueName to routingKey on the Router's exchange.
func (r *Router) Register(queueName, routingKey string, h Handler) {
	r.registrations = append(r.registrations, registration{
		queueName:   queueName,
		routingKey:  routingKey,
		handler:     h,
		consumerTag: "c_" + queueName,
	})
}

// Start declares the topology and begins consuming; non-blocking (one
// goroutine per queue). Consumers stop when ctx is cancelled or the channel
// closes.
func (r *Router) Start(ctx context.Context) error {
	if len(r.registrations) == 0 {
		return nil
	}
	if err := DeclareExchange(r.ch, r.exchange); err != nil {
		return err
	}
	if err := r.ch.Qos(r.prefetch, 0, false); err != nil {
		return err
	}

	for _, reg := range r.registrations {
		if err := r.bind(reg); err != nil {
			return err
		}
		deliveries, err := r.ch.ConsumeWithContext(
			ctx,
			reg.queueName,
			reg.consumerTag,
			false, // manual ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if err != nil {
			return err
		}

		go func(reg registration, msgs <-chan amqp.Delivery) {
			for d := range msgs {
				r.dispatch(ctx, reg, d)
			}
			r.log.Info("consumer stopped", "queue", reg.queueName, "tag", reg.consumerTag)
		}(reg, deliveries)
	}
	return nil
}

func (r *Router) bind(reg registration) error {
	q, err := r.ch.QueueDeclare(
		reg.queueName,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", reg.queueName, err)
	}
	if err := r.ch.QueueBind(q.Name, reg.routingKey, r.exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", reg.queueName, reg.routingKey, err)
	}
	return nil
}

func (r *Router) dispatch(parent context.Context, reg registration, d amqp.Delivery) {
	ctx, cancel := context.WithTimeout(parent, r.callTimeout)
	defer cancel()

	log := r.log.With("queue", reg.queueName, "rk", d.RoutingKey, "message_id", d.MessageId)
	err := reg.handler.Handle(logging.WithCtx(ctx, log), d)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrPoison):
		log.Warn("dropping poison message", "err", err)
		_ = d.Nack(false, false)
	default:
		log.Error("handler error", "err", err, "requeue", r.requeueOnErr)
		_ = d.Nack(false, r.requeueOnErr)
	}
}
