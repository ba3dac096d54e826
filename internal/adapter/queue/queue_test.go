package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ackRecorder struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked = true; return nil }
func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}
func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	a.nacked, a.requeue = true, requeue
	return nil
}

func delivery(body string) (amqp.Delivery, *ackRecorder) {
	rec := &ackRecorder{}
	return amqp.Delivery{Acknowledger: rec, DeliveryTag: 1, Body: []byte(body), RoutingKey: RoutingOrderPlaced}, rec
}

func testRouter(requeue bool) *Router {
	return &Router{callTimeout: time.Second, requeueOnErr: requeue, log: logging.New("test")}
}

func TestRouterDispatch(t *testing.T) {
	ok := JSONHandler[usecase.OrderPlacedMsg]{HandleFunc: func(context.Context, usecase.OrderPlacedMsg) error { return nil }}
	failing := JSONHandler[usecase.OrderPlacedMsg]{HandleFunc: func(context.Context, usecase.OrderPlacedMsg) error {
		return errors.New("redis down")
	}}

	d, rec := delivery(`{"orderId":1}`)
	testRouter(true).dispatch(context.Background(), registration{handler: ok}, d)
	assert.True(t, rec.acked)

	d, rec = delivery(`{"orderId":1}`)
	testRouter(true).dispatch(context.Background(), registration{handler: failing}, d)
	assert.True(t, rec.nacked)
	assert.True(t, rec.requeue)

	d, rec = delivery(`not json`)
	testRouter(true).dispatch(context.Background(), registration{handler: ok}, d)
	assert.True(t, rec.nacked)
	assert.False(t, rec.requeue, "poison is dropped even with requeue on")
}

type fakeChannel struct {
	calls      []string
	deliveries chan amqp.Delivery
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	f.calls = append(f.calls, "exchange "+name+" "+kind)
	return nil
}

func (f *fakeChannel) Qos(n, _ int, _ bool) error {
	f.calls = append(f.calls, "qos")
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	f.calls = append(f.calls, "queue "+name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	f.calls = append(f.calls, "bind "+name+" "+key+" "+exchange)
	return nil
}

func (f *fakeChannel) ConsumeWithContext(_ context.Context, queue, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	f.calls = append(f.calls, "consume "+queue)
	return f.deliveries, nil
}

func TestRouterStartDeclaresOnlyRegisteredQueues(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 1)}
	handled := make(chan int64, 1)
	r := NewRouter(ch, WithExchange("shop.events"))
	r.Register(QueueOrderPlaced, RoutingOrderPlaced, JSONHandler[usecase.OrderPlacedMsg]{HandleFunc: func(_ context.Context, m usecase.OrderPlacedMsg) error {
		handled <- m.OrderID
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Start(ctx))
	assert.Equal(t, []string{
		"exchange shop.events topic",
		"qos",
		"queue order.placed.q",
		"bind order.placed.q order.placed shop.events",
		"consume order.placed.q",
	}, ch.calls)

	acks := ackSignal(make(chan bool, 1))
	ch.deliveries <- amqp.Delivery{Acknowledger: acks, DeliveryTag: 1, Body: []byte(`{"orderId":4}`)}
	select {
	case id := <-handled:
		assert.EqualValues(t, 4, id)
	case <-time.After(time.Second):
		t.Fatal("delivery not dispatched")
	}
	select {
	case acked := <-acks:
		assert.True(t, acked)
	case <-time.After(time.Second):
		t.Fatal("delivery not settled")
	}
	close(ch.deliveries)
}

type ackSignal chan bool

func (a ackSignal) Ack(uint64, bool) error        { a <- true; return nil }
func (a ackSignal) Nack(uint64, bool, bool) error { a <- false; return nil }
func (a ackSignal) Reject(uint64, bool) error     { a <- false; return nil }

func TestRouterStartWithoutRegistrationsDeclaresNothing(t *testing.T) {
	ch := &fakeChannel{}
	require.NoError(t, NewRouter(ch).Start(context.Background()))
	assert.Empty(t, ch.calls)
}

type fakePublisher struct {
	exchange, key string
	msg           amqp.Publishing
	err           error
}

func (f *fakePublisher) PublishWithDeferredConfirmWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error) {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil, f.err
}

func TestRabbitProducer(t *testing.T) {
	ctx := context.Background()
	fp := &fakePublisher{}
	p := &RabbitProducer{ch: fp, exchange: DefaultExchange}

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, p.PublishPlaced(ctx, usecase.OrderPlacedMsg{MessageID: "m1", OrderID: 9, UserID: 3, Total: "29.97", ItemCount: 1, CreatedAt: at}))
	assert.Equal(t, DefaultExchange, fp.exchange)
	assert.Equal(t, RoutingOrderPlaced, fp.key)
	assert.Equal(t, "m1", fp.msg.MessageId)
	assert.Equal(t, amqp.Persistent, fp.msg.DeliveryMode)

	var body map[string]any
	require.NoError(t, json.Unmarshal(fp.msg.Body, &body))
	assert.Equal(t, "29.97", body["total"])
	assert.EqualValues(t, 9, body["orderId"])

	require.NoError(t, p.PublishStatusChanged(ctx, usecase.OrderStatusChangedMsg{MessageID: "m2", OrderID: 9, Status: "SHIPPED"}))
	assert.Equal(t, RoutingOrderStatusChanged, fp.key)

	fp.err = amqp.ErrClosed
	assert.ErrorIs(t, p.PublishPlaced(ctx, usecase.OrderPlacedMsg{}), amqp.ErrClosed)
}

type stubOrders struct {
	usecase.OrderRepo
	orders map[int64]*domain.Order
}

func (s stubOrders) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	if o, ok := s.orders[id]; ok {
		return o, nil
	}
	return nil, domain.ErrNotFound
}

type stubCache struct {
	usecase.OrderCache
	set map[int64]usecase.CachedStatus
}

func (s stubCache) FillStatus(_ context.Context, id int64, cs usecase.CachedStatus) error {
	s.set[id] = cs
	return nil
}

func TestOrderPlacedHandler(t *testing.T) {
	ctx := context.Background()
	orders := stubOrders{orders: map[int64]*domain.Order{
		5: {ID: 5, UserID: 2, Status: domain.StatusShipped},
	}}
	cache := stubCache{set: map[int64]usecase.CachedStatus{}}
	h := NewOrderPlacedHandler(orders, cache)

	require.NoError(t, h.HandlePlaced(ctx, usecase.OrderPlacedMsg{OrderID: 5}))
	assert.Equal(t, usecase.CachedStatus{OwnerID: 2, Status: "SHIPPED"}, cache.set[5], "current status wins over the event")

	require.NoError(t, h.HandlePlaced(ctx, usecase.OrderPlacedMsg{OrderID: 6}), "deleted orders are acked")
	assert.ErrorIs(t, h.HandlePlaced(ctx, usecase.OrderPlacedMsg{}), ErrPoison)

	d, rec := delivery(`{"orderId":5}`)
	testRouter(true).dispatch(ctx, registration{handler: h.Handler()}, d)
	assert.True(t, rec.acked)
}
