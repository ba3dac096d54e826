package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

func (s *fakeSession) Context() context.Context {
	if s.ctx == nil {
		return context.Background()
	}
	return s.ctx
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	ch chan *sarama.ConsumerMessage
}

func (c fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

func claimOf(values ...string) fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(values))
	for i, v := range values {
		ch <- &sarama.ConsumerMessage{Topic: "fulfillment", Offset: int64(i), Value: []byte(v)}
	}
	close(ch)
	return fakeClaim{ch: ch}
}

func testHandler(handle HandlerFunc) *cgHandler {
	return &cgHandler{logger: logging.New("test"), handle: handle, backoff: time.Millisecond, maxBackoff: 4 * time.Millisecond}
}

func TestConsumeClaimRetriesFailedMessageInPlace(t *testing.T) {
	var seen []int64
	failures := 2
	h := testHandler(func(_ context.Context, ev usecase.FulfillmentStatusMsg) error {
		seen = append(seen, ev.OrderID)
		if ev.OrderID == 2 && failures > 0 {
			failures--
			return errors.New("db down")
		}
		return nil
	})
	sess := &fakeSession{}
	err := h.ConsumeClaim(sess, claimOf(
		`{"orderId":1,"status":"SHIPPED"}`,
		`garbage`,
		`{"orderId":2,"status":"DELIVERED"}`,
		`{"orderId":3,"status":"SHIPPED"}`,
	))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 2, 2, 3}, seen, "later messages wait for the failing one")
	assert.Equal(t, []int64{0, 1, 2, 3}, sess.marked)
}

func TestConsumeClaimStopsMarkingWhenSessionEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var seen []int64
	h := testHandler(func(_ context.Context, ev usecase.FulfillmentStatusMsg) error {
		seen = append(seen, ev.OrderID)
		if ev.OrderID == 2 {
			cancel()
			return errors.New("db down")
		}
		return nil
	})
	sess := &fakeSession{ctx: ctx}
	err := h.ConsumeClaim(sess, claimOf(
		`{"orderId":1,"status":"SHIPPED"}`,
		`{"orderId":2,"status":"DELIVERED"}`,
		`{"orderId":3,"status":"SHIPPED"}`,
	))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, seen)
	assert.Equal(t, []int64{0}, sess.marked, "nothing at or after the failed offset is committed")
}

type recordingUpdater struct {
	calls []domain.Status
	who   domain.Principal
	err   error
}

func (r *recordingUpdater) Execute(_ context.Context, p domain.Principal, _ int64, to domain.Status) (*domain.Order, error) {
	r.calls = append(r.calls, to)
	r.who = p
	return &domain.Order{Status: to}, r.err
}

func TestFulfillmentStatusHandler(t *testing.T) {
	ctx := context.Background()
	u := &recordingUpdater{}
	h := NewFulfillmentStatusHandler(u)

	require.NoError(t, h.Handle(ctx, usecase.FulfillmentStatusMsg{OrderID: 1, Status: "SHIPPED"}))
	assert.Equal(t, []domain.Status{domain.StatusShipped}, u.calls)
	assert.True(t, u.who.IsAdmin())

	require.NoError(t, h.Handle(ctx, usecase.FulfillmentStatusMsg{OrderID: 1, Status: "LOST"}))
	assert.Len(t, u.calls, 1, "unknown status never reaches the lifecycle")

	u.err = fmt.Errorf("order 9: %w", domain.ErrNotFound)
	assert.NoError(t, h.Handle(ctx, usecase.FulfillmentStatusMsg{OrderID: 9, Status: "DELIVERED"}))

	u.err = errors.New("connection reset")
	assert.Error(t, h.Handle(ctx, usecase.FulfillmentStatusMsg{OrderID: 9, Status: "DELIVERED"}))
}
