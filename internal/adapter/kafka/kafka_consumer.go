package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/aq2208/storefront-api/internal/logging"
	"github.com/aq2208/storefront-api/internal/usecase"
)

// HandlerFunc processes a decoded fulfillment event.
type HandlerFunc func(ctx context.Context, ev usecase.FulfillmentStatusMsg) error

const (
	initialRetryBackoff = 200 * time.Millisecond
	maxRetryBackoff     = 10 * time.Second
)

// Consumer consumes the fulfillment topic with a single handler.
type Consumer struct {
	Group  sarama.ConsumerGroup
	Topics []string
	Handle HandlerFunc
	Logger *slog.Logger
}

func NewConsumer(group sarama.ConsumerGroup, topics []string, h HandlerFunc) *Consumer {
	return &Consumer{
		Group:  group,
		Topics: topics,
		Handle: h,
		Logger: logging.New("kafka-consumer"),
	}
}

// Start blocks until ctx is cancelled or the group is closed.
func (c *Consumer) Start(ctx context.Context) error {
	go func() {
		for err := range c.Group.Errors() {
			c.Logger.Error("consumer group error", "err", err)
		}
	}()

	handler := &cgHandler{handle: c.Handle, logger: c.Logger, backoff: initialRetryBackoff, maxBackoff: maxRetryBackoff}
	for {
		if err := c.Group.Consume(ctx, c.Topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		// Consume returns on ctx cancellation or a rebalance.
		if ctx.Err() != nil {
			return nil
		}
	}
}

type cgHandler struct {
	handle     HandlerFunc
	logger     *slog.Logger
	backoff    time.Duration
	maxBackoff time.Duration
}

func (h *cgHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *cgHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim handles a partition in offset order. Marking an offset commits
// everything before it, so a failing message is retried in place until it
// succeeds or the session ends; nothing after it is marked meanwhile.
func (h *cgHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		log := h.logger.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

		var ev usecase.FulfillmentStatusMsg
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			log.Warn("kafka decode error", "err", err)
			// mark to avoid reprocessing poison
			sess.MarkMessage(msg, "decode-error")
			continue
		}
		if !h.handleWithRetry(sess.Context(), log, msg, ev) {
			// session is over; the message is redelivered to the next owner
			return nil
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}

func (h *cgHandler) handleWithRetry(ctx context.Context, log *slog.Logger, msg *sarama.ConsumerMessage, ev usecase.FulfillmentStatusMsg) bool {
	wait := h.backoff
	for attempt := 1; ; attempt++ {
		err := h.handle(logging.WithCtx(ctx, log), ev)
		if err == nil {
			return true
		}
		if ctx.Err() != nil {
			log.Warn("handler error, session ended", "err", err, "key", string(msg.Key), "attempt", attempt)
			return false
		}
		log.Error("handler error", "err", err, "key", string(msg.Key), "attempt", attempt, "retry_in", wait)

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
		wait *= 2
		if wait > h.maxBackoff {
			wait = h.maxBackoff
		}
	}
}
