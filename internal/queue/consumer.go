package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// settlement is how a delivery is answered to the broker.
type settlement int

const (
	settleAck settlement = iota
	settleRequeue
	settleDeadLetter
	settleDrop
)

type RabbitMQConsumer struct {
	client   *RabbitMQ
	prefetch int
	logger   *zap.Logger
}

func NewRabbitMQConsumer(client *RabbitMQ, prefetch int, logger *zap.Logger) *RabbitMQConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RabbitMQConsumer{
		client:   client,
		prefetch: max(prefetch, 1),
		logger:   logger,
	}
}

// Consume blocks until ctx is done. A broken delivery stream is reopened
// with exponential backoff; a stream that ends cleanly is reopened at once.
func (c *RabbitMQConsumer) Consume(ctx context.Context, queue string, handler MessageHandler) error {
	switch {
	case c == nil || c.client == nil:
		return fmt.Errorf("consumer is not initialized")
	case queue == "":
		return fmt.Errorf("queue name is required")
	case handler == nil:
		return fmt.Errorf("message handler is required")
	}

	wait := reconnectBackoff
	for ctx.Err() == nil {
		err := c.stream(ctx, queue, handler)
		if err == nil || ctx.Err() != nil {
			wait = reconnectBackoff
			continue
		}

		c.logger.Warn("consumer stream interrupted",
			zap.String("queue", queue),
			zap.Duration("retryIn", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
		wait = min(wait*2, maxBackoff)
	}
	return nil
}

func (c *RabbitMQConsumer) stream(ctx context.Context, queue string, handler MessageHandler) error {
	ch, err := c.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set qos: %w", err)
	}

	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume queue %q: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery stream for %q closed", queue)
			}
			if err := c.handleDelivery(ctx, d, handler); err != nil {
				return err
			}
		}
	}
}

// handleDelivery decodes and handles one delivery, then settles it.
// Undecodable payloads are dropped to the DLQ without reaching the handler.
func (c *RabbitMQConsumer) handleDelivery(ctx context.Context, d amqp.Delivery, handler MessageHandler) error {
	msg, err := decode(d.Body)
	if err != nil {
		c.logger.Warn("dropping undecodable message",
			zap.String("routingKey", d.RoutingKey),
			zap.String("messageId", d.MessageId),
			zap.Error(err),
		)
		return settle(d, settleDrop)
	}

	outcome := settleAck
	if err := handler(ctx, msg); err != nil {
		outcome = settlementFor(err, d.Redelivered)
		c.logger.Warn("dispatch message handling failed",
			zap.String("messageId", msg.MessageID),
			zap.String("correlationId", msg.CorrelationID),
			zap.Bool("requeue", outcome == settleRequeue),
			zap.Error(err),
		)
	}
	return settle(d, outcome)
}

func decode(body []byte) (DispatchMessage, error) {
	var msg DispatchMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return DispatchMessage{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return DispatchMessage{}, err
	}
	return msg, nil
}

// settlementFor requeues a first transient failure once; permanent and
// repeated failures go to the DLQ.
func settlementFor(err error, redelivered bool) settlement {
	if IsPermanent(err) || redelivered {
		return settleDeadLetter
	}
	return settleRequeue
}

func settle(d amqp.Delivery, s settlement) error {
	var err error
	switch s {
	case settleAck:
		err = d.Ack(false)
	case settleRequeue:
		err = d.Nack(false, true)
	case settleDeadLetter:
		err = d.Nack(false, false)
	case settleDrop:
		err = d.Reject(false)
	}
	if err != nil {
		return fmt.Errorf("failed to settle delivery %q: %w", d.MessageId, err)
	}
	return nil
}

func (c *RabbitMQConsumer) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
