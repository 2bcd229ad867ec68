package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"

	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PaymentHandler turns one successful payment into an issued ticket.
type PaymentHandler func(ctx context.Context, evt models.PaymentSucceededEvent) error

type Consumer struct {
	reader messageReader
	topic  string
	logger *logger.Logger
}

// NewConsumer creates a Kafka consumer for the given topic and group
func NewConsumer(brokers []string, topic, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, topic: topic, logger: log}
}

// Start consumes payment events until ctx is cancelled. Offsets are committed
// after the handler succeeds; the handler is idempotent on payment id.
// Undecodable messages are committed and skipped. A handler error stops the
// consumer without committing, since committing a later offset would move the
// group past the failed payment; the next start fetches it again.
func (c *Consumer) Start(ctx context.Context, handler PaymentHandler) error {
	c.logger.LogKafka("CONSUME", c.topic, "consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				c.logger.LogKafka("CONSUME", c.topic, "consumer stopped")
				return nil
			}
			c.logger.Error("KAFKA", fmt.Sprintf("Error reading message: %v", err))
			return err
		}

		var evt models.PaymentSucceededEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil || evt.PaymentID == "" {
			c.logger.Warn("KAFKA", fmt.Sprintf("Skipping malformed payment event at offset %d: %v", msg.Offset, err))
			c.commit(ctx, msg)
			continue
		}

		if err := handler(ctx, evt); err != nil {
			c.logger.Error("KAFKA", fmt.Sprintf("Payment %s at offset %d not processed, stopping consumer: %v", evt.PaymentID, msg.Offset, err))
			return fmt.Errorf("payment %s at offset %d: %w", evt.PaymentID, msg.Offset, err)
		}
		c.commit(ctx, msg)
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Warn("KAFKA", fmt.Sprintf("Commit offset %d failed: %v", msg.Offset, err))
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
