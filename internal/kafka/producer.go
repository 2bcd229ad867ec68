package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
	"time"

	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer messageWriter
	Topic  string
	Logger *logger.Logger
}

func NewProducer(brokers []string, topic string, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{Writer: writer, Topic: topic, Logger: log}
}

// PublishCheckin streams a toggle result keyed by ticket number, so all
// events of one ticket land on the same partition in order.
func (p *Producer) PublishCheckin(ctx context.Context, evt models.CheckinEvent) error {
	msgBytes, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	if err := p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(evt.TicketNumber),
		Value: msgBytes,
	}); err != nil {
		return fmt.Errorf("publish checkin event for %s: %w", evt.TicketNumber, err)
	}

	p.Logger.LogKafka("PUBLISH", p.Topic, fmt.Sprintf("%s %s=%t", evt.TicketNumber, evt.Event, evt.Status))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
