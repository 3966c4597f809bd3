package repository

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/sdms/payment-gateway/internal/models"
)

const TopicInvoicePaid = "invoice.paid"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// NewInvoicePaidWriter returns the writer used in production for the
// invoice.paid topic.
func NewInvoicePaidWriter(brokers string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers),
		Topic:        TopicInvoicePaid,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

func (p *KafkaPublisher) PublishInvoicePaid(ctx context.Context, event models.InvoicePaidEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.InvoiceID),
		Value: value,
	})
}
