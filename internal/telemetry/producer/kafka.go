package producer

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"identity-gateway/internal/telemetry/domain"
)

// MessageWriter is the part of *kafka.Writer used by KafkaProducer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer implements Producer using segmentio/kafka-go.
type KafkaProducer struct {
	writer MessageWriter
	topic  string
}

// NewKafkaProducer creates a Kafka producer that writes telemetry events to the given topic.
// Returns nil when brokers or topic are empty (telemetry disabled). Call Close when shutting down.
func NewKafkaProducer(brokers []string, topic string) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &KafkaProducer{writer: writer, topic: topic}
}

// NewKafkaProducerWithWriter returns a producer over an existing writer.
func NewKafkaProducerWithWriter(w MessageWriter, topic string) *KafkaProducer {
	return &KafkaProducer{writer: w, topic: topic}
}

// Emit serializes the event as JSON and writes it to the Kafka topic, keyed by event type.
func (p *KafkaProducer) Emit(ctx context.Context, event *domain.Event) error {
	if p == nil || p.writer == nil || event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err = p.writer.WriteMessages(writeCtx, kafka.Message{
		Key:   []byte(event.EventType),
		Value: payload,
		Time:  event.CreatedAt,
	})
	if err != nil {
		log.Printf("telemetry: kafka emit failed: %v", err)
		return err
	}
	return nil
}

// Close closes the Kafka writer. Safe to call on a nil producer.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
