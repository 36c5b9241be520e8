package producer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"identity-gateway/internal/telemetry/domain"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaProducer_Disabled(t *testing.T) {
	if p := NewKafkaProducer(nil, "topic"); p != nil {
		t.Fatal("expected nil producer without brokers")
	}
	if p := NewKafkaProducer([]string{"localhost:9092"}, ""); p != nil {
		t.Fatal("expected nil producer without topic")
	}
	var p *KafkaProducer
	if err := p.Emit(context.Background(), &domain.Event{EventType: "x"}); err != nil {
		t.Fatalf("nil producer Emit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("nil producer Close: %v", err)
	}
}

func TestKafkaProducer_Emit(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaProducerWithWriter(w, "identity-gateway-telemetry")
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	err := p.Emit(context.Background(), &domain.Event{EventType: domain.EventRegistered, UserID: "u-1", CreatedAt: created})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != domain.EventRegistered {
		t.Errorf("key = %q", msg.Key)
	}
	var got domain.Event
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.UserID != "u-1" || !got.CreatedAt.Equal(created) {
		t.Errorf("payload = %+v", got)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Fatalf("Close: err=%v closed=%v", err, w.closed)
	}
}

func TestKafkaProducer_EmitError(t *testing.T) {
	p := NewKafkaProducerWithWriter(&fakeWriter{err: errors.New("broker down")}, "t")
	if err := p.Emit(context.Background(), &domain.Event{EventType: "x"}); err == nil {
		t.Fatal("expected error")
	}
}
