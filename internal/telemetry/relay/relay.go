// Package relay moves auth and request events from the Kafka topic into Loki.
package relay

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	defaultPushTimeout = 10 * time.Second
	defaultAttempts    = 3
	defaultBackoff     = time.Second
)

// MessageReader is the consumer-group side of *kafka.Reader used by the relay.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Pusher writes one event to the log store (*loki.Client).
type Pusher interface {
	PushEventJSON(ctx context.Context, raw []byte) error
}

// Relay commits each message only after its push succeeded or ran out of attempts.
type Relay struct {
	reader      MessageReader
	pusher      Pusher
	pushTimeout time.Duration
	attempts    int
	backoff     time.Duration
}

// New returns a relay with a 10s push timeout and 3 attempts per message.
func New(reader MessageReader, pusher Pusher) *Relay {
	return &Relay{
		reader:      reader,
		pusher:      pusher,
		pushTimeout: defaultPushTimeout,
		attempts:    defaultAttempts,
		backoff:     defaultBackoff,
	}
}

// Run relays messages until ctx is done. It returns nil on cancellation.
func (r *Relay) Run(ctx context.Context) error {
	for {
		msg, err := r.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, kafka.ErrGroupClosed) {
				return err
			}
			log.Printf("relay: kafka fetch: %v", err)
			continue
		}
		if !r.push(ctx, msg) && ctx.Err() != nil {
			// uncommitted; redelivered after restart
			return nil
		}
		if err := r.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			log.Printf("relay: kafka commit offset %d: %v", msg.Offset, err)
		}
	}
}

// push reports whether the event reached the store. A message that fails every attempt is dropped.
func (r *Relay) push(ctx context.Context, msg kafka.Message) bool {
	for attempt := 1; attempt <= r.attempts; attempt++ {
		pushCtx, cancel := context.WithTimeout(ctx, r.pushTimeout)
		err := r.pusher.PushEventJSON(pushCtx, msg.Value)
		cancel()
		if err == nil {
			return true
		}
		log.Printf("relay: loki push offset %d attempt %d/%d: %v", msg.Offset, attempt, r.attempts, err)
		if attempt == r.attempts {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Duration(attempt) * r.backoff):
		}
	}
	return false
}
