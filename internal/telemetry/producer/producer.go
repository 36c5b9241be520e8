// Package producer defines the interface for publishing telemetry events (e.g. to Kafka).
package producer

import (
	"context"

	"identity-gateway/internal/telemetry/domain"
)

// Producer publishes telemetry events. Callers use it best-effort: log and ignore errors.
// It satisfies telemetry.EventEmitter.
type Producer interface {
	// Emit sends a single telemetry event. Implementations may block briefly; call via telemetry.EmitAsync.
	Emit(ctx context.Context, event *domain.Event) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
