package telemetry

import (
	"context"
	"log"
	"time"

	"identity-gateway/internal/telemetry/domain"
)

// emitTimeout is the max time allowed for a single async emit. Used by EmitAsync and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration is how long to wait after the HTTP server stops before shutting down OTel providers,
// so in-flight async telemetry emits have time to complete. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// EmitAsync runs Emit in a goroutine with a short timeout so the caller is not blocked.
// Use from request handlers for fire-and-forget, best-effort telemetry; errors are logged.
//
// emitter and event may be nil; EmitAsync returns immediately without starting a goroutine.
// The goroutine uses context.Background() with emitTimeout so request cancellation does not abort in-flight emit.
func EmitAsync(emitter EventEmitter, ctx context.Context, event *domain.Event) {
	if emitter == nil || event == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			log.Printf("telemetry: async emit failed: %v", err)
		}
	}()
}

// Multi fans an event out to every non-nil emitter. It returns the last error seen.
type Multi []EventEmitter

// Emit sends event to each emitter in order.
func (m Multi) Emit(ctx context.Context, event *domain.Event) error {
	var lastErr error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
