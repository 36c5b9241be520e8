package telemetry

import (
	"context"

	"identity-gateway/internal/telemetry/domain"
)

// EventEmitter emits telemetry events (e.g. to OTel Logs or Kafka). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}
