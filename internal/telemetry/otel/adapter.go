package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"identity-gateway/internal/telemetry"
	"identity-gateway/internal/telemetry/domain"
)

// RecordEmitter is the part of otellog.Logger used by the event emitter.
type RecordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("identity-gateway.auth")}
}

// NewEventEmitterWithLogger returns an EventEmitter that writes records to logger.
func NewEventEmitterWithLogger(logger RecordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *domain.Event) error { return nil }

type otelEmitter struct {
	logger RecordEmitter
}

// Emit converts the event to an OTel log record and emits it.
func (e *otelEmitter) Emit(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	if len(event.Metadata) > 0 {
		rec.SetBody(otellog.BytesValue(event.Metadata))
	}
	add := func(key, value string) {
		if value != "" {
			rec.AddAttributes(otellog.String(key, value))
		}
	}
	add("user_id", event.UserID)
	add("request_id", event.RequestID)
	add("event_type", event.EventType)
	add("source", event.Source)
	add("outcome", event.Outcome)
	if event.Outcome == "failure" {
		rec.SetSeverity(otellog.SeverityWarn)
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
	}
	e.logger.Emit(ctx, rec)
	return nil
}
