// Package otel provides OpenTelemetry TracerProvider, MeterProvider, and LoggerProvider
// configured with OTLP exporters, plus the auth event emitter that writes OTel log records.
package otel

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

const metricInterval = 10 * time.Second

// Settings describe the collector and the gateway instance reported as the OTel resource.
type Settings struct {
	// Endpoint is the OTLP gRPC collector (OTEL_EXPORTER_OTLP_ENDPOINT). Empty selects no-op exporters.
	Endpoint string
	// Insecure forces plaintext even for https endpoints (OTEL_EXPORTER_OTLP_INSECURE).
	Insecure bool
	// ServiceName is service.name (OTEL_SERVICE_NAME).
	ServiceName string
	// ServiceVersion is service.version; set from the build.
	ServiceVersion string
	// Environment is deployment.environment.name (APP_ENV). Empty omits it.
	Environment string
}

// Providers holds the OpenTelemetry providers and a shutdown function.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	Shutdown       func(context.Context) error
}

// NewProviders creates the three providers, all carrying the gateway resource. With an endpoint they export over
// OTLP gRPC; without one nothing is exported and Shutdown is a no-op.
func NewProviders(ctx context.Context, s Settings) (*Providers, error) {
	res, err := newResource(s)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.Endpoint) == "" {
		return &Providers{
			TracerProvider: sdktrace.NewTracerProvider(sdktrace.WithResource(res)),
			MeterProvider:  metric.NewMeterProvider(metric.WithResource(res)),
			LoggerProvider: sdklog.NewLoggerProvider(sdklog.WithResource(res)),
			Shutdown:       func(context.Context) error { return nil },
		}, nil
	}

	target, insecure, err := collectorTarget(s.Endpoint, s.Insecure)
	if err != nil {
		return nil, err
	}

	var stack shutdownStack
	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(target)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(target)}
	logOpts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(target)}
	if insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
		logOpts = append(logOpts, otlploggrpc.WithInsecure())
	}

	traceExp, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp), sdktrace.WithResource(res))
	stack.push(tp.Shutdown)

	metricExp, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		_ = stack.shutdown(ctx)
		return nil, fmt.Errorf("otlp metric exporter: %w", err)
	}
	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(metricExp, metric.WithInterval(metricInterval))),
	)
	stack.push(mp.Shutdown)

	logExp, err := otlploggrpc.New(ctx, logOpts...)
	if err != nil {
		_ = stack.shutdown(ctx)
		return nil, fmt.Errorf("otlp log exporter: %w", err)
	}
	lp := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)), sdklog.WithResource(res))
	stack.push(lp.Shutdown)

	return &Providers{
		TracerProvider: tp,
		MeterProvider:  mp,
		LoggerProvider: lp,
		Shutdown:       stack.shutdown,
	}, nil
}

func newResource(s Settings) (*resource.Resource, error) {
	name := strings.TrimSpace(s.ServiceName)
	if name == "" {
		name = "identity-gateway"
	}
	version := strings.TrimSpace(s.ServiceVersion)
	if version == "" {
		version = "dev"
	}
	attrs := []attribute.KeyValue{semconv.ServiceName(name), semconv.ServiceVersion(version)}
	if env := strings.TrimSpace(s.Environment); env != "" {
		attrs = append(attrs, semconv.DeploymentEnvironmentName(env))
	}
	return resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
}

// collectorTarget reduces endpoint to the host:port OTLP gRPC dials. Paths are dropped. Only https uses TLS, and
// insecureOverride disables it.
func collectorTarget(endpoint string, insecureOverride bool) (string, bool, error) {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}
	return u.Host, insecureOverride || u.Scheme != "https", nil
}

// shutdownStack shuts providers down in reverse creation order.
type shutdownStack []func(context.Context) error

func (s *shutdownStack) push(fn func(context.Context) error) {
	*s = append(*s, fn)
}

func (s *shutdownStack) shutdown(ctx context.Context) error {
	var lastErr error
	for i := len(*s) - 1; i >= 0; i-- {
		if err := (*s)[i](ctx); err != nil {
			log.Printf("telemetry: shutdown: %v", err)
			lastErr = err
		}
	}
	return lastErr
}

// SetGlobal sets the global TracerProvider, MeterProvider and W3C propagator so instrumentation (otelgin, otelgrpc)
// uses them. It does not set a global LoggerProvider; pass LoggerProvider to the event emitter.
func (p *Providers) SetGlobal() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	if p.TracerProvider != nil {
		otel.SetTracerProvider(p.TracerProvider)
	}
	if p.MeterProvider != nil {
		otel.SetMeterProvider(p.MeterProvider)
	}
}
