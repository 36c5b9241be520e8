package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	healthhandler "identity-gateway/internal/health/handler"
	"identity-gateway/internal/server/middleware"
	"identity-gateway/internal/telemetry"
)

// NewGRPCServer returns a gRPC server exposing only grpc.health.v1.Health, traced with otelgrpc.
// Unary calls not in skipMethods are emitted as grpc.request events; Watch streams are not intercepted.
func NewGRPCServer(health *healthhandler.Server, events telemetry.EventEmitter, skipMethods map[string]bool) *grpc.Server {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(middleware.TelemetryUnary(events, skipMethods)),
	)
	health.RegisterGRPC(s)
	return s
}
