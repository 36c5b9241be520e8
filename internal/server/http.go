// Package server assembles the HTTP API router and the optional gRPC health server.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	healthhandler "identity-gateway/internal/health/handler"
	identityhandler "identity-gateway/internal/identity/handler"
	"identity-gateway/internal/server/middleware"
	"identity-gateway/internal/telemetry"
)

// HealthPath is the readiness route; it is never traced as a request event.
const HealthPath = "/healthz"

// Deps holds the handlers and collaborators mounted on the router.
type Deps struct {
	// ServiceName is the otelgin server name (OTEL_SERVICE_NAME).
	ServiceName string
	// Auth serves /auth/*. Required.
	Auth *identityhandler.AuthHandler
	// Health serves /healthz. If nil, the route is not registered.
	Health *healthhandler.Server
	// RequestEvents receives one http.request event per request (e.g. the Kafka producer). If nil, none are emitted.
	RequestEvents telemetry.EventEmitter
}

// NewRouter returns the gin engine for the HTTP API:
//
//	POST /auth/register, POST /auth/login, GET /auth/github,
//	POST /auth/2fa/enable, POST /auth/2fa/verify, GET /healthz
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(
		gin.Recovery(),
		otelgin.Middleware(deps.ServiceName, otelgin.WithFilter(func(req *http.Request) bool {
			return req.URL.Path != HealthPath
		})),
		middleware.RequestID(),
		middleware.Telemetry(deps.RequestEvents, map[string]bool{HealthPath: true}),
	)
	if deps.Health != nil {
		r.GET(HealthPath, deps.Health.HTTP)
	}
	deps.Auth.RegisterRoutes(r)
	return r
}
