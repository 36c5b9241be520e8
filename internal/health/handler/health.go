// Package handler serves readiness over HTTP (/healthz) and the standard gRPC health service.
package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const checkTimeout = 3 * time.Second

// Pinger checks connectivity to a dependency (the hosted service client, *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the policy engine can evaluate (e.g. OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server reports readiness. Nil dependencies are skipped.
type Server struct {
	backend Pinger
	db      Pinger
	policy  PolicyChecker
	grpc    *health.Server
}

// NewServer returns a health server. backend is the hosted service, db the optional direct database.
func NewServer(backend, db Pinger, policy PolicyChecker) *Server {
	return &Server{backend: backend, db: db, policy: policy}
}

// Check runs every configured check and returns whether all passed plus a per-check status.
func (s *Server) Check(ctx context.Context) (bool, map[string]string) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	results := map[string]string{}
	ok := true
	record := func(name string, err error) {
		if err != nil {
			log.Printf("health: %s: %v", name, err)
			results[name] = err.Error()
			ok = false
			return
		}
		results[name] = "ok"
	}
	if s.backend != nil {
		record("supabase", s.backend.PingContext(ctx))
	}
	if s.db != nil {
		record("database", s.db.PingContext(ctx))
	}
	if s.policy != nil {
		record("policy", s.policy.HealthCheck(ctx))
	}
	return ok, results
}

// HTTP handles GET /healthz: 200 {status:"ok"} or 503 {status:"unavailable", checks}.
func (s *Server) HTTP(c *gin.Context) {
	ok, checks := s.Check(c.Request.Context())
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}

// RegisterGRPC registers grpc.health.v1.Health on reg. Status starts as NOT_SERVING until Refresh runs.
func (s *Server) RegisterGRPC(reg grpc.ServiceRegistrar) {
	s.grpc = health.NewServer()
	s.grpc.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(reg, s.grpc)
}

// Refresh runs the checks once and publishes the result to the gRPC health service.
func (s *Server) Refresh(ctx context.Context) bool {
	ok, _ := s.Check(ctx)
	if s.grpc != nil {
		status := healthpb.HealthCheckResponse_SERVING
		if !ok {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		s.grpc.SetServingStatus("", status)
	}
	return ok
}

// Watch refreshes the gRPC status every interval until ctx is done, then marks it NOT_SERVING.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			if s.grpc != nil {
				s.grpc.Shutdown()
			}
			return
		case <-t.C:
			s.Refresh(ctx)
		}
	}
}
