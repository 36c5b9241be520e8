package middleware

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"identity-gateway/internal/telemetry"
	"identity-gateway/internal/telemetry/domain"
)

// httpRequestMetadata is the JSON shape stored in Event.Metadata for http.request events.
type httpRequestMetadata struct {
	Method     string `json:"method"`
	Route      string `json:"route"`
	StatusCode int    `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// grpcRequestMetadata is the JSON shape stored in Event.Metadata for grpc.request events.
type grpcRequestMetadata struct {
	FullMethod string `json:"full_method"`
	StatusCode string `json:"status_code"`
	DurationMs int64  `json:"duration_ms"`
	ClientIP   string `json:"client_ip"`
}

// Telemetry returns gin middleware that emits an http.request event after each request.
// Best-effort: emission is async and never affects the response. If emitter is nil, the middleware no-ops.
// skipPaths is the set of route paths to not emit (e.g. /healthz).
func Telemetry(emitter telemetry.EventEmitter, skipPaths map[string]bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if emitter == nil || skipPaths[route] {
			return
		}
		code := c.Writer.Status()
		meta, _ := json.Marshal(httpRequestMetadata{
			Method:     c.Request.Method,
			Route:      route,
			StatusCode: code,
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   c.ClientIP(),
		})
		requestID, _ := telemetry.GetRequestID(c.Request.Context())
		telemetry.EmitAsync(emitter, c.Request.Context(), &domain.Event{
			RequestID: requestID,
			EventType: domain.EventHTTPRequest,
			Source:    "http_middleware",
			Outcome:   outcome(code >= 400),
			Metadata:  meta,
		})
	}
}

// TelemetryUnary returns a unary server interceptor that emits a grpc.request event after each RPC.
// If emitter is nil, the interceptor no-ops. skipMethods is the set of full method names to not emit.
func TelemetryUnary(emitter telemetry.EventEmitter, skipMethods map[string]bool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if emitter == nil || skipMethods[info.FullMethod] {
			return resp, err
		}
		code := status.Code(err)
		meta, _ := json.Marshal(grpcRequestMetadata{
			FullMethod: info.FullMethod,
			StatusCode: code.String(),
			DurationMs: time.Since(start).Milliseconds(),
			ClientIP:   ClientIP(ctx),
		})
		telemetry.EmitAsync(emitter, ctx, &domain.Event{
			EventType: domain.EventGRPCRequest,
			Source:    "grpc_interceptor",
			Outcome:   outcome(err != nil),
			Metadata:  meta,
		})
		return resp, err
	}
}

func outcome(failed bool) string {
	if failed {
		return "failure"
	}
	return "success"
}

// ClientIP returns the client IP from gRPC metadata (x-forwarded-for, x-real-ip) or peer, or "unknown".
func ClientIP(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get("x-forwarded-for"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				if i := strings.Index(s, ","); i > 0 {
					s = strings.TrimSpace(s[:i])
				}
				return s
			}
		}
		if vals := md.Get("x-real-ip"); len(vals) > 0 {
			if s := strings.TrimSpace(vals[0]); s != "" {
				return s
			}
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		if host, _, err := net.SplitHostPort(p.Addr.String()); err == nil {
			return host
		}
		return p.Addr.String()
	}
	return "unknown"
}
