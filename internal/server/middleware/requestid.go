// Package middleware holds the gin middleware and gRPC interceptors shared by the HTTP API and the health server.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"identity-gateway/internal/telemetry"
)

// RequestIDHeader carries the request id in and out of the HTTP API.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLen = 128

// RequestID accepts the caller's X-Request-ID (when short enough) or generates a UUID, echoes it in the response
// and stores it in the request context for telemetry events.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(telemetry.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}
