package domain

import "time"

// Auth event types emitted by the identity service.
const (
	EventRegistered     = "auth.registered"
	EventLogin          = "auth.login"
	EventOAuthURLIssued = "auth.oauth_url_issued"
	EventTwoFAEnabled   = "auth.2fa_challenge_issued"
	EventTwoFAVerified  = "auth.2fa_verified"
	EventTwoFAFailed    = "auth.2fa_failed"
	EventHTTPRequest    = "http.request"
	EventGRPCRequest    = "grpc.request"
)

// Event is a single telemetry event (auth outcome or HTTP request). JSON field names are the Kafka wire format
// read back by the Loki worker.
type Event struct {
	UserID    string    `json:"userId,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	EventType string    `json:"eventType"`
	Source    string    `json:"source,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Metadata  []byte    `json:"metadata,omitempty"` // JSON object
	CreatedAt time.Time `json:"createdAt"`
}
