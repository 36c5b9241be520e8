// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"identity-gateway/internal/security"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is the address of the gRPC health endpoint; empty disables it.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`

	// SupabaseURL is the base URL of the hosted identity/database project (e.g. https://xyz.supabase.co). Required.
	SupabaseURL string `mapstructure:"SUPABASE_URL"`
	// SupabaseServiceRoleKey is the privileged service credential sent as apikey and bearer token. Required.
	SupabaseServiceRoleKey string `mapstructure:"SUPABASE_SERVICE_ROLE_KEY"`
	// SupabaseHTTPTimeout bounds each call to the hosted service (e.g. "15s").
	SupabaseHTTPTimeout string `mapstructure:"SUPABASE_HTTP_TIMEOUT"`
	// DatabaseURL is an optional Postgres DSN for the hosted database. When set, user rows are read and written
	// directly with pgx instead of through the REST row API.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// UsersTable is the table holding user profile and 2FA fields (default users).
	UsersTable string `mapstructure:"USERS_TABLE"`

	// OAuthProvider is the provider used by GET /auth/github (default github).
	OAuthProvider string `mapstructure:"OAUTH_PROVIDER"`
	// OAuthRedirectAllowlist is a comma-separated list of hosts accepted as redirectTo. Empty allows any redirect.
	OAuthRedirectAllowlist string `mapstructure:"OAUTH_REDIRECT_ALLOWLIST"`

	// TwoFACodeTTL is how long an emailed 2FA code stays valid (default 5m).
	TwoFACodeTTL string `mapstructure:"TWO_FA_CODE_TTL"`
	// TwoFACodeDigits is the number of digits in a 2FA code (4–10, default 6).
	TwoFACodeDigits int `mapstructure:"TWO_FA_CODE_DIGITS"`
	// OTPReturnToClient when true returns the generated 2FA code in the enable response (no out-of-band delivery).
	// Must not be true when Env is production (Load fails).
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// BcryptCost is the bcrypt cost factor (4–31) for the password copy kept on the users row; default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty uses no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext to the collector even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// ServiceName is the OTel service.name resource attribute.
	ServiceName string `mapstructure:"OTEL_SERVICE_NAME"`

	// Telemetry (optional). When Kafka brokers are set, the HTTP server emits request events to Kafka.
	// TelemetryKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for telemetry events (default identity-gateway-telemetry).
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the telemetry worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the telemetry worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are missing
// or invalid, so the process never starts without the hosted service endpoint and credential.
func Load() (*Config, error) {
	return load(true)
}

// LoadAuxiliary is Load for the worker and migrate commands: the hosted service endpoint and key are not required.
func LoadAuxiliary() (*Config, error) {
	return load(false)
}

func load(requireBackend bool) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("GRPC_ADDR", "")
	v.SetDefault("SUPABASE_URL", "")
	v.SetDefault("SUPABASE_SERVICE_ROLE_KEY", "")
	v.SetDefault("SUPABASE_HTTP_TIMEOUT", "15s")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("USERS_TABLE", "users")
	v.SetDefault("OAUTH_PROVIDER", "github")
	v.SetDefault("OAUTH_REDIRECT_ALLOWLIST", "")
	v.SetDefault("TWO_FA_CODE_TTL", "5m")
	v.SetDefault("TWO_FA_CODE_DIGITS", 6)
	v.SetDefault("OTP_RETURN_TO_CLIENT", true)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SERVICE_NAME", "identity-gateway")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "identity-gateway-telemetry")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "identity-gateway-telemetry-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if requireBackend {
		if err := cfg.validateBackend(); err != nil {
			return nil, err
		}
	}

	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if cfg.TwoFACodeDigits == 0 {
		cfg.TwoFACodeDigits = 6
	}
	if cfg.TwoFACodeDigits < 4 || cfg.TwoFACodeDigits > 10 {
		return nil, errors.New("config: TWO_FA_CODE_DIGITS must be between 4 and 10")
	}
	if d, err := time.ParseDuration(cfg.TwoFACodeTTL); err != nil || d <= 0 {
		return nil, fmt.Errorf("config: TWO_FA_CODE_TTL %q is not a positive duration", cfg.TwoFACodeTTL)
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	if strings.TrimSpace(cfg.UsersTable) == "" {
		cfg.UsersTable = "users"
	}
	if strings.TrimSpace(cfg.OAuthProvider) == "" {
		cfg.OAuthProvider = "github"
	}

	return &cfg, nil
}

func (c *Config) validateBackend() error {
	if strings.TrimSpace(c.SupabaseURL) == "" {
		return errors.New("config: SUPABASE_URL must be set")
	}
	u, err := url.Parse(c.SupabaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("config: SUPABASE_URL %q is not an http(s) URL", c.SupabaseURL)
	}
	if strings.TrimSpace(c.SupabaseServiceRoleKey) == "" {
		return errors.New("config: SUPABASE_SERVICE_ROLE_KEY must be set")
	}
	if err := security.CheckServiceKey(c.SupabaseServiceRoleKey); err != nil {
		return fmt.Errorf("config: SUPABASE_SERVICE_ROLE_KEY: %w", err)
	}
	return nil
}

// CodeTTL parses TwoFACodeTTL as a time.Duration. Returns 5m if unset or invalid.
func (c *Config) CodeTTL() time.Duration {
	d, err := time.ParseDuration(c.TwoFACodeTTL)
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// HTTPTimeout parses SupabaseHTTPTimeout as a time.Duration. Returns 15s if unset or invalid.
func (c *Config) HTTPTimeout() time.Duration {
	d, err := time.ParseDuration(c.SupabaseHTTPTimeout)
	if err != nil || d <= 0 {
		return 15 * time.Second
	}
	return d
}

// RedirectAllowlist returns the allowed redirect hosts from the comma-separated config, lower-cased.
func (c *Config) RedirectAllowlist() []string {
	return splitList(c.OAuthRedirectAllowlist, true)
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if telemetry is enabled (non-empty list) and to create the producer.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.TelemetryKafkaBrokers, false)
}

func splitList(raw string, lower bool) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		if lower {
			s = strings.ToLower(s)
		}
		out = append(out, s)
	}
	return out
}
