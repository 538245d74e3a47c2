// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// DatabaseURL is the Postgres DSN for users, credentials, and audit logs.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RPID is the WebAuthn relying-party ID; must equal the deployment domain (e.g. "example.com").
	RPID string `mapstructure:"RP_ID"`
	// RPDisplayName is the human-readable relying-party name shown by authenticators.
	RPDisplayName string `mapstructure:"RP_DISPLAY_NAME"`
	// RPOrigins is a comma-separated list of allowed ceremony origins (e.g. "https://example.com").
	// Responses from any other origin are rejected; never widen this to accept mismatches.
	RPOrigins string `mapstructure:"RP_ORIGINS"`
	// ChallengeTTL is the ceremony challenge lifetime (e.g. "120s"); sane range 60–300s.
	ChallengeTTL string `mapstructure:"CHALLENGE_TTL"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; signs bearer tokens.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; verifies bearer tokens.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "passkeyd-auth").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "passkeyd-api").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// JWTAccessTTL is the bearer token lifetime (e.g. "15m"); sane range 15–60m.
	JWTAccessTTL string `mapstructure:"JWT_ACCESS_TTL"`
	// AllowZeroSignCount permits authenticators that report a signature counter of zero on
	// every use (a known authenticator quirk). Off by default: counter regressions, including
	// zero-to-zero, hard-fail authentication as a possible cloned-credential signal.
	AllowZeroSignCount bool `mapstructure:"ALLOW_ZERO_SIGN_COUNT"`
	// Env is the application environment (e.g. "development", "production"). In production
	// JWT keys must be configured; no ephemeral dev key is generated.
	Env string `mapstructure:"APP_ENV"`

	// Events (optional). When Kafka brokers are set, the server emits security events to Kafka.
	// EventsKafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	EventsKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// EventsKafkaTopic is the Kafka topic for security events (default passkeyd-events).
	EventsKafkaTopic string `mapstructure:"EVENTS_KAFKA_TOPIC"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint for traces/metrics (e.g. http://localhost:4317).
	// Empty disables OpenTelemetry export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// Worker-only: Loki URL for the events worker to push logs (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the events worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("RP_ID", "localhost")
	v.SetDefault("RP_DISPLAY_NAME", "passkeyd")
	v.SetDefault("RP_ORIGINS", "http://localhost:8080")
	v.SetDefault("CHALLENGE_TTL", "120s")
	v.SetDefault("JWT_ISSUER", "passkeyd-auth")
	v.SetDefault("JWT_AUDIENCE", "passkeyd-api")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("ALLOW_ZERO_SIGN_COUNT", false)
	v.SetDefault("APP_ENV", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("EVENTS_KAFKA_TOPIC", "passkeyd-events")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "passkeyd-events-worker")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}
	if cfg.RPID == "" {
		return nil, errors.New("config: RP_ID must be set")
	}
	if len(cfg.RPOriginsList()) == 0 {
		return nil, errors.New("config: RP_ORIGINS must list at least one origin")
	}
	if cfg.Env == "production" && (cfg.JWTPrivateKey == "" || cfg.JWTPublicKey == "") {
		return nil, errors.New("config: JWT_PRIVATE_KEY and JWT_PUBLIC_KEY must be set when APP_ENV=production")
	}

	return &cfg, nil
}

// ChallengeLifetime parses ChallengeTTL as a time.Duration. Returns 120s if unset or invalid.
func (c *Config) ChallengeLifetime() time.Duration {
	d, err := time.ParseDuration(c.ChallengeTTL)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// AccessTTL parses JWTAccessTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.JWTAccessTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RPOriginsList returns the allowed ceremony origins from the comma-separated config.
func (c *Config) RPOriginsList() []string {
	return splitAndTrim(c.RPOrigins)
}

// EventsKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the event stream is enabled (non-empty list) and to create the producer.
func (c *Config) EventsKafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitAndTrim(c.EventsKafkaBrokers)
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
