package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.RPID != "localhost" {
		t.Errorf("RPID = %q, want %q", cfg.RPID, "localhost")
	}
	if cfg.JWTIssuer != "passkeyd-auth" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "passkeyd-auth")
	}
	if cfg.JWTAudience != "passkeyd-api" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "passkeyd-api")
	}
	if cfg.JWTAccessTTL != "15m" {
		t.Errorf("JWTAccessTTL = %q, want %q", cfg.JWTAccessTTL, "15m")
	}
	if cfg.ChallengeTTL != "120s" {
		t.Errorf("ChallengeTTL = %q, want %q", cfg.ChallengeTTL, "120s")
	}
	if cfg.AllowZeroSignCount {
		t.Error("AllowZeroSignCount should default to false")
	}
	if cfg.EventsKafkaTopic != "passkeyd-events" {
		t.Errorf("EventsKafkaTopic = %q, want default", cfg.EventsKafkaTopic)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("RP_ID", "example.com")
	os.Setenv("RP_ORIGINS", "https://example.com, https://app.example.com")
	os.Setenv("JWT_ISSUER", "custom-issuer")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.RPID != "example.com" {
		t.Errorf("RPID = %q, want %q", cfg.RPID, "example.com")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	origins := cfg.RPOriginsList()
	if len(origins) != 2 || origins[0] != "https://example.com" || origins[1] != "https://app.example.com" {
		t.Errorf("RPOriginsList = %v, want two trimmed origins", origins)
	}
}

func TestLoad_ProductionRequiresKeys(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load should return error when APP_ENV=production without JWT keys")
	}
	if cfg != nil {
		t.Error("Load should return nil config on error")
	}
}

func TestChallengeLifetime(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("CHALLENGE_TTL", "60s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.ChallengeLifetime(); got != 60*time.Second {
		t.Errorf("ChallengeLifetime = %v, want %v", got, 60*time.Second)
	}
}

func TestChallengeLifetime_InvalidFallsBack(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("CHALLENGE_TTL", "invalid")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.ChallengeLifetime(); got != 120*time.Second {
		t.Errorf("ChallengeLifetime = %v, want %v (default)", got, 120*time.Second)
	}
}

func TestAccessTTL_ValidDuration(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("JWT_ACCESS_TTL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.AccessTTL(); ttl != 30*time.Minute {
		t.Errorf("AccessTTL = %v, want %v", ttl, 30*time.Minute)
	}
}

func TestAccessTTL_InvalidDuration(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("JWT_ACCESS_TTL", "invalid")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.AccessTTL(); ttl != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want %v (default)", ttl, 15*time.Minute)
	}
}

func TestAccessTTL_NegativeDuration(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("JWT_ACCESS_TTL", "-5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.AccessTTL(); ttl != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want %v (default)", ttl, 15*time.Minute)
	}
}

func TestEventsKafkaBrokersList(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")
	os.Setenv("KAFKA_BROKERS", "localhost:9092, broker2:9092 ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	brokers := cfg.EventsKafkaBrokersList()
	if len(brokers) != 2 {
		t.Fatalf("brokers = %v, want 2 entries", brokers)
	}
	if brokers[0] != "localhost:9092" || brokers[1] != "broker2:9092" {
		t.Errorf("brokers = %v, want trimmed entries", brokers)
	}
}

func TestEventsKafkaBrokersList_Empty(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if brokers := cfg.EventsKafkaBrokersList(); brokers != nil {
		t.Errorf("brokers = %v, want nil when unset", brokers)
	}
}
