package main

import (
	"context"
	"crypto"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"passkeyd/internal/audit"
	auditrepo "passkeyd/internal/audit/repository"
	"passkeyd/internal/auth"
	"passkeyd/internal/challenge"
	"passkeyd/internal/config"
	credentialrepo "passkeyd/internal/credential/repository"
	"passkeyd/internal/db"
	"passkeyd/internal/events"
	"passkeyd/internal/events/producer"
	"passkeyd/internal/policy/engine"
	"passkeyd/internal/revocation"
	"passkeyd/internal/security"
	"passkeyd/internal/server"
	"passkeyd/internal/server/middleware"
	"passkeyd/internal/telemetry/otel"
	userrepo "passkeyd/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	providers, err := otel.NewProviders(ctx, cfg.OTLPEndpoint, "passkeyd", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer sqlDB.Close()

	privateKey, publicKey, err := signingKeys(cfg)
	if err != nil {
		log.Fatalf("keys: %v", err)
	}
	tokens := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())

	kafkaProducer, err := producer.NewKafkaProducer(cfg.EventsKafkaBrokersList(), cfg.EventsKafkaTopic)
	if err != nil {
		log.Fatalf("events: %v", err)
	}
	var emitter events.EventEmitter
	switch {
	case kafkaProducer != nil:
		emitter = kafkaProducer
		defer kafkaProducer.Close()
		log.Printf("events: emitting to kafka topic %s", cfg.EventsKafkaTopic)
	case cfg.OTLPEndpoint != "":
		emitter = otel.NewEventEmitter(providers.LoggerProvider)
		log.Println("events: emitting as OTel log records")
	}

	auditLog := audit.NewLogger(auditrepo.NewPostgresRepository(sqlDB), middleware.ClientIP)
	evaluator := engine.NewOPAEvaluator()

	authService, err := auth.NewService(
		auth.Config{
			RPID:               cfg.RPID,
			RPDisplayName:      cfg.RPDisplayName,
			RPOrigins:          cfg.RPOriginsList(),
			ChallengeTTL:       cfg.ChallengeLifetime(),
			AllowZeroSignCount: cfg.AllowZeroSignCount,
		},
		userrepo.NewPostgresRepository(sqlDB),
		credentialrepo.NewPostgresRepository(sqlDB),
		challenge.NewMemoryStore(),
		tokens,
		revocation.NewMemoryStore(),
		evaluator,
		auditLog,
		emitter,
	)
	if err != nil {
		log.Fatalf("auth: %v", err)
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: server.NewHandler(server.Deps{
			Auth:                authService,
			HealthPinger:        sqlDB,
			HealthPolicyChecker: evaluator,
			Emitter:             emitter,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s (rp_id=%s)", cfg.HTTPAddr, cfg.RPID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if emitter != nil {
		// Let in-flight async event emits finish before the producer closes.
		time.Sleep(events.ShutdownDrainDuration)
	}
	log.Println("HTTP server stopped")
}

// signingKeys loads the configured JWT key pair, or generates an ephemeral
// ECDSA pair outside production. Config.Load rejects production without keys.
func signingKeys(cfg *config.Config) (crypto.Signer, crypto.PublicKey, error) {
	if cfg.JWTPrivateKey != "" && cfg.JWTPublicKey != "" {
		privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
		if err != nil {
			return nil, nil, err
		}
		publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
		if err != nil {
			return nil, nil, err
		}
		return privateKey, publicKey, nil
	}
	log.Println("keys: no JWT key pair configured; using an ephemeral key (tokens reset on restart)")
	return security.GenerateEphemeralKey()
}
