// Server runs the identity gateway HTTP API and, when GRPC_ADDR is set, the gRPC health service.
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"identity-gateway/internal/config"
	healthhandler "identity-gateway/internal/health/handler"
	identityhandler "identity-gateway/internal/identity/handler"
	"identity-gateway/internal/identity/service"
	"identity-gateway/internal/mfa"
	"identity-gateway/internal/policy/engine"
	"identity-gateway/internal/security"
	"identity-gateway/internal/server"
	"identity-gateway/internal/supabase"
	"identity-gateway/internal/telemetry"
	telemetryotel "identity-gateway/internal/telemetry/otel"
	"identity-gateway/internal/telemetry/producer"
	userrepo "identity-gateway/internal/user/repository"
)

// version is stamped at build time: -ldflags "-X main.version=...".
var version = "dev"

const (
	shutdownTimeout     = 10 * time.Second
	healthWatchInterval = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Settings{
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
	})
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()

	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey, cfg.HTTPTimeout())
	if err != nil {
		log.Fatalf("supabase: %v", err)
	}

	users, err := userrepo.OpenStore(ctx, client, cfg.DatabaseURL, cfg.UsersTable)
	if err != nil {
		log.Fatalf("users: %v", err)
	}
	defer users.Close()
	log.Printf("users: %s store (table %s)", users.Backend(), cfg.UsersTable)

	redirects, err := engine.NewOPAEvaluator(ctx, cfg.RedirectAllowlist())
	if err != nil {
		log.Fatalf("policy: %v", err)
	}

	kafkaProducer := producer.NewKafkaProducer(cfg.TelemetryKafkaBrokersList(), cfg.TelemetryKafkaTopic)
	authEvents := telemetry.Multi{telemetryotel.NewEventEmitter(providers.LoggerProvider)}
	var requestEvents telemetry.EventEmitter
	if kafkaProducer != nil {
		authEvents = append(authEvents, kafkaProducer)
		requestEvents = kafkaProducer
		log.Printf("telemetry: emitting events to Kafka topic %s", cfg.TelemetryKafkaTopic)
	}

	if cfg.OTPReturnToClient {
		log.Printf("auth: OTP_RETURN_TO_CLIENT is enabled; 2FA codes are returned in the enable response")
	}
	authSvc := service.NewAuthService(
		client,
		users,
		security.NewPasswordHasher(cfg.BcryptCost),
		mfa.NewCodeGenerator(cfg.TwoFACodeDigits),
		redirects,
		authEvents,
		service.Options{
			OAuthProvider: cfg.OAuthProvider,
			CodeTTL:       cfg.CodeTTL(),
			ReturnCode:    cfg.OTPReturnToClient,
		},
	)

	var dbPinger healthhandler.Pinger
	if users.DB != nil {
		dbPinger = users.DB
	}
	health := healthhandler.NewServer(client, dbPinger, redirects)

	router := server.NewRouter(server.Deps{
		ServiceName:   cfg.ServiceName,
		Auth:          identityhandler.NewAuthHandler(authSvc),
		Health:        health,
		RequestEvents: requestEvents,
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http serve: %v", err)
		}
	}()

	var stopGRPC func()
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			log.Fatalf("listen: %v", err)
		}
		grpcSrv := server.NewGRPCServer(health, requestEvents, nil)
		go health.Watch(ctx, healthWatchInterval)
		go func() {
			log.Printf("gRPC health server listening on %s", cfg.GRPCAddr)
			if err := grpcSrv.Serve(lis); err != nil {
				log.Fatalf("grpc serve: %v", err)
			}
		}()
		stopGRPC = grpcSrv.GracefulStop
	}

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if stopGRPC != nil {
		stopGRPC()
	}

	// Let in-flight async emits finish before closing the producer and exporters.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if err := kafkaProducer.Close(); err != nil {
		log.Printf("telemetry: kafka close: %v", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("otel shutdown: %v", err)
	}
	log.Println("server stopped")
}
