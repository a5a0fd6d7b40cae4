// Command authgate-server runs the authentication pipeline behind a small
// HTTP API.
//
// Endpoints:
//
//	POST   /login                      JSON {"email","password"}; sets the session cookie
//	POST   /logout                     revokes the bearer credential and ends the session
//	GET    /whoami                     optional bearer authentication
//	GET    /session                    requires a session cookie
//	GET    /admin/stats                requires role ADMIN
//	DELETE /admin/users/{id}/sessions  requires permission sessions:revoke
//	GET    /healthz
//	GET    /metrics                    Prometheus exposition
//
// Without REDIS_URL the server starts an in-process miniredis, and without
// DATABASE_DRIVER it serves two demo users from memory.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/config"
	"github.com/MrEthical07/authgate/identity"
	"github.com/MrEthical07/authgate/internal/telemetry"
	otelexport "github.com/MrEthical07/authgate/metrics/export/otel"
	promexport "github.com/MrEthical07/authgate/metrics/export/prometheus"
	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/policy"
)

const (
	shutdownTimeout = 10 * time.Second
	demoPassword    = "correct-horse-battery"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "authgate-server:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings, err := config.Load(ctx, args, config.Options{})
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	logger := settings.Logger(os.Stderr)
	slog.SetDefault(logger)

	providers, err := telemetry.NewProviders(ctx, settings.OTLPEndpoint, settings.ServiceName, false)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	rdb, closeRedis, err := openRedis(settings.RedisURL, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	users, closeUsers, err := openIdentity(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer closeUsers()

	perms, err := loadPolicy(ctx, settings)
	if err != nil {
		return err
	}

	sinks := authgate.MultiSink{authgate.NewLogSink(logger)}
	if settings.OTLPEndpoint != "" {
		sinks = append(sinks, authgate.NewOTelLogSink(providers.LoggerProvider))
	}
	if settings.AMQPURL != "" {
		sink, conn, err := authgate.DialAMQPAuditSink(settings.AMQPURL, settings.AMQPExchange)
		if err != nil {
			return fmt.Errorf("amqp: %w", err)
		}
		defer conn.Close()
		sink.OnError = func(err error) {
			logger.Warn("audit publish failed", "error", err)
		}
		sinks = append(sinks, sink)
	}

	engine, err := authgate.New().
		WithConfig(settings.Auth).
		WithRedis(rdb).
		WithIdentityLookup(users).
		WithPermissionPolicy(perms).
		WithAuditSink(sinks).
		WithLogger(logger).
		WithTracerProvider(providers.TracerProvider).
		Build()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer engine.Close()

	otelMetrics, err := otelexport.NewExporter(providers.MeterProvider.Meter("github.com/MrEthical07/authgate"), engine)
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}
	defer otelMetrics.Close()

	metricsHandler, err := promexport.Handler(promexport.NewCollector(engine))
	if err != nil {
		return fmt.Errorf("prometheus: %w", err)
	}

	srv := &http.Server{
		Addr:              settings.HTTPAddr,
		Handler:           newRouter(engine, metricsHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", settings.HTTPAddr, "policy", engine.PolicyName())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

func openRedis(url string, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if url == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("miniredis: %w", err)
		}
		logger.Warn("REDIS_URL not set; using in-process miniredis", "addr", mr.Addr())
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return client, func() { _ = client.Close() }, nil
}

func openIdentity(ctx context.Context, s *config.Settings, logger *slog.Logger) (authgate.IdentityLookup, func(), error) {
	if s.DatabaseDriver != "" {
		store, err := identity.Open(ctx, s.DatabaseDriver, s.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("identity store: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("identity migrate: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	}

	hash, err := password.NewHasher(s.Auth.Login.BcryptCost).Hash(demoPassword)
	if err != nil {
		return nil, nil, err
	}
	logger.Warn("DATABASE_DRIVER not set; serving demo users from memory",
		"users", "admin@example.com,user@example.com")
	store := identity.NewMemoryStore(
		authgate.UserRecord{UserID: "u-admin", Email: "admin@example.com", Role: authgate.RoleAdmin, Plan: "enterprise", Status: authgate.StatusActive, PasswordHash: hash},
		authgate.UserRecord{UserID: "u-user", Email: "user@example.com", Role: authgate.RoleUser, Plan: "free", Status: authgate.StatusActive, PasswordHash: hash},
	)
	return store, func() {}, nil
}

func loadPolicy(ctx context.Context, s *config.Settings) (authgate.PermissionPolicy, error) {
	switch {
	case s.RegoFile != "":
		module, err := os.ReadFile(s.RegoFile)
		if err != nil {
			return nil, fmt.Errorf("rego policy: %w", err)
		}
		p, err := policy.NewRego(ctx, string(module), s.RegoQuery)
		if err != nil {
			return nil, err
		}
		return p, nil
	case s.PolicyFile != "":
		p, err := policy.LoadMatrixFile(s.PolicyFile)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return authgate.AdminOnly(), nil
	}
}
