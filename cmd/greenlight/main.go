// Package main is the entry point for the Greenlight approval server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/pitabwire/greenlight/internal/audit"
	"github.com/pitabwire/greenlight/internal/config"
	"github.com/pitabwire/greenlight/internal/engine"
	"github.com/pitabwire/greenlight/internal/observability"
	"github.com/pitabwire/greenlight/internal/template"
	"github.com/pitabwire/greenlight/internal/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "greenlight", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.InitMetrics(prometheus.DefaultRegisterer)
	}

	// Step 4: Initialize the template store and seed templates from disk.
	templateStore, templateCloser, err := buildTemplateStore(ctx, cfg.Templates.Store, logger)
	if err != nil {
		logger.Error("template store initialization failed", zap.Error(err))
		return 1
	}

	loader := template.NewLoader(templateStore, logger)
	seeded, err := loader.SeedAll(ctx, cfg.Templates.SeedDirectories)
	if err != nil {
		logger.Error("template seeding failed", zap.Error(err))
		return 1
	}

	// Step 5: Initialize the workflow store.
	wfStore, wfStoreCloser, err := buildWorkflowStore(ctx, cfg.Engine.Store, logger)
	if err != nil {
		logger.Error("workflow store initialization failed", zap.Error(err))
		return 1
	}

	// Step 6: Initialize the idempotency store (optional).
	idempotencyStore, idempotencyCloser, err := buildIdempotencyStore(ctx, cfg.Idempotency, logger)
	if err != nil {
		logger.Error("idempotency store initialization failed", zap.Error(err))
		return 1
	}

	// Step 7: Build the approval engine.
	eng := engine.NewEngine(templateStore, wfStore, audit.NewLoggerSink(logger), logger,
		engine.WithUrgencyWindow(cfg.Engine.UrgencyWindow))

	// Step 8: Build the HTTP router.
	jwks := transport.NewJWKSClient(cfg.Identity.JWKSURL, cfg.Identity.JWKSCacheTTL, logger)

	readinessChecks := observability.ReadinessChecks{
		// Seeding happens before the server accepts traffic, so the count
		// observed at startup is what readiness reports.
		TemplatesLoaded: func() bool {
			return seeded > 0 || len(cfg.Templates.SeedDirectories) == 0
		},
	}
	if hc, ok := templateStore.(observability.HealthChecker); ok {
		readinessChecks.TemplateStore = hc
	}
	if hc, ok := wfStore.(observability.HealthChecker); ok {
		readinessChecks.WorkflowStore = hc
	}
	if hc, ok := idempotencyStore.(observability.HealthChecker); ok {
		readinessChecks.IdempotencyStore = hc
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Engine:       eng,
		Templates:    templateStore,
		Idempotency:  idempotencyStore,
		Metrics:      metrics,
		Authenticate: transport.JWTAuthenticator(cfg.Identity, jwks),
		Readiness:    readinessChecks,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 9: Start the HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("templates_seeded", seeded),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Close stores.
	if wfStoreCloser != nil {
		wfStoreCloser()
	}
	if templateCloser != nil {
		templateCloser()
	}
	if idempotencyCloser != nil {
		idempotencyCloser()
	}

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildTemplateStore creates the template store based on config.
func buildTemplateStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (template.Store, func(), error) {
	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory template store")
		return template.NewMemoryStore(), nil, nil
	case "postgres":
		pool, err := newPgPool(ctx, "template store", cfg)
		if err != nil {
			return nil, nil, err
		}
		return template.NewPgStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported template store driver: %q", cfg.Driver)
	}
}

// buildWorkflowStore creates the workflow store based on config.
func buildWorkflowStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (engine.WorkflowStore, func(), error) {
	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory workflow store")
		return engine.NewMemoryWorkflowStore(), nil, nil
	case "postgres":
		pool, err := newPgPool(ctx, "workflow store", cfg)
		if err != nil {
			return nil, nil, err
		}
		return engine.NewPgWorkflowStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported workflow store driver: %q", cfg.Driver)
	}
}

// buildIdempotencyStore creates the idempotency store based on config.
// Returns a nil store if idempotency is disabled.
func buildIdempotencyStore(ctx context.Context, cfg config.IdempotencyConfig, logger *zap.Logger) (engine.IdempotencyStore, func(), error) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	switch cfg.Store.Driver {
	case "memory", "":
		logger.Info("using in-memory idempotency store")
		return engine.NewMemoryIdempotencyStore(), nil, nil
	case "redis":
		addr := os.Getenv(cfg.Store.AddrEnv)
		if addr == "" {
			return nil, nil, fmt.Errorf("idempotency store: %s environment variable not set", cfg.Store.AddrEnv)
		}
		client := redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   cfg.Store.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("idempotency store: ping: %w", err)
		}
		closer := func() { client.Close() }
		return engine.NewRedisIdempotencyStore(client), closer, nil
	default:
		return nil, nil, fmt.Errorf("unsupported idempotency store driver: %q", cfg.Store.Driver)
	}
}

// newPgPool opens a pgx connection pool using the DSN named by the store
// config and verifies connectivity before returning.
func newPgPool(ctx context.Context, name string, cfg config.StoreConfig) (*pgxpool.Pool, error) {
	dsn := os.Getenv(cfg.DSNEnv)
	if dsn == "" {
		return nil, fmt.Errorf("%s: %s environment variable not set", name, cfg.DSNEnv)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: parse DSN: %w", name, err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", name, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: ping: %w", name, err)
	}
	return pool, nil
}
