package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/config"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/db"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/domain"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/health"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/idempotency"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/logging"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/messaging"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/metrics"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/payment"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/repository"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/retry"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/shutdown"
	"github.com/Susmitha-coder-hub/Event-Driven-Payment/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel)
	// Propagation only; no TracerProvider is registered
	otel.SetTextMapPropagator(tracing.Propagator())

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	var checks []health.Check

	// Transaction store
	var store domain.TransactionStore
	switch cfg.Store.Driver {
	case "memory":
		mem := repository.NewMemoryStore()
		store = mem
		checks = append(checks, health.Check{Name: "store", Pinger: mem})
		log.Warn("using in-memory transaction store; records are lost on restart")
	default:
		pool, err := db.NewPool(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			log.Error("failed to create database pool", "err", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			log.Error("failed to migrate database", "err", err)
			os.Exit(1)
		}
		store = repository.NewTransactionRepository(pool.Pool)
		checks = append(checks, health.Check{Name: "store", Pinger: pool})
		log.Info("database connection pool initialized")
	}

	// Completed-key cache
	var cache idempotency.CompletedCache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password})
		defer rdb.Close()
		redisCache := idempotency.NewRedisCache(rdb, cfg.Redis.TTL)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn("redis unreachable, completed-key cache may miss", "addr", cfg.Redis.Addr, "err", err)
		}
		cache = redisCache
	}

	// Disposition audit
	var opts []retry.Option
	if cfg.ClickHouse.Host != "" {
		ch, err := db.NewClickHouseClient(ctx, cfg.ClickHouse)
		if err != nil {
			log.Error("failed to connect to ClickHouse", "err", err)
			os.Exit(1)
		}
		defer ch.Close()

		if err := ch.EnsureSchema(ctx); err != nil {
			log.Error("failed to create ClickHouse schema", "err", err)
			os.Exit(1)
		}
		opts = append(opts, retry.WithRecorder(repository.NewDispositionRepository(ch)))
		log.Info("disposition audit enabled", "host", cfg.ClickHouse.Host)
	}

	// Broker
	broker, err := messaging.NewBroker(log, cfg.RabbitMQ)
	if err != nil {
		log.Error("failed to initialize RabbitMQ", "err", err)
		os.Exit(1)
	}
	defer broker.Close()
	checks = append(checks, health.Check{Name: "broker", Pinger: broker})

	// Pipeline
	registry := metrics.NewRegistry()
	gateway := payment.NewSimulatedGateway(
		cfg.Simulation.TransientRate,
		cfg.Simulation.PermanentRate,
		cfg.Simulation.Latency,
	)
	processor := payment.NewProcessor(log, store, gateway, cfg.Retry.Limit)
	guard := idempotency.NewGuard(log, store, cache)
	publisher := messaging.NewRabbitMQPublisher(broker.PublishChannel(), cfg.RabbitMQ.Queue, cfg.RabbitMQ.DeadLetterQueue)
	controller := retry.NewController(log, guard, processor, publisher, registry,
		cfg.Retry.Limit, cfg.Retry.InitialDelay, opts...)
	consumer := messaging.NewRabbitMQConsumer(log, broker, controller)

	// HTTP server
	r := chi.NewRouter()
	r.Mount("/", health.NewHandler(log, registry.Handler(), checks...).Routes())
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// gRPC health server
	grpcServer := health.NewGRPCServer()
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Error("failed to listen", "port", cfg.GRPCPort, "err", err)
		os.Exit(1)
	}

	go func() {
		log.Info("http listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	go func() {
		log.Info("grpc health listening", "port", cfg.GRPCPort)
		if err := grpcServer.Server().Serve(lis); err != nil {
			log.Error("grpc server error", "err", err)
			cancel()
		}
	}()

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		grpcServer.SetServing(true)
		defer grpcServer.SetServing(false)

		if err := consumer.Start(ctx); err != nil {
			log.Error("consumer stopped with error", "err", err)
		}
		cancel()
	}()

	log.Info("payment processor started",
		"queue", cfg.RabbitMQ.Queue,
		"dead_letter_queue", cfg.RabbitMQ.DeadLetterQueue,
		"retry_limit", cfg.Retry.Limit,
		"retry_initial_delay", cfg.Retry.InitialDelay.String(),
	)

	<-ctx.Done()

	// Let the in-flight message settle before the broker closes
	select {
	case <-consumerDone:
	case <-time.After(10 * time.Second):
		log.Warn("consumer did not stop in time")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	grpcServer.Stop()
	log.Info("payment processor shutdown complete")
}
