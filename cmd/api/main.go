package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	playground "github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/niharmallik/sagapay/internal/adapter/broker"
	"github.com/niharmallik/sagapay/internal/adapter/handler"
	"github.com/niharmallik/sagapay/internal/adapter/storage"
	"github.com/niharmallik/sagapay/internal/core/config"
	"github.com/niharmallik/sagapay/internal/core/decision"
	"github.com/niharmallik/sagapay/internal/core/ledger"
	"github.com/niharmallik/sagapay/internal/core/saga"
	"github.com/niharmallik/sagapay/internal/core/worker"
)

func main() {
	cfg := config.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	// Storage: Postgres when configured, in-memory otherwise.
	var (
		pool       *pgxpool.Pool
		sagaStore  saga.Store
		eventStore ledger.EventStore
		outbox     worker.OutboxSource
	)
	if cfg.DatabaseURL != "" {
		var err error
		pool, err = storage.ConnectDB(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		if err := storage.EnsureSchema(ctx, pool); err != nil {
			slog.Error("schema setup failed", "error", err)
			os.Exit(1)
		}
		pgSagas := storage.NewPgSagaStore(pool)
		sagaStore = pgSagas
		eventStore = storage.NewPgEventStore(pool)
		outbox = pgSagas
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory storage")
		memSagas := storage.NewMemorySagaStore()
		sagaStore = memSagas
		eventStore = storage.NewMemoryEventStore()
		outbox = memSagas
	}

	// Core services.
	accounts := ledger.NewService(eventStore)
	decisions := decision.New(accounts, cfg.SanctionedAccounts)
	orchestrator := saga.New(sagaStore, decisions, saga.Config{
		SagaTimeout: cfg.SagaTimeout,
		StepTimeout: cfg.StepTimeout,
	})

	validate := playground.New()
	accountHandler := &handler.AccountHandler{Ledger: accounts, Validate: validate}
	transferHandler := &handler.TransferHandler{Saga: orchestrator, Validate: validate}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/v1")
	api.Post("/accounts/:id", accountHandler.CreateAccount)
	api.Get("/accounts/:id", accountHandler.GetAccount)
	api.Get("/accounts/:id/verify-funds/:amount", accountHandler.VerifyFunds)
	api.Post("/transfers/:txId", transferHandler.Submit)
	api.Post("/transfers", transferHandler.Submit)
	api.Get("/transfers/:txId", transferHandler.GetStatus)

	// Outbox relay publishes terminal saga events when a broker is wired.
	var publisher *broker.RabbitMQPublisher
	if cfg.AMQPURL != "" {
		var err error
		publisher, err = broker.NewRabbitMQPublisher(cfg.AMQPURL, cfg.OutboxQueue)
		if err != nil {
			slog.Error("broker connection failed", "error", err)
			os.Exit(1)
		}
		relay := worker.NewOutboxRelay(outbox, publisher)
		go relay.Start(ctx)
	} else {
		slog.Warn("AMQP_URL not set, terminal saga events stay in the outbox")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "env", cfg.Env, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	stopWorkers()
	if publisher != nil {
		publisher.Close()
	}
	if pool != nil {
		pool.Close()
		slog.Info("database connection closed")
	}

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	slog.Info("server exited")
}
