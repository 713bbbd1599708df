package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/floroz/escrow-auction/internal/adapters/database"
	"github.com/floroz/escrow-auction/internal/adapters/events"
	"github.com/floroz/escrow-auction/internal/config"
	pkgdb "github.com/floroz/escrow-auction/pkg/database"
	pkgevents "github.com/floroz/escrow-auction/pkg/events"
)

// The worker relays journaled auction events from the outbox to the broker
// selected by EVENTS_BROKER. It can run next to, or instead of, the relay
// embedded in the API.
func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load environment variables (local overrides .env)
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Initialize Postgres Connection Pool
	if cfg.DatabaseURL == "" {
		logger.Error("AUCTION_DB_URL is not set")
		os.Exit(1)
	}
	pool, err := pkgdb.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to Postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Postgres Connected")

	// 2. Connect to the broker
	publisher, closePublisher, err := events.NewPublisher(cfg)
	if err != nil {
		logger.Error("Failed to connect to broker", "broker", cfg.EventsBroker, "error", err)
		os.Exit(1)
	}
	defer closePublisher()
	logger.Info("Broker Connected", "broker", cfg.EventsBroker)

	// 3. Run the relay until a signal arrives
	relay := pkgevents.NewOutboxRelay(
		database.NewPostgresOutboxRepository(pool),
		publisher,
		pkgdb.NewPostgresTransactionManager(pool, cfg.DBLockTimeout),
		cfg.RelayBatchSize,
		cfg.RelayInterval,
		cfg.EventsExchange,
		logger,
	)

	logger.Info("Starting Outbox Relay...", "exchange", cfg.EventsExchange)
	if runErr := relay.Run(ctx); runErr != nil {
		logger.Error("Outbox Relay failed", "error", runErr)
	}

	logger.Info("Worker stopped")
}
