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

	"connectrpc.com/connect"
	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/escrow-auction/internal/adapters/api"
	"github.com/floroz/escrow-auction/internal/adapters/database"
	"github.com/floroz/escrow-auction/internal/adapters/events"
	"github.com/floroz/escrow-auction/internal/adapters/notify"
	"github.com/floroz/escrow-auction/internal/auction"
	"github.com/floroz/escrow-auction/internal/config"
	"github.com/floroz/escrow-auction/migrations"
	"github.com/floroz/escrow-auction/pkg/auth"
	pkgdb "github.com/floroz/escrow-auction/pkg/database"
	pkgevents "github.com/floroz/escrow-auction/pkg/events"
)

const shutdownTimeout = 10 * time.Second

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

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Auction API stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Auction API stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// 1. Caller identity
	if cfg.JWTPublicKeyPath == "" {
		return errors.New("JWT_PUBLIC_KEY_PATH is not set")
	}
	publicKey, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return fmt.Errorf("failed to read JWT public key: %w", err)
	}
	signer, err := auth.NewSignerFromPublicKey(publicKey, cfg.JWTIssuer)
	if err != nil {
		return err
	}

	opts := []auction.Option{auction.WithLogger(logger)}
	g, ctx := errgroup.WithContext(ctx)

	// 2. Live notifications (optional)
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(redisOptions(cfg.RedisURL))
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis connection failed, live notifications disabled", "error", err)
		} else {
			opts = append(opts, auction.WithNotifier(notify.NewRedisNotifier(rdb)))
			logger.Info("Redis Connected")
		}
	}

	// 3. Journal, recovery and relay (optional)
	var journal *database.Journal
	if cfg.DatabaseURL != "" {
		if cfg.AutoMigrate {
			if err := pkgdb.Migrate(ctx, cfg.DatabaseURL, migrations.FS); err != nil {
				return err
			}
			logger.Info("Migrations applied")
		}

		pool, err := pkgdb.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		logger.Info("Postgres Connected")

		txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.DBLockTimeout)
		outboxRepo := database.NewPostgresOutboxRepository(pool)
		journal = database.NewJournal(txManager, database.NewPostgresAuctionRepository(pool), outboxRepo)
		opts = append(opts, auction.WithJournal(journal))

		if cfg.BrokerURL() != "" {
			publisher, closePublisher, err := events.NewPublisher(cfg)
			if err != nil {
				return err
			}
			defer closePublisher()
			logger.Info("Broker Connected", "broker", cfg.EventsBroker)

			relay := pkgevents.NewOutboxRelay(
				outboxRepo,
				publisher,
				txManager,
				cfg.RelayBatchSize,
				cfg.RelayInterval,
				cfg.EventsExchange,
				logger,
			)
			g.Go(func() error {
				logger.Info("Starting Outbox Relay...")
				return relay.Run(ctx)
			})
		}
	} else {
		logger.Warn("AUCTION_DB_URL is not set, auctions are kept in memory only")
	}

	registry := auction.NewRegistry(opts...)
	if journal != nil {
		listings, records, err := journal.Load(ctx)
		if err != nil {
			return err
		}
		if err := registry.Restore(ctx, listings, records); err != nil {
			return err
		}
	}

	// 4. API
	service := auction.NewAuctionService(registry, logger)
	handler := api.NewAuctionHandler(service, cfg.AmountDecimals, logger)
	path, connectHandler := api.NewAuctionServiceHandler(handler,
		connect.WithInterceptors(auth.NewAuthInterceptor(signer, api.PublicProcedures...)),
	)

	mux := http.NewServeMux()
	mux.Handle(path, connectHandler)
	mux.Handle(api.EventStreamPattern, api.NewEventStreamHandler(handler, logger))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Use h2c for HTTP/2 without TLS (Connect streaming over plain HTTP)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("Starting Auction API", "addr", cfg.HTTPAddr, "auctions", registry.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down Auction API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// redisOptions accepts either a redis:// URL or a bare host:port
func redisOptions(url string) *redis.Options {
	if opts, err := redis.ParseURL(url); err == nil {
		return opts
	}
	return &redis.Options{Addr: url}
}
