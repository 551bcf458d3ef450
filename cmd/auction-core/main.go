// Command auction-core serves the request facade: the HTTP/JSON and
// WebSocket boundary, plus the transactional outbox relay that feeds
// RabbitMQ. The lifecycle scheduler runs as the separate auction-scheduler
// process so a slow tick never competes with request latency.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/floroz/gavel/internal/auction/api"
	"github.com/floroz/gavel/internal/auction/bidengine"
	"github.com/floroz/gavel/internal/auction/broadcast"
	"github.com/floroz/gavel/internal/auction/durable"
	"github.com/floroz/gavel/internal/auction/events"
	"github.com/floroz/gavel/internal/auction/livestore"
	"github.com/floroz/gavel/internal/platform/clock"
	"github.com/floroz/gavel/internal/platform/config"
	"github.com/floroz/gavel/internal/platform/database"
	"github.com/floroz/gavel/pkg/auth"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}
	cfg := config.Load(fail)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down auction-core")
		cancel()
	}()

	publicKeyPEM, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		fail("failed to read JWT public key", "path", cfg.JWTPublicKeyPath, "error", err)
	}
	signer, err := auth.NewSignerFromPublicKey(publicKeyPEM, cfg.JWTIssuer)
	if err != nil {
		fail("failed to create signer", "error", err)
	}

	dbConfig, err := pgxpool.ParseConfig(cfg.DurableStoreURL)
	if err != nil {
		fail("unable to parse database config", "error", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		fail("unable to create connection pool", "error", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		fail("unable to ping database", "error", err)
	}
	logger.Info("postgres connected")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.LiveStoreURL})
	if err := rdb.Ping(ctx).Err(); err != nil {
		fail("unable to ping redis", "error", err)
	}
	defer rdb.Close()
	logger.Info("redis connected")

	amqpConn, err := amqp091.Dial(cfg.RabbitMQURL)
	if err != nil {
		fail("failed to connect to rabbitmq", "error", err)
	}
	defer amqpConn.Close()
	logger.Info("rabbitmq connected")

	rabbitPublisher, err := events.NewRabbitMQPublisher(amqpConn, "auction.events")
	if err != nil {
		fail("failed to create rabbitmq publisher", "error", err)
	}
	defer rabbitPublisher.Close()

	txManager := database.NewPostgresTransactionManager(pool, 3*time.Second)
	auctionRepo := durable.NewAuctionRepository(pool)
	itemRepo := durable.NewItemRepository(pool)
	bidRepo := durable.NewBidRepository(pool)
	paymentRepo := durable.NewPaymentRepository(pool)
	outboxRepo := durable.NewOutboxRepository(pool)

	liveStore := livestore.New(rdb)
	hub := broadcast.New(logger)
	clk := clock.Real{}

	engine := bidengine.New(liveStore, auctionRepo, itemRepo, bidRepo, outboxRepo, txManager, hub, clk)

	outboxRelay := events.NewOutboxRelay(outboxRepo, rabbitPublisher, txManager, 10, 1*time.Second, "auction.events", logger)

	// Bridges the scheduler's lifecycle events back into this process's hub,
	// so they still reach a WebSocket subscriber. The scheduler writes them
	// to the shared outbox table and the relay above publishes them to
	// "auction.events"; NEW_BID and PAYMENT_COMPLETED are not bridged.
	broadcastBridge := events.NewBroadcastBridge(amqpConn, "auction.events", hub, logger)

	router := api.NewRouter(engine, auctionRepo, bidRepo, paymentRepo, outboxRepo, txManager, hub, liveStore, signer, clk, logger)

	srv := &http.Server{
		Addr:    ":8080",
		Handler: router,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting outbox relay")
		return outboxRelay.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("starting broadcast bridge")
		return broadcastBridge.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("starting auction-core HTTP server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("auction-core stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("auction-core stopped")
}
