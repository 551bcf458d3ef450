// Command auction-scheduler runs C4, the lifecycle scheduler, as its own
// process so a slow or backed-up tick never competes with request-facade
// latency. It shares the same durable/live stores as auction-core but owns
// no HTTP surface.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/floroz/gavel/internal/auction/broadcast"
	"github.com/floroz/gavel/internal/auction/durable"
	"github.com/floroz/gavel/internal/auction/livestore"
	"github.com/floroz/gavel/internal/auction/scheduler"
	"github.com/floroz/gavel/internal/platform/clock"
	"github.com/floroz/gavel/internal/platform/config"
	"github.com/floroz/gavel/internal/platform/database"
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
		logger.Info("shutting down auction-scheduler")
		cancel()
	}()

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

	txManager := database.NewPostgresTransactionManager(pool, 3*time.Second)
	auctionRepo := durable.NewAuctionRepository(pool)
	itemRepo := durable.NewItemRepository(pool)
	bidRepo := durable.NewBidRepository(pool)
	paymentRepo := durable.NewPaymentRepository(pool)
	outboxRepo := durable.NewOutboxRepository(pool)

	liveStore := livestore.New(rdb)
	hub := broadcast.New(logger)
	clk := clock.Real{}

	// *livestore.Store already implements scheduler.BidEngine's single
	// RemoveHead method, so this process never needs the full bid engine
	// (it places no bids).
	sched := scheduler.New(
		auctionRepo, itemRepo, bidRepo, paymentRepo,
		liveStore, liveStore, outboxRepo, txManager, hub, clk, logger,
		scheduler.Config{
			PaymentWindow:     cfg.PaymentWindow,
			LiveStateTTLGrace: cfg.LiveStateTTLGrace,
		},
	)

	logger.Info("starting auction-scheduler", "tick", cfg.SchedulerTickInterval)
	if err := sched.Run(ctx, cfg.SchedulerTickInterval); err != nil {
		logger.Error("scheduler stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("auction-scheduler stopped")
}
