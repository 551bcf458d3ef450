// Package scheduler implements C4, the lifecycle scheduler: the single
// periodic tick that activates PENDING auctions, closes LIVE ones past
// end_time, and rolls a defaulted guarantee payment forward to the next
// bidder. Every transition here is idempotent within a tick so a second
// instance's concurrent tick, or a repeated tick after a crash, is a no-op
// on anything already settled.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/gavel/internal/auction/broadcast"
	"github.com/floroz/gavel/internal/auction/domain"
	"github.com/floroz/gavel/internal/auction/events"
	"github.com/floroz/gavel/internal/money"
	"github.com/floroz/gavel/internal/platform/clock"
	"github.com/floroz/gavel/internal/platform/database"
)

// BidEngine is the subset of bidengine.Engine the scheduler depends on for
// its payment-timeout fallback.
type BidEngine interface {
	RemoveHead(ctx context.Context, auctionID uuid.UUID) (*events.BidEnvelope, error)
}

// Broadcaster publishes an event to the C5 broadcast hub.
type Broadcaster interface {
	Publish(topic string, event events.Event)
}

// LiveStore is the subset of livestore.Store the scheduler depends on to
// project, read and tear down an auction's live projection.
type LiveStore interface {
	Exists(ctx context.Context, auctionID uuid.UUID) (bool, error)
	Project(ctx context.Context, a *domain.Auction, item *domain.Item, existingBids []*domain.Bid, ttl time.Duration) error
	Teardown(ctx context.Context, auctionID uuid.UUID) error
	CurrentHighest(ctx context.Context, auctionID uuid.UUID) (money.Amount, error)
	HighestBidder(ctx context.Context, auctionID uuid.UUID) (uuid.UUID, error)
}

// Scheduler runs the periodic lifecycle tick: activation, closing and
// payment-timeout sweeps.
type Scheduler struct {
	auctions  domain.AuctionStore
	items     domain.ItemStore
	bids      domain.BidStore
	payments  domain.PaymentStore
	live      LiveStore
	engine    BidEngine
	outbox    events.OutboxRepository
	txManager database.TransactionManager
	broadcast Broadcaster
	clock     clock.Clock
	logger    *slog.Logger

	paymentWindow     time.Duration
	liveStateTTLGrace time.Duration
}

// Config bundles the scheduler's timing knobs.
type Config struct {
	PaymentWindow     time.Duration
	LiveStateTTLGrace time.Duration
}

// New creates a Scheduler wired to its collaborators.
func New(
	auctions domain.AuctionStore,
	items domain.ItemStore,
	bids domain.BidStore,
	payments domain.PaymentStore,
	live LiveStore,
	engine BidEngine,
	outbox events.OutboxRepository,
	txManager database.TransactionManager,
	bc Broadcaster,
	clk clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Scheduler {
	return &Scheduler{
		auctions:          auctions,
		items:             items,
		bids:              bids,
		payments:          payments,
		live:              live,
		engine:            engine,
		outbox:            outbox,
		txManager:         txManager,
		broadcast:         bc,
		clock:             clk,
		logger:            logger,
		paymentWindow:     cfg.PaymentWindow,
		liveStateTTLGrace: cfg.LiveStateTTLGrace,
	}
}

// Run starts the periodic tick loop; it returns when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one full scheduler iteration: activate, close, then payment
// timeout/fallback, in that order. A failing auction is logged and skipped
// so it never stalls the rest of the tick.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock.Now()

	if err := s.activatePending(ctx, now); err != nil {
		s.logger.Error("activate phase failed", slog.Any("error", err))
	}
	if err := s.closeLive(ctx, now); err != nil {
		s.logger.Error("close phase failed", slog.Any("error", err))
	}
	if err := s.processPaymentTimeouts(ctx, now); err != nil {
		s.logger.Error("payment timeout phase failed", slog.Any("error", err))
	}
}
