package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/floroz/gavel/internal/auction/broadcast"
	"github.com/floroz/gavel/internal/auction/domain"
	"github.com/floroz/gavel/internal/auction/events"
)

const minLiveStateTTL = 60 * time.Second

// activatePending transitions every PENDING auction whose start_time has
// arrived to LIVE, then projects it into the live store. A LIVE auction
// whose live state is missing (e.g. after a live-store restart) is
// re-projected here too — defensive repair, not a fresh activation.
func (s *Scheduler) activatePending(ctx context.Context, now time.Time) error {
	pending, err := s.auctions.ListByStatus(ctx, domain.AuctionPending)
	if err != nil {
		return fmt.Errorf("listing pending auctions: %w", err)
	}

	for _, a := range pending {
		if a.StartTime.After(now) {
			continue
		}
		if err := s.activateOne(ctx, a, now); err != nil {
			s.logger.Error("failed to activate auction", slog.String("auction_id", a.ID.String()), slog.Any("error", err))
		}
	}

	live, err := s.auctions.ListByStatus(ctx, domain.AuctionLive)
	if err != nil {
		return fmt.Errorf("listing live auctions: %w", err)
	}
	for _, a := range live {
		exists, err := s.live.Exists(ctx, a.ID)
		if err != nil {
			s.logger.Error("failed to check live state existence", slog.String("auction_id", a.ID.String()), slog.Any("error", err))
			continue
		}
		if exists {
			continue
		}
		if err := s.projectLive(ctx, a, now); err != nil {
			s.logger.Error("failed to re-project live state", slog.String("auction_id", a.ID.String()), slog.Any("error", err))
		}
	}

	return nil
}

func (s *Scheduler) activateOne(ctx context.Context, a *domain.Auction, now time.Time) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a.Status = domain.AuctionLive
	a.UpdatedAt = now
	if err := s.auctions.SaveAuction(ctx, tx, a); err != nil {
		return fmt.Errorf("saving auction status: %w", err)
	}

	outboxEvt, err := events.NewOutboxEvent(events.NewEvent(events.KindAuctionStarted, a.ID, map[string]any{
		"auctionId": a.ID.String(),
	}), now)
	if err != nil {
		return err
	}
	if err := s.outbox.SaveEvent(ctx, tx, outboxEvt); err != nil {
		return fmt.Errorf("saving outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing activation: %w", err)
	}

	if err := s.projectLive(ctx, a, now); err != nil {
		return err
	}

	s.broadcast.Publish(broadcast.GlobalTopic, events.NewEvent(events.KindAuctionStarted, a.ID, map[string]any{
		"auctionId": a.ID.String(),
	}))
	return nil
}

func (s *Scheduler) projectLive(ctx context.Context, a *domain.Auction, now time.Time) error {
	item, err := s.items.GetItem(ctx, a.ItemID)
	if err != nil {
		return fmt.Errorf("loading item: %w", err)
	}

	existingBids, err := s.bids.ListBidsDescByTime(ctx, a.ID, 0)
	if err != nil {
		return fmt.Errorf("loading existing bids: %w", err)
	}

	ttl := a.EndTime.Add(s.liveStateTTLGrace).Sub(now)
	if ttl < minLiveStateTTL {
		ttl = minLiveStateTTL
	}

	return s.live.Project(ctx, a, item, existingBids, ttl)
}
