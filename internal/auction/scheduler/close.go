package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/gavel/internal/auction/broadcast"
	"github.com/floroz/gavel/internal/auction/domain"
	"github.com/floroz/gavel/internal/auction/events"
	"github.com/floroz/gavel/internal/money"
)

// closeLive closes every LIVE auction whose end_time has passed, creating a
// guarantee payment for the provisional winner when there is one.
func (s *Scheduler) closeLive(ctx context.Context, now time.Time) error {
	live, err := s.auctions.ListByStatus(ctx, domain.AuctionLive)
	if err != nil {
		return fmt.Errorf("listing live auctions: %w", err)
	}

	for _, a := range live {
		if now.Before(a.EndTime) || now.Equal(a.EndTime) {
			continue
		}
		if err := s.closeOne(ctx, a, now); err != nil {
			s.logger.Error("failed to close auction", slog.String("auction_id", a.ID.String()), slog.Any("error", err))
		}
	}
	return nil
}

func (s *Scheduler) closeOne(ctx context.Context, a *domain.Auction, now time.Time) error {
	highest, err := s.live.CurrentHighest(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("reading live highest: %w", err)
	}
	bidder, err := s.live.HighestBidder(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("reading live highest bidder: %w", err)
	}

	if highest.IsPositive() && bidder != uuid.Nil {
		return s.closeWithWinner(ctx, a, now, highest, bidder)
	}
	return s.closeWithoutWinner(ctx, a, now)
}

func (s *Scheduler) closeWithWinner(ctx context.Context, a *domain.Auction, now time.Time, highest money.Amount, bidder uuid.UUID) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a.Status = domain.AuctionCompleted
	a.WinnerID = &bidder
	amt := highest
	a.CurrentHighestBid = &amt
	a.UpdatedAt = now
	if err := s.auctions.SaveAuction(ctx, tx, a); err != nil {
		return fmt.Errorf("saving closed auction: %w", err)
	}

	dueBy := now.Add(s.paymentWindow)
	payment := &domain.Payment{
		ID:        uuid.New(),
		AuctionID: a.ID,
		BidderID:  bidder,
		Amount:    highest.Half(),
		Type:      domain.PaymentTypeGuarantee,
		Status:    domain.PaymentPending,
		DueBy:     dueBy,
		CreatedAt: now,
	}
	if err := s.payments.SavePayment(ctx, tx, payment); err != nil {
		return fmt.Errorf("saving guarantee payment: %w", err)
	}

	outboxEvt, err := events.NewOutboxEvent(events.NewEvent(events.KindAuctionEnded, a.ID, map[string]any{
		"winnerId":        bidder.String(),
		"winningBid":      highest.String(),
		"guaranteeAmount": payment.Amount.String(),
		"paymentDeadline": dueBy.UTC().Format(time.RFC3339Nano),
	}), now)
	if err != nil {
		return err
	}
	if err := s.outbox.SaveEvent(ctx, tx, outboxEvt); err != nil {
		return fmt.Errorf("saving outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing close: %w", err)
	}

	s.broadcast.Publish(broadcast.TopicForAuction(a.ID.String()), events.NewEvent(events.KindAuctionEnded, a.ID, map[string]any{
		"winnerId":        bidder.String(),
		"winningBid":      highest.String(),
		"guaranteeAmount": payment.Amount.String(),
		"paymentDeadline": dueBy.UTC().Format(time.RFC3339Nano),
	}))
	s.broadcast.Publish(broadcast.GlobalTopic, events.NewEvent(events.KindAuctionEnded, a.ID, nil))

	return nil
}

func (s *Scheduler) closeWithoutWinner(ctx context.Context, a *domain.Auction, now time.Time) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	a.Status = domain.AuctionCompleted
	a.UpdatedAt = now
	if err := s.auctions.SaveAuction(ctx, tx, a); err != nil {
		return fmt.Errorf("saving closed auction: %w", err)
	}

	outboxEvt, err := events.NewOutboxEvent(events.NewEvent(events.KindAuctionEndedNoBid, a.ID, nil), now)
	if err != nil {
		return err
	}
	if err := s.outbox.SaveEvent(ctx, tx, outboxEvt); err != nil {
		return fmt.Errorf("saving outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing close: %w", err)
	}

	if err := s.live.Teardown(ctx, a.ID); err != nil {
		s.logger.Error("failed to tear down live state", slog.String("auction_id", a.ID.String()), slog.Any("error", err))
	}

	s.broadcast.Publish(broadcast.TopicForAuction(a.ID.String()), events.NewEvent(events.KindAuctionEndedNoBid, a.ID, nil))
	s.broadcast.Publish(broadcast.GlobalTopic, events.NewEvent(events.KindAuctionEndedNoBid, a.ID, nil))

	return nil
}
