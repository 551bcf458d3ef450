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

// processPaymentTimeouts scans PENDING GUARANTEE payments past their
// deadline and rolls the win forward to the next bidder. Multiple chained
// fallbacks can happen within one tick if several consecutive winners had
// defaults pending.
func (s *Scheduler) processPaymentTimeouts(ctx context.Context, now time.Time) error {
	pending, err := s.payments.ListPendingGuaranteePayments(ctx)
	if err != nil {
		return fmt.Errorf("listing pending guarantee payments: %w", err)
	}

	for _, p := range pending {
		if now.Before(p.DueBy) {
			continue
		}
		if err := s.processTimeout(ctx, p, now); err != nil {
			s.logger.Error("failed to process payment timeout", slog.String("payment_id", p.ID.String()), slog.Any("error", err))
		}
	}
	return nil
}

func (s *Scheduler) processTimeout(ctx context.Context, p *domain.Payment, now time.Time) error {
	failed, err := s.markPaymentFailed(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("marking payment failed: %w", err)
	}
	if !failed {
		// A concurrent SUCCESS already won this race; the scheduler no-ops.
		return nil
	}

	previousBidder := p.BidderID

	newHead, err := s.engine.RemoveHead(ctx, p.AuctionID)
	if err != nil {
		return fmt.Errorf("removing bid-set head: %w", err)
	}

	if newHead == nil {
		return s.fallbackToNoWinner(ctx, p.AuctionID, previousBidder, now)
	}
	return s.fallbackToNewWinner(ctx, p.AuctionID, previousBidder, newHead, now)
}

func (s *Scheduler) markPaymentFailed(ctx context.Context, paymentID uuid.UUID) (bool, error) {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ok, err := s.payments.MarkFailedIfPending(ctx, tx, paymentID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing payment failure: %w", err)
	}
	return true, nil
}

func (s *Scheduler) fallbackToNewWinner(ctx context.Context, auctionID uuid.UUID, previousBidder uuid.UUID, newHead *events.BidEnvelope, now time.Time) error {
	newWinnerID := newHead.BidderID
	newAmount, err := money.FromDecimalString(newHead.Amount)
	if err != nil {
		return fmt.Errorf("parsing new winning bid: %w", err)
	}

	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	auction, err := s.auctions.GetAuctionForUpdate(ctx, tx, auctionID)
	if err != nil {
		return fmt.Errorf("loading auction for update: %w", err)
	}
	auction.WinnerID = &newWinnerID
	auction.CurrentHighestBid = &newAmount
	auction.UpdatedAt = now
	if err := s.auctions.SaveAuction(ctx, tx, auction); err != nil {
		return fmt.Errorf("saving rolled-forward auction: %w", err)
	}

	dueBy := now.Add(s.paymentWindow)
	payment := &domain.Payment{
		ID:        uuid.New(),
		AuctionID: auctionID,
		BidderID:  newWinnerID,
		Amount:    newAmount.Half(),
		Type:      domain.PaymentTypeGuarantee,
		Status:    domain.PaymentPending,
		DueBy:     dueBy,
		CreatedAt: now,
	}
	if err := s.payments.SavePayment(ctx, tx, payment); err != nil {
		return fmt.Errorf("saving fallback payment: %w", err)
	}

	outboxEvt, err := events.NewOutboxEvent(events.NewEvent(events.KindPaymentFallback, auctionID, map[string]any{
		"previousBidder": previousBidder.String(),
		"newWinnerId":    newWinnerID.String(),
		"newWinningBid":  newAmount.String(),
	}), now)
	if err != nil {
		return err
	}
	if err := s.outbox.SaveEvent(ctx, tx, outboxEvt); err != nil {
		return fmt.Errorf("saving outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing fallback: %w", err)
	}

	s.broadcast.Publish(broadcast.TopicForAuction(auctionID.String()), events.NewEvent(events.KindPaymentFallback, auctionID, map[string]any{
		"previousBidder": previousBidder.String(),
		"newWinnerId":    newWinnerID.String(),
		"newWinningBid":  newAmount.String(),
	}))

	return nil
}

func (s *Scheduler) fallbackToNoWinner(ctx context.Context, auctionID uuid.UUID, previousBidder uuid.UUID, now time.Time) error {
	tx, err := s.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	auction, err := s.auctions.GetAuctionForUpdate(ctx, tx, auctionID)
	if err != nil {
		return fmt.Errorf("loading auction for update: %w", err)
	}
	auction.WinnerID = nil
	auction.CurrentHighestBid = nil
	auction.UpdatedAt = now
	if err := s.auctions.SaveAuction(ctx, tx, auction); err != nil {
		return fmt.Errorf("saving defaulted auction: %w", err)
	}

	outboxEvt, err := events.NewOutboxEvent(events.NewEvent(events.KindAuctionNoWinner, auctionID, map[string]any{
		"previousBidder": previousBidder.String(),
	}), now)
	if err != nil {
		return err
	}
	if err := s.outbox.SaveEvent(ctx, tx, outboxEvt); err != nil {
		return fmt.Errorf("saving outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing no-winner fallback: %w", err)
	}

	if err := s.live.Teardown(ctx, auctionID); err != nil {
		s.logger.Error("failed to tear down live state", slog.String("auction_id", auctionID.String()), slog.Any("error", err))
	}

	s.broadcast.Publish(broadcast.TopicForAuction(auctionID.String()), events.NewEvent(events.KindAuctionNoWinner, auctionID, map[string]any{
		"previousBidder": previousBidder.String(),
	}))

	return nil
}
