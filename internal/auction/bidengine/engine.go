// Package bidengine implements C3, the bid engine: atomic admission against
// the live store, the increment and self-outbid rules, and the durable
// append that follows a successful admission. It is the only writer of both
// stores while an auction is LIVE.
package bidengine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/gavel/internal/auction/domain"
	"github.com/floroz/gavel/internal/auction/events"
	"github.com/floroz/gavel/internal/auction/livestore"
	"github.com/floroz/gavel/internal/money"
	"github.com/floroz/gavel/internal/platform/clock"
	"github.com/floroz/gavel/internal/platform/database"
)

// Broadcaster publishes an event to the C5 broadcast hub. The bid engine
// depends only on this narrow interface so it never imports the hub's
// connection-management concerns.
type Broadcaster interface {
	Publish(topic string, event events.Event)
}

// LiveStore is the subset of livestore.Store the engine depends on.
type LiveStore interface {
	Admit(ctx context.Context, auctionID uuid.UUID, bid *domain.Bid, basePrice money.Amount, incrementBasisPoints int64) (*livestore.AdmissionResult, error)
	RemoveHead(ctx context.Context, auctionID uuid.UUID) (*events.BidEnvelope, error)
	Status(ctx context.Context, auctionID uuid.UUID) (domain.AuctionStatus, error)
	EndTime(ctx context.Context, auctionID uuid.UUID) (time.Time, error)
	HighestBidder(ctx context.Context, auctionID uuid.UUID) (uuid.UUID, error)
	CurrentHighest(ctx context.Context, auctionID uuid.UUID) (money.Amount, error)
	RecentBids(ctx context.Context, auctionID uuid.UUID, n int64) ([]events.BidEnvelope, error)
	BidCount(ctx context.Context, auctionID uuid.UUID) (int64, error)
	MinimumNextBid(ctx context.Context, auctionID uuid.UUID, incrementBasisPoints int64) (money.Amount, error)
}

// Engine is the C3 bid engine.
type Engine struct {
	live        LiveStore
	auctions    domain.AuctionStore
	items       domain.ItemStore
	bids        domain.BidStore
	outbox      events.OutboxRepository
	txManager   database.TransactionManager
	broadcaster Broadcaster
	clock       clock.Clock
}

// New creates a bid engine wired to its collaborators.
func New(
	live LiveStore,
	auctions domain.AuctionStore,
	items domain.ItemStore,
	bids domain.BidStore,
	outbox events.OutboxRepository,
	txManager database.TransactionManager,
	broadcaster Broadcaster,
	clk clock.Clock,
) *Engine {
	return &Engine{
		live:        live,
		auctions:    auctions,
		items:       items,
		bids:        bids,
		outbox:      outbox,
		txManager:   txManager,
		broadcaster: broadcaster,
		clock:       clk,
	}
}

// PlaceBid is the public contract: place_bid(auction_id, bidder_id, amount).
// amount must already be a positive money.Amount; the caller is assumed
// authenticated upstream.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount money.Amount) (*domain.Bid, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrNonPositiveAmount
	}

	auction, err := e.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	status, err := e.live.Status(ctx, auctionID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, domain.ErrAuctionNotActive
		}
		return nil, err
	}
	if status != domain.AuctionLive {
		return nil, domain.ErrAuctionNotActive
	}

	endTime, err := e.live.EndTime(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if e.clock.Now().After(endTime) {
		return nil, domain.ErrAuctionEnded
	}

	highestBidder, err := e.live.HighestBidder(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if highestBidder == bidderID {
		return nil, domain.ErrSelfOutbid
	}

	item, err := e.items.GetItem(ctx, auction.ItemID)
	if err != nil {
		return nil, err
	}
	if item.SellerID == bidderID {
		return nil, domain.ErrSellerCannotBid
	}

	bid := &domain.Bid{
		ID:        uuid.New(),
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: e.clock.Now(),
	}

	result, err := e.live.Admit(ctx, auctionID, bid, item.BasePrice, auction.MinIncrementBasisPoints())
	if err != nil {
		return nil, err
	}

	switch result.Code {
	case livestore.AdmissionBelowBasePrice:
		return nil, &domain.BelowBasePriceError{Amount: amount.String(), RequiredBase: result.BasePrice.String()}
	case livestore.AdmissionBelowIncrement:
		return nil, &domain.BelowIncrementError{CurrentHighest: result.CurrentHighest.String(), MinimumRequired: result.MinimumRequired.String()}
	case livestore.AdmissionAccepted:
		// fall through to durable append
	default:
		return nil, fmt.Errorf("%w: unexpected admission code %d", domain.ErrTransientUnavailable, result.Code)
	}

	if err := e.appendDurably(ctx, auction, bid); err != nil {
		// The bid stays admitted in the live store but has no durable bids
		// row, and no later step writes one for it. The auction row's
		// current_highest_bid is rewritten by the next accepted bid, or by
		// the scheduler's close, which takes the highest from the live store.
		return nil, err
	}

	e.broadcaster.Publish(topicForAuction(auctionID), events.NewEvent(events.KindNewBid, auctionID, map[string]any{
		"bidId":    bid.ID.String(),
		"bidderId": bid.BidderID.String(),
		"amount":   bid.Amount.String(),
	}))

	return bid, nil
}

func (e *Engine) appendDurably(ctx context.Context, auction *domain.Auction, bid *domain.Bid) error {
	tx, err := e.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", domain.ErrTransientUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := e.bids.AppendBid(ctx, tx, bid); err != nil {
		return err
	}

	auction.CurrentHighestBid = &bid.Amount
	auction.UpdatedAt = e.clock.Now()
	if err := e.auctions.SaveAuction(ctx, tx, auction); err != nil {
		return err
	}

	outboxEvt, err := events.NewOutboxEvent(events.NewEvent(events.KindNewBid, auction.ID, map[string]any{
		"bidId": bid.ID.String(), "bidderId": bid.BidderID.String(), "amount": bid.Amount.String(),
	}), e.clock.Now())
	if err != nil {
		return err
	}
	if err := e.outbox.SaveEvent(ctx, tx, outboxEvt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing bid: %v", domain.ErrTransientUnavailable, err)
	}
	return nil
}

// RemoveHead delegates to the live store's atomic pop, used by the
// scheduler when a guarantee payment times out.
func (e *Engine) RemoveHead(ctx context.Context, auctionID uuid.UUID) (*events.BidEnvelope, error) {
	return e.live.RemoveHead(ctx, auctionID)
}

// CurrentHighest returns the live highest amount for an auction.
func (e *Engine) CurrentHighest(ctx context.Context, auctionID uuid.UUID) (money.Amount, error) {
	return e.live.CurrentHighest(ctx, auctionID)
}

// HighestBidder returns the live highest bidder id for an auction.
func (e *Engine) HighestBidder(ctx context.Context, auctionID uuid.UUID) (uuid.UUID, error) {
	return e.live.HighestBidder(ctx, auctionID)
}

// RecentBids returns up to n most recent live bids for an auction.
func (e *Engine) RecentBids(ctx context.Context, auctionID uuid.UUID, n int64) ([]events.BidEnvelope, error) {
	return e.live.RecentBids(ctx, auctionID, n)
}

// BidCount returns the number of live bids tracked for an auction.
func (e *Engine) BidCount(ctx context.Context, auctionID uuid.UUID) (int64, error) {
	return e.live.BidCount(ctx, auctionID)
}

// MinimumNextBid returns the minimum amount that would be accepted next.
func (e *Engine) MinimumNextBid(ctx context.Context, auctionID uuid.UUID, auction *domain.Auction) (money.Amount, error) {
	return e.live.MinimumNextBid(ctx, auctionID, auction.MinIncrementBasisPoints())
}

func topicForAuction(auctionID uuid.UUID) string {
	return "auction/" + auctionID.String()
}
