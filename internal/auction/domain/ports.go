package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuctionStore is the C1 durable-store contract for auctions.
type AuctionStore interface {
	GetAuction(ctx context.Context, id uuid.UUID) (*Auction, error)
	GetAuctionForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Auction, error)
	ListByStatus(ctx context.Context, status AuctionStatus) ([]*Auction, error)
	SaveAuction(ctx context.Context, tx pgx.Tx, a *Auction) error
}

// ItemStore is the C1 read-only contract the core needs from the item
// catalog: base price and seller id, nothing else.
type ItemStore interface {
	GetItem(ctx context.Context, id uuid.UUID) (*Item, error)
}

// BidStore is the C1 durable-store contract for bids. Bids are
// insert-only; there is no update or delete operation.
type BidStore interface {
	AppendBid(ctx context.Context, tx pgx.Tx, b *Bid) error
	ListBidsDescByTime(ctx context.Context, auctionID uuid.UUID, limit int) ([]*Bid, error)
	TopBid(ctx context.Context, auctionID uuid.UUID) (*Bid, error)
}

// PaymentStore is the C1 durable-store contract for guarantee payments.
type PaymentStore interface {
	SavePayment(ctx context.Context, tx pgx.Tx, p *Payment) error
	GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error)
	ListPendingGuaranteePayments(ctx context.Context) ([]*Payment, error)
	MarkFailedIfPending(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (bool, error)
	MarkSuccessIfPending(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (bool, error)
}
