// Package domain holds the plain record types shared by every auction-core
// component: Auction, Item, Bid and Payment, plus the tagged-variant enums
// and sentinel errors that replace the source's class hierarchy and
// framework entity annotations with repository-shaped capability
// interfaces (see ports.go).
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/floroz/gavel/internal/money"
)

// AuctionStatus is the lifecycle state of an Auction.
type AuctionStatus string

const (
	AuctionPending   AuctionStatus = "PENDING"
	AuctionLive      AuctionStatus = "LIVE"
	AuctionCompleted AuctionStatus = "COMPLETED"
	AuctionCancelled AuctionStatus = "CANCELLED"
)

// IsTerminal reports whether the status can never transition again.
func (s AuctionStatus) IsTerminal() bool {
	return s == AuctionCompleted || s == AuctionCancelled
}

// DefaultMinIncrementPercent is the minimum-bid-increment percentage applied
// when an auction does not override it (10.00%).
const DefaultMinIncrementPercent = 10.00

// DefaultMinIncrementBasisPoints is DefaultMinIncrementPercent scaled by 100,
// matching the integer basis-point arithmetic in the money package.
const DefaultMinIncrementBasisPoints int64 = 1000

// Auction is the unit of lifecycle. Once Status is COMPLETED or CANCELLED it
// is terminal; WinnerID non-nil implies CurrentHighestBid non-nil.
type Auction struct {
	ID                  uuid.UUID
	ItemID              uuid.UUID
	StartTime           time.Time
	EndTime             time.Time
	Status              AuctionStatus
	MinIncrementPercent float64
	CurrentHighestBid   *money.Amount
	WinnerID            *uuid.UUID
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// MinIncrementBasisPoints returns the auction's increment rule scaled for
// integer arithmetic, falling back to the default when unset.
func (a *Auction) MinIncrementBasisPoints() int64 {
	if a.MinIncrementPercent <= 0 {
		return DefaultMinIncrementBasisPoints
	}
	return int64(a.MinIncrementPercent * 100)
}

// Item is read-only from the core's perspective. BasePrice is the floor for
// the first bid; SellerID backs the seller-cannot-bid-on-own-item rule.
type Item struct {
	ID        uuid.UUID
	SellerID  uuid.UUID
	BasePrice money.Amount
}

// Bid is an immutable, append-only record. Bids are never updated or
// deleted from the durable store; the live store may evict one when
// rolling a fallback (see BidEngine.RemoveHead).
type Bid struct {
	ID        uuid.UUID
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	Amount    money.Amount
	CreatedAt time.Time
}

// PaymentType enumerates the kinds of payment obligation the core tracks.
// Only GUARANTEE exists today; the tagged variant leaves room for others
// without reopening the Status enum.
type PaymentType string

// PaymentStatus is the lifecycle of a Payment obligation.
type PaymentStatus string

const (
	PaymentTypeGuarantee PaymentType = "GUARANTEE"

	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Payment is the guarantee obligation owed by a provisional winner. At most
// one PENDING GUARANTEE payment exists per (AuctionID, BidderID).
type Payment struct {
	ID        uuid.UUID
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	Amount    money.Amount
	Type      PaymentType
	Status    PaymentStatus
	DueBy     time.Time
	PaidAt    *time.Time
	CreatedAt time.Time
}
