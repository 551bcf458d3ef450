// Package events defines the wire codec for bid records and lifecycle
// events, plus the transactional outbox that relays them to RabbitMQ for
// any out-of-core consumer. Producer and consumer agree on field order,
// decimal formatting and timestamp serialization through a single typed
// codec rather than ad-hoc substring parsing.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/gavel/internal/auction/domain"
	"github.com/floroz/gavel/internal/money"
)

// Kind identifies the variety of event delivered through the broadcast hub
// and the outbox.
type Kind string

const (
	KindNewBid            Kind = "NEW_BID"
	KindAuctionStarted    Kind = "AUCTION_STARTED"
	KindAuctionEnded      Kind = "AUCTION_ENDED"
	KindAuctionEndedNoBid Kind = "AUCTION_ENDED_NO_BIDS"
	KindPaymentFallback   Kind = "PAYMENT_FALLBACK"
	KindPaymentCompleted  Kind = "PAYMENT_COMPLETED"
	KindAuctionNoWinner   Kind = "AUCTION_NO_WINNER"
)

// BidEnvelope is the self-describing record stored in the live bid-set and
// emitted on NEW_BID events. Amount is a fixed-point decimal string so it
// round-trips exactly through any JSON-like transport.
type BidEnvelope struct {
	BidID    uuid.UUID `json:"bidId"`
	BidderID uuid.UUID `json:"bidderId"`
	Amount   string    `json:"amount"`
	Ts       string    `json:"ts"`
}

// NewBidEnvelope builds the envelope for a bid, formatting the amount and
// timestamp per the wire format.
func NewBidEnvelope(b *domain.Bid) BidEnvelope {
	return BidEnvelope{
		BidID:    b.ID,
		BidderID: b.BidderID,
		Amount:   b.Amount.String(),
		Ts:       b.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// Marshal encodes the envelope as a single compact JSON object.
func (e BidEnvelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseBidEnvelope decodes a bid envelope previously produced by Marshal.
func ParseBidEnvelope(data []byte) (BidEnvelope, error) {
	var e BidEnvelope
	if err := json.Unmarshal(data, &e); err != nil {
		return BidEnvelope{}, fmt.Errorf("decoding bid envelope: %w", err)
	}
	return e, nil
}

// AmountValue parses the envelope's fixed-point decimal amount back into money.
func (e BidEnvelope) AmountValue() (money.Amount, error) {
	return money.FromDecimalString(e.Amount)
}

// Event is the keyed record of plain scalars delivered to broadcast hub
// subscribers and appended to the outbox. Decimal values are carried as
// fixed-point strings.
type Event struct {
	Kind      Kind           `json:"kind"`
	AuctionID uuid.UUID      `json:"auctionId"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Marshal encodes the event for the broadcast hub and the outbox payload.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// NewEvent builds an Event with the given kind, auction and fields.
func NewEvent(kind Kind, auctionID uuid.UUID, fields map[string]any) Event {
	return Event{Kind: kind, AuctionID: auctionID, Fields: fields}
}
