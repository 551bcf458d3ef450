// Package api implements the request facade: the HTTP/JSON and
// WebSocket boundary between the core and any caller. It holds no business
// logic of its own beyond request validation and error-to-status mapping —
// every decision is delegated to the bid engine, the scheduler's stores, or
// the broadcast hub.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/floroz/gavel/internal/auction/domain"
	"github.com/floroz/gavel/internal/auction/events"
	"github.com/floroz/gavel/internal/money"
	"github.com/floroz/gavel/internal/platform/clock"
	"github.com/floroz/gavel/internal/platform/database"
	"github.com/floroz/gavel/pkg/auth"
)

// BidEngine is the subset of bidengine.Engine the facade depends on.
type BidEngine interface {
	PlaceBid(ctx context.Context, auctionID, bidderID uuid.UUID, amount money.Amount) (*domain.Bid, error)
	CurrentHighest(ctx context.Context, auctionID uuid.UUID) (money.Amount, error)
	HighestBidder(ctx context.Context, auctionID uuid.UUID) (uuid.UUID, error)
	RecentBids(ctx context.Context, auctionID uuid.UUID, n int64) ([]events.BidEnvelope, error)
	BidCount(ctx context.Context, auctionID uuid.UUID) (int64, error)
	MinimumNextBid(ctx context.Context, auctionID uuid.UUID, auction *domain.Auction) (money.Amount, error)
}

// Broadcaster is the subset of broadcast.Hub the facade depends on for its
// WebSocket upgrade endpoints.
type Broadcaster interface {
	ServeTopic(w http.ResponseWriter, r *http.Request, topic string)
	Publish(topic string, event events.Event)
}

// LiveStore is the subset of livestore.Store the facade depends on to tear
// down a live projection once its guarantee payment settles, rather than
// leaving cleanup to the projection's TTL.
type LiveStore interface {
	Teardown(ctx context.Context, auctionID uuid.UUID) error
}

type handlers struct {
	engine   BidEngine
	auctions domain.AuctionStore
	bids     domain.BidStore
	payments domain.PaymentStore
	outbox   events.OutboxRepository
	txm      database.TransactionManager
	hub      Broadcaster
	live     LiveStore
	clock    clock.Clock
	logger   *slog.Logger
}

// NewRouter wires every public endpoint and returns the resulting http.Handler.
// Bid placement and payment confirmation require a bearer token; the
// read-only state, bid-history and WebSocket endpoints do not, matching
// the read paths stay anonymous.
func NewRouter(
	engine BidEngine,
	auctions domain.AuctionStore,
	bids domain.BidStore,
	payments domain.PaymentStore,
	outbox events.OutboxRepository,
	txm database.TransactionManager,
	hub Broadcaster,
	live LiveStore,
	signer *auth.Signer,
	clk clock.Clock,
	logger *slog.Logger,
) http.Handler {
	h := &handlers{
		engine:   engine,
		auctions: auctions,
		bids:     bids,
		payments: payments,
		outbox:   outbox,
		txm:      txm,
		hub:      hub,
		live:     live,
		clock:    clk,
		logger:   logger,
	}

	mux := http.NewServeMux()

	authMW := auth.Middleware(signer)

	mux.Handle("POST /api/auction/{id}/bid", authMW(http.HandlerFunc(h.placeBid)))
	mux.HandleFunc("GET /api/auction/{id}/state", h.getState)
	mux.HandleFunc("GET /api/auction/{id}/bids", h.getBids)
	mux.Handle("POST /bidder/payment/{id}/pay", authMW(http.HandlerFunc(h.confirmPayment)))

	mux.HandleFunc("GET /ws/auction/{id}", h.wsAuction)
	mux.HandleFunc("GET /ws/auctions/updates", h.wsGlobal)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return mux
}
