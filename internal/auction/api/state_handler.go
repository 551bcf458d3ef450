package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/floroz/gavel/internal/auction/domain"
	"github.com/floroz/gavel/internal/money"
)

type auctionStateResponse struct {
	Status           domain.AuctionStatus `json:"status"`
	CurrentHighest   string               `json:"currentHighest"`
	MinimumBid       string               `json:"minimumBid"`
	HighestBidder    *string              `json:"highestBidder,omitempty"`
	BidCount         int64                `json:"bidCount"`
	EndTime          string               `json:"endTime"`
	WinnerID         *string              `json:"winnerId,omitempty"`
	SecondBidderID   *string              `json:"secondBidderId,omitempty"`
}

// getState is GET /api/auction/{id}/state. It reads the live store first
// and falls back to the durable view when the live store is
// unreachable — a bid-count of -1 in that path would be misleading, so the
// fallback derives the count from the durable bids table instead.
func (h *handlers) getState(w http.ResponseWriter, r *http.Request) {
	auctionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "NotFound", Message: "auction not found"})
		return
	}

	auction, err := h.auctions.GetAuction(r.Context(), auctionID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.liveState(r.Context(), auction)
	if errors.Is(err, domain.ErrTransientUnavailable) {
		resp = h.durableState(r.Context(), auction)
	} else if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) liveState(ctx context.Context, a *domain.Auction) (*auctionStateResponse, error) {
	highest, err := h.engine.CurrentHighest(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	bidder, err := h.engine.HighestBidder(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	count, err := h.engine.BidCount(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	minBid, err := h.engine.MinimumNextBid(ctx, a.ID, a)
	if err != nil {
		return nil, err
	}

	resp := &auctionStateResponse{
		Status:         a.Status,
		CurrentHighest: highest.String(),
		MinimumBid:     minBid.String(),
		BidCount:       count,
		EndTime:        a.EndTime.UTC().Format(time.RFC3339Nano),
	}
	if bidder != uuid.Nil {
		s := bidder.String()
		resp.HighestBidder = &s
	}
	if a.WinnerID != nil {
		s := a.WinnerID.String()
		resp.WinnerID = &s
	}

	recent, err := h.engine.RecentBids(ctx, a.ID, 2)
	if err == nil && len(recent) == 2 {
		resp.SecondBidderID = strPtr(recent[1].BidderID.String())
	}

	return resp, nil
}

// durableState rebuilds the state response from the durable store alone,
// used when the live store is down.
func (h *handlers) durableState(ctx context.Context, a *domain.Auction) *auctionStateResponse {
	highest := money.Zero
	if a.CurrentHighestBid != nil {
		highest = *a.CurrentHighestBid
	}
	minBid := highest.MinimumNextBid(a.MinIncrementBasisPoints())

	resp := &auctionStateResponse{
		Status:         a.Status,
		CurrentHighest: highest.String(),
		MinimumBid:     minBid.String(),
		EndTime:        a.EndTime.UTC().Format(time.RFC3339Nano),
	}
	if a.WinnerID != nil {
		s := a.WinnerID.String()
		resp.HighestBidder = &s
		resp.WinnerID = &s
	}

	durableBids, err := h.bids.ListBidsDescByTime(ctx, a.ID, 0)
	if err == nil {
		resp.BidCount = int64(len(durableBids))
	}

	return resp
}

type bidRecord struct {
	BidderID string `json:"bidderId"`
	Amount   string `json:"amount"`
	Ts       string `json:"ts"`
}

// getBids is GET /api/auction/{id}/bids?limit=N, most-recent first.
func (h *handlers) getBids(w http.ResponseWriter, r *http.Request) {
	auctionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "NotFound", Message: "auction not found"})
		return
	}

	limit := int64(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil && n > 0 {
			limit = n
		}
	}

	envs, err := h.engine.RecentBids(r.Context(), auctionID, limit)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]bidRecord, 0, len(envs))
	for _, e := range envs {
		out = append(out, bidRecord{BidderID: e.BidderID.String(), Amount: e.Amount, Ts: e.Ts})
	}

	writeJSON(w, http.StatusOK, out)
}

func strPtr(s string) *string { return &s }
