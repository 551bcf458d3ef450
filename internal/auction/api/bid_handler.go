package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/floroz/gavel/internal/money"
	"github.com/floroz/gavel/pkg/auth"
)

type placeBidRequest struct {
	Amount string `json:"amount"`
}

type placeBidResponse struct {
	Success bool   `json:"success"`
	BidID   string `json:"bidId"`
}

// placeBid is POST /api/auction/{id}/bid.
func (h *handlers) placeBid(w http.ResponseWriter, r *http.Request) {
	auctionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "NotFound", Message: "auction not found"})
		return
	}

	bidderID, err := uuid.Parse(auth.MustGetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthenticated", Message: "invalid bidder id in token"})
		return
	}

	var req placeBidRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "InvalidBid.Malformed", Message: "malformed request body"})
		return
	}

	amount, err := money.FromDecimalString(req.Amount)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "InvalidBid.Malformed", Message: "amount must be a decimal string"})
		return
	}

	bid, err := h.engine.PlaceBid(r.Context(), auctionID, bidderID, amount)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, placeBidResponse{Success: true, BidID: bid.ID.String()})
}
