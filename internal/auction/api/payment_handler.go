package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/floroz/gavel/internal/auction/domain"
	"github.com/floroz/gavel/internal/auction/events"
	"github.com/floroz/gavel/pkg/auth"
)

type confirmPaymentResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// confirmPayment is POST /bidder/payment/{id}/pay. Only the payment's own
// bidder may confirm it; a guard on status = PENDING ensures a confirmation
// racing the scheduler's timeout never double-settles.
func (h *handlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	paymentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "NotFound", Message: "payment not found"})
		return
	}

	bidderID, err := uuid.Parse(auth.MustGetUserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthenticated", Message: "invalid bidder id in token"})
		return
	}

	payment, err := h.payments.GetPayment(r.Context(), paymentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if payment.BidderID != bidderID {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Unauthenticated", Message: "payment does not belong to caller"})
		return
	}

	now := h.clock.Now()
	if now.After(payment.DueBy) {
		writeError(w, domain.ErrPaymentExpired)
		return
	}

	tx, err := h.txm.BeginTx(r.Context())
	if err != nil {
		writeError(w, fmt.Errorf("%w: beginning transaction: %v", domain.ErrTransientUnavailable, err))
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()

	ok, err := h.payments.MarkSuccessIfPending(r.Context(), tx, paymentID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeError(w, domain.ErrConflict)
		return
	}

	outboxEvt, err := events.NewOutboxEvent(events.NewEvent(events.KindPaymentCompleted, payment.AuctionID, map[string]any{
		"paymentId": payment.ID.String(),
		"bidderId":  payment.BidderID.String(),
		"amount":    payment.Amount.String(),
	}), now)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.outbox.SaveEvent(r.Context(), tx, outboxEvt); err != nil {
		writeError(w, err)
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		writeError(w, fmt.Errorf("%w: committing payment: %v", domain.ErrTransientUnavailable, err))
		return
	}

	h.hub.Publish("auction/"+payment.AuctionID.String(), events.NewEvent(events.KindPaymentCompleted, payment.AuctionID, map[string]any{
		"paymentId": payment.ID.String(),
		"bidderId":  payment.BidderID.String(),
	}))

	if err := h.live.Teardown(r.Context(), payment.AuctionID); err != nil {
		h.logger.Error("failed to tear down live state after payment", slog.String("auction_id", payment.AuctionID.String()), slog.Any("error", err))
	}

	writeJSON(w, http.StatusOK, confirmPaymentResponse{Success: true, Message: "payment confirmed"})
}
