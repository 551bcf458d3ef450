package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/floroz/gavel/internal/auction/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// writeError maps a domain error to the HTTP status its error kind
// imply and writes a single-line human message alongside it.
func writeError(w http.ResponseWriter, err error) {
	status, code := statusForError(err)
	writeJSON(w, status, errorBody{Error: code, Code: code, Message: err.Error()})
}

func statusForError(err error) (int, string) {
	var belowBase *domain.BelowBasePriceError
	var belowIncrement *domain.BelowIncrementError

	switch {
	case errors.As(err, &belowBase):
		return http.StatusBadRequest, "InvalidBid.BelowBasePrice"
	case errors.As(err, &belowIncrement):
		return http.StatusBadRequest, "InvalidBid.BelowIncrement"
	case errors.Is(err, domain.ErrAuctionNotActive):
		return http.StatusBadRequest, "InvalidBid.AuctionNotActive"
	case errors.Is(err, domain.ErrAuctionEnded):
		return http.StatusBadRequest, "InvalidBid.AuctionEnded"
	case errors.Is(err, domain.ErrSelfOutbid):
		return http.StatusBadRequest, "InvalidBid.SelfOutbid"
	case errors.Is(err, domain.ErrSellerCannotBid):
		return http.StatusBadRequest, "InvalidBid.SellerCannotBid"
	case errors.Is(err, domain.ErrNonPositiveAmount):
		return http.StatusBadRequest, "InvalidBid.NonPositiveAmount"
	case errors.Is(err, domain.ErrPaymentExpired):
		return http.StatusConflict, "PaymentExpired"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, domain.ErrTransientUnavailable):
		return http.StatusServiceUnavailable, "TransientUnavailable"
	default:
		return http.StatusInternalServerError, "Internal"
	}
}
