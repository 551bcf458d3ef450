package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/floroz/gavel/internal/auction/broadcast"
)

// wsAuction upgrades the connection to the per-auction topic.
func (h *handlers) wsAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid auction id", http.StatusNotFound)
		return
	}
	h.hub.ServeTopic(w, r, broadcast.TopicForAuction(auctionID.String()))
}

// wsGlobal upgrades the connection to the cross-auction lifecycle topic.
func (h *handlers) wsGlobal(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeTopic(w, r, broadcast.GlobalTopic)
}
