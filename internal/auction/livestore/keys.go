// Package livestore implements the C2 live state store: the per-auction hot
// projection kept in Redis while an auction is LIVE, plus the server-side
// atomic script that makes bid admission linearizable across horizontally
// scaled API instances without a distributed lock.
package livestore

import "github.com/google/uuid"

// Authoritative key schema. Multiple processes must agree on these strings.
func stateKey(auctionID uuid.UUID) string   { return "auction:" + auctionID.String() + ":state" }
func highestKey(auctionID uuid.UUID) string { return "auction:" + auctionID.String() + ":highest" }
func bidsKey(auctionID uuid.UUID) string    { return "auction:" + auctionID.String() + ":bids" }

// State hash field names.
const (
	fieldStatus         = "status"
	fieldItemID         = "itemId"
	fieldStartTime      = "startTime"
	fieldEndTime        = "endTime"
	fieldHighestBid     = "highestBid"
	fieldHighestBidder  = "highestBidder"
)
