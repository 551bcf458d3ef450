package livestore

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/floroz/gavel/internal/auction/domain"
	"github.com/floroz/gavel/internal/auction/events"
	"github.com/floroz/gavel/internal/money"
)

// AdmissionCode is the result of the atomic admission script.
type AdmissionCode int

const (
	AdmissionAccepted        AdmissionCode = 1
	AdmissionBelowIncrement  AdmissionCode = -1
	AdmissionBelowBasePrice  AdmissionCode = -3
)

// AdmissionResult carries the script's outcome back to the bid engine.
type AdmissionResult struct {
	Code            AdmissionCode
	CurrentHighest  money.Amount
	MinimumRequired money.Amount
	BasePrice       money.Amount
}

// Store is the C2 live state store, backed by Redis.
type Store struct {
	rdb *redis.Client
}

// New wraps a go-redis client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Exists reports whether an auction is currently projected into the live
// store. Used instead of process-local membership tracking so the check
// stays correct across horizontally scaled instances.
func (s *Store) Exists(ctx context.Context, auctionID uuid.UUID) (bool, error) {
	n, err := s.rdb.Exists(ctx, stateKey(auctionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: checking live state existence: %v", domain.ErrTransientUnavailable, err)
	}
	return n > 0, nil
}

// Project writes the initial live state for an auction entering LIVE,
// seeding the highest from the durable row and loading any existing durable
// bids into the bid-set (recovery after a cold restart).
func (s *Store) Project(ctx context.Context, a *domain.Auction, item *domain.Item, existingBids []*domain.Bid, ttl time.Duration) error {
	key := stateKey(a.ID)
	highest := money.Zero
	highestBidder := ""
	if a.CurrentHighestBid != nil {
		highest = *a.CurrentHighestBid
	}
	if a.WinnerID != nil {
		highestBidder = a.WinnerID.String()
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		fieldStatus, string(a.Status),
		fieldItemID, a.ItemID.String(),
		fieldStartTime, a.StartTime.UTC().Format(time.RFC3339Nano),
		fieldEndTime, a.EndTime.UTC().Format(time.RFC3339Nano),
		fieldHighestBid, highest.String(),
		fieldHighestBidder, highestBidder,
	)
	pipe.Expire(ctx, key, ttl)
	pipe.Set(ctx, highestKey(a.ID), int64(highest), ttl)

	bKey := bidsKey(a.ID)
	for _, b := range existingBids {
		env, err := events.NewBidEnvelope(b).Marshal()
		if err != nil {
			return fmt.Errorf("marshaling existing bid %s: %w", b.ID, err)
		}
		pipe.ZAdd(ctx, bKey, redis.Z{Score: float64(b.Amount), Member: env})
	}
	pipe.Expire(ctx, bKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: projecting live state: %v", domain.ErrTransientUnavailable, err)
	}
	return nil
}

// Teardown deletes every key for an auction whose live state is no longer
// needed (final payment success, or the scheduler concluding with no
// winner).
func (s *Store) Teardown(ctx context.Context, auctionID uuid.UUID) error {
	err := s.rdb.Del(ctx, stateKey(auctionID), highestKey(auctionID), bidsKey(auctionID)).Err()
	if err != nil {
		return fmt.Errorf("%w: tearing down live state: %v", domain.ErrTransientUnavailable, err)
	}
	return nil
}

// Status reads the live status of an auction, or domain.ErrNotFound if the
// live state is absent.
func (s *Store) Status(ctx context.Context, auctionID uuid.UUID) (domain.AuctionStatus, error) {
	v, err := s.rdb.HGet(ctx, stateKey(auctionID), fieldStatus).Result()
	if err == redis.Nil {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: reading live status: %v", domain.ErrTransientUnavailable, err)
	}
	return domain.AuctionStatus(v), nil
}

// EndTime reads the live end_time of an auction.
func (s *Store) EndTime(ctx context.Context, auctionID uuid.UUID) (time.Time, error) {
	v, err := s.rdb.HGet(ctx, stateKey(auctionID), fieldEndTime).Result()
	if err == redis.Nil {
		return time.Time{}, domain.ErrNotFound
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: reading live end time: %v", domain.ErrTransientUnavailable, err)
	}
	return time.Parse(time.RFC3339Nano, v)
}

// Admit runs the atomic admission script for a single bid.
func (s *Store) Admit(ctx context.Context, auctionID uuid.UUID, bid *domain.Bid, basePrice money.Amount, incrementBasisPoints int64) (*AdmissionResult, error) {
	env, err := events.NewBidEnvelope(bid).Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshaling bid envelope: %w", err)
	}

	keys := []string{highestKey(auctionID), bidsKey(auctionID), stateKey(auctionID)}
	argv := []any{
		int64(bid.Amount),
		string(env),
		bid.BidderID.String(),
		int64(basePrice),
		incrementBasisPoints,
	}

	raw, err := admissionScript.Run(ctx, s.rdb, keys, argv...).Slice()
	if err != nil {
		return nil, fmt.Errorf("%w: running admission script: %v", domain.ErrTransientUnavailable, err)
	}
	return parseAdmissionResult(raw)
}

func parseAdmissionResult(raw []any) (*AdmissionResult, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: admission script returned empty result", domain.ErrTransientUnavailable)
	}
	code, err := toInt64(raw[0])
	if err != nil {
		return nil, fmt.Errorf("%w: parsing admission code: %v", domain.ErrTransientUnavailable, err)
	}

	result := &AdmissionResult{Code: AdmissionCode(code)}
	switch result.Code {
	case AdmissionAccepted:
		return result, nil
	case AdmissionBelowBasePrice:
		if len(raw) < 2 {
			return nil, fmt.Errorf("%w: malformed BelowBasePrice payload", domain.ErrTransientUnavailable)
		}
		base, err := parseCentsString(raw[1])
		if err != nil {
			return nil, err
		}
		result.BasePrice = base
		return result, nil
	case AdmissionBelowIncrement:
		if len(raw) < 3 {
			return nil, fmt.Errorf("%w: malformed BelowIncrement payload", domain.ErrTransientUnavailable)
		}
		highest, err := parseCentsString(raw[1])
		if err != nil {
			return nil, err
		}
		minReq, err := parseCentsString(raw[2])
		if err != nil {
			return nil, err
		}
		result.CurrentHighest = highest
		result.MinimumRequired = minReq
		return result, nil
	default:
		return nil, fmt.Errorf("%w: unknown admission code %d", domain.ErrTransientUnavailable, code)
	}
}

func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func parseCentsString(v any) (money.Amount, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("%w: expected string payload, got %T", domain.ErrTransientUnavailable, v)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parsing cents payload: %v", domain.ErrTransientUnavailable, err)
	}
	return money.Amount(n), nil
}

// RemoveHead pops the top of the live bid-set, reads the new top and
// rewrites highest/highestBidder from it. The pop, the read and the
// rewrite are separate round trips, not one atomic operation; only the
// rewrite for a non-empty set runs as a single MULTI/EXEC. Returns the new
// head envelope, or nil if the bid-set is now empty.
func (s *Store) RemoveHead(ctx context.Context, auctionID uuid.UUID) (*events.BidEnvelope, error) {
	bKey := bidsKey(auctionID)

	popped, err := s.rdb.ZPopMax(ctx, bKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: popping bid-set head: %v", domain.ErrTransientUnavailable, err)
	}
	if len(popped) == 0 {
		return nil, nil
	}

	newTop, err := s.rdb.ZRevRangeWithScores(ctx, bKey, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: reading new bid-set head: %v", domain.ErrTransientUnavailable, err)
	}

	if len(newTop) == 0 {
		if err := s.rdb.Set(ctx, highestKey(auctionID), 0, 0).Err(); err != nil {
			return nil, fmt.Errorf("%w: clearing highest: %v", domain.ErrTransientUnavailable, err)
		}
		if err := s.rdb.HSet(ctx, stateKey(auctionID), fieldHighestBid, "0.00", fieldHighestBidder, "").Err(); err != nil {
			return nil, fmt.Errorf("%w: clearing state hash: %v", domain.ErrTransientUnavailable, err)
		}
		return nil, nil
	}

	member, _ := newTop[0].Member.(string)
	env, err := events.ParseBidEnvelope([]byte(member))
	if err != nil {
		return nil, fmt.Errorf("parsing new head envelope: %w", err)
	}
	amount := int64(newTop[0].Score)

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, highestKey(auctionID), amount, 0)
	pipe.HSet(ctx, stateKey(auctionID), fieldHighestBid, env.Amount, fieldHighestBidder, env.BidderID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: rewriting new head: %v", domain.ErrTransientUnavailable, err)
	}

	return &env, nil
}

// CurrentHighest returns the live highest amount, or zero if none.
func (s *Store) CurrentHighest(ctx context.Context, auctionID uuid.UUID) (money.Amount, error) {
	v, err := s.rdb.Get(ctx, highestKey(auctionID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: reading current highest: %v", domain.ErrTransientUnavailable, err)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parsing current highest: %v", domain.ErrTransientUnavailable, err)
	}
	return money.Amount(n), nil
}

// HighestBidder returns the live highest bidder id, or the zero UUID if
// there is none.
func (s *Store) HighestBidder(ctx context.Context, auctionID uuid.UUID) (uuid.UUID, error) {
	v, err := s.rdb.HGet(ctx, stateKey(auctionID), fieldHighestBidder).Result()
	if err == redis.Nil {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: reading highest bidder: %v", domain.ErrTransientUnavailable, err)
	}
	if v == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: parsing highest bidder: %v", domain.ErrTransientUnavailable, err)
	}
	return id, nil
}

// RecentBids returns up to n most recent (highest-amount-first) live bids.
func (s *Store) RecentBids(ctx context.Context, auctionID uuid.UUID, n int64) ([]events.BidEnvelope, error) {
	raw, err := s.rdb.ZRevRangeWithScores(ctx, bidsKey(auctionID), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: reading recent bids: %v", domain.ErrTransientUnavailable, err)
	}
	out := make([]events.BidEnvelope, 0, len(raw))
	for _, z := range raw {
		member, _ := z.Member.(string)
		env, err := events.ParseBidEnvelope([]byte(member))
		if err != nil {
			return nil, fmt.Errorf("parsing bid envelope: %w", err)
		}
		out = append(out, env)
	}
	return out, nil
}

// BidCount returns the number of bids currently tracked for a live auction.
func (s *Store) BidCount(ctx context.Context, auctionID uuid.UUID) (int64, error) {
	n, err := s.rdb.ZCard(ctx, bidsKey(auctionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: counting bids: %v", domain.ErrTransientUnavailable, err)
	}
	return n, nil
}

// MinimumNextBid returns ceil(highest * 1.10, 2dp), or zero when there is no
// highest, using the auction's own increment rule.
func (s *Store) MinimumNextBid(ctx context.Context, auctionID uuid.UUID, incrementBasisPoints int64) (money.Amount, error) {
	highest, err := s.CurrentHighest(ctx, auctionID)
	if err != nil {
		return 0, err
	}
	return highest.MinimumNextBid(incrementBasisPoints), nil
}
