package durable

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/gavel/internal/auction/domain"
	"github.com/floroz/gavel/internal/money"
)

// BidRepository implements domain.BidStore. Bids are insert-only: there is
// no update or delete path, matching the invariant that an accepted bid is
// never rewritten even after a fallback rolls the win to an earlier bidder.
type BidRepository struct {
	pool *pgxpool.Pool
}

// NewBidRepository creates a new Postgres bid repository.
func NewBidRepository(pool *pgxpool.Pool) *BidRepository {
	return &BidRepository{pool: pool}
}

// AppendBid inserts a bid within the caller's transaction.
func (r *BidRepository) AppendBid(ctx context.Context, tx pgx.Tx, b *domain.Bid) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bids (id, auction_id, bidder_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, b.ID, b.AuctionID, b.BidderID, int64(b.Amount), b.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: appending bid: %v", domain.ErrTransientUnavailable, err)
	}
	return nil
}

// ListBidsDescByTime returns the most recent bids for an auction, most
// recent first, capped at limit (0 means unlimited).
func (r *BidRepository) ListBidsDescByTime(ctx context.Context, auctionID uuid.UUID, limit int) ([]*domain.Bid, error) {
	query := `SELECT id, auction_id, bidder_id, amount, created_at FROM bids WHERE auction_id = $1 ORDER BY created_at DESC`
	args := []any{auctionID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: listing bids: %v", domain.ErrTransientUnavailable, err)
	}
	defer rows.Close()

	var out []*domain.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating bids: %v", domain.ErrTransientUnavailable, err)
	}
	return out, nil
}

// TopBid returns the highest-amount bid for an auction, or domain.ErrNotFound
// if the auction has no bids.
func (r *BidRepository) TopBid(ctx context.Context, auctionID uuid.UUID) (*domain.Bid, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, auction_id, bidder_id, amount, created_at FROM bids
		WHERE auction_id = $1 ORDER BY amount DESC LIMIT 1
	`, auctionID)
	return scanBid(row)
}

func scanBid(row pgx.Row) (*domain.Bid, error) {
	var b domain.Bid
	var amount int64
	err := row.Scan(&b.ID, &b.AuctionID, &b.BidderID, &amount, &b.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scanning bid: %v", domain.ErrTransientUnavailable, err)
	}
	b.Amount = money.Amount(amount)
	return &b, nil
}
