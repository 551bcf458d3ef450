// Package durable implements the C1 durable store: transactional Postgres
// persistence of auctions, items, bids and payments.
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

// AuctionRepository implements domain.AuctionStore using pgx.
type AuctionRepository struct {
	pool *pgxpool.Pool
}

// NewAuctionRepository creates a new Postgres auction repository.
func NewAuctionRepository(pool *pgxpool.Pool) *AuctionRepository {
	return &AuctionRepository{pool: pool}
}

const auctionColumns = `id, item_id, start_time, end_time, status, min_increment_percent, current_highest_bid, winner_id, created_at, updated_at`

func scanAuction(row pgx.Row) (*domain.Auction, error) {
	var a domain.Auction
	var highest *int64
	var winner *uuid.UUID
	err := row.Scan(
		&a.ID, &a.ItemID, &a.StartTime, &a.EndTime, &a.Status, &a.MinIncrementPercent,
		&highest, &winner, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scanning auction: %v", domain.ErrTransientUnavailable, err)
	}
	if highest != nil {
		amt := money.Amount(*highest)
		a.CurrentHighestBid = &amt
	}
	a.WinnerID = winner
	return &a, nil
}

// GetAuction retrieves an auction by id (non-transactional read).
func (r *AuctionRepository) GetAuction(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1`, id)
	return scanAuction(row)
}

// GetAuctionForUpdate retrieves and row-locks an auction within a
// transaction, preventing concurrent writers from racing on the same row.
func (r *AuctionRepository) GetAuctionForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Auction, error) {
	row := tx.QueryRow(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE id = $1 FOR UPDATE`, id)
	return scanAuction(row)
}

// ListByStatus returns every auction in the given status, used by the
// scheduler to find activation/close/fallback candidates.
func (r *AuctionRepository) ListByStatus(ctx context.Context, status domain.AuctionStatus) ([]*domain.Auction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+auctionColumns+` FROM auctions WHERE status = $1`, status)
	if err != nil {
		return nil, fmt.Errorf("%w: listing auctions by status: %v", domain.ErrTransientUnavailable, err)
	}
	defer rows.Close()

	var out []*domain.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating auctions: %v", domain.ErrTransientUnavailable, err)
	}
	return out, nil
}

// SaveAuction is an upsert by id, last-write-wins within the transaction.
func (r *AuctionRepository) SaveAuction(ctx context.Context, tx pgx.Tx, a *domain.Auction) error {
	var highest *int64
	if a.CurrentHighestBid != nil {
		v := int64(*a.CurrentHighestBid)
		highest = &v
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO auctions (id, item_id, start_time, end_time, status, min_increment_percent, current_highest_bid, winner_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			current_highest_bid = EXCLUDED.current_highest_bid,
			winner_id = EXCLUDED.winner_id,
			updated_at = EXCLUDED.updated_at
	`, a.ID, a.ItemID, a.StartTime, a.EndTime, a.Status, a.MinIncrementPercent, highest, a.WinnerID, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: saving auction: %v", domain.ErrTransientUnavailable, err)
	}
	return nil
}
