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

// ItemRepository implements domain.ItemStore. The core only ever reads two
// columns from the item catalog: base_price and seller_id — everything
// else about an item belongs to out-of-scope catalog CRUD.
type ItemRepository struct {
	pool *pgxpool.Pool
}

// NewItemRepository creates a new Postgres item repository.
func NewItemRepository(pool *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{pool: pool}
}

// GetItem retrieves an item by id.
func (r *ItemRepository) GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	var item domain.Item
	var basePrice int64
	err := r.pool.QueryRow(ctx, `SELECT id, seller_id, base_price FROM items WHERE id = $1`, id).
		Scan(&item.ID, &item.SellerID, &basePrice)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: reading item: %v", domain.ErrTransientUnavailable, err)
	}
	item.BasePrice = money.Amount(basePrice)
	return &item, nil
}
