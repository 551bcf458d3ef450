package durable

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/gavel/internal/auction/domain"
	"github.com/floroz/gavel/internal/money"
)

// PaymentRepository implements domain.PaymentStore.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new Postgres payment repository.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// SavePayment inserts a new guarantee payment within the caller's transaction.
func (r *PaymentRepository) SavePayment(ctx context.Context, tx pgx.Tx, p *domain.Payment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payments (id, auction_id, bidder_id, amount, payment_type, status, due_by, paid_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.AuctionID, p.BidderID, int64(p.Amount), p.Type, p.Status, p.DueBy, p.PaidAt, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: saving payment: %v", domain.ErrTransientUnavailable, err)
	}
	return nil
}

// GetPayment loads a payment by id.
func (r *PaymentRepository) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, auction_id, bidder_id, amount, payment_type, status, due_by, paid_at, created_at
		FROM payments WHERE id = $1
	`, id)
	return scanPayment(row)
}

// ListPendingGuaranteePayments returns every PENDING GUARANTEE payment,
// scanned by the scheduler for timeouts each tick.
func (r *PaymentRepository) ListPendingGuaranteePayments(ctx context.Context) ([]*domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, auction_id, bidder_id, amount, payment_type, status, due_by, paid_at, created_at
		FROM payments WHERE payment_type = $1 AND status = $2
	`, domain.PaymentTypeGuarantee, domain.PaymentPending)
	if err != nil {
		return nil, fmt.Errorf("%w: listing pending payments: %v", domain.ErrTransientUnavailable, err)
	}
	defer rows.Close()

	var out []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating payments: %v", domain.ErrTransientUnavailable, err)
	}
	return out, nil
}

// MarkFailedIfPending transitions a payment to FAILED, guarded on its
// current status still being PENDING so a concurrent SUCCESS always wins
// so a concurrent payment confirmation always wins.
func (r *PaymentRepository) MarkFailedIfPending(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (bool, error) {
	return r.transitionIfPending(ctx, tx, paymentID, domain.PaymentFailed, nil)
}

// MarkSuccessIfPending transitions a payment to SUCCESS, guarded the same way.
func (r *PaymentRepository) MarkSuccessIfPending(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID) (bool, error) {
	now := time.Now().UTC()
	return r.transitionIfPending(ctx, tx, paymentID, domain.PaymentSuccess, &now)
}

func (r *PaymentRepository) transitionIfPending(ctx context.Context, tx pgx.Tx, paymentID uuid.UUID, status domain.PaymentStatus, paidAt *time.Time) (bool, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE payments SET status = $1, paid_at = $2
		WHERE id = $3 AND status = $4
	`, status, paidAt, paymentID, domain.PaymentPending)
	if err != nil {
		return false, fmt.Errorf("%w: transitioning payment: %v", domain.ErrTransientUnavailable, err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	var amount int64
	err := row.Scan(&p.ID, &p.AuctionID, &p.BidderID, &amount, &p.Type, &p.Status, &p.DueBy, &p.PaidAt, &p.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: scanning payment: %v", domain.ErrTransientUnavailable, err)
	}
	p.Amount = money.Amount(amount)
	return &p, nil
}
