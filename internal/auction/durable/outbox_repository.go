package durable

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/floroz/gavel/internal/auction/events"
)

// OutboxRepository implements events.OutboxRepository using pgx.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

// NewOutboxRepository creates a new Postgres outbox repository.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

// SaveEvent inserts an outbox event within the caller's transaction.
func (r *OutboxRepository) SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4::outbox_status, $5)
	`, event.ID, event.EventType, event.Payload, event.Status, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// GetPendingEvents fetches pending events using SELECT ... FOR UPDATE SKIP
// LOCKED so multiple relay instances never double-process the same row.
func (r *OutboxRepository) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*events.OutboxEvent, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_type, payload, status, created_at, processed_at
		FROM outbox_events
		WHERE status = $1::outbox_status
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, events.OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending events: %w", err)
	}
	defer rows.Close()

	var out []*events.OutboxEvent
	for rows.Next() {
		var e events.OutboxEvent
		if err := rows.Scan(&e.ID, &e.EventType, &e.Payload, &e.Status, &e.CreatedAt, &e.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, &e)
	}
	return out, nil
}

// UpdateEventStatus transitions an outbox event's status, stamping
// processed_at on a terminal outcome.
func (r *OutboxRepository) UpdateEventStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status events.OutboxStatus) error {
	var processedAt *time.Time
	if status == events.OutboxStatusPublished || status == events.OutboxStatusFailed {
		now := time.Now()
		processedAt = &now
	}

	tag, err := tx.Exec(ctx, `
		UPDATE outbox_events SET status = $1::outbox_status, processed_at = $2 WHERE id = $3
	`, status, processedAt, id)
	if err != nil {
		return fmt.Errorf("failed to update event status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("event not found")
	}
	return nil
}
