package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/gavel/internal/platform/database"
)

// OutboxStatus is the delivery status of a row in the outbox table.
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusPublished  OutboxStatus = "published"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxEvent is a generic envelope persisted alongside a durable write so
// its delivery to RabbitMQ survives a crash between commit and publish.
type OutboxEvent struct {
	ID          uuid.UUID
	EventType   string
	Payload     []byte
	Status      OutboxStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewOutboxEvent builds a pending OutboxEvent carrying a marshaled Event.
func NewOutboxEvent(evt Event, now time.Time) (*OutboxEvent, error) {
	payload, err := evt.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshaling event: %w", err)
	}
	return &OutboxEvent{
		ID:        uuid.New(),
		EventType: string(evt.Kind),
		Payload:   payload,
		Status:    OutboxStatusPending,
		CreatedAt: now,
	}, nil
}

// OutboxRepository is the C1 contract for the outbox_events table.
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *OutboxEvent) error
	GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*OutboxEvent, error)
	UpdateEventStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status OutboxStatus) error
}

// Publisher publishes a message to a message broker.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// OutboxRelay polls the database for pending events and publishes them to
// the exchange, deleting nothing: a publish failure rolls the transaction
// back and the event stays pending for the next batch.
type OutboxRelay struct {
	outboxRepo OutboxRepository
	publisher  Publisher
	txManager  database.TransactionManager
	batchSize  int
	interval   time.Duration
	exchange   string
	logger     *slog.Logger
}

// NewOutboxRelay creates a relay over the given repository and publisher.
func NewOutboxRelay(
	outboxRepo OutboxRepository,
	publisher Publisher,
	txManager database.TransactionManager,
	batchSize int,
	interval time.Duration,
	exchange string,
	logger *slog.Logger,
) *OutboxRelay {
	return &OutboxRelay{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		txManager:  txManager,
		batchSize:  batchSize,
		interval:   interval,
		exchange:   exchange,
		logger:     logger,
	}
}

// Run starts the polling loop; it returns nil when ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	if err := r.processBatch(ctx); err != nil {
		r.logger.Error("error processing outbox batch", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.processBatch(ctx); err != nil {
				r.logger.Error("error processing outbox batch", "error", err)
			}
		}
	}
}

func (r *OutboxRelay) processBatch(ctx context.Context) error {
	tx, err := r.txManager.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	pending, err := r.outboxRepo.GetPendingEvents(ctx, tx, r.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending events: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	r.logger.Info("processing outbox events", "count", len(pending))

	for _, evt := range pending {
		if err := r.publisher.Publish(ctx, r.exchange, evt.EventType, evt.Payload); err != nil {
			// Publish failed: roll back and retry this event on the next tick.
			return fmt.Errorf("failed to publish event %s: %w", evt.ID, err)
		}
		if err := r.outboxRepo.UpdateEventStatus(ctx, tx, evt.ID, OutboxStatusPublished); err != nil {
			return fmt.Errorf("failed to update event status %s: %w", evt.ID, err)
		}
	}

	return tx.Commit(ctx)
}
