package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/floroz/escrow-auction/pkg/database"
)

// OutboxStatus defines the status of an event in the outbox
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusPublished  OutboxStatus = "published"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// OutboxEvent is a message stored in the same transaction as the change it
// describes. EventType doubles as the broker routing key.
type OutboxEvent struct {
	ID          uuid.UUID    `db:"id"`
	EventType   string       `db:"event_type"`
	Payload     []byte       `db:"payload"`
	Status      OutboxStatus `db:"status"`
	CreatedAt   time.Time    `db:"created_at"`
	ProcessedAt *time.Time   `db:"processed_at"`
}

// NewOutboxEvent creates a pending event with a fresh id
func NewOutboxEvent(eventType string, payload []byte, createdAt time.Time) *OutboxEvent {
	return &OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   payload,
		Status:    OutboxStatusPending,
		CreatedAt: createdAt,
	}
}

// OutboxRepository defines the interface for interacting with the outbox table
type OutboxRepository interface {
	// ClaimPending locks up to limit pending events in creation order
	ClaimPending(ctx context.Context, tx pgx.Tx, limit int) ([]*OutboxEvent, error)
	MarkPublished(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, at time.Time) error
}

// EventPublisher defines the interface for publishing events to a broker
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body []byte) error
}

// OutboxRelay polls the outbox for pending events and publishes them in
// creation order. When a publish fails, the events before it are settled and
// the rest stay pending for the next tick.
type OutboxRelay struct {
	outboxRepo OutboxRepository
	publisher  EventPublisher
	txManager  database.TransactionManager
	batchSize  int
	interval   time.Duration
	exchange   string
	logger     *slog.Logger
}

// NewOutboxRelay creates a new outbox relay
func NewOutboxRelay(
	outboxRepo OutboxRepository,
	publisher EventPublisher,
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

// Run starts the polling loop and returns when ctx is done
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.drain(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

// drain publishes full batches back to back until the outbox runs dry.
func (r *OutboxRelay) drain(ctx context.Context) {
	for ctx.Err() == nil {
		n, err := r.ProcessBatch(ctx)
		if err != nil {
			r.logger.Error("Error processing batch", "error", err)
			return
		}
		if n < r.batchSize {
			return
		}
	}
}

// ProcessBatch publishes up to batchSize pending events and returns how many
// were published. A publish error is returned after the published prefix of
// the batch has been settled.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	var (
		published  []uuid.UUID
		publishErr error
	)

	err := database.WithTx(ctx, r.txManager, func(tx pgx.Tx) error {
		published, publishErr = nil, nil

		events, err := r.outboxRepo.ClaimPending(ctx, tx, r.batchSize)
		if err != nil {
			return fmt.Errorf("failed to fetch pending events: %w", err)
		}

		for _, event := range events {
			if err := r.publisher.Publish(ctx, r.exchange, event.EventType, event.Payload); err != nil {
				publishErr = fmt.Errorf("failed to publish event %s: %w", event.ID, err)
				break
			}
			published = append(published, event.ID)
		}
		if len(published) == 0 {
			return publishErr
		}
		return r.outboxRepo.MarkPublished(ctx, tx, published, time.Now().UTC())
	})
	if err != nil {
		return 0, err
	}

	if len(published) > 0 {
		r.logger.Info("Published outbox events", "count", len(published), "exchange", r.exchange)
	}
	return len(published), publishErr
}
