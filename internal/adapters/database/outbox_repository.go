package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	pkgevents "github.com/floroz/escrow-auction/pkg/events"
)

const claimPendingQuery = `
	SELECT id, event_type, payload, status, created_at, processed_at
	FROM outbox_events
	WHERE status = $1::outbox_status
	ORDER BY seq ASC
	LIMIT $2
	FOR UPDATE SKIP LOCKED
`

// PostgresOutboxRepository is the outbox table. The journal enqueues inside
// its write transaction; the relay claims and settles rows inside its own.
type PostgresOutboxRepository struct {
	pool *pgxpool.Pool
}

var _ pkgevents.OutboxRepository = (*PostgresOutboxRepository)(nil)

// NewPostgresOutboxRepository creates a new PostgreSQL outbox repository
func NewPostgresOutboxRepository(pool *pgxpool.Pool) *PostgresOutboxRepository {
	return &PostgresOutboxRepository{pool: pool}
}

// Enqueue stores a pending event in tx. eventType is also the routing key.
func (r *PostgresOutboxRepository) Enqueue(ctx context.Context, tx pgx.Tx, eventType string, payload []byte, at time.Time) error {
	event := pkgevents.NewOutboxEvent(eventType, payload, at)
	_, err := tx.Exec(ctx,
		`INSERT INTO outbox_events (id, event_type, payload, status, created_at)
		 VALUES ($1, $2, $3, $4::outbox_status, $5)`,
		event.ID, event.EventType, event.Payload, event.Status, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s event: %w", eventType, err)
	}
	return nil
}

// ClaimPending locks up to limit pending events in journal order. Rows
// already locked by another relay are skipped, not waited on.
func (r *PostgresOutboxRepository) ClaimPending(ctx context.Context, tx pgx.Tx, limit int) ([]*pkgevents.OutboxEvent, error) {
	rows, err := tx.Query(ctx, claimPendingQuery, pkgevents.OutboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim pending events: %w", err)
	}

	events, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[pkgevents.OutboxEvent])
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending events: %w", err)
	}
	return events, nil
}

// MarkPublished settles a batch of claimed events in one statement
func (r *PostgresOutboxRepository) MarkPublished(ctx context.Context, tx pgx.Tx, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	tag, err := tx.Exec(ctx,
		`UPDATE outbox_events
		 SET status = $1::outbox_status, processed_at = $2
		 WHERE id = ANY($3::uuid[]) AND status = $4::outbox_status`,
		pkgevents.OutboxStatusPublished, at, keys, pkgevents.OutboxStatusPending,
	)
	if err != nil {
		return fmt.Errorf("failed to mark events published: %w", err)
	}
	if n := tag.RowsAffected(); n != int64(len(ids)) {
		return fmt.Errorf("marked %d of %d claimed events published", n, len(ids))
	}
	return nil
}

// CountByStatus returns how many outbox events are in status
func (r *PostgresOutboxRepository) CountByStatus(ctx context.Context, status pkgevents.OutboxStatus) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM outbox_events WHERE status = $1::outbox_status", status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count outbox events: %w", err)
	}
	return count, nil
}
