package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jmehdipour/order-pipeline/internal/model"
)

// OutboxRepository defines persistence methods for the outbox_events table.
type OutboxRepository interface {
	// Insert writes a single outbox event. If tx is nil, it will open/commit
	// an internal transaction; otherwise it uses the given tx.
	Insert(ctx context.Context, tx *sqlx.Tx, ev model.OutboxEvent) error

	// FetchUnprocessed returns up to limit rows with processed = false and
	// attempts below maxAttempts, oldest first.
	FetchUnprocessed(ctx context.Context, limit, maxAttempts int) ([]model.OutboxEvent, error)

	// MarkProcessed flips processed to true; the row is never touched again.
	MarkProcessed(ctx context.Context, id string) error

	// IncrementAttempts bumps the retry counter after a failed publish.
	IncrementAttempts(ctx context.Context, id string) error

	// ListDead returns rows that exhausted maxAttempts without being
	// published. They stay in the table for operator inspection.
	ListDead(ctx context.Context, maxAttempts int) ([]model.OutboxEvent, error)
}

// OutboxRepositoryImpl is a sqlx-backed implementation.
type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

func NewOutboxRepository(db *sqlx.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

var _ OutboxRepository = (*OutboxRepositoryImpl)(nil)

// withTx runs fn in the provided tx, or starts a new transaction when tx is nil.
func (r *OutboxRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}

	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}

	return t.Commit()
}

func (r *OutboxRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, ev model.OutboxEvent) error {
	const q = `
		INSERT INTO outbox_events (id, event_type, payload, processed, attempts, created_at, updated_at)
		VALUES (?, ?, ?, 0, 0, NOW(), NOW())
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, ev.ID, ev.EventType, ev.Payload)

		return err
	})
}

func (r *OutboxRepositoryImpl) FetchUnprocessed(ctx context.Context, limit, maxAttempts int) ([]model.OutboxEvent, error) {
	const q = `
		SELECT id, event_type, payload, processed, attempts, created_at, updated_at
		  FROM outbox_events
		 WHERE processed = 0 AND attempts < ?
		 ORDER BY created_at ASC
		 LIMIT ?
	`
	var rows []model.OutboxEvent
	if err := r.db.SelectContext(ctx, &rows, q, maxAttempts, limit); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *OutboxRepositoryImpl) MarkProcessed(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events SET processed = 1, updated_at = NOW() WHERE id = ?
	`, id)
	return err
}

func (r *OutboxRepositoryImpl) IncrementAttempts(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events SET attempts = attempts + 1, updated_at = NOW() WHERE id = ?
	`, id)
	return err
}

func (r *OutboxRepositoryImpl) ListDead(ctx context.Context, maxAttempts int) ([]model.OutboxEvent, error) {
	const q = `
		SELECT id, event_type, payload, processed, attempts, created_at, updated_at
		  FROM outbox_events
		 WHERE processed = 0 AND attempts >= ?
		 ORDER BY created_at ASC
	`
	var rows []model.OutboxEvent
	if err := r.db.SelectContext(ctx, &rows, q, maxAttempts); err != nil {
		return nil, err
	}
	return rows, nil
}
