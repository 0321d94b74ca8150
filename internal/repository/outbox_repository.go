package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/obeplatform/assessment-api/internal/models"
)

// OutboxRepository stores the durable propagation records that mirror
// special-variant approval statuses into the general queue. Draining is
// at-least-once; the mirror upsert is idempotent so replays are harmless.
type OutboxRepository struct {
	db *sqlx.DB
}

// NewOutboxRepository creates a new repository instance.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Enqueue appends a propagation record for a status change.
func (r *OutboxRepository) Enqueue(ctx context.Context, entry *models.ApprovalOutbox) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO approval_outbox (id, request_id, kind, requester_id, subject_code, assessment, scope, status, created_at, processed_at)
        VALUES (:id, :request_id, :kind, :requester_id, :subject_code, :assessment, :scope, :status, :created_at, :processed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("enqueue approval outbox: %w", err)
	}
	return nil
}

// ListUnprocessed returns pending propagation records, oldest first.
func (r *OutboxRepository) ListUnprocessed(ctx context.Context, limit int) ([]models.ApprovalOutbox, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT id, request_id, kind, requester_id, subject_code, assessment, scope, status, created_at, processed_at
        FROM approval_outbox WHERE processed_at IS NULL ORDER BY created_at ASC LIMIT $1`
	var entries []models.ApprovalOutbox
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("list unprocessed outbox: %w", err)
	}
	return entries, nil
}

// MarkProcessed stamps a propagation record as drained.
func (r *OutboxRepository) MarkProcessed(ctx context.Context, id string, processedAt time.Time) error {
	const query = `UPDATE approval_outbox SET processed_at = $2 WHERE id = $1 AND processed_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, processedAt); err != nil {
		return fmt.Errorf("mark outbox processed: %w", err)
	}
	return nil
}

// MirrorUpsert projects a propagation record into the general review queue.
// Keyed by the origin request id so replays update in place.
func (r *OutboxRepository) MirrorUpsert(ctx context.Context, entry *models.ApprovalOutbox) error {
	const query = `INSERT INTO approval_queue_mirror (origin_request_id, kind, requester_id, subject_code, assessment, scope, status, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (origin_request_id)
        DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, entry.RequestID, entry.Kind, entry.RequesterID, entry.SubjectCode, entry.Assessment, entry.Scope, entry.Status, time.Now().UTC()); err != nil {
		return fmt.Errorf("mirror upsert: %w", err)
	}
	return nil
}
