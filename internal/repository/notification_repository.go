package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/obeplatform/assessment-api/internal/models"
)

// NotificationRepository appends delivery-attempt log rows. The table is
// append-only and never used for control flow.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new repository instance.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Append records one delivery attempt.
func (r *NotificationRepository) Append(ctx context.Context, attempt *models.NotificationAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notification_attempts (id, request_id, channel, status, recipient, response_code, response_body, error, created_at)
        VALUES (:id, :request_id, :channel, :status, :recipient, :response_code, :response_body, :error, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, attempt); err != nil {
		return fmt.Errorf("insert notification attempt: %w", err)
	}
	return nil
}

// ListByRequest returns the delivery log for an approval request.
func (r *NotificationRepository) ListByRequest(ctx context.Context, requestID string) ([]models.NotificationAttempt, error) {
	const query = `SELECT id, request_id, channel, status, recipient, response_code, response_body, error, created_at
        FROM notification_attempts WHERE request_id = $1 ORDER BY created_at ASC`
	var attempts []models.NotificationAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, requestID); err != nil {
		return nil, fmt.Errorf("list notification attempts: %w", err)
	}
	return attempts, nil
}
