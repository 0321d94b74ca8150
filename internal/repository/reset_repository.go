package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/obeplatform/assessment-api/internal/models"
)

// ResetRepository persists reset notices. Rows are retained for audit; the
// pending view filters on is_read rather than deleting.
type ResetRepository struct {
	db *sqlx.DB
}

// NewResetRepository creates a new repository instance.
func NewResetRepository(db *sqlx.DB) *ResetRepository {
	return &ResetRepository{db: db}
}

// Create appends a reset notice.
func (r *ResetRepository) Create(ctx context.Context, n *models.ResetNotification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	const query = `INSERT INTO reset_notifications (id, teaching_assignment_id, assessment, owner_id, reset_by, reset_at, is_read, read_at)
        VALUES (:id, :teaching_assignment_id, :assessment, :owner_id, :reset_by, :reset_at, :is_read, :read_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return fmt.Errorf("insert reset notification: %w", err)
	}
	return nil
}

// ListUnread returns the owner's unread notices, newest reset first.
func (r *ResetRepository) ListUnread(ctx context.Context, ownerID string) ([]models.ResetNotification, error) {
	const query = `SELECT id, teaching_assignment_id, assessment, owner_id, reset_by, reset_at, is_read, read_at
        FROM reset_notifications WHERE owner_id = $1 AND is_read = FALSE ORDER BY reset_at DESC`
	var notices []models.ResetNotification
	if err := r.db.SelectContext(ctx, &notices, query, ownerID); err != nil {
		return nil, fmt.Errorf("list unread reset notifications: %w", err)
	}
	return notices, nil
}

// Dismiss marks the given notices read for the owner. Ids belonging to other
// owners are ignored rather than erroring.
func (r *ResetRepository) Dismiss(ctx context.Context, ownerID string, ids []string, readAt time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`UPDATE reset_notifications SET is_read = TRUE, read_at = ?
        WHERE owner_id = ? AND is_read = FALSE AND id IN (?)`, readAt, ownerID, ids)
	if err != nil {
		return 0, fmt.Errorf("build dismiss query: %w", err)
	}
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("dismiss reset notifications: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("dismiss reset notifications rows: %w", err)
	}
	return int(affected), nil
}
