package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/obeplatform/assessment-api/internal/models"
)

const lockColumns = `id, teaching_assignment_id, staff_id, subject_code, assessment, section, academic_year,
       is_published, published_blocked, mark_entry_blocked, mark_manager_locked,
       mark_entry_unblocked_until, mark_manager_unlocked_until, updated_at`

// LockRepository persists mark-table lock rows. Exactly one row exists per
// natural key; rows are created lazily on first status query or publish.
type LockRepository struct {
	db *sqlx.DB
}

// NewLockRepository creates a new repository instance.
func NewLockRepository(db *sqlx.DB) *LockRepository {
	return &LockRepository{db: db}
}

// FindByKey returns the lock row for the natural key, or sql.ErrNoRows.
func (r *LockRepository) FindByKey(ctx context.Context, key models.LockKey) (*models.MarkTableLock, error) {
	var lock models.MarkTableLock
	if key.TeachingAssignmentID != nil {
		query := `SELECT ` + lockColumns + ` FROM mark_table_locks WHERE teaching_assignment_id = $1 AND assessment = $2`
		if err := r.db.GetContext(ctx, &lock, query, *key.TeachingAssignmentID, key.Assessment); err != nil {
			return nil, err
		}
		return &lock, nil
	}
	query := `SELECT ` + lockColumns + ` FROM mark_table_locks
        WHERE staff_id = $1 AND subject_code = $2 AND assessment = $3 AND section = $4 AND academic_year = $5`
	if err := r.db.GetContext(ctx, &lock, query, key.StaffID, key.SubjectCode, key.Assessment, key.Section, key.AcademicYear); err != nil {
		return nil, err
	}
	return &lock, nil
}

// GetOrCreate upserts the lock row for the natural key. The partial unique
// indexes on (teaching_assignment_id, assessment) and the legacy tuple make
// concurrent creators collapse onto a single row.
func (r *LockRepository) GetOrCreate(ctx context.Context, key models.LockKey, now time.Time) (*models.MarkTableLock, error) {
	lock := &models.MarkTableLock{
		ID:                   uuid.NewString(),
		TeachingAssignmentID: key.TeachingAssignmentID,
		StaffID:              key.StaffID,
		SubjectCode:          key.SubjectCode,
		Assessment:           key.Assessment,
		Section:              key.Section,
		AcademicYear:         key.AcademicYear,
		UpdatedAt:            now,
	}

	conflict := "(staff_id, subject_code, assessment, section, academic_year) WHERE teaching_assignment_id IS NULL"
	if key.TeachingAssignmentID != nil {
		conflict = "(teaching_assignment_id, assessment)"
	}
	query := `INSERT INTO mark_table_locks (id, teaching_assignment_id, staff_id, subject_code, assessment, section, academic_year,
            is_published, published_blocked, mark_entry_blocked, mark_manager_locked,
            mark_entry_unblocked_until, mark_manager_unlocked_until, updated_at)
        VALUES (:id, :teaching_assignment_id, :staff_id, :subject_code, :assessment, :section, :academic_year,
            :is_published, :published_blocked, :mark_entry_blocked, :mark_manager_locked,
            :mark_entry_unblocked_until, :mark_manager_unlocked_until, :updated_at)
        ON CONFLICT ` + conflict + ` DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, lock); err != nil {
		return nil, fmt.Errorf("insert mark table lock: %w", err)
	}

	// Reread so a concurrent creator's row wins over our candidate values.
	return r.FindByKey(ctx, key)
}

// Save writes the mutable lock fields. Last writer wins; derived fields are
// recomputed idempotently from the window fields so this is safe.
func (r *LockRepository) Save(ctx context.Context, lock *models.MarkTableLock) error {
	const query = `UPDATE mark_table_locks SET
            is_published = :is_published,
            published_blocked = :published_blocked,
            mark_entry_blocked = :mark_entry_blocked,
            mark_manager_locked = :mark_manager_locked,
            mark_entry_unblocked_until = :mark_entry_unblocked_until,
            mark_manager_unlocked_until = :mark_manager_unlocked_until,
            updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lock); err != nil {
		return fmt.Errorf("update mark table lock: %w", err)
	}
	return nil
}

// FindByID returns the lock row by surrogate id, or sql.ErrNoRows.
func (r *LockRepository) FindByID(ctx context.Context, id string) (*models.MarkTableLock, error) {
	var lock models.MarkTableLock
	query := `SELECT ` + lockColumns + ` FROM mark_table_locks WHERE id = $1`
	if err := r.db.GetContext(ctx, &lock, query, id); err != nil {
		return nil, err
	}
	return &lock, nil
}
