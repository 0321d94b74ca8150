package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/obeplatform/assessment-api/internal/models"
)

// ScheduleRepository persists due schedules, assessment controls and the
// semester-wide global publish controls. All three tables are keyed by their
// natural key and written through upserts; the engine never errors on a
// schedule/control create collision.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new repository instance.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// FindDueSchedule returns the active due schedule for the key, or nil when
// none is configured.
func (r *ScheduleRepository) FindDueSchedule(ctx context.Context, semester, subjectCode string, assessment models.AssessmentType) (*models.DueSchedule, error) {
	const query = `SELECT id, semester, subject_code, assessment, due_at, is_active, updated_at
        FROM due_schedules WHERE semester = $1 AND subject_code = $2 AND assessment = $3 AND is_active = TRUE`
	var due models.DueSchedule
	if err := r.db.GetContext(ctx, &due, query, semester, subjectCode, assessment); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find due schedule: %w", err)
	}
	return &due, nil
}

// UpsertDueSchedule writes the due schedule for its natural key.
func (r *ScheduleRepository) UpsertDueSchedule(ctx context.Context, due *models.DueSchedule) error {
	if due.ID == "" {
		due.ID = uuid.NewString()
	}
	due.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO due_schedules (id, semester, subject_code, assessment, due_at, is_active, updated_at)
        VALUES (:id, :semester, :subject_code, :assessment, :due_at, :is_active, :updated_at)
        ON CONFLICT (semester, subject_code, assessment)
        DO UPDATE SET due_at = EXCLUDED.due_at, is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, due); err != nil {
		return fmt.Errorf("upsert due schedule: %w", err)
	}
	return nil
}

// FindControl returns the assessment control row for the key, or nil.
func (r *ScheduleRepository) FindControl(ctx context.Context, semester, subjectCode string, assessment models.AssessmentType) (*models.AssessmentControl, error) {
	const query = `SELECT id, semester, subject_code, assessment, is_enabled, is_open, updated_at
        FROM assessment_controls WHERE semester = $1 AND subject_code = $2 AND assessment = $3`
	var control models.AssessmentControl
	if err := r.db.GetContext(ctx, &control, query, semester, subjectCode, assessment); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find assessment control: %w", err)
	}
	return &control, nil
}

// UpsertControl writes the assessment control row for its natural key.
func (r *ScheduleRepository) UpsertControl(ctx context.Context, control *models.AssessmentControl) error {
	if control.ID == "" {
		control.ID = uuid.NewString()
	}
	control.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO assessment_controls (id, semester, subject_code, assessment, is_enabled, is_open, updated_at)
        VALUES (:id, :semester, :subject_code, :assessment, :is_enabled, :is_open, :updated_at)
        ON CONFLICT (semester, subject_code, assessment)
        DO UPDATE SET is_enabled = EXCLUDED.is_enabled, is_open = EXCLUDED.is_open, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, control); err != nil {
		return fmt.Errorf("upsert assessment control: %w", err)
	}
	return nil
}

// FindGlobalControl returns the semester-wide override row, or nil when the
// semester/assessment pair has no override configured.
func (r *ScheduleRepository) FindGlobalControl(ctx context.Context, semester string, assessment models.AssessmentType) (*models.GlobalPublishControl, error) {
	const query = `SELECT id, semester, assessment, is_open, updated_at
        FROM global_publish_controls WHERE semester = $1 AND assessment = $2`
	var global models.GlobalPublishControl
	if err := r.db.GetContext(ctx, &global, query, semester, assessment); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find global publish control: %w", err)
	}
	return &global, nil
}

// UpsertGlobalControl writes the semester-wide override row.
func (r *ScheduleRepository) UpsertGlobalControl(ctx context.Context, global *models.GlobalPublishControl) error {
	if global.ID == "" {
		global.ID = uuid.NewString()
	}
	global.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO global_publish_controls (id, semester, assessment, is_open, updated_at)
        VALUES (:id, :semester, :assessment, :is_open, :updated_at)
        ON CONFLICT (semester, assessment)
        DO UPDATE SET is_open = EXCLUDED.is_open, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, global); err != nil {
		return fmt.Errorf("upsert global publish control: %w", err)
	}
	return nil
}
