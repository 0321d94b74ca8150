package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/obeplatform/assessment-api/internal/models"
)

const approvalColumns = `id, kind, requester_id, subject_code, assessment, scope, section, semester, reason,
       status, requested_at, approved_until, reviewed_by, reviewed_at, consumed_at,
       department_reviewer_id, department_approved, department_reviewed_by, department_reviewed_at`

// ApprovalRepository persists exception requests. The table is append-only:
// requests are created, reviewed once, and never reopened in place.
type ApprovalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository creates a new repository instance.
func NewApprovalRepository(db *sqlx.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Create appends a new request row. Duplicate keys are allowed by design.
func (r *ApprovalRepository) Create(ctx context.Context, req *models.ApprovalRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	const query = `INSERT INTO approval_requests (id, kind, requester_id, subject_code, assessment, scope, section, semester, reason,
            status, requested_at, approved_until, reviewed_by, reviewed_at, consumed_at,
            department_reviewer_id, department_approved, department_reviewed_by, department_reviewed_at)
        VALUES (:id, :kind, :requester_id, :subject_code, :assessment, :scope, :section, :semester, :reason,
            :status, :requested_at, :approved_until, :reviewed_by, :reviewed_at, :consumed_at,
            :department_reviewer_id, :department_approved, :department_reviewed_by, :department_reviewed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("insert approval request: %w", err)
	}
	return nil
}

// FindByID returns a request by id, or sql.ErrNoRows.
func (r *ApprovalRepository) FindByID(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	var req models.ApprovalRequest
	query := `SELECT ` + approvalColumns + ` FROM approval_requests WHERE id = $1`
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// LatestForKey returns the most recently created request for the logical key.
// Older rows are history only; nil means no request exists.
func (r *ApprovalRepository) LatestForKey(ctx context.Context, key models.ApprovalKey) (*models.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests
        WHERE kind = $1 AND requester_id = $2 AND subject_code = $3 AND assessment = $4`
	args := []interface{}{key.Kind, key.RequesterID, key.SubjectCode, key.Assessment}
	if key.Scope != nil {
		query += fmt.Sprintf(" AND scope = $%d", len(args)+1)
		args = append(args, *key.Scope)
	} else {
		query += " AND scope IS NULL"
	}
	query += " ORDER BY requested_at DESC, id DESC LIMIT 1"

	var reqs []models.ApprovalRequest
	if err := r.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, fmt.Errorf("latest approval request: %w", err)
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	return &reqs[0], nil
}

// LatestForSubject returns the most recent request for (subject, assessment)
// regardless of requester, used by the publish-window resolver.
func (r *ApprovalRepository) LatestForSubject(ctx context.Context, kind models.ApprovalKind, subjectCode string, assessment models.AssessmentType) (*models.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests
        WHERE kind = $1 AND subject_code = $2 AND assessment = $3
        ORDER BY requested_at DESC, id DESC LIMIT 1`
	var reqs []models.ApprovalRequest
	if err := r.db.SelectContext(ctx, &reqs, query, kind, subjectCode, assessment); err != nil {
		return nil, fmt.Errorf("latest approval request for subject: %w", err)
	}
	if len(reqs) == 0 {
		return nil, nil
	}
	return &reqs[0], nil
}

// ListPending returns pending requests visible to oversight: rows routed
// through a departmental reviewer stay hidden until the department approves.
// Ordering uses the original requested_at, not the department-approval time.
func (r *ApprovalRepository) ListPending(ctx context.Context, kind models.ApprovalKind) ([]models.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests
        WHERE kind = $1 AND status = $2
          AND (department_reviewer_id IS NULL OR department_approved = TRUE)
        ORDER BY requested_at ASC`
	var reqs []models.ApprovalRequest
	if err := r.db.SelectContext(ctx, &reqs, query, kind, models.StatusPending); err != nil {
		return nil, fmt.Errorf("list pending approval requests: %w", err)
	}
	return reqs, nil
}

// CountPending counts pending requests with the same visibility rule as
// ListPending.
func (r *ApprovalRepository) CountPending(ctx context.Context, kind models.ApprovalKind) (int, error) {
	const query = `SELECT COUNT(*) FROM approval_requests
        WHERE kind = $1 AND status = $2
          AND (department_reviewer_id IS NULL OR department_approved = TRUE)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, kind, models.StatusPending); err != nil {
		return 0, fmt.Errorf("count pending approval requests: %w", err)
	}
	return count, nil
}

// ListDepartmentPending returns rows awaiting the departmental pre-approval
// step for the given reviewer.
func (r *ApprovalRepository) ListDepartmentPending(ctx context.Context, reviewerID string) ([]models.ApprovalRequest, error) {
	query := `SELECT ` + approvalColumns + ` FROM approval_requests
        WHERE status = $1 AND department_reviewer_id = $2 AND department_approved = FALSE
        ORDER BY requested_at ASC`
	var reqs []models.ApprovalRequest
	if err := r.db.SelectContext(ctx, &reqs, query, models.StatusPending, reviewerID); err != nil {
		return nil, fmt.Errorf("list department pending requests: %w", err)
	}
	return reqs, nil
}

// ListHistory returns reviewed requests for a kind, newest first.
func (r *ApprovalRepository) ListHistory(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, int, error) {
	where := " WHERE kind = $1 AND status <> $2"
	args := []interface{}{filter.Kind, models.StatusPending}
	if filter.RequesterID != "" {
		where += fmt.Sprintf(" AND requester_id = $%d", len(args)+1)
		args = append(args, filter.RequesterID)
	}
	if filter.SubjectCode != "" {
		where += fmt.Sprintf(" AND subject_code = $%d", len(args)+1)
		args = append(args, filter.SubjectCode)
	}
	if filter.Semester != "" {
		where += fmt.Sprintf(" AND semester = $%d", len(args)+1)
		args = append(args, filter.Semester)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM approval_requests"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count approval history: %w", err)
	}

	query := `SELECT ` + approvalColumns + ` FROM approval_requests` + where + " ORDER BY reviewed_at DESC NULLS LAST, requested_at DESC"
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.PageSize, (page-1)*filter.PageSize)
	}

	var reqs []models.ApprovalRequest
	if err := r.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list approval history: %w", err)
	}
	return reqs, total, nil
}

// Review transitions a PENDING request to APPROVED or REJECTED. The status
// guard makes concurrent reviews race safely: the second writer matches zero
// rows and the first reviewer's values persist.
func (r *ApprovalRepository) Review(ctx context.Context, id string, status models.ApprovalStatus, approvedUntil *time.Time, reviewedBy string, reviewedAt time.Time) (bool, error) {
	const query = `UPDATE approval_requests
        SET status = $2, approved_until = $3, reviewed_by = $4, reviewed_at = $5, consumed_at = NULL
        WHERE id = $1 AND status = $6`
	res, err := r.db.ExecContext(ctx, query, id, status, approvedUntil, reviewedBy, reviewedAt, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("review approval request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("review approval request rows: %w", err)
	}
	return affected == 1, nil
}

// ReviewDepartment records the departmental pre-approval outcome.
func (r *ApprovalRepository) ReviewDepartment(ctx context.Context, id string, approved bool, reviewedBy string, reviewedAt time.Time) (bool, error) {
	const query = `UPDATE approval_requests
        SET department_approved = $2, department_reviewed_by = $3, department_reviewed_at = $4
        WHERE id = $1 AND status = $5 AND department_reviewer_id IS NOT NULL`
	res, err := r.db.ExecContext(ctx, query, id, approved, reviewedBy, reviewedAt, models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("department review approval request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("department review rows: %w", err)
	}
	return affected == 1, nil
}

// MarkConsumed stamps a single-use grant as spent.
func (r *ApprovalRepository) MarkConsumed(ctx context.Context, id string, consumedAt time.Time) error {
	const query = `UPDATE approval_requests SET consumed_at = $2 WHERE id = $1 AND consumed_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, consumedAt); err != nil {
		return fmt.Errorf("consume approval request: %w", err)
	}
	return nil
}
