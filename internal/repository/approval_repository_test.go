package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/obeplatform/assessment-api/internal/models"
)

func newApprovalRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func approvalRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "kind", "requester_id", "subject_code", "assessment", "scope", "section", "semester", "reason",
		"status", "requested_at", "approved_until", "reviewed_by", "reviewed_at", "consumed_at",
		"department_reviewer_id", "department_approved", "department_reviewed_by", "department_reviewed_at",
	})
	for _, id := range ids {
		rows.AddRow(id, "PUBLISH_EXCEPTION", "staff-1", "CS101", "cia1", nil, "A", "2025-ODD", "late submission",
			"PENDING", time.Now(), nil, nil, nil, nil, nil, true, nil, nil)
	}
	return rows
}

func TestApprovalRepositoryCreateAndLatest(t *testing.T) {
	db, mock, cleanup := newApprovalRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approval_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	req := &models.ApprovalRequest{
		Kind:               models.KindPublishException,
		RequesterID:        "staff-1",
		SubjectCode:        "CS101",
		Assessment:         models.AssessmentCIA1,
		Section:            "A",
		Semester:           "2025-ODD",
		Reason:             "late submission",
		Status:             models.StatusPending,
		RequestedAt:        time.Now(),
		DepartmentApproved: true,
	}
	require.NoError(t, repo.Create(context.Background(), req))
	require.NotEmpty(t, req.ID, "create assigns an id when absent")

	mock.ExpectQuery(regexp.QuoteMeta("AND scope IS NULL ORDER BY requested_at DESC, id DESC LIMIT 1")).
		WithArgs("PUBLISH_EXCEPTION", "staff-1", "CS101", "cia1").
		WillReturnRows(approvalRows("req-1"))

	latest, err := repo.LatestForKey(context.Background(), models.ApprovalKey{
		Kind:        models.KindPublishException,
		RequesterID: "staff-1",
		SubjectCode: "CS101",
		Assessment:  models.AssessmentCIA1,
	})
	require.NoError(t, err)
	require.Equal(t, "req-1", latest.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryLatestForKeyNone(t *testing.T) {
	db, mock, cleanup := newApprovalRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY requested_at DESC, id DESC LIMIT 1")).
		WillReturnRows(approvalRows())

	scope := models.ScopeMarkEntry
	latest, err := repo.LatestForKey(context.Background(), models.ApprovalKey{
		Kind:        models.KindEditException,
		RequesterID: "staff-1",
		SubjectCode: "CS101",
		Assessment:  models.AssessmentCIA1,
		Scope:       &scope,
	})
	require.NoError(t, err)
	require.Nil(t, latest)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryListPendingVisibility(t *testing.T) {
	db, mock, cleanup := newApprovalRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("(department_reviewer_id IS NULL OR department_approved = TRUE)")).
		WithArgs("PUBLISH_EXCEPTION", "PENDING").
		WillReturnRows(approvalRows("req-1", "req-2"))

	pending, err := repo.ListPending(context.Background(), models.KindPublishException)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryReviewStatusGuard(t *testing.T) {
	db, mock, cleanup := newApprovalRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	now := time.Now()
	until := now.Add(time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE approval_requests")).
		WithArgs("req-1", "APPROVED", &until, "iqac-1", now, "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := repo.Review(context.Background(), "req-1", models.StatusApproved, &until, "iqac-1", now)
	require.NoError(t, err)
	require.True(t, ok)

	// Second reviewer races and matches nothing.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE approval_requests")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = repo.Review(context.Background(), "req-1", models.StatusRejected, nil, "iqac-2", now)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryReviewDepartment(t *testing.T) {
	db, mock, cleanup := newApprovalRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("department_reviewer_id IS NOT NULL")).
		WithArgs("req-1", true, "hod-1", now, "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.ReviewDepartment(context.Background(), "req-1", true, "hod-1", now)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalRepositoryListHistoryPaginates(t *testing.T) {
	db, mock, cleanup := newApprovalRepoMock(t)
	defer cleanup()

	repo := NewApprovalRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM approval_requests")).
		WithArgs("PUBLISH_EXCEPTION", "PENDING", "staff-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT 2 OFFSET 2")).
		WithArgs("PUBLISH_EXCEPTION", "PENDING", "staff-1").
		WillReturnRows(approvalRows("req-3"))

	reqs, total, err := repo.ListHistory(context.Background(), models.ApprovalFilter{
		Kind:        models.KindPublishException,
		RequesterID: "staff-1",
		Page:        2,
		PageSize:    2,
	})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, reqs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
