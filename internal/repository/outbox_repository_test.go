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

func newOutboxRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestOutboxRepositoryEnqueueAndList(t *testing.T) {
	db, mock, cleanup := newOutboxRepoMock(t)
	defer cleanup()

	repo := NewOutboxRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO approval_outbox")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	scope := models.ScopeMarkEntry
	entry := &models.ApprovalOutbox{
		RequestID:   "req-1",
		Kind:        models.KindCourseEditException,
		RequesterID: "staff-1",
		SubjectCode: "CS101",
		Assessment:  models.AssessmentCIA1,
		Scope:       &scope,
		Status:      models.StatusApproved,
	}
	require.NoError(t, repo.Enqueue(context.Background(), entry))
	require.NotEmpty(t, entry.ID)
	require.False(t, entry.CreatedAt.IsZero())

	rows := sqlmock.NewRows([]string{"id", "request_id", "kind", "requester_id", "subject_code", "assessment", "scope", "status", "created_at", "processed_at"}).
		AddRow("out-1", "req-1", "COURSE_EDIT_EXCEPTION", "staff-1", "CS101", "cia1", "MARK_ENTRY", "APPROVED", time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE processed_at IS NULL")).
		WithArgs(50).
		WillReturnRows(rows)

	entries, err := repo.ListUnprocessed(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "req-1", entries[0].RequestID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepositoryMirrorUpsert(t *testing.T) {
	db, mock, cleanup := newOutboxRepoMock(t)
	defer cleanup()

	repo := NewOutboxRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (origin_request_id)")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &models.ApprovalOutbox{
		RequestID:   "req-1",
		Kind:        models.KindCourseEditException,
		RequesterID: "staff-1",
		SubjectCode: "CS101",
		Assessment:  models.AssessmentCIA1,
		Status:      models.StatusApproved,
	}
	require.NoError(t, repo.MirrorUpsert(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxRepositoryMarkProcessed(t *testing.T) {
	db, mock, cleanup := newOutboxRepoMock(t)
	defer cleanup()

	repo := NewOutboxRepository(db)
	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("SET processed_at = $2 WHERE id = $1 AND processed_at IS NULL")).
		WithArgs("out-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkProcessed(context.Background(), "out-1", now))
	require.NoError(t, mock.ExpectationsWereMet())
}
