package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newResetRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestResetRepositoryListUnread(t *testing.T) {
	db, mock, cleanup := newResetRepoMock(t)
	defer cleanup()

	repo := NewResetRepository(db)
	rows := sqlmock.NewRows([]string{"id", "teaching_assignment_id", "assessment", "owner_id", "reset_by", "reset_at", "is_read", "read_at"}).
		AddRow("n1", "ta-1", "cia1", "staff-1", "iqac-1", time.Now(), false, nil)
	mock.ExpectQuery(regexp.QuoteMeta("owner_id = $1 AND is_read = FALSE")).
		WithArgs("staff-1").
		WillReturnRows(rows)

	notices, err := repo.ListUnread(context.Background(), "staff-1")
	require.NoError(t, err)
	require.Len(t, notices, 1)
	require.Equal(t, "iqac-1", notices[0].ResetBy)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetRepositoryDismiss(t *testing.T) {
	db, mock, cleanup := newResetRepoMock(t)
	defer cleanup()

	repo := NewResetRepository(db)
	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reset_notifications SET is_read = TRUE")).
		WithArgs(now, "staff-1", "n1", "n2").
		WillReturnResult(sqlmock.NewResult(0, 2))

	dismissed, err := repo.Dismiss(context.Background(), "staff-1", []string{"n1", "n2"}, now)
	require.NoError(t, err)
	require.Equal(t, 2, dismissed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResetRepositoryDismissNoIDs(t *testing.T) {
	db, _, cleanup := newResetRepoMock(t)
	defer cleanup()

	repo := NewResetRepository(db)
	dismissed, err := repo.Dismiss(context.Background(), "staff-1", nil, time.Now())
	require.NoError(t, err)
	require.Zero(t, dismissed)
}
