package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obeplatform/assessment-api/internal/middleware"
	"github.com/obeplatform/assessment-api/internal/models"
	appErrors "github.com/obeplatform/assessment-api/pkg/errors"
)

type lockServiceMock struct {
	status   *models.LockStatus
	err      error
	lastKey  models.LockKey
	resets   int
	confirms int
}

func (m *lockServiceMock) Status(_ context.Context, _ *models.JWTClaims, key models.LockKey) (*models.LockStatus, error) {
	m.lastKey = key
	return m.status, m.err
}

func (m *lockServiceMock) ConfirmMarkManager(_ context.Context, _ *models.JWTClaims, key models.LockKey) (*models.LockStatus, error) {
	m.confirms++
	m.lastKey = key
	return m.status, m.err
}

func (m *lockServiceMock) Reset(_ context.Context, _ *models.JWTClaims, key models.LockKey) (*models.LockStatus, error) {
	m.resets++
	m.lastKey = key
	return m.status, m.err
}

func lockTestContext(t *testing.T, method, target string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, nil)
	require.NoError(t, err)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "staff-1", Role: models.RoleStaff})
	return c, w
}

func TestLockHandlerStatus(t *testing.T) {
	svc := &lockServiceMock{status: &models.LockStatus{}}
	h := NewLockHandler(svc)
	c, w := lockTestContext(t, http.MethodGet, "/mark-table-lock/cia1/CS101?semester=2025-ODD&section=A")
	c.Params = gin.Params{{Key: "assessment", Value: "cia1"}, {Key: "subjectId", Value: "CS101"}}

	h.Status(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "staff-1", svc.lastKey.StaffID, "staff id defaults to the caller")
	assert.Equal(t, models.AssessmentCIA1, svc.lastKey.Assessment)
}

func TestLockHandlerStatusUnknownAssessment(t *testing.T) {
	h := NewLockHandler(&lockServiceMock{})
	c, w := lockTestContext(t, http.MethodGet, "/mark-table-lock/midterm/CS101?semester=2025-ODD")
	c.Params = gin.Params{{Key: "assessment", Value: "midterm"}, {Key: "subjectId", Value: "CS101"}}

	h.Status(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLockHandlerStatusMissingSemester(t *testing.T) {
	h := NewLockHandler(&lockServiceMock{})
	c, w := lockTestContext(t, http.MethodGet, "/mark-table-lock/cia1/CS101")
	c.Params = gin.Params{{Key: "assessment", Value: "cia1"}, {Key: "subjectId", Value: "CS101"}}

	h.Status(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLockHandlerStatusAssignmentKeyNeedsNoSemester(t *testing.T) {
	svc := &lockServiceMock{status: &models.LockStatus{}}
	h := NewLockHandler(svc)
	c, w := lockTestContext(t, http.MethodGet, "/mark-table-lock/cia1/CS101?teachingAssignmentId=ta-9")
	c.Params = gin.Params{{Key: "assessment", Value: "cia1"}, {Key: "subjectId", Value: "CS101"}}

	h.Status(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastKey.TeachingAssignmentID)
	assert.Equal(t, "ta-9", *svc.lastKey.TeachingAssignmentID)
}

func TestLockHandlerResetForbidden(t *testing.T) {
	svc := &lockServiceMock{err: appErrors.ErrForbidden}
	h := NewLockHandler(svc)
	c, w := lockTestContext(t, http.MethodPost, "/iqac/reset/cia1/CS101?semester=2025-ODD")
	c.Params = gin.Params{{Key: "assessment", Value: "cia1"}, {Key: "subjectId", Value: "CS101"}}

	h.Reset(c)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 1, svc.resets)
}
