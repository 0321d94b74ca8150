package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/obeplatform/assessment-api/internal/models"
	"github.com/obeplatform/assessment-api/pkg/clock"
	appErrors "github.com/obeplatform/assessment-api/pkg/errors"
)

type mockScheduleReader struct {
	due     *models.DueSchedule
	control *models.AssessmentControl
	global  *models.GlobalPublishControl
}

func (m *mockScheduleReader) FindDueSchedule(_ context.Context, _, _ string, _ models.AssessmentType) (*models.DueSchedule, error) {
	return m.due, nil
}

func (m *mockScheduleReader) FindControl(_ context.Context, _, _ string, _ models.AssessmentType) (*models.AssessmentControl, error) {
	return m.control, nil
}

func (m *mockScheduleReader) FindGlobalControl(_ context.Context, _ string, _ models.AssessmentType) (*models.GlobalPublishControl, error) {
	return m.global, nil
}

type mockApprovalStore struct {
	bySubject *models.ApprovalRequest
	byKey     map[models.ApprovalKind]*models.ApprovalRequest
	consumed  []string
}

func (m *mockApprovalStore) LatestForSubject(_ context.Context, _ models.ApprovalKind, _ string, _ models.AssessmentType) (*models.ApprovalRequest, error) {
	return m.bySubject, nil
}

func (m *mockApprovalStore) LatestForKey(_ context.Context, key models.ApprovalKey) (*models.ApprovalRequest, error) {
	return m.byKey[key.Kind], nil
}

func (m *mockApprovalStore) MarkConsumed(_ context.Context, id string, _ time.Time) error {
	m.consumed = append(m.consumed, id)
	return nil
}

type mockLockPublisher struct {
	published []models.LockKey
	flag      []bool
}

func (m *mockLockPublisher) SetPublished(_ context.Context, key models.LockKey, published bool) (*models.MarkTableLock, error) {
	m.published = append(m.published, key)
	m.flag = append(m.flag, published)
	return &models.MarkTableLock{IsPublished: published}, nil
}

func windowFixture(schedules *mockScheduleReader, approvals *mockApprovalStore, locks *mockLockPublisher, at time.Time) *WindowService {
	if approvals == nil {
		approvals = &mockApprovalStore{}
	}
	if locks == nil {
		locks = &mockLockPublisher{}
	}
	return NewWindowService(schedules, approvals, locks, clock.Fixed{Instant: at}, nil, zap.NewNop())
}

func grantedRequest(kind models.ApprovalKind, until time.Time) *models.ApprovalRequest {
	return &models.ApprovalRequest{
		ID:            "req-1",
		Kind:          kind,
		RequesterID:   "staff-1",
		SubjectCode:   "CS101",
		Assessment:    models.AssessmentCIA1,
		Status:        models.StatusApproved,
		ApprovedUntil: &until,
	}
}

func TestResolvePublishNoScheduleDefaultsToAllow(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	svc := windowFixture(&mockScheduleReader{}, nil, nil, now)

	decision, err := svc.ResolvePublish(context.Background(), "2025-ODD", "CS101", models.AssessmentCIA1)

	require.NoError(t, err)
	assert.True(t, decision.MayPublish)
	assert.True(t, decision.Enabled)
	assert.True(t, decision.Open)
	assert.Equal(t, models.ReasonNoSchedule, decision.Reason)
}

func TestResolvePublishBeforeDueDateAllows(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	schedules := &mockScheduleReader{due: &models.DueSchedule{DueAt: now.Add(24 * time.Hour)}}
	svc := windowFixture(schedules, nil, nil, now)

	decision, err := svc.ResolvePublish(context.Background(), "2025-ODD", "CS101", models.AssessmentCIA1)

	require.NoError(t, err)
	assert.True(t, decision.MayPublish)
	assert.Equal(t, models.ReasonDueSchedule, decision.Reason)
}

func TestResolvePublishAtDueInstantStillAllows(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	schedules := &mockScheduleReader{due: &models.DueSchedule{DueAt: now}}
	svc := windowFixture(schedules, nil, nil, now)

	decision, err := svc.ResolvePublish(context.Background(), "2025-ODD", "CS101", models.AssessmentCIA1)

	require.NoError(t, err)
	assert.True(t, decision.MayPublish, "the due instant itself is inside the window")
}

func TestResolvePublishPastDueDeniesWithoutException(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	schedules := &mockScheduleReader{due: &models.DueSchedule{DueAt: now.Add(-time.Hour)}}
	svc := windowFixture(schedules, nil, nil, now)

	decision, err := svc.ResolvePublish(context.Background(), "2025-ODD", "CS101", models.AssessmentCIA1)

	require.NoError(t, err)
	assert.False(t, decision.MayPublish)
	assert.Equal(t, models.ReasonDueSchedule, decision.Reason)
}

func TestResolvePublishPastDueAllowsWithApprovedException(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	schedules := &mockScheduleReader{due: &models.DueSchedule{DueAt: now.Add(-time.Hour)}}
	approvals := &mockApprovalStore{bySubject: grantedRequest(models.KindPublishException, now.Add(30*time.Minute))}
	svc := windowFixture(schedules, approvals, nil, now)

	decision, err := svc.ResolvePublish(context.Background(), "2025-ODD", "CS101", models.AssessmentCIA1)

	require.NoError(t, err)
	assert.True(t, decision.MayPublish)
	assert.Equal(t, models.ReasonApprovedException, decision.Reason)
}

func TestResolvePublishExpiredExceptionDenies(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	schedules := &mockScheduleReader{due: &models.DueSchedule{DueAt: now.Add(-2 * time.Hour)}}
	approvals := &mockApprovalStore{bySubject: grantedRequest(models.KindPublishException, now.Add(-time.Minute))}
	svc := windowFixture(schedules, approvals, nil, now)

	decision, err := svc.ResolvePublish(context.Background(), "2025-ODD", "CS101", models.AssessmentCIA1)

	require.NoError(t, err)
	assert.False(t, decision.MayPublish)
}

func TestResolvePublishGlobalOverrideBeatsApproval(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	schedules := &mockScheduleReader{
		due:    &models.DueSchedule{DueAt: now.Add(-time.Hour)},
		global: &models.GlobalPublishControl{Semester: "2025-ODD", Assessment: models.AssessmentCIA1, IsOpen: false},
	}
	// A fresh approval exists, but the semester-wide override wins.
	approvals := &mockApprovalStore{bySubject: grantedRequest(models.KindPublishException, now.Add(time.Hour))}
	svc := windowFixture(schedules, approvals, nil, now)

	decision, err := svc.ResolvePublish(context.Background(), "2025-ODD", "CS101", models.AssessmentCIA1)

	require.NoError(t, err)
	assert.False(t, decision.MayPublish)
	assert.Equal(t, models.ReasonGlobalControl, decision.Reason)
}

func TestResolvePublishGlobalOpenAllowsPastDue(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	schedules := &mockScheduleReader{
		due:    &models.DueSchedule{DueAt: now.Add(-time.Hour)},
		global: &models.GlobalPublishControl{IsOpen: true},
	}
	svc := windowFixture(schedules, nil, nil, now)

	decision, err := svc.ResolvePublish(context.Background(), "2025-ODD", "CS101", models.AssessmentCIA1)

	require.NoError(t, err)
	assert.True(t, decision.MayPublish)
	assert.Equal(t, models.ReasonGlobalControl, decision.Reason)
}

func TestResolvePublishControlFlagsCarryThrough(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	schedules := &mockScheduleReader{control: &models.AssessmentControl{IsEnabled: false, IsOpen: false}}
	svc := windowFixture(schedules, nil, nil, now)

	decision, err := svc.ResolvePublish(context.Background(), "2025-ODD", "CS101", models.AssessmentCIA1)

	require.NoError(t, err)
	assert.False(t, decision.Enabled)
	assert.False(t, decision.Open)
	assert.True(t, decision.MayPublish, "mayPublish is independent of the control flags")
}

func TestPublishFlipsLockWhenAllowed(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	locks := &mockLockPublisher{}
	svc := windowFixture(&mockScheduleReader{}, nil, locks, now)

	_, err := svc.Publish(context.Background(), staffClaims("staff-1"), "2025-ODD", testLockKey())

	require.NoError(t, err)
	require.Len(t, locks.published, 1)
	assert.True(t, locks.flag[0])
}

func TestPublishClosedWindowConflicts(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	schedules := &mockScheduleReader{due: &models.DueSchedule{DueAt: now.Add(-time.Hour)}}
	locks := &mockLockPublisher{}
	svc := windowFixture(schedules, nil, locks, now)

	_, err := svc.Publish(context.Background(), staffClaims("staff-1"), "2025-ODD", testLockKey())

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPublishClosed.Code, appErrors.FromError(err).Code)
	assert.Empty(t, locks.published)
}

func TestPublishDisabledPageForbidden(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	schedules := &mockScheduleReader{control: &models.AssessmentControl{IsEnabled: false, IsOpen: true}}
	svc := windowFixture(schedules, nil, nil, now)

	_, err := svc.Publish(context.Background(), staffClaims("staff-1"), "2025-ODD", testLockKey())

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPageDisabled.Code, appErrors.FromError(err).Code)
}

func TestPublishForeignAssignmentForbidden(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	svc := windowFixture(&mockScheduleReader{}, nil, nil, now)

	_, err := svc.Publish(context.Background(), staffClaims("intruder"), "2025-ODD", testLockKey())

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestResolveEditGrantedByScopedException(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	approvals := &mockApprovalStore{byKey: map[models.ApprovalKind]*models.ApprovalRequest{
		models.KindEditException: grantedRequest(models.KindEditException, now.Add(time.Hour)),
	}}
	svc := windowFixture(&mockScheduleReader{}, approvals, nil, now)

	decision, err := svc.ResolveEdit(context.Background(), "staff-1", "2025-ODD", "CS101", models.AssessmentCIA1, models.ScopeMarkEntry)

	require.NoError(t, err)
	assert.True(t, decision.MayPublish)
	assert.Equal(t, models.ReasonApprovedException, decision.Reason)
}

func TestResolveEditDeniedWithoutException(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	svc := windowFixture(&mockScheduleReader{}, &mockApprovalStore{}, nil, now)

	decision, err := svc.ResolveEdit(context.Background(), "staff-1", "2025-ODD", "CS101", models.AssessmentCIA1, models.ScopeMarkEntry)

	require.NoError(t, err)
	assert.False(t, decision.MayPublish)
}

func TestBeginEditConsumesSingleUseGrant(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	approvals := &mockApprovalStore{byKey: map[models.ApprovalKind]*models.ApprovalRequest{
		models.KindCourseEditException: grantedRequest(models.KindCourseEditException, now.Add(time.Hour)),
	}}
	svc := windowFixture(&mockScheduleReader{}, approvals, nil, now)

	decision, err := svc.BeginEdit(context.Background(), staffClaims("staff-1"), "2025-ODD", testLockKey(), models.ScopeMarkEntry)

	require.NoError(t, err)
	assert.True(t, decision.MayPublish)
	assert.Equal(t, []string{"req-1"}, approvals.consumed)
}

func TestBeginEditDoesNotConsumeReusableGrant(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	approvals := &mockApprovalStore{byKey: map[models.ApprovalKind]*models.ApprovalRequest{
		models.KindEditException: grantedRequest(models.KindEditException, now.Add(time.Hour)),
	}}
	svc := windowFixture(&mockScheduleReader{}, approvals, nil, now)

	_, err := svc.BeginEdit(context.Background(), staffClaims("staff-1"), "2025-ODD", testLockKey(), models.ScopeMarkEntry)

	require.NoError(t, err)
	assert.Empty(t, approvals.consumed)
}

func TestIsGrantedConsumedMarkerRevokes(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	req := grantedRequest(models.KindCourseEditException, now.Add(time.Hour))
	assert.True(t, IsGranted(req, now))

	consumed := now.Add(-time.Minute)
	req.ConsumedAt = &consumed
	assert.False(t, IsGranted(req, now), "a consumed grant no longer grants even inside the window")
}

func TestIsGrantedRejectsPendingAndRejected(t *testing.T) {
	now := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	until := now.Add(time.Hour)

	pending := &models.ApprovalRequest{Status: models.StatusPending, ApprovedUntil: &until}
	rejected := &models.ApprovalRequest{Status: models.StatusRejected, ApprovedUntil: &until}

	assert.False(t, IsGranted(pending, now))
	assert.False(t, IsGranted(rejected, now))
	assert.False(t, IsGranted(nil, now))
}
