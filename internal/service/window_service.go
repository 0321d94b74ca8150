package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/obeplatform/assessment-api/internal/models"
	"github.com/obeplatform/assessment-api/pkg/clock"
	appErrors "github.com/obeplatform/assessment-api/pkg/errors"
)

type scheduleReader interface {
	FindDueSchedule(ctx context.Context, semester, subjectCode string, assessment models.AssessmentType) (*models.DueSchedule, error)
	FindControl(ctx context.Context, semester, subjectCode string, assessment models.AssessmentType) (*models.AssessmentControl, error)
	FindGlobalControl(ctx context.Context, semester string, assessment models.AssessmentType) (*models.GlobalPublishControl, error)
}

type approvalStore interface {
	LatestForSubject(ctx context.Context, kind models.ApprovalKind, subjectCode string, assessment models.AssessmentType) (*models.ApprovalRequest, error)
	LatestForKey(ctx context.Context, key models.ApprovalKey) (*models.ApprovalRequest, error)
	MarkConsumed(ctx context.Context, id string, consumedAt time.Time) error
}

type lockPublisher interface {
	SetPublished(ctx context.Context, key models.LockKey, published bool) (*models.MarkTableLock, error)
}

// WindowService combines the global override, the due-date schedule and the
// enable/open control flags into a single publish (or edit) decision, and
// executes publishes once the decision allows them.
type WindowService struct {
	schedules scheduleReader
	approvals approvalStore
	locks     lockPublisher
	clock     clock.Clock
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewWindowService constructs the service.
func NewWindowService(schedules scheduleReader, approvals approvalStore, locks lockPublisher, clk clock.Clock, metrics *MetricsService, logger *zap.Logger) *WindowService {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WindowService{schedules: schedules, approvals: approvals, locks: locks, clock: clk, metrics: metrics, logger: logger}
}

// ResolvePublish evaluates the publish decision for (semester, subject,
// assessment) at a single captured instant. Precedence, highest first:
// global override, then due schedule plus approved exception, then
// unrestricted when nothing is configured.
func (s *WindowService) ResolvePublish(ctx context.Context, semester, subjectCode string, assessment models.AssessmentType) (*models.WindowDecision, error) {
	now := s.clock.Now()
	decision := &models.WindowDecision{Enabled: true, Open: true, CheckedAt: now}

	control, err := s.schedules.FindControl(ctx, semester, subjectCode, assessment)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment control")
	}
	if control != nil {
		decision.Enabled = control.IsEnabled
		decision.Open = control.IsOpen
	}

	global, err := s.schedules.FindGlobalControl(ctx, semester, assessment)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load global publish control")
	}
	if global != nil {
		decision.MayPublish = global.IsOpen
		decision.Reason = models.ReasonGlobalControl
		s.observe(decision)
		return decision, nil
	}

	due, err := s.schedules.FindDueSchedule(ctx, semester, subjectCode, assessment)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load due schedule")
	}
	if due == nil {
		// No schedule configured: unrestricted by due date.
		decision.MayPublish = true
		decision.Reason = models.ReasonNoSchedule
		s.observe(decision)
		return decision, nil
	}

	if !now.After(due.DueAt) {
		decision.MayPublish = true
		decision.Reason = models.ReasonDueSchedule
		s.observe(decision)
		return decision, nil
	}

	latest, err := s.approvals.LatestForSubject(ctx, models.KindPublishException, subjectCode, assessment)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load publish exceptions")
	}
	if latest != nil && IsGranted(latest, now) {
		decision.MayPublish = true
		decision.Reason = models.ReasonApprovedException
		s.observe(decision)
		return decision, nil
	}

	decision.MayPublish = false
	decision.Reason = models.ReasonDueSchedule
	s.observe(decision)
	return decision, nil
}

// ResolveEdit evaluates the edit decision for a staff member and scope. The
// layering matches ResolvePublish, with the approved exception consulted per
// (requester, subject, assessment, scope).
func (s *WindowService) ResolveEdit(ctx context.Context, requesterID, semester, subjectCode string, assessment models.AssessmentType, scope models.ApprovalScope) (*models.WindowDecision, error) {
	now := s.clock.Now()
	decision := &models.WindowDecision{Enabled: true, Open: true, CheckedAt: now}

	control, err := s.schedules.FindControl(ctx, semester, subjectCode, assessment)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assessment control")
	}
	if control != nil {
		decision.Enabled = control.IsEnabled
		decision.Open = control.IsOpen
	}

	global, err := s.schedules.FindGlobalControl(ctx, semester, assessment)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load global publish control")
	}
	if global != nil {
		decision.MayPublish = global.IsOpen
		decision.Reason = models.ReasonGlobalControl
		return decision, nil
	}

	latest, err := s.grantedEditException(ctx, requesterID, subjectCode, assessment, scope, now)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		decision.MayPublish = true
		decision.Reason = models.ReasonApprovedException
		return decision, nil
	}

	decision.MayPublish = false
	decision.Reason = models.ReasonNoSchedule
	return decision, nil
}

// grantedEditException returns the newest currently-granting edit exception
// for the requester, checking the plain kind first and the special-course
// variant second.
func (s *WindowService) grantedEditException(ctx context.Context, requesterID, subjectCode string, assessment models.AssessmentType, scope models.ApprovalScope, now time.Time) (*models.ApprovalRequest, error) {
	for _, kind := range []models.ApprovalKind{models.KindEditException, models.KindCourseEditException} {
		key := models.ApprovalKey{
			Kind:        kind,
			RequesterID: requesterID,
			SubjectCode: subjectCode,
			Assessment:  assessment,
			Scope:       &scope,
		}
		latest, err := s.approvals.LatestForKey(ctx, key)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load edit exceptions")
		}
		if latest != nil && IsGranted(latest, now) {
			return latest, nil
		}
	}
	return nil, nil
}

// Publish performs the publish action when the resolved decision allows it.
// The owning staff member or oversight may publish.
func (s *WindowService) Publish(ctx context.Context, actor *models.JWTClaims, semester string, key models.LockKey) (*models.WindowDecision, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStaff && actor.UserID != key.StaffID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another staff member")
	}
	if actor.Role == models.RoleHOD {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "departmental reviewers do not publish")
	}

	decision, err := s.ResolvePublish(ctx, semester, key.SubjectCode, key.Assessment)
	if err != nil {
		return nil, err
	}
	if !decision.Enabled {
		return decision, appErrors.Clone(appErrors.ErrPageDisabled, "")
	}
	if !decision.MayPublish || !decision.Open {
		return decision, appErrors.Clone(appErrors.ErrPublishClosed, "publish window is closed: "+decision.Reason)
	}

	if _, err := s.locks.SetPublished(ctx, key, true); err != nil {
		return decision, err
	}
	s.logger.Info("assessment published",
		zap.String("subject", key.SubjectCode),
		zap.String("assessment", string(key.Assessment)),
		zap.String("by", actor.UserID),
	)
	return decision, nil
}

// BeginEdit checks the edit decision for the actor's assignment and, when
// access rides on a single-use grant, consumes the grant so further edits
// need a fresh approval.
func (s *WindowService) BeginEdit(ctx context.Context, actor *models.JWTClaims, semester string, key models.LockKey, scope models.ApprovalScope) (*models.WindowDecision, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role == models.RoleStaff && actor.UserID != key.StaffID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "assignment belongs to another staff member")
	}
	if actor.Role == models.RoleHOD {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "departmental reviewers do not edit marks")
	}

	decision, err := s.ResolveEdit(ctx, key.StaffID, semester, key.SubjectCode, key.Assessment, scope)
	if err != nil {
		return nil, err
	}
	if !decision.Enabled {
		return decision, appErrors.Clone(appErrors.ErrPageDisabled, "")
	}
	if !decision.MayPublish || !decision.Open {
		return decision, appErrors.Clone(appErrors.ErrPublishClosed, "edit window is closed: "+decision.Reason)
	}

	if decision.Reason == models.ReasonApprovedException {
		latest, err := s.grantedEditException(ctx, key.StaffID, key.SubjectCode, key.Assessment, scope, decision.CheckedAt)
		if err != nil {
			return nil, err
		}
		if latest != nil && models.KindSpec(latest.Kind).SingleUse {
			if err := s.approvals.MarkConsumed(ctx, latest.ID, decision.CheckedAt); err != nil {
				s.logger.Warn("failed to consume single-use grant", zap.String("request", latest.ID), zap.Error(err))
			}
		}
	}

	return decision, nil
}

func (s *WindowService) observe(decision *models.WindowDecision) {
	if s.metrics != nil {
		s.metrics.ObservePublishDecision(decision.Reason, decision.MayPublish)
	}
}

// IsGranted reports whether a request currently grants access: approved, not
// consumed, and inside the approval window at the given instant.
func IsGranted(req *models.ApprovalRequest, now time.Time) bool {
	if req == nil || req.Status != models.StatusApproved {
		return false
	}
	if req.ConsumedAt != nil {
		return false
	}
	return req.ApprovedUntil != nil && now.Before(*req.ApprovedUntil)
}
