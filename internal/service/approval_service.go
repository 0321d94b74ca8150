package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/obeplatform/assessment-api/internal/models"
	"github.com/obeplatform/assessment-api/pkg/clock"
	appErrors "github.com/obeplatform/assessment-api/pkg/errors"
)

type approvalRepository interface {
	Create(ctx context.Context, req *models.ApprovalRequest) error
	FindByID(ctx context.Context, id string) (*models.ApprovalRequest, error)
	LatestForKey(ctx context.Context, key models.ApprovalKey) (*models.ApprovalRequest, error)
	ListPending(ctx context.Context, kind models.ApprovalKind) ([]models.ApprovalRequest, error)
	CountPending(ctx context.Context, kind models.ApprovalKind) (int, error)
	ListDepartmentPending(ctx context.Context, reviewerID string) ([]models.ApprovalRequest, error)
	ListHistory(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, int, error)
	Review(ctx context.Context, id string, status models.ApprovalStatus, approvedUntil *time.Time, reviewedBy string, reviewedAt time.Time) (bool, error)
	ReviewDepartment(ctx context.Context, id string, approved bool, reviewedBy string, reviewedAt time.Time) (bool, error)
	MarkConsumed(ctx context.Context, id string, consumedAt time.Time) error
}

type outboxEnqueuer interface {
	Enqueue(ctx context.Context, entry *models.ApprovalOutbox) error
}

type lockWindowApplier interface {
	ApplyUnblockWindow(ctx context.Context, key models.LockKey, scope models.ApprovalScope, until time.Time) error
}

type decisionNotifier interface {
	DispatchDecision(req models.ApprovalRequest)
}

// RequestPolicy decides whether a new request may be created for a key.
// The default policy always allows: re-requesting is unbounded by design,
// but deployments may inject a rate limiter here.
type RequestPolicy interface {
	AllowCreate(ctx context.Context, key models.ApprovalKey) error
}

type allowAllPolicy struct{}

func (allowAllPolicy) AllowCreate(context.Context, models.ApprovalKey) error { return nil }

// AllowAllRequests is the default RequestPolicy.
func AllowAllRequests() RequestPolicy { return allowAllPolicy{} }

// ApprovalLimits bounds the reviewer-granted window.
type ApprovalLimits struct {
	MinWindowMinutes int
	MaxWindowMinutes int
}

// DefaultApprovalLimits returns the production clamp bounds.
func DefaultApprovalLimits() ApprovalLimits {
	return ApprovalLimits{MinWindowMinutes: 5, MaxWindowMinutes: 1440}
}

// CreateApprovalRequest is the payload for new exception requests.
type CreateApprovalRequest struct {
	Kind                 models.ApprovalKind   `json:"kind" validate:"required"`
	SubjectCode          string                `json:"subject_code" validate:"required"`
	Assessment           models.AssessmentType `json:"assessment" validate:"required"`
	Scope                *models.ApprovalScope `json:"scope,omitempty"`
	Section              string                `json:"section"`
	Semester             string                `json:"semester" validate:"required"`
	Reason               string                `json:"reason" validate:"required"`
	DepartmentReviewerID *string               `json:"department_reviewer_id,omitempty"`
}

// ReviewRequest carries the reviewer's decision parameters.
type ReviewRequest struct {
	WindowMinutes int `json:"window_minutes"`
}

// ApprovalService runs the exception-request state machine for every kind:
// publish exceptions, edit exceptions and the mirrored special-course
// variant share one implementation parameterized by kind.
type ApprovalService struct {
	repo     approvalRepository
	outbox   outboxEnqueuer
	locks    lockWindowApplier
	notifier decisionNotifier
	policy   RequestPolicy
	limits   ApprovalLimits

	validator *validator.Validate
	clock     clock.Clock
	logger    *zap.Logger
}

// NewApprovalService constructs the service.
func NewApprovalService(repo approvalRepository, outbox outboxEnqueuer, locks lockWindowApplier, notifier decisionNotifier, policy RequestPolicy, limits ApprovalLimits, validate *validator.Validate, clk clock.Clock, logger *zap.Logger) *ApprovalService {
	if policy == nil {
		policy = AllowAllRequests()
	}
	if limits.MinWindowMinutes <= 0 {
		limits.MinWindowMinutes = DefaultApprovalLimits().MinWindowMinutes
	}
	if limits.MaxWindowMinutes <= 0 {
		limits.MaxWindowMinutes = DefaultApprovalLimits().MaxWindowMinutes
	}
	if validate == nil {
		validate = validator.New()
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		repo: repo, outbox: outbox, locks: locks, notifier: notifier,
		policy: policy, limits: limits, validator: validate, clock: clk, logger: logger,
	}
}

// Create files a new request. Creation always succeeds under the default
// policy; duplicate pending requests for the same key are allowed and only
// the newest row is authoritative for current access.
func (s *ApprovalService) Create(ctx context.Context, actor *models.JWTClaims, req CreateApprovalRequest) (*models.ApprovalRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval request payload")
	}
	if !req.Assessment.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown assessment type")
	}
	spec := models.KindSpec(req.Kind)
	if req.Kind == models.KindPublishException {
		if req.Scope != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "publish exceptions do not carry a scope")
		}
	} else if req.Scope == nil {
		// Edit kinds always target a lock surface; a request without one
		// would be approvable yet unlock nothing.
		scope := models.ScopeMarkEntry
		req.Scope = &scope
	}

	record := &models.ApprovalRequest{
		Kind:        req.Kind,
		RequesterID: actor.UserID,
		SubjectCode: req.SubjectCode,
		Assessment:  req.Assessment,
		Scope:       req.Scope,
		Section:     req.Section,
		Semester:    req.Semester,
		Reason:      req.Reason,
		Status:      models.StatusPending,
		RequestedAt: s.clock.Now(),
		// Requests without a departmental reviewer are immediately visible
		// to oversight, matching rows that predate the sub-chain.
		DepartmentApproved: true,
	}
	if spec.RequiresDepartment && req.DepartmentReviewerID != nil {
		record.DepartmentReviewerID = req.DepartmentReviewerID
		record.DepartmentApproved = false
	}

	if err := s.policy.AllowCreate(ctx, record.Key()); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "request creation denied by policy")
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create approval request")
	}

	s.mirror(ctx, record)
	return record, nil
}

// Approve transitions PENDING to APPROVED with a clamped validity window and
// applies the granted unblock window to the lock for edit kinds. Terminal:
// re-approving a reviewed request conflicts instead of reopening it.
func (s *ApprovalService) Approve(ctx context.Context, actor *models.JWTClaims, id string, review ReviewRequest) (*models.ApprovalRequest, error) {
	req, err := s.loadForReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	minutes := clampWindowMinutes(review.WindowMinutes, s.limits)
	until := now.Add(time.Duration(minutes) * time.Minute)

	applied, err := s.repo.Review(ctx, id, models.StatusApproved, &until, actor.UserID, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve request")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request has already been reviewed")
	}

	req.Status = models.StatusApproved
	req.ApprovedUntil = &until
	req.ReviewedBy = &actor.UserID
	req.ReviewedAt = &now
	req.ConsumedAt = nil

	if req.Kind != models.KindPublishException && req.Scope != nil {
		key := models.LockKey{
			StaffID:      req.RequesterID,
			SubjectCode:  req.SubjectCode,
			Assessment:   req.Assessment,
			Section:      req.Section,
			AcademicYear: req.Semester,
		}
		if err := s.locks.ApplyUnblockWindow(ctx, key, *req.Scope, until); err != nil {
			s.logger.Error("failed to apply unblock window", zap.String("request", id), zap.Error(err))
		}
	}

	s.mirror(ctx, req)
	s.notify(req)
	return req, nil
}

// Reject transitions PENDING to REJECTED, clearing any validity window.
func (s *ApprovalService) Reject(ctx context.Context, actor *models.JWTClaims, id string) (*models.ApprovalRequest, error) {
	req, err := s.loadForReview(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	applied, err := s.repo.Review(ctx, id, models.StatusRejected, nil, actor.UserID, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject request")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request has already been reviewed")
	}

	req.Status = models.StatusRejected
	req.ApprovedUntil = nil
	req.ReviewedBy = &actor.UserID
	req.ReviewedAt = &now

	s.mirror(ctx, req)
	s.notify(req)
	return req, nil
}

// DepartmentReview records the departmental pre-approval outcome. Only the
// assigned reviewer may act; the request keeps its original requested_at so
// approved rows surface to oversight in their original order.
func (s *ApprovalService) DepartmentReview(ctx context.Context, actor *models.JWTClaims, id string, approved bool) (*models.ApprovalRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "approval request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval request")
	}
	if req.DepartmentReviewerID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "request has no departmental reviewer")
	}
	if actor.Role != models.RoleAdmin && *req.DepartmentReviewerID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request is assigned to another departmental reviewer")
	}

	now := s.clock.Now()
	applied, err := s.repo.ReviewDepartment(ctx, id, approved, actor.UserID, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record department review")
	}
	if !applied {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request is no longer pending")
	}

	req.DepartmentApproved = approved
	req.DepartmentReviewedBy = &actor.UserID
	req.DepartmentReviewedAt = &now
	return req, nil
}

// Pending lists requests awaiting oversight review for a kind.
func (s *ApprovalService) Pending(ctx context.Context, kind models.ApprovalKind) ([]models.ApprovalRequest, error) {
	reqs, err := s.repo.ListPending(ctx, kind)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending requests")
	}
	return reqs, nil
}

// PendingCount counts requests awaiting oversight review for a kind.
func (s *ApprovalService) PendingCount(ctx context.Context, kind models.ApprovalKind) (int, error) {
	count, err := s.repo.CountPending(ctx, kind)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending requests")
	}
	return count, nil
}

// DepartmentPending lists rows awaiting the actor's pre-approval.
func (s *ApprovalService) DepartmentPending(ctx context.Context, actor *models.JWTClaims) ([]models.ApprovalRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	reqs, err := s.repo.ListDepartmentPending(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list department queue")
	}
	return reqs, nil
}

// History lists reviewed requests with pagination.
func (s *ApprovalService) History(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, *models.Pagination, error) {
	reqs, total, err := s.repo.ListHistory(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list request history")
	}
	var pagination *models.Pagination
	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		pagination = &models.Pagination{Page: page, PageSize: filter.PageSize, TotalCount: total}
	}
	return reqs, pagination, nil
}

// Consume spends a single-use grant. Only kinds configured as single-use can
// be consumed; the grant stops being effective immediately even though
// approved_until has not passed.
func (s *ApprovalService) Consume(ctx context.Context, id string) error {
	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "approval request not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval request")
	}
	if !models.KindSpec(req.Kind).SingleUse {
		return appErrors.Clone(appErrors.ErrValidation, "request kind is not single-use")
	}
	if err := s.repo.MarkConsumed(ctx, id, s.clock.Now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consume request")
	}
	return nil
}

func (s *ApprovalService) loadForReview(ctx context.Context, actor *models.JWTClaims, id string) (*models.ApprovalRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleIQAC && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the oversight authority reviews requests")
	}

	req, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "approval request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approval request")
	}
	if req.DepartmentReviewerID != nil && !req.DepartmentApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "request is awaiting departmental pre-approval")
	}
	return req, nil
}

// mirror enqueues a durable propagation record for mirrored kinds. The drain
// is at-least-once and the target upsert idempotent, so enqueue failures are
// logged and reconciled on the next status change rather than failing the
// triggering action.
func (s *ApprovalService) mirror(ctx context.Context, req *models.ApprovalRequest) {
	if !models.KindSpec(req.Kind).Mirrored || s.outbox == nil {
		return
	}
	entry := &models.ApprovalOutbox{
		RequestID:   req.ID,
		Kind:        req.Kind,
		RequesterID: req.RequesterID,
		SubjectCode: req.SubjectCode,
		Assessment:  req.Assessment,
		Scope:       req.Scope,
		Status:      req.Status,
	}
	if err := s.outbox.Enqueue(ctx, entry); err != nil {
		s.logger.Error("failed to enqueue mirror record", zap.String("request", req.ID), zap.Error(err))
	}
}

func (s *ApprovalService) notify(req *models.ApprovalRequest) {
	if s.notifier != nil {
		s.notifier.DispatchDecision(*req)
	}
}

func clampWindowMinutes(minutes int, limits ApprovalLimits) int {
	if minutes < limits.MinWindowMinutes {
		return limits.MinWindowMinutes
	}
	if minutes > limits.MaxWindowMinutes {
		return limits.MaxWindowMinutes
	}
	return minutes
}
