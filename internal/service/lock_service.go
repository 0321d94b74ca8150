package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/obeplatform/assessment-api/internal/models"
	"github.com/obeplatform/assessment-api/pkg/clock"
	appErrors "github.com/obeplatform/assessment-api/pkg/errors"
)

type lockRepository interface {
	FindByKey(ctx context.Context, key models.LockKey) (*models.MarkTableLock, error)
	GetOrCreate(ctx context.Context, key models.LockKey, now time.Time) (*models.MarkTableLock, error)
	Save(ctx context.Context, lock *models.MarkTableLock) error
}

type resetWriter interface {
	Create(ctx context.Context, n *models.ResetNotification) error
}

type decisionCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// LockService answers lock-status queries and applies lock mutations. Every
// path recomputes the derived fields before surfacing or persisting anything;
// expired windows take effect without any background job.
type LockService struct {
	repo     lockRepository
	resets   resetWriter
	cache    decisionCache
	resolver *LockResolver
	clock    clock.Clock
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewLockService constructs the service. cache may be nil to disable the
// read-through decision cache.
func NewLockService(repo lockRepository, resets resetWriter, cache decisionCache, resolver *LockResolver, clk clock.Clock, cacheTTL time.Duration, logger *zap.Logger) *LockService {
	if resolver == nil {
		resolver = NewLockResolver(DefaultResolverPolicy())
	}
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LockService{repo: repo, resets: resets, cache: cache, resolver: resolver, clock: clk, cacheTTL: cacheTTL, logger: logger}
}

func lockCacheKey(key models.LockKey) string {
	if key.TeachingAssignmentID != nil {
		return fmt.Sprintf("lock:ta:%s:%s", *key.TeachingAssignmentID, key.Assessment)
	}
	return fmt.Sprintf("lock:legacy:%s:%s:%s:%s:%s", key.StaffID, key.SubjectCode, key.Assessment, key.Section, key.AcademicYear)
}

// Status returns the recomputed lock state, creating the row lazily on first
// query. Staff may only read locks they own; oversight reads any.
func (s *LockService) Status(ctx context.Context, actor *models.JWTClaims, key models.LockKey) (*models.LockStatus, error) {
	if err := s.authorizeRead(actor, key); err != nil {
		return nil, err
	}

	now := s.clock.Now()

	if s.cache != nil {
		var cached models.LockStatus
		if err := s.cache.Get(ctx, lockCacheKey(key), &cached); err == nil {
			// Cached decisions carry their own window fields; re-derive for
			// the current instant so expiry is never served stale.
			lock := s.resolver.Recompute(cached.Lock, now)
			return &models.LockStatus{Lock: lock, MarkEntryOpen: lock.MarkEntryOpen(), CheckedAt: now}, nil
		}
	}

	lock, err := s.repo.GetOrCreate(ctx, key, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mark table lock")
	}

	recomputed, err := s.persistIfChanged(ctx, *lock, now)
	if err != nil {
		return nil, err
	}

	status := &models.LockStatus{Lock: recomputed, MarkEntryOpen: recomputed.MarkEntryOpen(), CheckedAt: now}
	if s.cache != nil {
		if err := s.cache.Set(ctx, lockCacheKey(key), status, s.cacheTTL); err != nil {
			s.logger.Warn("lock status cache set failed", zap.Error(err))
		}
	}
	return status, nil
}

// ConfirmMarkManager latches the mark-manager lock, marking the question and
// outcome configuration as confirmed. Only the owning staff member or
// oversight may confirm.
func (s *LockService) ConfirmMarkManager(ctx context.Context, actor *models.JWTClaims, key models.LockKey) (*models.LockStatus, error) {
	if err := s.authorizeWrite(actor, key); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	lock, err := s.repo.GetOrCreate(ctx, key, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mark table lock")
	}

	lock.MarkManagerLocked = true
	lock.MarkManagerUnlockedUntil = nil
	recomputed := s.resolver.Recompute(*lock, now)
	recomputed.UpdatedAt = now
	if err := s.repo.Save(ctx, &recomputed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save mark table lock")
	}
	s.invalidate(ctx, key)

	return &models.LockStatus{Lock: recomputed, MarkEntryOpen: recomputed.MarkEntryOpen(), CheckedAt: now}, nil
}

// SetPublished flips the published flag and recomputes. Called by the window
// service once a publish decision has been allowed.
func (s *LockService) SetPublished(ctx context.Context, key models.LockKey, published bool) (*models.MarkTableLock, error) {
	now := s.clock.Now()
	lock, err := s.repo.GetOrCreate(ctx, key, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mark table lock")
	}

	lock.IsPublished = published
	recomputed := s.resolver.Recompute(*lock, now)
	recomputed.UpdatedAt = now
	if err := s.repo.Save(ctx, &recomputed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save mark table lock")
	}
	s.invalidate(ctx, key)
	return &recomputed, nil
}

// ApplyUnblockWindow stamps a time-bounded unblock window on the lock for the
// given scope. Used when an edit exception is approved.
func (s *LockService) ApplyUnblockWindow(ctx context.Context, key models.LockKey, scope models.ApprovalScope, until time.Time) error {
	now := s.clock.Now()
	lock, err := s.repo.GetOrCreate(ctx, key, now)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mark table lock")
	}

	switch scope {
	case models.ScopeMarkManager:
		lock.MarkManagerUnlockedUntil = &until
	default:
		lock.MarkEntryUnblockedUntil = &until
	}
	recomputed := s.resolver.Recompute(*lock, now)
	recomputed.UpdatedAt = now
	if err := s.repo.Save(ctx, &recomputed); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save mark table lock")
	}
	s.invalidate(ctx, key)
	return nil
}

// Reset clears the published state and both windows, then records a one-shot
// notice for the assessment owner. Oversight only.
func (s *LockService) Reset(ctx context.Context, actor *models.JWTClaims, key models.LockKey) (*models.LockStatus, error) {
	if actor == nil || (actor.Role != models.RoleIQAC && actor.Role != models.RoleAdmin) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the oversight authority may reset an assessment")
	}

	now := s.clock.Now()
	lock, err := s.repo.GetOrCreate(ctx, key, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mark table lock")
	}

	lock.IsPublished = false
	lock.MarkManagerLocked = false
	lock.MarkEntryUnblockedUntil = nil
	lock.MarkManagerUnlockedUntil = nil
	recomputed := s.resolver.Recompute(*lock, now)
	recomputed.UpdatedAt = now
	if err := s.repo.Save(ctx, &recomputed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save mark table lock")
	}
	s.invalidate(ctx, key)

	assignmentID := lock.ID
	if lock.TeachingAssignmentID != nil {
		assignmentID = *lock.TeachingAssignmentID
	}
	notice := &models.ResetNotification{
		TeachingAssignmentID: assignmentID,
		Assessment:           key.Assessment,
		OwnerID:              lock.StaffID,
		ResetBy:              actor.UserID,
		ResetAt:              now,
	}
	if err := s.resets.Create(ctx, notice); err != nil {
		// The reset itself succeeded; the notice is best effort.
		s.logger.Error("failed to record reset notification", zap.Error(err))
	}

	return &models.LockStatus{Lock: recomputed, MarkEntryOpen: recomputed.MarkEntryOpen(), CheckedAt: now}, nil
}

func (s *LockService) persistIfChanged(ctx context.Context, lock models.MarkTableLock, now time.Time) (models.MarkTableLock, error) {
	recomputed := s.resolver.Recompute(lock, now)
	if Changed(lock, recomputed) {
		recomputed.UpdatedAt = now
		if err := s.repo.Save(ctx, &recomputed); err != nil {
			return recomputed, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save mark table lock")
		}
	}
	return recomputed, nil
}

func (s *LockService) invalidate(ctx context.Context, key models.LockKey) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, lockCacheKey(key)); err != nil {
		s.logger.Warn("lock cache invalidation failed", zap.Error(err))
	}
}

func (s *LockService) authorizeRead(actor *models.JWTClaims, key models.LockKey) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleIQAC, models.RoleAdmin, models.RoleHOD:
		return nil
	default:
		if actor.UserID != key.StaffID {
			return appErrors.Clone(appErrors.ErrForbidden, "lock belongs to another staff member")
		}
		return nil
	}
}

func (s *LockService) authorizeWrite(actor *models.JWTClaims, key models.LockKey) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleIQAC, models.RoleAdmin:
		return nil
	case models.RoleStaff:
		if actor.UserID != key.StaffID {
			return appErrors.Clone(appErrors.ErrForbidden, "lock belongs to another staff member")
		}
		return nil
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "role may not mutate mark table locks")
	}
}
