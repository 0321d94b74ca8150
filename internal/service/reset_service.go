package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/obeplatform/assessment-api/internal/models"
	"github.com/obeplatform/assessment-api/pkg/clock"
	appErrors "github.com/obeplatform/assessment-api/pkg/errors"
)

type resetRepository interface {
	ListUnread(ctx context.Context, ownerID string) ([]models.ResetNotification, error)
	Dismiss(ctx context.Context, ownerID string, ids []string, readAt time.Time) (int, error)
}

// ResetService serves the one-shot reset notices shown to assessment owners.
type ResetService struct {
	repo   resetRepository
	clock  clock.Clock
	logger *zap.Logger
}

// NewResetService constructs the service.
func NewResetService(repo resetRepository, clk clock.Clock, logger *zap.Logger) *ResetService {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResetService{repo: repo, clock: clk, logger: logger}
}

// Pending returns the actor's unread reset notices.
func (s *ResetService) Pending(ctx context.Context, actor *models.JWTClaims) ([]models.ResetNotification, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	notices, err := s.repo.ListUnread(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reset notifications")
	}
	return notices, nil
}

// Dismiss marks the given notices read. Ids owned by other users are ignored.
func (s *ResetService) Dismiss(ctx context.Context, actor *models.JWTClaims, ids []string) (int, error) {
	if actor == nil {
		return 0, appErrors.ErrUnauthorized
	}
	if len(ids) == 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "no notification ids supplied")
	}
	dismissed, err := s.repo.Dismiss(ctx, actor.UserID, ids, s.clock.Now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to dismiss reset notifications")
	}
	return dismissed, nil
}
