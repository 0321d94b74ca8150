package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obeplatform/assessment-api/internal/models"
	appErrors "github.com/obeplatform/assessment-api/pkg/errors"
	"github.com/obeplatform/assessment-api/pkg/response"
)

type lockService interface {
	Status(ctx context.Context, actor *models.JWTClaims, key models.LockKey) (*models.LockStatus, error)
	ConfirmMarkManager(ctx context.Context, actor *models.JWTClaims, key models.LockKey) (*models.LockStatus, error)
	Reset(ctx context.Context, actor *models.JWTClaims, key models.LockKey) (*models.LockStatus, error)
}

// LockHandler exposes the mark-table lock endpoints.
type LockHandler struct {
	service lockService
}

// NewLockHandler creates a lock handler.
func NewLockHandler(svc lockService) *LockHandler {
	return &LockHandler{service: svc}
}

// Status godoc
// @Summary Get mark-table lock status
// @Description Resolve the lock for an assignment, creating the default row lazily
// @Tags MarkTableLock
// @Produce json
// @Param assessment path string true "Assessment type"
// @Param subjectId path string true "Subject code"
// @Param semester query string false "Semester, e.g. 2025-ODD"
// @Param staffId query string false "Staff ID (defaults to caller)"
// @Param section query string false "Section"
// @Param teachingAssignmentId query string false "Teaching assignment ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /mark-table-lock/{assessment}/{subjectId} [get]
func (h *LockHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	key, err := lockKeyFromRequest(c, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	status, err := h.service.Status(c.Request.Context(), claims, key)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, status, nil)
}

// ConfirmMarkManager godoc
// @Summary Confirm mark manager configuration
// @Description Latch the mark-manager lock for an assignment
// @Tags MarkTableLock
// @Produce json
// @Param assessment path string true "Assessment type"
// @Param subjectId path string true "Subject code"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /mark-table-lock/{assessment}/{subjectId}/confirm-mark-manager [post]
func (h *LockHandler) ConfirmMarkManager(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	key, err := lockKeyFromRequest(c, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	status, err := h.service.ConfirmMarkManager(c.Request.Context(), claims, key)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, status, nil)
}

// Reset godoc
// @Summary Reset a published assignment
// @Description Clear the published flag and relock the assignment; records a reset notification for the owner
// @Tags IQAC
// @Produce json
// @Param assessment path string true "Assessment type"
// @Param subjectId path string true "Subject code"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /iqac/reset/{assessment}/{subjectId} [post]
func (h *LockHandler) Reset(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	key, err := lockKeyFromRequest(c, claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	status, err := h.service.Reset(c.Request.Context(), claims, key)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, status, nil)
}
