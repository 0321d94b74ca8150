package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/obeplatform/assessment-api/internal/models"
	"github.com/obeplatform/assessment-api/internal/service"
	appErrors "github.com/obeplatform/assessment-api/pkg/errors"
	"github.com/obeplatform/assessment-api/pkg/response"
)

type approvalService interface {
	Create(ctx context.Context, actor *models.JWTClaims, req service.CreateApprovalRequest) (*models.ApprovalRequest, error)
	Approve(ctx context.Context, actor *models.JWTClaims, id string, review service.ReviewRequest) (*models.ApprovalRequest, error)
	Reject(ctx context.Context, actor *models.JWTClaims, id string) (*models.ApprovalRequest, error)
	DepartmentReview(ctx context.Context, actor *models.JWTClaims, id string, approved bool) (*models.ApprovalRequest, error)
	Pending(ctx context.Context, kind models.ApprovalKind) ([]models.ApprovalRequest, error)
	PendingCount(ctx context.Context, kind models.ApprovalKind) (int, error)
	DepartmentPending(ctx context.Context, actor *models.JWTClaims) ([]models.ApprovalRequest, error)
	History(ctx context.Context, filter models.ApprovalFilter) ([]models.ApprovalRequest, *models.Pagination, error)
}

// ApprovalHandler exposes the exception-request workflow endpoints. The same
// handler serves the publish and edit collections; routes bind the kind.
type ApprovalHandler struct {
	service approvalService
}

// NewApprovalHandler creates an approval handler.
func NewApprovalHandler(svc approvalService) *ApprovalHandler {
	return &ApprovalHandler{service: svc}
}

// CreatePublish godoc
// @Summary File a publish exception request
// @Tags Approvals
// @Accept json
// @Produce json
// @Param payload body service.CreateApprovalRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /publish-request [post]
func (h *ApprovalHandler) CreatePublish(c *gin.Context) {
	h.create(c, models.KindPublishException)
}

// CreateEdit godoc
// @Summary File an edit exception request
// @Description Kind may be EDIT_EXCEPTION (default) or COURSE_EDIT_EXCEPTION
// @Tags Approvals
// @Accept json
// @Produce json
// @Param payload body service.CreateApprovalRequest true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /edit-request [post]
func (h *ApprovalHandler) CreateEdit(c *gin.Context) {
	h.create(c, models.KindEditException, models.KindCourseEditException)
}

func (h *ApprovalHandler) create(c *gin.Context, allowed ...models.ApprovalKind) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}
	if req.Kind == "" {
		req.Kind = allowed[0]
	}
	if !kindAllowed(req.Kind, allowed) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "request kind does not match this endpoint"))
		return
	}

	created, err := h.service.Create(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, created)
}

// Pending returns a handler listing pending requests for a kind. The edit
// collection accepts a kind query override for the special-course variant.
func (h *ApprovalHandler) Pending(defaultKind models.ApprovalKind, allowed ...models.ApprovalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, err := kindFromQuery(c, defaultKind, allowed)
		if err != nil {
			response.Error(c, err)
			return
		}

		items, err := h.service.Pending(c.Request.Context(), kind)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.JSON(c, http.StatusOK, items, nil)
	}
}

// PendingCount returns a handler counting pending requests for a kind.
func (h *ApprovalHandler) PendingCount(defaultKind models.ApprovalKind, allowed ...models.ApprovalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, err := kindFromQuery(c, defaultKind, allowed)
		if err != nil {
			response.Error(c, err)
			return
		}

		count, err := h.service.PendingCount(c.Request.Context(), kind)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.JSON(c, http.StatusOK, gin.H{"count": count}, nil)
	}
}

// History returns a handler listing reviewed requests for a kind.
func (h *ApprovalHandler) History(defaultKind models.ApprovalKind, allowed ...models.ApprovalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		kind, err := kindFromQuery(c, defaultKind, allowed)
		if err != nil {
			response.Error(c, err)
			return
		}

		filter := models.ApprovalFilter{
			Kind:        kind,
			RequesterID: c.Query("requesterId"),
			SubjectCode: c.Query("subject"),
			Semester:    c.Query("semester"),
		}
		if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
			filter.Page = page
		}
		if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
			filter.PageSize = size
		}

		items, pagination, err := h.service.History(c.Request.Context(), filter)
		if err != nil {
			response.Error(c, err)
			return
		}

		response.JSON(c, http.StatusOK, items, pagination)
	}
}

// Approve godoc
// @Summary Approve a pending request
// @Description Grant the request for a bounded window in minutes
// @Tags Approvals
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body service.ReviewRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /publish-requests/{id}/approve [post]
func (h *ApprovalHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var review service.ReviewRequest
	if err := c.ShouldBindJSON(&review); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	updated, err := h.service.Approve(c.Request.Context(), claims, c.Param("id"), review)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, updated, nil)
}

// Reject godoc
// @Summary Reject a pending request
// @Tags Approvals
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /publish-requests/{id}/reject [post]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	updated, err := h.service.Reject(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, updated, nil)
}

// DepartmentPending godoc
// @Summary List requests awaiting departmental pre-approval
// @Tags Approvals
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /edit-requests/department/pending [get]
func (h *ApprovalHandler) DepartmentPending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	items, err := h.service.DepartmentPending(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, items, nil)
}

// DepartmentApprove godoc
// @Summary Departmental pre-approval
// @Tags Approvals
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /edit-requests/{id}/department-approve [post]
func (h *ApprovalHandler) DepartmentApprove(c *gin.Context) {
	h.departmentReview(c, true)
}

// DepartmentReject godoc
// @Summary Departmental pre-rejection
// @Tags Approvals
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /edit-requests/{id}/department-reject [post]
func (h *ApprovalHandler) DepartmentReject(c *gin.Context) {
	h.departmentReview(c, false)
}

func (h *ApprovalHandler) departmentReview(c *gin.Context, approved bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	updated, err := h.service.DepartmentReview(c.Request.Context(), claims, c.Param("id"), approved)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, updated, nil)
}

func kindFromQuery(c *gin.Context, defaultKind models.ApprovalKind, allowed []models.ApprovalKind) (models.ApprovalKind, error) {
	raw := c.Query("kind")
	if raw == "" {
		return defaultKind, nil
	}
	kind := models.ApprovalKind(raw)
	if !kindAllowed(kind, append([]models.ApprovalKind{defaultKind}, allowed...)) {
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported request kind")
	}
	return kind, nil
}

func kindAllowed(kind models.ApprovalKind, allowed []models.ApprovalKind) bool {
	for _, a := range allowed {
		if a == kind {
			return true
		}
	}
	return false
}
