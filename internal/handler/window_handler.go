package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obeplatform/assessment-api/internal/models"
	"github.com/obeplatform/assessment-api/internal/service"
	appErrors "github.com/obeplatform/assessment-api/pkg/errors"
	"github.com/obeplatform/assessment-api/pkg/response"
)

// WindowHandler exposes publish-window and edit-window endpoints.
type WindowHandler struct {
	service *service.WindowService
}

// NewWindowHandler creates a window handler.
func NewWindowHandler(svc *service.WindowService) *WindowHandler {
	return &WindowHandler{service: svc}
}

// PublishStatus godoc
// @Summary Resolve the publish window
// @Description Combine global override, due schedule and control flags into one decision
// @Tags PublishWindow
// @Produce json
// @Param assessment path string true "Assessment type"
// @Param subjectId path string true "Subject code"
// @Param semester query string true "Semester, e.g. 2025-ODD"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /publish-window/{assessment}/{subjectId} [get]
func (h *WindowHandler) PublishStatus(c *gin.Context) {
	assessment, err := models.ParseAssessmentType(c.Param("assessment"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment type"))
		return
	}
	semester := c.Query("semester")
	if semester == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "semester is required"))
		return
	}

	decision, err := h.service.ResolvePublish(c.Request.Context(), semester, c.Param("subjectId"), assessment)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, decision, nil)
}

// Publish godoc
// @Summary Publish an assessment
// @Description Publish when the resolved window allows it
// @Tags PublishWindow
// @Produce json
// @Param assessment path string true "Assessment type"
// @Param subjectId path string true "Subject code"
// @Param semester query string true "Semester"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /publish-window/{assessment}/{subjectId} [post]
func (h *WindowHandler) Publish(c *gin.Context) {
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

	decision, err := h.service.Publish(c.Request.Context(), claims, key.AcademicYear, key)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, decision, nil)
}

// EditStatus godoc
// @Summary Resolve the edit window
// @Description Resolve edit access for the caller's assignment and scope
// @Tags EditWindow
// @Produce json
// @Param assessment path string true "Assessment type"
// @Param subjectId path string true "Subject code"
// @Param semester query string true "Semester"
// @Param scope query string false "MARK_ENTRY or MARK_MANAGER"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /edit-window/{assessment}/{subjectId} [get]
func (h *WindowHandler) EditStatus(c *gin.Context) {
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
	scope, err := scopeFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	decision, err := h.service.ResolveEdit(c.Request.Context(), key.StaffID, key.AcademicYear, key.SubjectCode, key.Assessment, scope)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, decision, nil)
}

// BeginEdit godoc
// @Summary Begin an edit session
// @Description Check edit access and consume single-use grants
// @Tags EditWindow
// @Produce json
// @Param assessment path string true "Assessment type"
// @Param subjectId path string true "Subject code"
// @Param semester query string true "Semester"
// @Param scope query string false "MARK_ENTRY or MARK_MANAGER"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /edit-window/{assessment}/{subjectId} [post]
func (h *WindowHandler) BeginEdit(c *gin.Context) {
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
	scope, err := scopeFromQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	decision, err := h.service.BeginEdit(c.Request.Context(), claims, key.AcademicYear, key, scope)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, decision, nil)
}

func scopeFromQuery(c *gin.Context) (models.ApprovalScope, error) {
	raw := c.DefaultQuery("scope", string(models.ScopeMarkEntry))
	scope := models.ApprovalScope(raw)
	switch scope {
	case models.ScopeMarkEntry, models.ScopeMarkManager:
		return scope, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "scope must be MARK_ENTRY or MARK_MANAGER")
	}
}
