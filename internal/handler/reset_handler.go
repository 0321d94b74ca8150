package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/obeplatform/assessment-api/internal/service"
	appErrors "github.com/obeplatform/assessment-api/pkg/errors"
	"github.com/obeplatform/assessment-api/pkg/response"
)

// ResetHandler exposes the reset-notification inbox endpoints.
type ResetHandler struct {
	service *service.ResetService
}

// NewResetHandler creates a reset handler.
func NewResetHandler(svc *service.ResetService) *ResetHandler {
	return &ResetHandler{service: svc}
}

// Pending godoc
// @Summary List unread reset notifications
// @Tags IQAC
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /iqac/reset-notifications [get]
func (h *ResetHandler) Pending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	items, err := h.service.Pending(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, items, nil)
}

// Dismiss godoc
// @Summary Dismiss reset notifications
// @Description Mark the named notifications as read for the caller
// @Tags IQAC
// @Accept json
// @Produce json
// @Param payload body map[string][]string true "Notification IDs"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /iqac/reset-notifications/dismiss [post]
func (h *ResetHandler) Dismiss(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		IDs []string `json:"ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "notification ids required"))
		return
	}

	dismissed, err := h.service.Dismiss(c.Request.Context(), claims, payload.IDs)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"dismissed": dismissed}, nil)
}
