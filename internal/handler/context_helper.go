package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/obeplatform/assessment-api/internal/middleware"
	"github.com/obeplatform/assessment-api/internal/models"
	appErrors "github.com/obeplatform/assessment-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// lockKeyFromRequest assembles the lock natural key from the route and query
// parameters. StaffID falls back to the caller when not supplied, so staff
// never need to name themselves.
func lockKeyFromRequest(c *gin.Context, claims *models.JWTClaims) (models.LockKey, error) {
	assessment, err := models.ParseAssessmentType(c.Param("assessment"))
	if err != nil {
		return models.LockKey{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment type")
	}

	key := models.LockKey{
		StaffID:      strings.TrimSpace(c.Query("staffId")),
		SubjectCode:  c.Param("subjectId"),
		Assessment:   assessment,
		Section:      strings.TrimSpace(c.Query("section")),
		AcademicYear: strings.TrimSpace(c.Query("semester")),
	}
	if taID := strings.TrimSpace(c.Query("teachingAssignmentId")); taID != "" {
		key.TeachingAssignmentID = &taID
	}
	if key.StaffID == "" && claims != nil {
		key.StaffID = claims.UserID
	}
	if key.SubjectCode == "" {
		return models.LockKey{}, appErrors.Clone(appErrors.ErrValidation, "subject is required")
	}
	if key.TeachingAssignmentID == nil && key.AcademicYear == "" {
		return models.LockKey{}, appErrors.Clone(appErrors.ErrValidation, "semester is required")
	}
	return key, nil
}
