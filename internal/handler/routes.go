package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/obeplatform/assessment-api/internal/middleware"
	"github.com/obeplatform/assessment-api/internal/models"
	"github.com/obeplatform/assessment-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth      *AuthHandler
	Locks     *LockHandler
	Windows   *WindowHandler
	Approvals *ApprovalHandler
	Resets    *ResetHandler
}

// Register mounts the API surface under the given prefix. Authorization is
// layered: RBAC gates the role class per route group, ownership checks live
// in the services.
func Register(r *gin.Engine, prefix string, h Handlers, authSvc *service.AuthService) {
	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), h.Auth.Logout)
		auth.GET("/me", middleware.JWT(authSvc), h.Auth.Me)
	}

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	locks := authed.Group("/mark-table-lock")
	{
		locks.GET("/:assessment/:subjectId", h.Locks.Status)
		locks.POST("/:assessment/:subjectId/confirm-mark-manager",
			middleware.RequireRoles(models.RoleStaff, models.RoleIQAC, models.RoleAdmin),
			h.Locks.ConfirmMarkManager)
	}

	windows := authed.Group("")
	{
		windows.GET("/publish-window/:assessment/:subjectId", h.Windows.PublishStatus)
		windows.POST("/publish-window/:assessment/:subjectId",
			middleware.RequireRoles(models.RoleStaff, models.RoleIQAC, models.RoleAdmin),
			h.Windows.Publish)
		windows.GET("/edit-window/:assessment/:subjectId", h.Windows.EditStatus)
		windows.POST("/edit-window/:assessment/:subjectId",
			middleware.RequireRoles(models.RoleStaff, models.RoleIQAC, models.RoleAdmin),
			h.Windows.BeginEdit)
	}

	requester := middleware.RequireRoles(models.RoleStaff, models.RoleIQAC, models.RoleAdmin)
	reviewer := middleware.RequireRoles(models.RoleIQAC, models.RoleAdmin)

	authed.POST("/publish-request", requester, h.Approvals.CreatePublish)
	publish := authed.Group("/publish-requests", reviewer)
	{
		publish.GET("/pending", h.Approvals.Pending(models.KindPublishException))
		publish.GET("/pending-count", h.Approvals.PendingCount(models.KindPublishException))
		publish.GET("/history", h.Approvals.History(models.KindPublishException))
		publish.POST("/:id/approve", h.Approvals.Approve)
		publish.POST("/:id/reject", h.Approvals.Reject)
	}

	authed.POST("/edit-request", requester, h.Approvals.CreateEdit)
	edit := authed.Group("/edit-requests")
	{
		edit.GET("/pending", reviewer, h.Approvals.Pending(models.KindEditException, models.KindCourseEditException))
		edit.GET("/pending-count", reviewer, h.Approvals.PendingCount(models.KindEditException, models.KindCourseEditException))
		edit.GET("/history", reviewer, h.Approvals.History(models.KindEditException, models.KindCourseEditException))
		edit.POST("/:id/approve", reviewer, h.Approvals.Approve)
		edit.POST("/:id/reject", reviewer, h.Approvals.Reject)

		department := middleware.RequireRoles(models.RoleHOD, models.RoleAdmin)
		edit.GET("/department/pending", department, h.Approvals.DepartmentPending)
		edit.POST("/:id/department-approve", department, h.Approvals.DepartmentApprove)
		edit.POST("/:id/department-reject", department, h.Approvals.DepartmentReject)
	}

	iqac := authed.Group("/iqac")
	{
		iqac.POST("/reset/:assessment/:subjectId", reviewer, h.Locks.Reset)
		iqac.GET("/reset-notifications", h.Resets.Pending)
		iqac.POST("/reset-notifications/dismiss", h.Resets.Dismiss)
	}
}
