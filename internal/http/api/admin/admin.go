// Package admin registers the staff administration routes.
package admin

import (
	"github.com/gin-gonic/gin"
	"github.com/nextgenbank/backoffice/internal/account"
	"github.com/nextgenbank/backoffice/internal/apperr"
	handlers "github.com/nextgenbank/backoffice/internal/http/api/admin/handlers"
	"github.com/nextgenbank/backoffice/internal/http/api/admin/permissions"
	"github.com/nextgenbank/backoffice/internal/http/respond"
	"github.com/nextgenbank/backoffice/internal/session"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps carries the services the admin routes call.
type Deps struct {
	DB       *gorm.DB
	Accounts *account.Service
	Sessions *session.Manager
}

// RegisterAdminRoutes registers admin routes, middleware, and handlers.
func RegisterAdminRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil || deps.Accounts == nil || deps.Sessions == nil {
		return
	}

	authed := r.Group(permissions.Prefix)
	authed.Use(deps.Sessions.RequireUser())
	authed.Use(adminPermissionMiddleware())

	userHandler := handlers.NewUserHandler(deps.Accounts)
	authed.GET("/users", userHandler.List)
	authed.GET("/users/:id", userHandler.Get)
	authed.PUT("/users/:id/role", userHandler.SetRole)
	authed.POST("/users/:id/deactivate", userHandler.Deactivate)
	authed.POST("/users/:id/reactivate", userHandler.Reactivate)
	authed.DELETE("/users/:id", userHandler.Delete)

	settingHandler := handlers.NewSettingHandler(deps.DB)
	authed.POST("/settings", settingHandler.Create)
	authed.GET("/settings", settingHandler.List)
	authed.GET("/settings/:key", settingHandler.Get)
	authed.PUT("/settings/:key", settingHandler.Update)
	authed.DELETE("/settings/:key", settingHandler.Delete)

	permissionHandler := handlers.NewPermissionHandler()
	authed.GET("/permissions", permissionHandler.List)
}

// adminPermissionMiddleware checks the caller's role against the permission
// table for the matched route.
func adminPermissionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := session.CurrentUser(c)
		if !ok {
			respond.Abort(c, apperr.ErrNotAuthenticated)
			return
		}
		if !user.Role.IsStaff() || !permissions.Allowed(user.Role, c.Request.Method, c.FullPath()) {
			log.WithFields(log.Fields{"user_id": user.ID, "role": user.Role, "route": c.FullPath()}).Warn("admin: permission denied")
			respond.Abort(c, apperr.ErrForbidden.WithMessage("You do not have permission to perform this action"))
			return
		}
		c.Next()
	}
}
