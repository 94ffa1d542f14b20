package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nextgenbank/backoffice/internal/http/api/admin/permissions"
	"github.com/nextgenbank/backoffice/internal/session"
)

// PermissionHandler exposes the permission catalogue.
type PermissionHandler struct{}

// NewPermissionHandler constructs a PermissionHandler.
func NewPermissionHandler() *PermissionHandler {
	return &PermissionHandler{}
}

// List returns every permission definition and the caller's grants.
func (h *PermissionHandler) List(c *gin.Context) {
	granted := []string{}
	if user, ok := session.CurrentUser(c); ok {
		granted = permissions.RolePermissions(user.Role)
	}
	c.JSON(http.StatusOK, gin.H{"permissions": permissions.Definitions(), "granted": granted})
}
