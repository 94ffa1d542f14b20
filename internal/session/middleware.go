package session

import (
	"github.com/gin-gonic/gin"
	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/http/respond"
	"github.com/nextgenbank/backoffice/internal/models"
)

// RequireUser authenticates the request and stores the user for handlers.
func (m *Manager) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, errAuth := m.Authenticate(c.Request.Context(), accessToken(c))
		if errAuth != nil {
			respond.Abort(c, errAuth)
			return
		}
		SetCurrentUser(c, user)
		c.Next()
	}
}

// RequireRole rejects authenticated users whose role is not listed.
// It must run after RequireUser.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			respond.Abort(c, apperr.ErrNotAuthenticated)
			return
		}
		if _, ok = allowed[user.Role]; !ok {
			respond.Abort(c, apperr.ErrForbidden.WithMessage("You do not have permission to perform this action"))
			return
		}
		c.Next()
	}
}
