package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nextgenbank/backoffice/internal/account"
	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/http/respond"
	"github.com/nextgenbank/backoffice/internal/models"
	"github.com/nextgenbank/backoffice/internal/session"
)

// UserHandler manages staff operations on user accounts.
type UserHandler struct {
	accounts *account.Service
}

// NewUserHandler constructs a UserHandler.
func NewUserHandler(accounts *account.Service) *UserHandler {
	return &UserHandler{accounts: accounts}
}

// List returns users with optional filters.
func (h *UserHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	filter := account.ListFilter{
		Search:   strings.TrimSpace(c.Query("search")),
		Status:   models.AccountStatus(strings.TrimSpace(c.Query("status"))),
		Role:     models.Role(strings.TrimSpace(c.Query("role"))),
		Page:     page,
		PageSize: pageSize,
	}
	rows, total, errList := h.accounts.ListUsers(c.Request.Context(), filter)
	if errList != nil {
		respond.Error(c, errList)
		return
	}
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, formatUser(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "total": total})
}

// Get returns a user by ID.
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	user, errGet := h.accounts.GetUser(c.Request.Context(), id)
	if errGet != nil {
		respond.Error(c, errGet)
		return
	}
	c.JSON(http.StatusOK, formatUser(user))
}

// setRoleRequest defines the request body for role changes.
type setRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// SetRole changes the role of a user.
func (h *UserHandler) SetRole(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body setRoleRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	if actor, okActor := session.CurrentUser(c); okActor && actor.ID == id {
		respond.Error(c, apperr.ErrForbidden.WithMessage("You cannot change your own role"))
		return
	}
	user, errSet := h.accounts.SetRole(c.Request.Context(), id, models.Role(strings.TrimSpace(body.Role)))
	if errSet != nil {
		respond.Error(c, errSet)
		return
	}
	c.JSON(http.StatusOK, formatUser(user))
}

// Deactivate moves a user to the inactive state.
func (h *UserHandler) Deactivate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if actor, okActor := session.CurrentUser(c); okActor && actor.ID == id {
		respond.Error(c, apperr.ErrForbidden.WithMessage("You cannot deactivate yourself"))
		return
	}
	user, errDeactivate := h.accounts.Deactivate(c.Request.Context(), id)
	if errDeactivate != nil {
		respond.Error(c, errDeactivate)
		return
	}
	c.JSON(http.StatusOK, formatUser(user))
}

// Reactivate restores a user to the active state and clears lockout counters.
func (h *UserHandler) Reactivate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	user, errReactivate := h.accounts.Reactivate(c.Request.Context(), id)
	if errReactivate != nil {
		respond.Error(c, errReactivate)
		return
	}
	c.JSON(http.StatusOK, formatUser(user))
}

// Delete removes a user and everything it owns.
func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	if actor, okActor := session.CurrentUser(c); okActor && actor.ID == id {
		respond.Error(c, apperr.ErrForbidden.WithMessage("You cannot delete yourself"))
		return
	}
	if errDelete := h.accounts.DeleteUser(c.Request.Context(), id); errDelete != nil {
		respond.Error(c, errDelete)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseID reads the :id path parameter and writes a 400 when it is invalid.
func parseID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "invalid_id", "message": "invalid id"}})
		return 0, false
	}
	return id, true
}

func formatUser(u *models.User) gin.H {
	return gin.H{
		"id":                    u.ID,
		"username":              u.Username,
		"email":                 u.Email,
		"full_name":             u.FullName(),
		"id_no":                 u.IDNo,
		"role":                  u.Role,
		"is_active":             u.IsActive,
		"account_status":        u.AccountStatus,
		"failed_login_attempts": u.FailedLoginAttempts,
		"last_failed_login":     u.LastFailedLogin,
		"created_at":            u.CreatedAt,
		"updated_at":            u.UpdatedAt,
	}
}
