package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nextgenbank/backoffice/internal/account"
	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/http/respond"
	"github.com/nextgenbank/backoffice/internal/models"
	"github.com/nextgenbank/backoffice/internal/session"
)

// AuthHandler serves registration, activation, login and password reset.
type AuthHandler struct {
	accounts   *account.Service
	sessions   *session.Manager
	apiBaseURL string
}

// NewAuthHandler constructs an AuthHandler. apiBaseURL prefixes links
// returned in error bodies.
func NewAuthHandler(accounts *account.Service, sessions *session.Manager, apiBaseURL string) *AuthHandler {
	return &AuthHandler{accounts: accounts, sessions: sessions, apiBaseURL: strings.TrimRight(apiBaseURL, "/")}
}

type registerRequest struct {
	Email            string `json:"email" binding:"required,email,max=255"`
	FirstName        string `json:"first_name" binding:"required,max=30"`
	MiddleName       string `json:"middle_name" binding:"omitempty,max=30"`
	LastName         string `json:"last_name" binding:"required,max=30"`
	IDNo             uint64 `json:"id_no" binding:"required,gt=0"`
	SecurityQuestion string `json:"security_question" binding:"required,oneof=mother_maiden_name childhood_friend favorite_color birth_city"`
	SecurityAnswer   string `json:"security_answer" binding:"required,max=30"`
	Password         string `json:"password" binding:"required,min=8,max=40"`
	ConfirmPassword  string `json:"confirm_password" binding:"required,eqfield=Password"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=40"`
}

type otpRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=6,otp"`
}

type resetPasswordRequest struct {
	NewPassword     string `json:"new_password" binding:"required,min=8,max=40"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=NewPassword"`
}

// Register creates an inactive customer and sends the activation email.
func (h *AuthHandler) Register(c *gin.Context) {
	var body registerRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	user, errRegister := h.accounts.Register(c.Request.Context(), account.RegisterInput{
		Email:            body.Email,
		FirstName:        body.FirstName,
		MiddleName:       body.MiddleName,
		LastName:         body.LastName,
		IDNo:             body.IDNo,
		SecurityQuestion: models.SecurityQuestion(body.SecurityQuestion),
		SecurityAnswer:   body.SecurityAnswer,
		Password:         body.Password,
	})
	if errRegister != nil {
		respond.Error(c, errRegister)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created. Please check your email to activate your account",
		"user":    formatUser(user),
	})
}

// Activate redeems the activation link.
func (h *AuthHandler) Activate(c *gin.Context) {
	user, errActivate := h.accounts.Activate(c.Request.Context(), c.Param("token"))
	if errActivate != nil {
		if errors.Is(errActivate, apperr.ErrTokenExpired) {
			expired := apperr.New(apperr.KindUnauthorized, "activation_expired", "Activation link has expired", "Please request a new activation link").
				With("action_url", h.apiBaseURL+"/api/v1/auth/resend-activation-link").
				With("email_required", true)
			respond.ErrorStatus(c, http.StatusGone, expired)
			return
		}
		respond.Error(c, errActivate)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Account activated successfully", "email": user.Email})
}

// ResendActivation sends a fresh activation link without revealing whether
// the email is registered.
func (h *AuthHandler) ResendActivation(c *gin.Context) {
	var body emailRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	if errResend := h.accounts.ResendActivation(c.Request.Context(), body.Email); errResend != nil {
		respond.Error(c, errResend)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "If an account exists with this email, please check your inbox for the activation link"})
}

// RequestOTP checks the password and emails a login OTP.
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	if errRequest := h.accounts.RequestLoginOTP(c.Request.Context(), body.Email, body.Password); errRequest != nil {
		respond.Error(c, errRequest)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "if an account exists with this email, an OTP has been sent to it."})
}

// VerifyOTP completes login and sets the session cookies.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var body otpRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	user, errVerify := h.accounts.VerifyLoginOTP(c.Request.Context(), body.Email, body.OTP)
	if errVerify != nil {
		respond.Error(c, errVerify)
		return
	}
	tokens, errIssue := h.sessions.IssueSession(user.ID)
	if errIssue != nil {
		respond.Error(c, errIssue)
		return
	}
	h.sessions.SetCookies(c, tokens)
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "user": formatUser(user)})
}

// Refresh mints a new access token from the refresh cookie.
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw, _ := c.Cookie(session.RefreshCookie)
	access, user, errRefresh := h.sessions.Refresh(c.Request.Context(), raw)
	if errRefresh != nil {
		respond.Error(c, errRefresh)
		return
	}
	h.sessions.SetCookies(c, session.Tokens{Access: access})
	c.JSON(http.StatusOK, gin.H{"message": "Access token refreshed successfully", "user": formatUser(user)})
}

// Logout clears the session cookies. It succeeds without a session.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.sessions.ClearCookies(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// RequestPasswordReset emails a reset link without revealing whether the
// email is registered.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var body emailRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	if errRequest := h.accounts.RequestPasswordReset(c.Request.Context(), body.Email); errRequest != nil {
		respond.Error(c, errRequest)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "If an account exists with this email, you will receive password reset instructions shortly"})
}

// ResetPassword sets a new password from a reset link.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var body resetPasswordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	if errReset := h.accounts.ResetPassword(c.Request.Context(), c.Param("token"), body.NewPassword); errReset != nil {
		respond.Error(c, errReset)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset successfully"})
}
