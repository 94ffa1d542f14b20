// Package front registers the customer-facing API routes.
package front

import (
	"github.com/gin-gonic/gin"
	"github.com/nextgenbank/backoffice/internal/account"
	"github.com/nextgenbank/backoffice/internal/bankaccount"
	handlers "github.com/nextgenbank/backoffice/internal/http/api/front/handlers"
	"github.com/nextgenbank/backoffice/internal/http/validation"
	"github.com/nextgenbank/backoffice/internal/kyc"
	"github.com/nextgenbank/backoffice/internal/models"
	"github.com/nextgenbank/backoffice/internal/ratelimit"
	"github.com/nextgenbank/backoffice/internal/session"
	"github.com/nextgenbank/backoffice/internal/upload"
)

// Prefix is the mount point of the customer API.
const Prefix = "/api/v1"

// Deps carries the services the front routes call.
type Deps struct {
	Accounts       *account.Service
	Sessions       *session.Manager
	KYC            *kyc.Service
	BankAccounts   *bankaccount.Service
	Uploads        *upload.Service
	Limiter        *ratelimit.Manager
	APIBaseURL     string
	MaxUploadBytes int64
}

// RegisterFrontRoutes registers the auth, profile, next-of-kin and bank
// account routes. Auth routes are throttled per client IP, and the login
// routes also per email address.
func RegisterFrontRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.Accounts == nil || deps.Sessions == nil {
		return
	}
	validation.Register()
	api := r.Group(Prefix)

	authHandler := handlers.NewAuthHandler(deps.Accounts, deps.Sessions, deps.APIBaseURL)
	auth := api.Group("/auth")
	auth.Use(deps.Limiter.Middleware("auth"))
	auth.POST("/register", authHandler.Register)
	auth.GET("/activate/:token", authHandler.Activate)
	auth.POST("/resend-activation-link", authHandler.ResendActivation)
	auth.POST("/login/request-otp", deps.Limiter.EmailMiddleware("login"), authHandler.RequestOTP)
	auth.POST("/login/verify-otp", deps.Limiter.EmailMiddleware("login"), authHandler.VerifyOTP)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", authHandler.Logout)
	auth.POST("/request-password-reset", authHandler.RequestPasswordReset)
	auth.POST("/reset-password/:token", authHandler.ResetPassword)

	authed := api.Group("")
	authed.Use(deps.Sessions.RequireUser())

	if deps.KYC != nil {
		profileHandler := handlers.NewProfileHandler(deps.KYC)
		authed.POST("/profile/create", profileHandler.Create)
		authed.PATCH("/profile/update", profileHandler.Update)
		authed.GET("/profile/me", profileHandler.Me)
		authed.GET("/profile/all", session.RequireRole(models.RoleBranchManager), profileHandler.All)

		kinHandler := handlers.NewNextOfKinHandler(deps.KYC)
		authed.POST("/next-of-kin/create", kinHandler.Create)
		authed.GET("/next-of-kin/all", kinHandler.List)
		authed.PATCH("/next-of-kin/:id", kinHandler.Update)
		authed.DELETE("/next-of-kin/:id", kinHandler.Delete)
	}

	if deps.Uploads != nil {
		uploadHandler := handlers.NewUploadHandler(deps.Uploads, deps.MaxUploadBytes)
		authed.POST("/profile/upload/:image_type", uploadHandler.Upload)
		authed.GET("/profile/upload/:task_id/status", uploadHandler.Status)
	}

	if deps.BankAccounts != nil {
		bankHandler := handlers.NewBankAccountHandler(deps.BankAccounts)
		authed.POST("/bank-account/create", bankHandler.Create)
		authed.PATCH("/bank-account/:id/activate", bankHandler.Activate)
	}
}
