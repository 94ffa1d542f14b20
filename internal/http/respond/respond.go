// Package respond renders service errors as JSON responses.
package respond

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/nextgenbank/backoffice/internal/apperr"
	log "github.com/sirupsen/logrus"
)

// StatusOf maps an error kind to an HTTP status code.
func StatusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindLocked:
		return http.StatusLocked
	case apperr.KindDependency:
		return http.StatusServiceUnavailable
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func body(typed *apperr.Error) gin.H {
	payload := gin.H{"code": typed.Code, "message": typed.Message}
	if typed.Action != "" {
		payload["action"] = typed.Action
	}
	for k, v := range typed.Details {
		payload[k] = v
	}
	return gin.H{"error": payload}
}

// render resolves the status and body for err. Untyped and internal errors
// are logged and hidden behind a generic message.
func render(c *gin.Context, err error, status int) (int, gin.H) {
	typed, ok := apperr.As(err)
	if !ok || typed.Kind == apperr.KindInternal {
		entry := log.WithError(err).WithField("path", c.FullPath())
		if ok && typed.Code != "internal" {
			entry = entry.WithField("code", typed.Code)
		}
		entry.Error("request failed")
		generic := apperr.New(apperr.KindInternal, "internal", "internal error", "Please try again later")
		if ok && typed.Code != "internal" {
			generic = apperr.New(apperr.KindInternal, typed.Code, typed.Message, typed.Action)
		}
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, body(generic)
	}
	if typed.Kind == apperr.KindDependency {
		log.WithError(err).WithField("code", typed.Code).Warn("dependency failure")
	}
	if status == 0 {
		status = StatusOf(typed.Kind)
	}
	return status, body(typed)
}

// Error writes err with the status derived from its kind.
func Error(c *gin.Context, err error) {
	status, payload := render(c, err, 0)
	c.JSON(status, payload)
}

// ErrorStatus writes err with an explicit status code.
func ErrorStatus(c *gin.Context, status int, err error) {
	status, payload := render(c, err, status)
	c.JSON(status, payload)
}

// Abort writes err and stops the handler chain.
func Abort(c *gin.Context, err error) {
	status, payload := render(c, err, 0)
	c.AbortWithStatusJSON(status, payload)
}

// BindError reports a request body that failed binding or validation.
func BindError(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make(gin.H, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields[jsonName(fe)] = describe(fe)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
			"code":    "validation_error",
			"message": "Invalid request",
			"fields":  fields,
		}})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
		"code":    "invalid_json",
		"message": "invalid json",
	}})
}

func jsonName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return fe.StructField()
	}
	return name
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "eqfield":
		return "must match " + strings.ToLower(fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "phone":
		return "must be a valid phone number in international format"
	case "otp":
		return "must be a 6 digit code"
	case "idnumber":
		return "must be 4 to 20 letters or digits"
	case "country":
		return "must be a valid country name"
	case "datetime":
		return "must be a date in format " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
