// Package notify delivers templated emails asynchronously through a database outbox.
package notify

import (
	"context"
	"errors"
)

// Template identifies an email template.
type Template string

const (
	// TemplateActivation carries the account activation link.
	TemplateActivation Template = "activation"
	// TemplateLoginOTP carries a login OTP.
	TemplateLoginOTP Template = "login_otp"
	// TemplateAccountLockout warns about a temporary lock.
	TemplateAccountLockout Template = "account_lockout"
	// TemplatePasswordReset carries the password reset link.
	TemplatePasswordReset Template = "password_reset"
	// TemplateAccountCreated confirms a new bank account.
	TemplateAccountCreated Template = "account_created"
	// TemplateAccountActivated confirms a verified bank account.
	TemplateAccountActivated Template = "account_activated"
)

// Data is the template context of a notification.
type Data map[string]any

// Dispatcher enqueues a notification and returns its job id. Delivery happens
// later and its outcome is never reported back to the caller.
type Dispatcher interface {
	Send(ctx context.Context, template Template, recipient string, data Data) (string, error)
}

// ErrUnknownTemplate is returned for templates without a registered body.
var ErrUnknownTemplate = errors.New("notify: unknown template")
