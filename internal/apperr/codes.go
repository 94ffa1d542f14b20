package apperr

// Sentinel errors shared across services. Compare with errors.Is.
var (
	ErrDuplicateEmail    = New(KindConflict, "duplicate_email", "User with this email already exists", "Please use a different email or sign in")
	ErrDuplicateIDNumber = New(KindConflict, "duplicate_id_number", "User with this id number already exists", "Please check the id number you entered")

	ErrInvalidCredentials = New(KindUnauthorized, "invalid_credentials", "Invalid credentials", "Please check your email and password and try again")
	ErrInvalidOTP         = New(KindValidation, "invalid_otp", "Invalid OTP", "Please check your OTP and try again")
	ErrOTPExpired         = New(KindValidation, "otp_expired", "OTP has expired", "Please request a new OTP")

	ErrNotActivated  = New(KindValidation, "not_activated", "Your account is not activated", "Please activate your account first")
	ErrAccountLocked = New(KindValidation, "account_locked", "Your account is locked", "Please contact support")
	ErrInactive      = New(KindValidation, "account_inactive", "Your account is inactive", "Please contact support")
	ErrStillLocked   = New(KindLocked, "still_locked", "Your account is temporarily locked", "Please try again later")
	ErrAlreadyActive = New(KindValidation, "already_active", "User already activated", "Please login to your account")

	ErrTokenExpired     = New(KindUnauthorized, "token_expired", "Token has expired", "Please request a new link")
	ErrTokenInvalid     = New(KindUnauthorized, "token_invalid", "Invalid token", "Please confirm that the link you used is correct")
	ErrNotAuthenticated = New(KindUnauthorized, "not_authenticated", "Not Authenticated", "Please login to access this resource")

	ErrUserNotFound = New(KindNotFound, "user_not_found", "User not found", "Please login again")

	ErrProfileExists   = New(KindConflict, "profile_exists", "Profile already exists for this user", "")
	ErrProfileNotFound = New(KindNotFound, "profile_not_found", "Profile not found", "Please create a profile first")
	ErrInvalidIDDates  = New(KindValidation, "invalid_id_dates", "ID expiry date must be after the issue date", "")

	ErrNextOfKinLimit      = New(KindConflict, "next_of_kin_limit", "Maximum number of kin (3) already reached.", "")
	ErrPrimaryKinExists    = New(KindConflict, "primary_next_of_kin_exists", "A primary next of kin already exists.", "")
	ErrOnlyNextOfKin       = New(KindConflict, "only_next_of_kin", "Cannot delete the only next of kin", "At least one next of kin must be maintained")
	ErrUnsetOnlyPrimaryKin = New(KindConflict, "unset_only_primary", "Cannot unset primary next of kin when there is only one", "")
	ErrNextOfKinNotFound   = New(KindNotFound, "next_of_kin_not_found", "Next of kin not found", "")

	ErrKYCIncomplete        = New(KindValidation, "kyc_incomplete", "KYC requirements not met", "Please complete your profile and add at least one next of kin")
	ErrMaxAccounts          = New(KindConflict, "max_accounts", "Maximum number of accounts reached", "")
	ErrPrimaryAccountExists = New(KindConflict, "primary_account_exists", "A primary account already exists", "Please unset the existing primary account first")
	ErrBankAccountNotFound  = New(KindNotFound, "bank_account_not_found", "Bank account not found", "")
	ErrAccountAlreadyActive = New(KindValidation, "bank_account_already_active", "Account is already activated", "")
	ErrBankNotConfigured    = New(KindInternal, "bank_not_configured", "Bank or Branch code not configured", "")
	ErrInvalidCurrency      = New(KindValidation, "invalid_currency", "Invalid currency", "")

	ErrForbidden   = New(KindForbidden, "forbidden", "Access denied", "")
	ErrRateLimited = New(KindRateLimited, "rate_limited", "Too many requests", "Please try again later")

	ErrUploadNotFound = New(KindNotFound, "upload_not_found", "Upload task not found", "")
	ErrInvalidImage   = New(KindValidation, "invalid_image", "Invalid image file", "")

	ErrEmailDispatch  = New(KindDependency, "email_dispatch_failed", "Failed to send email", "Please try again later")
	ErrUploadDispatch = New(KindDependency, "upload_dispatch_failed", "Failed to process image upload", "Please try again later")
)
