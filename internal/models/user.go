package models

import "time"

// AccountStatus is the lifecycle state of a user account.
type AccountStatus string

const (
	// AccountStatusPending is set at registration until activation.
	AccountStatusPending AccountStatus = "pending"
	// AccountStatusActive allows login.
	AccountStatusActive AccountStatus = "active"
	// AccountStatusInactive is an administrative block.
	AccountStatusInactive AccountStatus = "inactive"
	// AccountStatusLocked is a time-boxed lockout after failed logins.
	AccountStatusLocked AccountStatus = "locked"
)

// Role is the staff or customer role of a user.
type Role string

const (
	// RoleCustomer is the default role for registered users.
	RoleCustomer Role = "customer"
	// RoleAccountExecutive may activate bank accounts.
	RoleAccountExecutive Role = "account_executive"
	// RoleBranchManager may list all profiles.
	RoleBranchManager Role = "branch_manager"
	// RoleAdmin manages users and settings.
	RoleAdmin Role = "admin"
	// RoleSuperAdmin has unrestricted admin access.
	RoleSuperAdmin Role = "super_admin"
	// RoleTeller is a branch teller.
	RoleTeller Role = "teller"
)

// Roles lists every known role.
var Roles = []Role{RoleCustomer, RoleAccountExecutive, RoleBranchManager, RoleAdmin, RoleSuperAdmin, RoleTeller}

// IsStaff reports whether the role may use the admin surface.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// SecurityQuestion enumerates the allowed security questions.
type SecurityQuestion string

const (
	SecurityQuestionMaidenName      SecurityQuestion = "mother_maiden_name"
	SecurityQuestionChildhoodFriend SecurityQuestion = "childhood_friend"
	SecurityQuestionFavoriteColor   SecurityQuestion = "favorite_color"
	SecurityQuestionBirthCity       SecurityQuestion = "birth_city"
)

// User represents a customer or staff account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username   string `gorm:"type:varchar(12);not null;uniqueIndex"` // Generated public username.
	Email      string `gorm:"type:varchar(255);not null;uniqueIndex"` // Login email.
	FirstName  string `gorm:"type:varchar(30);not null"`              // Given name.
	MiddleName string `gorm:"type:varchar(30)"`                       // Optional middle name.
	LastName   string `gorm:"type:varchar(30);not null"`              // Family name.
	IDNo       uint64 `gorm:"not null;uniqueIndex"`                   // National identity number.

	HashedPassword string `gorm:"type:text;not null"` // Password hash.

	SecurityQuestion SecurityQuestion `gorm:"type:varchar(30);not null"` // Chosen security question.
	SecurityAnswer   string           `gorm:"type:varchar(30);not null"` // Security answer.

	IsActive      bool          `gorm:"not null;default:false"`                    // Activation flag.
	AccountStatus AccountStatus `gorm:"type:varchar(20);not null;default:pending"` // Lifecycle state.
	Role          Role          `gorm:"type:varchar(30);not null;default:customer"` // Access role.

	FailedLoginAttempts int        `gorm:"not null;default:0"` // Consecutive failed attempts.
	LastFailedLogin     *time.Time                            // Time of the last failure.

	OTP           string     `gorm:"type:varchar(6);not null;default:''"` // Pending login OTP.
	OTPExpiryTime *time.Time                                             // OTP expiry.

	PasswordChangedAt *time.Time // Fences reset and refresh tokens issued earlier.

	Profile     *Profile      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // KYC profile.
	NextOfKins  []NextOfKin   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Next-of-kin records.
	BankAccount []BankAccount `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"` // Bank accounts.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// FullName joins the name parts.
func (u *User) FullName() string {
	name := u.FirstName
	if u.MiddleName != "" {
		name += " " + u.MiddleName
	}
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}
