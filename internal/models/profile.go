package models

import (
	"time"

	"gorm.io/datatypes"
)

// Salutation titles.
const (
	TitleMr   = "Mr"
	TitleMrs  = "Mrs"
	TitleMiss = "Miss"
)

// Genders.
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

// Marital statuses.
const (
	MaritalMarried  = "Married"
	MaritalDivorced = "Divorced"
	MaritalSingle   = "Single"
	MaritalWidowed  = "Widowed"
)

// Means of identification.
const (
	IdentificationPassport       = "Passport"
	IdentificationDriversLicense = "Drivers_License"
	IdentificationNationalID     = "National_ID"
)

// Employment statuses.
const (
	EmploymentEmployed     = "Employed"
	EmploymentUnemployed   = "Unemployed"
	EmploymentSelfEmployed = "Self_Employed"
	EmploymentStudent      = "Student"
	EmploymentRetired      = "Retired"
)

// ImageType names the profile photo slot an upload fills.
type ImageType string

const (
	// ImageTypeProfilePhoto is the customer portrait.
	ImageTypeProfilePhoto ImageType = "profile_photo"
	// ImageTypeIDPhoto is the identity document scan.
	ImageTypeIDPhoto ImageType = "id_photo"
	// ImageTypeSignaturePhoto is the signature specimen.
	ImageTypeSignaturePhoto ImageType = "signature_photo"
)

// Valid reports whether the image type is known.
func (t ImageType) Valid() bool {
	switch t {
	case ImageTypeProfilePhoto, ImageTypeIDPhoto, ImageTypeSignaturePhoto:
		return true
	default:
		return false
	}
}

// Column returns the profile column storing the image URL.
func (t ImageType) Column() string {
	return string(t) + "_url"
}

// Profile holds the KYC personal details of a user; one per user.
type Profile struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.
	UserID uint64 `gorm:"not null;uniqueIndex"`     // Owning user.

	Title          string         `gorm:"type:varchar(8);not null"`   // Salutation.
	Gender         string         `gorm:"type:varchar(8);not null"`   // Gender.
	DateOfBirth    datatypes.Date `gorm:"not null"`                   // Birth date.
	CountryOfBirth string         `gorm:"type:varchar(64);not null"`  // ISO country of birth.
	PlaceOfBirth   string         `gorm:"type:varchar(255);not null"` // City of birth.
	MaritalStatus  string         `gorm:"type:varchar(12);not null"`  // Marital status.

	MeansOfIdentification string         `gorm:"type:varchar(20);not null"` // Identity document kind.
	IDIssueDate           datatypes.Date `gorm:"not null"`                  // Document issue date.
	IDExpiryDate          datatypes.Date `gorm:"not null"`                  // Document expiry date.
	PassportNumber        string         `gorm:"type:varchar(30);not null"` // Passport number.
	Nationality           string         `gorm:"type:varchar(64);not null"` // Nationality.

	PhoneNumber string `gorm:"type:varchar(20);not null"`  // E.164 phone.
	Address     string `gorm:"type:varchar(255);not null"` // Street address.
	City        string `gorm:"type:varchar(64);not null"`  // City.
	Country     string `gorm:"type:varchar(64);not null"`  // Country of residence.

	EmploymentStatus string          `gorm:"type:varchar(20);not null"`             // Employment status.
	EmployerName     string          `gorm:"type:varchar(255)"`                     // Employer.
	EmployerAddress  string          `gorm:"type:varchar(255)"`                     // Employer address.
	EmployerCity     string          `gorm:"type:varchar(64)"`                      // Employer city.
	EmployerCountry  string          `gorm:"type:varchar(64)"`                      // Employer country.
	AnnualIncome     float64         `gorm:"type:decimal(20,2);not null;default:0"` // Declared income.
	DateOfEmployment *datatypes.Date `gorm:"type:date"`                             // Employment start date.

	ProfilePhotoURL   string `gorm:"type:text"` // Portrait URL.
	IDPhotoURL        string `gorm:"type:text"` // Identity document URL.
	SignaturePhotoURL string `gorm:"type:text"` // Signature URL.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
