package models

import "time"

// Next-of-kin relationships.
const (
	RelationshipSpouse  = "Spouse"
	RelationshipParent  = "Parent"
	RelationshipChild   = "Child"
	RelationshipSibling = "Sibling"
	RelationshipOther   = "Other"
)

// MaxNextOfKins is the per-user limit of next-of-kin records.
const MaxNextOfKins = 3

// NextOfKin is an emergency contact attached to a user.
// A partial unique index keeps at most one primary record per user.
type NextOfKin struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.
	UserID uint64 `gorm:"not null;index"`           // Owning user.

	FullName       string `gorm:"type:varchar(100);not null"` // Contact name.
	Relationship   string `gorm:"type:varchar(10);not null"`  // Relationship to the user.
	Email          string `gorm:"type:varchar(255);not null"` // Contact email.
	PhoneNumber    string `gorm:"type:varchar(20);not null"`  // Contact phone.
	Address        string `gorm:"type:varchar(255);not null"` // Street address.
	City           string `gorm:"type:varchar(64);not null"`  // City.
	Country        string `gorm:"type:varchar(64);not null"`  // Country.
	Nationality    string `gorm:"type:varchar(64);not null"`  // Nationality.
	IDNumber       uint64 `gorm:"not null"`                   // Identity number.
	PassportNumber string `gorm:"type:varchar(30)"`           // Optional passport number.

	IsPrimary bool `gorm:"not null;default:false"` // Primary contact flag.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
