// Package kyc manages customer profiles and next-of-kin records and decides
// whether a customer may open a bank account.
package kyc

import (
	"context"
	"errors"
	"time"

	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/db"
	"github.com/nextgenbank/backoffice/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service implements profile, next-of-kin and eligibility operations.
type Service struct {
	db *gorm.DB
}

// NewService constructs a Service.
func NewService(conn *gorm.DB) *Service {
	return &Service{db: conn}
}

// ProfileInput is the validated payload for creating a profile.
type ProfileInput struct {
	Title                 string
	Gender                string
	DateOfBirth           time.Time
	CountryOfBirth        string
	PlaceOfBirth          string
	MaritalStatus         string
	MeansOfIdentification string
	IDIssueDate           time.Time
	IDExpiryDate          time.Time
	PassportNumber        string
	Nationality           string
	PhoneNumber           string
	Address               string
	City                  string
	Country               string
	EmploymentStatus      string
	EmployerName          string
	EmployerAddress       string
	EmployerCity          string
	EmployerCountry       string
	AnnualIncome          float64
	DateOfEmployment      *time.Time
}

// ProfileUpdate carries optional changes. Photo URLs are not updatable here.
type ProfileUpdate struct {
	Title                 *string
	Gender                *string
	DateOfBirth           *time.Time
	CountryOfBirth        *string
	PlaceOfBirth          *string
	MaritalStatus         *string
	MeansOfIdentification *string
	IDIssueDate           *time.Time
	IDExpiryDate          *time.Time
	PassportNumber        *string
	Nationality           *string
	PhoneNumber           *string
	Address               *string
	City                  *string
	Country               *string
	EmploymentStatus      *string
	EmployerName          *string
	EmployerAddress       *string
	EmployerCity          *string
	EmployerCountry       *string
	AnnualIncome          *float64
	DateOfEmployment      *time.Time
}

func validateIDDates(issue, expiry time.Time) error {
	if !expiry.After(issue) {
		return apperr.ErrInvalidIDDates
	}
	return nil
}

func date(t time.Time) datatypes.Date {
	return datatypes.Date(time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
}

// CreateProfile stores the first and only profile of a user.
func (s *Service) CreateProfile(ctx context.Context, userID uint64, in ProfileInput) (*models.Profile, error) {
	if errDates := validateIDDates(in.IDIssueDate, in.IDExpiryDate); errDates != nil {
		return nil, errDates
	}
	var existing int64
	if errCount := s.db.WithContext(ctx).Model(&models.Profile{}).Where("user_id = ?", userID).Count(&existing).Error; errCount != nil {
		return nil, apperr.Internal("check profile", errCount)
	}
	if existing > 0 {
		return nil, apperr.ErrProfileExists
	}

	profile := &models.Profile{
		UserID:                userID,
		Title:                 in.Title,
		Gender:                in.Gender,
		DateOfBirth:           date(in.DateOfBirth),
		CountryOfBirth:        in.CountryOfBirth,
		PlaceOfBirth:          in.PlaceOfBirth,
		MaritalStatus:         in.MaritalStatus,
		MeansOfIdentification: in.MeansOfIdentification,
		IDIssueDate:           date(in.IDIssueDate),
		IDExpiryDate:          date(in.IDExpiryDate),
		PassportNumber:        in.PassportNumber,
		Nationality:           in.Nationality,
		PhoneNumber:           in.PhoneNumber,
		Address:               in.Address,
		City:                  in.City,
		Country:               in.Country,
		EmploymentStatus:      in.EmploymentStatus,
		EmployerName:          in.EmployerName,
		EmployerAddress:       in.EmployerAddress,
		EmployerCity:          in.EmployerCity,
		EmployerCountry:       in.EmployerCountry,
		AnnualIncome:          in.AnnualIncome,
	}
	if in.DateOfEmployment != nil {
		d := date(*in.DateOfEmployment)
		profile.DateOfEmployment = &d
	}
	if errCreate := s.db.WithContext(ctx).Create(profile).Error; errCreate != nil {
		if db.IsUniqueViolation(errCreate, "user_id") {
			return nil, apperr.ErrProfileExists
		}
		return nil, apperr.Internal("create profile", errCreate)
	}
	log.Infof("created profile for user %d", userID)
	return profile, nil
}

// GetProfile returns the profile of userID.
func (s *Service) GetProfile(ctx context.Context, userID uint64) (*models.Profile, error) {
	var profile models.Profile
	if errFind := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrProfileNotFound
		}
		return nil, apperr.Internal("find profile", errFind)
	}
	return &profile, nil
}

// UpdateProfile applies the set fields of upd.
func (s *Service) UpdateProfile(ctx context.Context, userID uint64, upd ProfileUpdate) (*models.Profile, error) {
	profile, errFind := s.GetProfile(ctx, userID)
	if errFind != nil {
		return nil, errFind
	}

	updates := map[string]any{}
	setString := func(column string, value *string) {
		if value != nil {
			updates[column] = *value
		}
	}
	setDate := func(column string, value *time.Time) {
		if value != nil {
			updates[column] = date(*value)
		}
	}
	setString("title", upd.Title)
	setString("gender", upd.Gender)
	setDate("date_of_birth", upd.DateOfBirth)
	setString("country_of_birth", upd.CountryOfBirth)
	setString("place_of_birth", upd.PlaceOfBirth)
	setString("marital_status", upd.MaritalStatus)
	setString("means_of_identification", upd.MeansOfIdentification)
	setDate("id_issue_date", upd.IDIssueDate)
	setDate("id_expiry_date", upd.IDExpiryDate)
	setString("passport_number", upd.PassportNumber)
	setString("nationality", upd.Nationality)
	setString("phone_number", upd.PhoneNumber)
	setString("address", upd.Address)
	setString("city", upd.City)
	setString("country", upd.Country)
	setString("employment_status", upd.EmploymentStatus)
	setString("employer_name", upd.EmployerName)
	setString("employer_address", upd.EmployerAddress)
	setString("employer_city", upd.EmployerCity)
	setString("employer_country", upd.EmployerCountry)
	setDate("date_of_employment", upd.DateOfEmployment)
	if upd.AnnualIncome != nil {
		updates["annual_income"] = *upd.AnnualIncome
	}
	if len(updates) == 0 {
		return profile, nil
	}

	issue := time.Time(profile.IDIssueDate)
	expiry := time.Time(profile.IDExpiryDate)
	if upd.IDIssueDate != nil {
		issue = *upd.IDIssueDate
	}
	if upd.IDExpiryDate != nil {
		expiry = *upd.IDExpiryDate
	}
	if upd.IDIssueDate != nil || upd.IDExpiryDate != nil {
		if errDates := validateIDDates(issue, expiry); errDates != nil {
			return nil, errDates
		}
	}

	if errUpdate := s.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", profile.ID).Updates(updates).Error; errUpdate != nil {
		return nil, apperr.Internal("update profile", errUpdate)
	}
	log.Infof("updated profile for user %d", userID)
	return s.GetProfile(ctx, userID)
}

// UpdateImageURL stores the public URL of an uploaded image in its slot.
func (s *Service) UpdateImageURL(ctx context.Context, userID uint64, imageType models.ImageType, url string) (*models.Profile, error) {
	if !imageType.Valid() {
		return nil, apperr.ErrInvalidImage.WithMessage("Invalid image type")
	}
	res := s.db.WithContext(ctx).Model(&models.Profile{}).Where("user_id = ?", userID).Update(imageType.Column(), url)
	if res.Error != nil {
		return nil, apperr.Internal("update profile image", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.ErrProfileNotFound
	}
	return s.GetProfile(ctx, userID)
}

// Me returns the user with its profile loaded.
func (s *Service) Me(ctx context.Context, userID uint64) (*models.User, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).Preload("Profile").First(&user, "id = ?", userID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrUserNotFound
		}
		return nil, apperr.Internal("find user", errFind)
	}
	return &user, nil
}

// ListProfiles pages through all users with their profiles, newest first.
// Only branch managers may call it.
func (s *Service) ListProfiles(ctx context.Context, actor *models.User, skip, limit int) ([]models.User, int64, error) {
	if actor == nil || actor.Role != models.RoleBranchManager {
		denied := apperr.ErrForbidden.WithMessage("Access denied")
		denied.Action = "Only branch managers can access all profiles"
		return nil, 0, denied
	}
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	base := s.db.WithContext(ctx).Model(&models.User{})
	var total int64
	if errCount := base.Count(&total).Error; errCount != nil {
		return nil, 0, apperr.Internal("count users", errCount)
	}
	var users []models.User
	if errFind := base.Preload("Profile").Order("created_at DESC").Order("id DESC").Offset(skip).Limit(limit).Find(&users).Error; errFind != nil {
		return nil, 0, apperr.Internal("list profiles", errFind)
	}
	return users, total, nil
}
