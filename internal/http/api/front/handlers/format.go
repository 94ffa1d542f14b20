package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/http/respond"
	"github.com/nextgenbank/backoffice/internal/models"
	"gorm.io/datatypes"
)

const dateLayout = "2006-01-02"

// parseID reads the :id path parameter and writes a 400 when it is invalid.
func parseID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		respond.Error(c, apperr.New(apperr.KindValidation, "invalid_id", "Invalid id", ""))
		return 0, false
	}
	return id, true
}

func parseDate(value string) (time.Time, error) {
	return time.Parse(dateLayout, value)
}

func parseOptionalDate(value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	t, errParse := parseDate(*value)
	if errParse != nil {
		return nil, errParse
	}
	return &t, nil
}

func formatDate(d datatypes.Date) string {
	return time.Time(d).Format(dateLayout)
}

func formatUser(u *models.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"email":      u.Email,
		"username":   u.Username,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"full_name":  u.FullName(),
		"id_no":      u.IDNo,
		"role":       u.Role,
	}
}

func formatProfile(p *models.Profile) gin.H {
	out := gin.H{
		"id":                      p.ID,
		"user_id":                 p.UserID,
		"title":                   p.Title,
		"gender":                  p.Gender,
		"date_of_birth":           formatDate(p.DateOfBirth),
		"country_of_birth":        p.CountryOfBirth,
		"place_of_birth":          p.PlaceOfBirth,
		"marital_status":          p.MaritalStatus,
		"means_of_identification": p.MeansOfIdentification,
		"id_issue_date":           formatDate(p.IDIssueDate),
		"id_expiry_date":          formatDate(p.IDExpiryDate),
		"passport_number":         p.PassportNumber,
		"nationality":             p.Nationality,
		"phone_number":            p.PhoneNumber,
		"address":                 p.Address,
		"city":                    p.City,
		"country":                 p.Country,
		"employment_status":       p.EmploymentStatus,
		"employer_name":           p.EmployerName,
		"employer_address":        p.EmployerAddress,
		"employer_city":           p.EmployerCity,
		"employer_country":        p.EmployerCountry,
		"annual_income":           p.AnnualIncome,
		"date_of_employment":      nil,
		"profile_photo_url":       p.ProfilePhotoURL,
		"id_photo_url":            p.IDPhotoURL,
		"signature_photo_url":     p.SignaturePhotoURL,
		"created_at":              p.CreatedAt,
		"updated_at":              p.UpdatedAt,
	}
	if p.DateOfEmployment != nil {
		out["date_of_employment"] = formatDate(*p.DateOfEmployment)
	}
	return out
}

// formatMe flattens the user and its profile into one object.
func formatMe(u *models.User) gin.H {
	out := formatUser(u)
	out["middle_name"] = u.MiddleName
	out["account_status"] = u.AccountStatus
	out["is_active"] = u.IsActive
	if u.Profile == nil {
		out["profile"] = nil
		return out
	}
	out["profile"] = formatProfile(u.Profile)
	return out
}

func formatNextOfKin(k *models.NextOfKin) gin.H {
	return gin.H{
		"id":              k.ID,
		"full_name":       k.FullName,
		"relationship":    k.Relationship,
		"email":           k.Email,
		"phone_number":    k.PhoneNumber,
		"address":         k.Address,
		"city":            k.City,
		"country":         k.Country,
		"nationality":     k.Nationality,
		"id_number":       k.IDNumber,
		"passport_number": k.PassportNumber,
		"is_primary":      k.IsPrimary,
		"created_at":      k.CreatedAt,
		"updated_at":      k.UpdatedAt,
	}
}

func formatBankAccount(a *models.BankAccount) gin.H {
	return gin.H{
		"id":              a.ID,
		"user_id":         a.UserID,
		"account_type":    a.AccountType,
		"currency":        a.Currency,
		"account_status":  a.AccountStatus,
		"account_number":  a.AccountNumber,
		"account_name":    a.AccountName,
		"balance":         a.Balance.StringFixed(2),
		"interest_rate":   a.InterestRate.String(),
		"is_primary":      a.IsPrimary,
		"kyc_submitted":   a.KYCSubmitted,
		"kyc_verified":    a.KYCVerified,
		"kyc_verified_on": a.KYCVerifiedOn,
		"kyc_verified_by": a.KYCVerifiedBy,
		"created_at":      a.CreatedAt,
		"updated_at":      a.UpdatedAt,
	}
}
