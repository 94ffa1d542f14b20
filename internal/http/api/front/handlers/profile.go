package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/http/respond"
	"github.com/nextgenbank/backoffice/internal/kyc"
	"github.com/nextgenbank/backoffice/internal/session"
	internalsettings "github.com/nextgenbank/backoffice/internal/settings"
)

// ProfileHandler serves the KYC profile endpoints.
type ProfileHandler struct {
	profiles *kyc.Service
}

// NewProfileHandler constructs a ProfileHandler.
func NewProfileHandler(profiles *kyc.Service) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

type createProfileRequest struct {
	Title                 string  `json:"title" binding:"required,oneof=Mr Mrs Miss"`
	Gender                string  `json:"gender" binding:"required,oneof=Male Female Other"`
	DateOfBirth           string  `json:"date_of_birth" binding:"required,datetime=2006-01-02"`
	CountryOfBirth        string  `json:"country_of_birth" binding:"required,country"`
	PlaceOfBirth          string  `json:"place_of_birth" binding:"required,max=255"`
	MaritalStatus         string  `json:"marital_status" binding:"required,oneof=Married Divorced Single Widowed"`
	MeansOfIdentification string  `json:"means_of_identification" binding:"required,oneof=Passport Drivers_License National_ID"`
	IDIssueDate           string  `json:"id_issue_date" binding:"required,datetime=2006-01-02"`
	IDExpiryDate          string  `json:"id_expiry_date" binding:"required,datetime=2006-01-02"`
	PassportNumber        string  `json:"passport_number" binding:"required,max=30"`
	Nationality           string  `json:"nationality" binding:"required,max=64"`
	PhoneNumber           string  `json:"phone_number" binding:"required,phone"`
	Address               string  `json:"address" binding:"required,max=255"`
	City                  string  `json:"city" binding:"required,max=64"`
	Country               string  `json:"country" binding:"required,country"`
	EmploymentStatus      string  `json:"employment_status" binding:"required,oneof=Employed Unemployed Self_Employed Student Retired"`
	EmployerName          string  `json:"employer_name" binding:"omitempty,max=255"`
	EmployerAddress       string  `json:"employer_address" binding:"omitempty,max=255"`
	EmployerCity          string  `json:"employer_city" binding:"omitempty,max=64"`
	EmployerCountry       string  `json:"employer_country" binding:"omitempty,country"`
	AnnualIncome          float64 `json:"annual_income" binding:"gte=0"`
	DateOfEmployment      *string `json:"date_of_employment" binding:"omitempty,datetime=2006-01-02"`
}

type updateProfileRequest struct {
	Title                 *string  `json:"title" binding:"omitempty,oneof=Mr Mrs Miss"`
	Gender                *string  `json:"gender" binding:"omitempty,oneof=Male Female Other"`
	DateOfBirth           *string  `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	CountryOfBirth        *string  `json:"country_of_birth" binding:"omitempty,country"`
	PlaceOfBirth          *string  `json:"place_of_birth" binding:"omitempty,max=255"`
	MaritalStatus         *string  `json:"marital_status" binding:"omitempty,oneof=Married Divorced Single Widowed"`
	MeansOfIdentification *string  `json:"means_of_identification" binding:"omitempty,oneof=Passport Drivers_License National_ID"`
	IDIssueDate           *string  `json:"id_issue_date" binding:"omitempty,datetime=2006-01-02"`
	IDExpiryDate          *string  `json:"id_expiry_date" binding:"omitempty,datetime=2006-01-02"`
	PassportNumber        *string  `json:"passport_number" binding:"omitempty,max=30"`
	Nationality           *string  `json:"nationality" binding:"omitempty,max=64"`
	PhoneNumber           *string  `json:"phone_number" binding:"omitempty,phone"`
	Address               *string  `json:"address" binding:"omitempty,max=255"`
	City                  *string  `json:"city" binding:"omitempty,max=64"`
	Country               *string  `json:"country" binding:"omitempty,country"`
	EmploymentStatus      *string  `json:"employment_status" binding:"omitempty,oneof=Employed Unemployed Self_Employed Student Retired"`
	EmployerName          *string  `json:"employer_name" binding:"omitempty,max=255"`
	EmployerAddress       *string  `json:"employer_address" binding:"omitempty,max=255"`
	EmployerCity          *string  `json:"employer_city" binding:"omitempty,max=64"`
	EmployerCountry       *string  `json:"employer_country" binding:"omitempty,country"`
	AnnualIncome          *float64 `json:"annual_income" binding:"omitempty,gte=0"`
	DateOfEmployment      *string  `json:"date_of_employment" binding:"omitempty,datetime=2006-01-02"`
}

var errInvalidDate = apperr.New(apperr.KindValidation, "invalid_date", "Dates must use the YYYY-MM-DD format", "")

// Create stores the caller's profile.
func (h *ProfileHandler) Create(c *gin.Context) {
	user, ok := session.CurrentUser(c)
	if !ok {
		respond.Error(c, apperr.ErrNotAuthenticated)
		return
	}
	var body createProfileRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	in, errInput := body.input()
	if errInput != nil {
		respond.Error(c, errInput)
		return
	}
	profile, errCreate := h.profiles.CreateProfile(c.Request.Context(), user.ID, in)
	if errCreate != nil {
		respond.Error(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, formatProfile(profile))
}

func (r createProfileRequest) input() (kyc.ProfileInput, error) {
	dob, errDOB := parseDate(r.DateOfBirth)
	issue, errIssue := parseDate(r.IDIssueDate)
	expiry, errExpiry := parseDate(r.IDExpiryDate)
	employed, errEmployed := parseOptionalDate(r.DateOfEmployment)
	if errDOB != nil || errIssue != nil || errExpiry != nil || errEmployed != nil {
		return kyc.ProfileInput{}, errInvalidDate
	}
	return kyc.ProfileInput{
		Title:                 r.Title,
		Gender:                r.Gender,
		DateOfBirth:           dob,
		CountryOfBirth:        r.CountryOfBirth,
		PlaceOfBirth:          r.PlaceOfBirth,
		MaritalStatus:         r.MaritalStatus,
		MeansOfIdentification: r.MeansOfIdentification,
		IDIssueDate:           issue,
		IDExpiryDate:          expiry,
		PassportNumber:        r.PassportNumber,
		Nationality:           r.Nationality,
		PhoneNumber:           r.PhoneNumber,
		Address:               r.Address,
		City:                  r.City,
		Country:               r.Country,
		EmploymentStatus:      r.EmploymentStatus,
		EmployerName:          r.EmployerName,
		EmployerAddress:       r.EmployerAddress,
		EmployerCity:          r.EmployerCity,
		EmployerCountry:       r.EmployerCountry,
		AnnualIncome:          r.AnnualIncome,
		DateOfEmployment:      employed,
	}, nil
}

// Update applies the provided fields to the caller's profile.
func (h *ProfileHandler) Update(c *gin.Context) {
	user, ok := session.CurrentUser(c)
	if !ok {
		respond.Error(c, apperr.ErrNotAuthenticated)
		return
	}
	var body updateProfileRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	upd, errInput := body.update()
	if errInput != nil {
		respond.Error(c, errInput)
		return
	}
	profile, errUpdate := h.profiles.UpdateProfile(c.Request.Context(), user.ID, upd)
	if errUpdate != nil {
		respond.Error(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, formatProfile(profile))
}

func (r updateProfileRequest) update() (kyc.ProfileUpdate, error) {
	dob, errDOB := parseOptionalDate(r.DateOfBirth)
	issue, errIssue := parseOptionalDate(r.IDIssueDate)
	expiry, errExpiry := parseOptionalDate(r.IDExpiryDate)
	employed, errEmployed := parseOptionalDate(r.DateOfEmployment)
	if errDOB != nil || errIssue != nil || errExpiry != nil || errEmployed != nil {
		return kyc.ProfileUpdate{}, errInvalidDate
	}
	return kyc.ProfileUpdate{
		Title:                 r.Title,
		Gender:                r.Gender,
		DateOfBirth:           dob,
		CountryOfBirth:        r.CountryOfBirth,
		PlaceOfBirth:          r.PlaceOfBirth,
		MaritalStatus:         r.MaritalStatus,
		MeansOfIdentification: r.MeansOfIdentification,
		IDIssueDate:           issue,
		IDExpiryDate:          expiry,
		PassportNumber:        r.PassportNumber,
		Nationality:           r.Nationality,
		PhoneNumber:           r.PhoneNumber,
		Address:               r.Address,
		City:                  r.City,
		Country:               r.Country,
		EmploymentStatus:      r.EmploymentStatus,
		EmployerName:          r.EmployerName,
		EmployerAddress:       r.EmployerAddress,
		EmployerCity:          r.EmployerCity,
		EmployerCountry:       r.EmployerCountry,
		AnnualIncome:          r.AnnualIncome,
		DateOfEmployment:      employed,
	}, nil
}

// Me returns the caller with its profile.
func (h *ProfileHandler) Me(c *gin.Context) {
	user, ok := session.CurrentUser(c)
	if !ok {
		respond.Error(c, apperr.ErrNotAuthenticated)
		return
	}
	me, errMe := h.profiles.Me(c.Request.Context(), user.ID)
	if errMe != nil {
		respond.Error(c, errMe)
		return
	}
	c.JSON(http.StatusOK, formatMe(me))
}

// All pages through every user profile. Branch managers only.
func (h *ProfileHandler) All(c *gin.Context) {
	user, ok := session.CurrentUser(c)
	if !ok {
		respond.Error(c, apperr.ErrNotAuthenticated)
		return
	}
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(internalsettings.IntValue(internalsettings.ProfileListPageSizeKey, internalsettings.DefaultProfileListPageSize))))
	users, total, errList := h.profiles.ListProfiles(c.Request.Context(), user, skip, limit)
	if errList != nil {
		respond.Error(c, errList)
		return
	}
	out := make([]gin.H, 0, len(users))
	for i := range users {
		out = append(out, formatMe(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"profiles": out, "count": total})
}
