package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/http/respond"
	"github.com/nextgenbank/backoffice/internal/kyc"
	"github.com/nextgenbank/backoffice/internal/session"
)

// NextOfKinHandler serves next-of-kin endpoints for the caller.
type NextOfKinHandler struct {
	kins *kyc.Service
}

// NewNextOfKinHandler constructs a NextOfKinHandler.
func NewNextOfKinHandler(kins *kyc.Service) *NextOfKinHandler {
	return &NextOfKinHandler{kins: kins}
}

type createNextOfKinRequest struct {
	FullName       string `json:"full_name" binding:"required,min=2,max=100"`
	Relationship   string `json:"relationship" binding:"required,oneof=Spouse Parent Child Sibling Other"`
	Email          string `json:"email" binding:"required,email"`
	PhoneNumber    string `json:"phone_number" binding:"required,phone"`
	Address        string `json:"address" binding:"required,max=255"`
	City           string `json:"city" binding:"required,max=64"`
	Country        string `json:"country" binding:"required,country"`
	Nationality    string `json:"nationality" binding:"required,max=64"`
	IDNumber       uint64 `json:"id_number" binding:"required,gt=0"`
	PassportNumber string `json:"passport_number" binding:"omitempty,max=30"`
	IsPrimary      bool   `json:"is_primary"`
}

type updateNextOfKinRequest struct {
	FullName       *string `json:"full_name" binding:"omitempty,min=2,max=100"`
	Relationship   *string `json:"relationship" binding:"omitempty,oneof=Spouse Parent Child Sibling Other"`
	Email          *string `json:"email" binding:"omitempty,email"`
	PhoneNumber    *string `json:"phone_number" binding:"omitempty,phone"`
	Address        *string `json:"address" binding:"omitempty,max=255"`
	City           *string `json:"city" binding:"omitempty,max=64"`
	Country        *string `json:"country" binding:"omitempty,country"`
	Nationality    *string `json:"nationality" binding:"omitempty,max=64"`
	IDNumber       *uint64 `json:"id_number" binding:"omitempty,gt=0"`
	PassportNumber *string `json:"passport_number" binding:"omitempty,max=30"`
	IsPrimary      *bool   `json:"is_primary"`
}

// Create adds a next of kin for the caller.
func (h *NextOfKinHandler) Create(c *gin.Context) {
	user, ok := session.CurrentUser(c)
	if !ok {
		respond.Error(c, apperr.ErrNotAuthenticated)
		return
	}
	var body createNextOfKinRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	kin, errCreate := h.kins.CreateNextOfKin(c.Request.Context(), user.ID, kyc.NextOfKinInput{
		FullName:       body.FullName,
		Relationship:   body.Relationship,
		Email:          body.Email,
		PhoneNumber:    body.PhoneNumber,
		Address:        body.Address,
		City:           body.City,
		Country:        body.Country,
		Nationality:    body.Nationality,
		IDNumber:       body.IDNumber,
		PassportNumber: body.PassportNumber,
		IsPrimary:      body.IsPrimary,
	})
	if errCreate != nil {
		respond.Error(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, formatNextOfKin(kin))
}

// List returns the caller's next of kins.
func (h *NextOfKinHandler) List(c *gin.Context) {
	user, ok := session.CurrentUser(c)
	if !ok {
		respond.Error(c, apperr.ErrNotAuthenticated)
		return
	}
	kins, errList := h.kins.ListNextOfKins(c.Request.Context(), user.ID)
	if errList != nil {
		respond.Error(c, errList)
		return
	}
	out := make([]gin.H, 0, len(kins))
	for i := range kins {
		out = append(out, formatNextOfKin(&kins[i]))
	}
	c.JSON(http.StatusOK, gin.H{"next_of_kins": out, "count": len(out)})
}

// Update changes one of the caller's next of kins.
func (h *NextOfKinHandler) Update(c *gin.Context) {
	user, ok := session.CurrentUser(c)
	if !ok {
		respond.Error(c, apperr.ErrNotAuthenticated)
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var body updateNextOfKinRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	kin, errUpdate := h.kins.UpdateNextOfKin(c.Request.Context(), user.ID, id, kyc.NextOfKinUpdate{
		FullName:       body.FullName,
		Relationship:   body.Relationship,
		Email:          body.Email,
		PhoneNumber:    body.PhoneNumber,
		Address:        body.Address,
		City:           body.City,
		Country:        body.Country,
		Nationality:    body.Nationality,
		IDNumber:       body.IDNumber,
		PassportNumber: body.PassportNumber,
		IsPrimary:      body.IsPrimary,
	})
	if errUpdate != nil {
		respond.Error(c, errUpdate)
		return
	}
	c.JSON(http.StatusOK, formatNextOfKin(kin))
}

// Delete removes one of the caller's next of kins.
func (h *NextOfKinHandler) Delete(c *gin.Context) {
	user, ok := session.CurrentUser(c)
	if !ok {
		respond.Error(c, apperr.ErrNotAuthenticated)
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	if errDelete := h.kins.DeleteNextOfKin(c.Request.Context(), user.ID, id); errDelete != nil {
		respond.Error(c, errDelete)
		return
	}
	c.Status(http.StatusNoContent)
}
