package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/bankaccount"
	"github.com/nextgenbank/backoffice/internal/http/respond"
	"github.com/nextgenbank/backoffice/internal/session"
	"github.com/shopspring/decimal"
)

// BankAccountHandler opens and activates bank accounts.
type BankAccountHandler struct {
	accounts *bankaccount.Service
}

// NewBankAccountHandler constructs a BankAccountHandler.
func NewBankAccountHandler(accounts *bankaccount.Service) *BankAccountHandler {
	return &BankAccountHandler{accounts: accounts}
}

type createBankAccountRequest struct {
	AccountType  string           `json:"account_type" binding:"required,oneof=current savings fixed_deposit business"`
	Currency     string           `json:"currency" binding:"required,oneof=USD EUR GBP KES"`
	AccountName  string           `json:"account_name" binding:"required,max=100"`
	IsPrimary    bool             `json:"is_primary"`
	Balance      *decimal.Decimal `json:"balance"`
	InterestRate *decimal.Decimal `json:"interest_rate"`
}

// Create opens a pending account for the caller.
func (h *BankAccountHandler) Create(c *gin.Context) {
	user, ok := session.CurrentUser(c)
	if !ok {
		respond.Error(c, apperr.ErrNotAuthenticated)
		return
	}
	var body createBankAccountRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		respond.BindError(c, errBind)
		return
	}
	in := bankaccount.CreateInput{
		AccountType: body.AccountType,
		Currency:    body.Currency,
		AccountName: body.AccountName,
		IsPrimary:   body.IsPrimary,
	}
	if body.Balance != nil {
		in.Balance = *body.Balance
	}
	if body.InterestRate != nil {
		in.InterestRate = *body.InterestRate
	}
	account, errCreate := h.accounts.Create(c.Request.Context(), user, in)
	if errCreate != nil {
		respond.Error(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, formatBankAccount(account))
}

// Activate verifies KYC for a pending account. Account executives only.
func (h *BankAccountHandler) Activate(c *gin.Context) {
	user, ok := session.CurrentUser(c)
	if !ok {
		respond.Error(c, apperr.ErrNotAuthenticated)
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	account, errActivate := h.accounts.Activate(c.Request.Context(), id, user)
	if errActivate != nil {
		respond.Error(c, errActivate)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bank account activated successfully", "bank_account": formatBankAccount(account)})
}
