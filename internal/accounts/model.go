package accounts

import (
	"time"

	"github.com/google/uuid"
)

// Valid account types. The column is free-form text; these are the values
// the API accepts on create and update.
var accountTypes = map[string]struct{}{
	"checking":    {},
	"savings":     {},
	"cash":        {},
	"credit_card": {},
	"investment":  {},
	"loan":        {},
}

type Account struct {
	ID           uuid.UUID `json:"id"`
	BudgetID     uuid.UUID `json:"budget_id"`
	Name         string    `json:"name"`
	AccountType  string    `json:"account_type"`
	CurrencyCode string    `json:"currency_code"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

type CreateAccountRequest struct {
	Name         string `json:"name"`
	AccountType  string `json:"account_type"`
	CurrencyCode string `json:"currency_code"`
}

// UpdateAccountRequest patches an account in place. Nil fields are left
// unchanged; the currency is fixed at creation.
type UpdateAccountRequest struct {
	Name        *string `json:"name"`
	AccountType *string `json:"account_type"`
	IsActive    *bool   `json:"is_active"`
}
