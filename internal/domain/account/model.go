package account

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType represents the type of a financial account
type AccountType string

const (
	// Bank represents a traditional bank account (savings, checking)
	Bank AccountType = "bank"
	// EWallet represents an e-wallet account
	EWallet AccountType = "ewallet"
	// Cash represents physical cash
	Cash AccountType = "cash"
	// CreditCard represents a credit card account
	CreditCard AccountType = "credit_card"
	// Investment represents an investment account
	Investment AccountType = "investment"
	// Other represents any other account type
	Other AccountType = "other"
)

// Valid reports whether the account type is one of the known types.
func (t AccountType) Valid() bool {
	switch t {
	case Bank, EWallet, Cash, CreditCard, Investment, Other:
		return true
	}
	return false
}

// DefaultIcon returns the icon used when an account is created without one.
func (t AccountType) DefaultIcon() string {
	switch t {
	case Bank:
		return "🏦"
	case EWallet:
		return "📱"
	case Cash:
		return "💵"
	case CreditCard:
		return "💳"
	case Investment:
		return "📈"
	default:
		return "💰"
	}
}

// Account represents a financial account in the ledger.
//
// At most one non-archived account per owner is the default, an archived
// account is never the default, and names are unique per owner
// (case-insensitive). TransactionCount tracks how many postings reference
// the account; it guards hard deletes.
type Account struct {
	OwnerID          string          `json:"ownerId"`
	AccountID        string          `json:"accountId"`
	Name             string          `json:"name"`
	Type             AccountType     `json:"type"`
	Balance          decimal.Decimal `json:"balance"`
	Currency         string          `json:"currency"`
	Color            int             `json:"color,omitempty"`
	Icon             string          `json:"icon,omitempty"`
	IsDefault        bool            `json:"isDefault"`
	IsArchived       bool            `json:"isArchived"`
	TransactionCount int64           `json:"transactionCount"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// CreateAccountRequest represents the request to create a new account
type CreateAccountRequest struct {
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	InitialBalance decimal.Decimal `json:"initialBalance"`
	Currency       string          `json:"currency"`
	Color          int             `json:"color,omitempty"`
	Icon           string          `json:"icon,omitempty"`
	IsDefault      bool            `json:"isDefault"`
}

// UpdateAccountRequest represents the request to update an existing account.
// Zero-valued fields are left unchanged.
type UpdateAccountRequest struct {
	Name     string `json:"name,omitempty"`
	Currency string `json:"currency,omitempty"`
	Color    *int   `json:"color,omitempty"`
	Icon     string `json:"icon,omitempty"`
}
