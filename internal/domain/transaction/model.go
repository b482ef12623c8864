package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

// Type classifies a posting as money in or money out of an account
type Type string

const (
	// Income represents money flowing into an account
	Income Type = "income"
	// Expense represents money flowing out of an account
	Expense Type = "expense"
)

// Valid reports whether the type is income or expense.
func (t Type) Valid() bool {
	return t == Income || t == Expense
}

// Opposite returns the reciprocal type, used for the second leg of a transfer.
func (t Type) Opposite() Type {
	if t == Income {
		return Expense
	}
	return Income
}

// Transaction represents a single posting against one account.
//
// Postings are immutable ledger facts once written. A transfer posting
// (IsTransfer true) always has exactly one reciprocal posting with the same
// amount, the opposite type and TransferAccountID pointing back, created in
// the same atomic unit.
type Transaction struct {
	OwnerID           string          `json:"ownerId"`
	TransactionID     string          `json:"transactionId"`
	AccountID         string          `json:"accountId"`
	Amount            decimal.Decimal `json:"amount"`
	Note              string          `json:"note,omitempty"`
	Date              time.Time       `json:"date"`
	Type              Type            `json:"type"`
	CategoryID        string          `json:"categoryId,omitempty"` // opaque, assigned by an external classifier
	IsTransfer        bool            `json:"isTransfer"`
	TransferAccountID string          `json:"transferAccountId,omitempty"` // set iff IsTransfer
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// RecordTransactionRequest represents the request to record a direct posting
type RecordTransactionRequest struct {
	AccountID  string          `json:"accountId"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note,omitempty"`
	Date       time.Time       `json:"date"`
	Type       Type            `json:"type"`
	CategoryID string          `json:"categoryId,omitempty"`
}

// Filter represents the criteria for listing postings
type Filter struct {
	AccountID string
	StartDate time.Time
	EndDate   time.Time
}
