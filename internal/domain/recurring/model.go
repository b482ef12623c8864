package recurring

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pyera/ledger/internal/domain/transaction"
)

// Frequency represents the cadence of a recurring definition
type Frequency string

const (
	// Daily advances the due date by one day
	Daily Frequency = "daily"
	// Weekly advances the due date by seven days
	Weekly Frequency = "weekly"
	// Biweekly advances the due date by fourteen days
	Biweekly Frequency = "biweekly"
	// Monthly advances the due date by one calendar month
	Monthly Frequency = "monthly"
	// Quarterly advances the due date by three calendar months
	Quarterly Frequency = "quarterly"
	// Yearly advances the due date by one calendar year
	Yearly Frequency = "yearly"
)

// Valid reports whether the frequency is one of the known cadences.
func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Biweekly, Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

// Definition represents a recurring transaction definition.
//
// NextDueDate is always on or after StartDate. Once processing computes a
// next date past a set EndDate the definition goes inactive and never
// reactivates on its own; Activate requires a caller-supplied re-anchored
// date.
type Definition struct {
	OwnerID      string           `json:"ownerId"`
	DefinitionID string           `json:"definitionId"`
	AccountID    string           `json:"accountId"`
	Amount       decimal.Decimal  `json:"amount"`
	Type         transaction.Type `json:"type"`
	CategoryID   string           `json:"categoryId,omitempty"`
	Description  string           `json:"description"`
	Frequency    Frequency        `json:"frequency"`
	StartDate    time.Time        `json:"startDate"`
	EndDate      *time.Time       `json:"endDate,omitempty"` // nil means the definition never ends
	NextDueDate  time.Time        `json:"nextDueDate"`
	IsActive     bool             `json:"isActive"`
	CreatedAt    time.Time        `json:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt"`
}

// CreateDefinitionRequest represents the request to create a recurring definition
type CreateDefinitionRequest struct {
	AccountID   string           `json:"accountId"`
	Amount      decimal.Decimal  `json:"amount"`
	Type        transaction.Type `json:"type"`
	CategoryID  string           `json:"categoryId,omitempty"`
	Description string           `json:"description"`
	Frequency   Frequency        `json:"frequency"`
	StartDate   time.Time        `json:"startDate"`
	EndDate     *time.Time       `json:"endDate,omitempty"`
	NextDueDate time.Time        `json:"nextDueDate,omitempty"` // zero means start date
}

// UpdateDefinitionRequest represents the request to edit a recurring
// definition. Zero-valued fields are left unchanged; the schedule fields
// (NextDueDate, IsActive) belong to the scheduler and the explicit
// activation calls, not to edits.
type UpdateDefinitionRequest struct {
	Amount      decimal.Decimal  `json:"amount,omitempty"`
	CategoryID  *string          `json:"categoryId,omitempty"`
	Description string           `json:"description,omitempty"`
	EndDate     *time.Time       `json:"endDate,omitempty"`
}
