package repository

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pyera/ledger/internal/domain/account"
	commonErrors "github.com/pyera/ledger/internal/domain/errors"
	"github.com/pyera/ledger/internal/domain/recurring"
	"github.com/pyera/ledger/internal/domain/transaction"
)

// Item shapes for the single table. Amounts cross the wire as canonical
// decimal strings and dates as YYYY-MM-DD; conditional writes compare these
// strings, so every writer must go through these conversions.

type accountItem struct {
	PK               string `dynamodbav:"PK"`
	SK               string `dynamodbav:"SK"`
	Type             string `dynamodbav:"Type"`
	OwnerID          string `dynamodbav:"OwnerID"`
	AccountID        string `dynamodbav:"AccountID"`
	Name             string `dynamodbav:"Name"`
	AccountType      string `dynamodbav:"AccountType"`
	Balance          string `dynamodbav:"Balance"`
	Currency         string `dynamodbav:"Currency"`
	Color            int    `dynamodbav:"Color"`
	Icon             string `dynamodbav:"Icon"`
	IsDefault        bool   `dynamodbav:"IsDefault"`
	IsArchived       bool   `dynamodbav:"IsArchived"`
	TransactionCount int64  `dynamodbav:"TransactionCount"`
	CreatedAt        string `dynamodbav:"CreatedAt"`
	UpdatedAt        string `dynamodbav:"UpdatedAt"`
}

func newAccountItem(a *account.Account) accountItem {
	return accountItem{
		PK:               ownerPK(a.OwnerID),
		SK:               accountSK(a.AccountID),
		Type:             "account",
		OwnerID:          a.OwnerID,
		AccountID:        a.AccountID,
		Name:             a.Name,
		AccountType:      string(a.Type),
		Balance:          a.Balance.String(),
		Currency:         a.Currency,
		Color:            a.Color,
		Icon:             a.Icon,
		IsDefault:        a.IsDefault,
		IsArchived:       a.IsArchived,
		TransactionCount: a.TransactionCount,
		CreatedAt:        a.CreatedAt.UTC().Format(timestampFormat),
		UpdatedAt:        a.UpdatedAt.UTC().Format(timestampFormat),
	}
}

func (i accountItem) toAccount() (*account.Account, error) {
	balance, err := decimal.NewFromString(i.Balance)
	if err != nil {
		return nil, commonErrors.NewInternalError("invalid stored balance", err)
	}
	createdAt, updatedAt, err := parseTimestamps(i.CreatedAt, i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &account.Account{
		OwnerID:          i.OwnerID,
		AccountID:        i.AccountID,
		Name:             i.Name,
		Type:             account.AccountType(i.AccountType),
		Balance:          balance,
		Currency:         i.Currency,
		Color:            i.Color,
		Icon:             i.Icon,
		IsDefault:        i.IsDefault,
		IsArchived:       i.IsArchived,
		TransactionCount: i.TransactionCount,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}

type transactionItem struct {
	PK                string `dynamodbav:"PK"`
	SK                string `dynamodbav:"SK"`
	GSI1PK            string `dynamodbav:"GSI1PK"`
	GSI1SK            string `dynamodbav:"GSI1SK"`
	Type              string `dynamodbav:"Type"`
	OwnerID           string `dynamodbav:"OwnerID"`
	TransactionID     string `dynamodbav:"TransactionID"`
	AccountID         string `dynamodbav:"AccountID"`
	Amount            string `dynamodbav:"Amount"`
	Note              string `dynamodbav:"Note,omitempty"`
	Date              string `dynamodbav:"Date"`
	TransactionType   string `dynamodbav:"TransactionType"`
	CategoryID        string `dynamodbav:"CategoryID,omitempty"`
	IsTransfer        bool   `dynamodbav:"IsTransfer"`
	TransferAccountID string `dynamodbav:"TransferAccountID,omitempty"`
	CreatedAt         string `dynamodbav:"CreatedAt"`
	UpdatedAt         string `dynamodbav:"UpdatedAt"`
}

func newTransactionItem(t *transaction.Transaction) transactionItem {
	return transactionItem{
		PK:                ownerPK(t.OwnerID),
		SK:                transactionSK(t.TransactionID),
		GSI1PK:            accountPostingsPK(t.AccountID),
		GSI1SK:            transactionDateSK(t.Date, t.TransactionID),
		Type:              "transaction",
		OwnerID:           t.OwnerID,
		TransactionID:     t.TransactionID,
		AccountID:         t.AccountID,
		Amount:            t.Amount.String(),
		Note:              t.Note,
		Date:              t.Date.UTC().Format(dateFormat),
		TransactionType:   string(t.Type),
		CategoryID:        t.CategoryID,
		IsTransfer:        t.IsTransfer,
		TransferAccountID: t.TransferAccountID,
		CreatedAt:         t.CreatedAt.UTC().Format(timestampFormat),
		UpdatedAt:         t.UpdatedAt.UTC().Format(timestampFormat),
	}
}

func (i transactionItem) toTransaction() (*transaction.Transaction, error) {
	amount, err := decimal.NewFromString(i.Amount)
	if err != nil {
		return nil, commonErrors.NewInternalError("invalid stored amount", err)
	}
	date, err := time.ParseInLocation(dateFormat, i.Date, time.UTC)
	if err != nil {
		return nil, commonErrors.NewInternalError("invalid stored date", err)
	}
	createdAt, updatedAt, err := parseTimestamps(i.CreatedAt, i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &transaction.Transaction{
		OwnerID:           i.OwnerID,
		TransactionID:     i.TransactionID,
		AccountID:         i.AccountID,
		Amount:            amount,
		Note:              i.Note,
		Date:              date,
		Type:              transaction.Type(i.TransactionType),
		CategoryID:        i.CategoryID,
		IsTransfer:        i.IsTransfer,
		TransferAccountID: i.TransferAccountID,
		CreatedAt:         createdAt,
		UpdatedAt:         updatedAt,
	}, nil
}

type recurringItem struct {
	PK              string `dynamodbav:"PK"`
	SK              string `dynamodbav:"SK"`
	GSI1PK          string `dynamodbav:"GSI1PK,omitempty"`
	GSI1SK          string `dynamodbav:"GSI1SK,omitempty"`
	Type            string `dynamodbav:"Type"`
	OwnerID         string `dynamodbav:"OwnerID"`
	DefinitionID    string `dynamodbav:"DefinitionID"`
	AccountID       string `dynamodbav:"AccountID"`
	Amount          string `dynamodbav:"Amount"`
	TransactionType string `dynamodbav:"TransactionType"`
	CategoryID      string `dynamodbav:"CategoryID,omitempty"`
	Description     string `dynamodbav:"Description"`
	Frequency       string `dynamodbav:"Frequency"`
	StartDate       string `dynamodbav:"StartDate"`
	EndDate         string `dynamodbav:"EndDate,omitempty"`
	NextDueDate     string `dynamodbav:"NextDueDate"`
	IsActive        bool   `dynamodbav:"IsActive"`
	CreatedAt       string `dynamodbav:"CreatedAt"`
	UpdatedAt       string `dynamodbav:"UpdatedAt"`
}

func newRecurringItem(d *recurring.Definition) recurringItem {
	item := recurringItem{
		PK:              ownerPK(d.OwnerID),
		SK:              recurringSK(d.DefinitionID),
		Type:            "recurring",
		OwnerID:         d.OwnerID,
		DefinitionID:    d.DefinitionID,
		AccountID:       d.AccountID,
		Amount:          d.Amount.String(),
		TransactionType: string(d.Type),
		CategoryID:      d.CategoryID,
		Description:     d.Description,
		Frequency:       string(d.Frequency),
		StartDate:       d.StartDate.UTC().Format(dateFormat),
		NextDueDate:     d.NextDueDate.UTC().Format(dateFormat),
		IsActive:        d.IsActive,
		CreatedAt:       d.CreatedAt.UTC().Format(timestampFormat),
		UpdatedAt:       d.UpdatedAt.UTC().Format(timestampFormat),
	}
	if d.EndDate != nil {
		item.EndDate = d.EndDate.UTC().Format(dateFormat)
	}
	// The due index is sparse: only active definitions carry the GSI keys.
	if d.IsActive {
		item.GSI1PK = duePartition
		item.GSI1SK = dueSK(d.NextDueDate, d.DefinitionID)
	}
	return item
}

func (i recurringItem) toDefinition() (*recurring.Definition, error) {
	amount, err := decimal.NewFromString(i.Amount)
	if err != nil {
		return nil, commonErrors.NewInternalError("invalid stored amount", err)
	}
	startDate, err := time.ParseInLocation(dateFormat, i.StartDate, time.UTC)
	if err != nil {
		return nil, commonErrors.NewInternalError("invalid stored start date", err)
	}
	nextDueDate, err := time.ParseInLocation(dateFormat, i.NextDueDate, time.UTC)
	if err != nil {
		return nil, commonErrors.NewInternalError("invalid stored next due date", err)
	}
	var endDate *time.Time
	if i.EndDate != "" {
		e, err := time.ParseInLocation(dateFormat, i.EndDate, time.UTC)
		if err != nil {
			return nil, commonErrors.NewInternalError("invalid stored end date", err)
		}
		endDate = &e
	}
	createdAt, updatedAt, err := parseTimestamps(i.CreatedAt, i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &recurring.Definition{
		OwnerID:      i.OwnerID,
		DefinitionID: i.DefinitionID,
		AccountID:    i.AccountID,
		Amount:       amount,
		Type:         transaction.Type(i.TransactionType),
		CategoryID:   i.CategoryID,
		Description:  i.Description,
		Frequency:    recurring.Frequency(i.Frequency),
		StartDate:    startDate,
		EndDate:      endDate,
		NextDueDate:  nextDueDate,
		IsActive:     i.IsActive,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func parseTimestamps(created, updated string) (time.Time, time.Time, error) {
	createdAt, err := time.Parse(timestampFormat, created)
	if err != nil {
		return time.Time{}, time.Time{}, commonErrors.NewInternalError("invalid stored timestamp", err)
	}
	updatedAt, err := time.Parse(timestampFormat, updated)
	if err != nil {
		return time.Time{}, time.Time{}, commonErrors.NewInternalError("invalid stored timestamp", err)
	}
	return createdAt, updatedAt, nil
}
