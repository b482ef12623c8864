package transaction

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for transaction data operations
type Repository interface {
	// Create a new posting. The owning account's reference count is bumped
	// in the same atomic unit.
	CreateTransaction(ctx context.Context, t *Transaction) (*Transaction, error)

	// Get a posting by ID
	GetTransaction(ctx context.Context, ownerID string, transactionID string) (*Transaction, error)

	// Get postings for an account, optionally bounded by the filter's date range
	GetTransactions(ctx context.Context, ownerID string, filter *Filter) ([]*Transaction, error)

	// Sum posting amounts for an account and type
	SumByAccount(ctx context.Context, ownerID string, accountID string, t Type) (decimal.Decimal, error)

	// Count postings referencing an account
	CountByAccount(ctx context.Context, ownerID string, accountID string) (int, error)

	// Delete a posting, releasing its reference on the owning account in the
	// same atomic unit
	DeleteTransaction(ctx context.Context, ownerID string, transactionID string) error

	// Income and expense sums for an account in one pass
	IncomeExpenseSums(ctx context.Context, ownerID string, accountID string) (income decimal.Decimal, expense decimal.Decimal, err error)
}
