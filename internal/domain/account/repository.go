package account

import (
	"context"

	"github.com/shopspring/decimal"
)

// Repository defines the interface for account data operations
type Repository interface {
	// Create a new account. When demoteDefaultID is non-empty the account
	// holding it loses its default flag in the same atomic unit.
	CreateAccount(ctx context.Context, a *Account, demoteDefaultID string) (*Account, error)

	// Get an account by ID
	GetAccount(ctx context.Context, ownerID string, accountID string) (*Account, error)

	// Get all accounts for an owner, optionally including archived ones
	GetAccounts(ctx context.Context, ownerID string, includeArchived bool) ([]*Account, error)

	// Update an existing account
	UpdateAccount(ctx context.Context, a *Account) (*Account, error)

	// Delete an account. The delete is conditional on no transaction
	// referencing the account; a referenced account yields a ConflictError.
	DeleteAccount(ctx context.Context, ownerID string, accountID string) error

	// Make accountID the default for its owner, demoting previousDefaultID
	// (when non-empty) in the same atomic unit. Archived accounts are
	// rejected at the store level.
	SetDefaultAccount(ctx context.Context, ownerID string, accountID string, previousDefaultID string) error

	// Set or clear the archived flag
	SetArchived(ctx context.Context, ownerID string, accountID string, archived bool) error

	// Overwrite the stored balance
	UpdateBalance(ctx context.Context, ownerID string, accountID string, balance decimal.Decimal) error
}

// LedgerReader is the slice of the transaction store the balance
// recalculation needs: aggregate sums over an account's postings.
type LedgerReader interface {
	IncomeExpenseSums(ctx context.Context, ownerID string, accountID string) (income decimal.Decimal, expense decimal.Decimal, err error)
}
