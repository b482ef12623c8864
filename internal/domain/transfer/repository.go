package transfer

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/pyera/ledger/internal/domain/transaction"
)

// Posting is one fully prepared transfer: the reciprocal pair of
// transactions plus the balance updates for both accounts. FromBalance and
// ToBalance carry the balances read while validating; the store commits only
// if they still hold, so a concurrent transfer on a shared account cancels
// the unit instead of losing an update.
type Posting struct {
	OwnerID  string
	Outgoing *transaction.Transaction
	Incoming *transaction.Transaction

	FromAccountID  string
	FromBalance    decimal.Decimal
	NewFromBalance decimal.Decimal

	ToAccountID  string
	ToBalance    decimal.Decimal
	NewToBalance decimal.Decimal
}

// Repository is the atomic port the coordinator posts through: both
// transactions and both balance updates commit together or not at all.
type Repository interface {
	PostTransfer(ctx context.Context, p *Posting) error
}
