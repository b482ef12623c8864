package transfer

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/pyera/ledger/internal/domain/account"
	"github.com/pyera/ledger/internal/domain/errors"
	"github.com/pyera/ledger/internal/domain/transaction"
)

// Coordinator orchestrates atomic transfers between two accounts: an expense
// posting on the source, a reciprocal income posting on the destination, and
// both balance updates, committed as one unit.
type Coordinator struct {
	accounts account.Repository
	repo     Repository
	logger   *slog.Logger
}

// NewCoordinator creates a new transfer coordinator
func NewCoordinator(accounts account.Repository, repo Repository, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		accounts: accounts,
		repo:     repo,
		logger:   logger,
	}
}

// Transfer moves amount from one account to another. Preconditions are
// checked in order and the first failure wins: distinct accounts, positive
// amount, both accounts exist, sufficient source balance. On success the sum
// of the two balance deltas is zero; on failure neither balances nor the
// transaction log change.
//
// A zero date means the transfer is dated now. The note defaults per leg
// when blank.
func (c *Coordinator) Transfer(ctx context.Context, ownerID string, fromID string, toID string, amount decimal.Decimal, note string, date time.Time) error {
	if fromID == toID {
		return errors.NewValidationError("cannot transfer to the same account")
	}
	if !amount.IsPositive() {
		return errors.NewValidationError("transfer amount must be positive")
	}

	from, err := c.accounts.GetAccount(ctx, ownerID, fromID)
	if err != nil {
		if stderrors.Is(err, errors.NewNotFoundError("")) {
			return errors.NewNotFoundError("source account not found")
		}
		return err
	}
	to, err := c.accounts.GetAccount(ctx, ownerID, toID)
	if err != nil {
		if stderrors.Is(err, errors.NewNotFoundError("")) {
			return errors.NewNotFoundError("destination account not found")
		}
		return err
	}

	if from.Balance.LessThan(amount) {
		return errors.NewInsufficientFundsError("insufficient balance in source account")
	}

	now := time.Now().UTC()
	if date.IsZero() {
		date = now
	}

	outNote := note
	if outNote == "" {
		outNote = "Transfer to " + to.Name
	}
	inNote := note
	if inNote == "" {
		inNote = "Transfer from " + from.Name
	}

	p := &Posting{
		OwnerID: ownerID,
		Outgoing: &transaction.Transaction{
			OwnerID:           ownerID,
			TransactionID:     ulid.Make().String(),
			AccountID:         fromID,
			Amount:            amount,
			Note:              outNote,
			Date:              date,
			Type:              transaction.Expense,
			IsTransfer:        true,
			TransferAccountID: toID,
			CreatedAt:         now,
			UpdatedAt:         now,
		},
		Incoming: &transaction.Transaction{
			OwnerID:           ownerID,
			TransactionID:     ulid.Make().String(),
			AccountID:         toID,
			Amount:            amount,
			Note:              inNote,
			Date:              date,
			Type:              transaction.Income,
			IsTransfer:        true,
			TransferAccountID: fromID,
			CreatedAt:         now,
			UpdatedAt:         now,
		},
		FromAccountID:  fromID,
		FromBalance:    from.Balance,
		NewFromBalance: from.Balance.Sub(amount),
		ToAccountID:    toID,
		ToBalance:      to.Balance,
		NewToBalance:   to.Balance.Add(amount),
	}

	if err := c.repo.PostTransfer(ctx, p); err != nil {
		return err
	}

	c.logger.Info("transfer posted",
		"ownerId", ownerID, "fromAccountId", fromID, "toAccountId", toID,
		"amount", amount.String())
	return nil
}
