package account

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pyera/ledger/internal/domain/errors"
	"github.com/pyera/ledger/pkg/validator"
)

// Service provides account-related business logic
type Service struct {
	repo   Repository
	ledger LedgerReader
	logger *slog.Logger
}

// NewService creates a new account service
func NewService(repo Repository, ledger LedgerReader, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		ledger: ledger,
		logger: logger,
	}
}

// CreateAccount creates a new account for the owner.
//
// The first account an owner creates becomes the default regardless of the
// request. When the request asks for default, the previous default is
// demoted in the same unit.
func (s *Service) CreateAccount(ctx context.Context, ownerID string, req *CreateAccountRequest) (*Account, error) {
	if err := validator.NonBlank("name", req.Name); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, errors.NewValidationError("unknown account type")
	}
	if err := validator.CurrencyCode(req.Currency); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetAccounts(ctx, ownerID, true)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if dup := findByName(existing, name, ""); dup != nil {
		return nil, errors.NewConflictError("account name already exists")
	}

	isDefault := req.IsDefault
	if len(existing) == 0 {
		isDefault = true
	}

	demoteID := ""
	if isDefault {
		if prev := currentDefault(existing); prev != nil {
			demoteID = prev.AccountID
		}
	}

	icon := req.Icon
	if icon == "" {
		icon = req.Type.DefaultIcon()
	}

	now := time.Now().UTC()
	a := &Account{
		OwnerID:   ownerID,
		AccountID: uuid.New().String(),
		Name:      name,
		Type:      req.Type,
		Balance:   req.InitialBalance,
		Currency:  req.Currency,
		Color:     req.Color,
		Icon:      icon,
		IsDefault: isDefault,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.repo.CreateAccount(ctx, a, demoteID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account created", "ownerId", ownerID, "accountId", created.AccountID, "type", created.Type)
	return created, nil
}

// GetAccount retrieves an account by ID
func (s *Service) GetAccount(ctx context.Context, ownerID string, accountID string) (*Account, error) {
	return s.repo.GetAccount(ctx, ownerID, accountID)
}

// ListAccounts retrieves the owner's accounts, optionally including archived ones
func (s *Service) ListAccounts(ctx context.Context, ownerID string, includeArchived bool) ([]*Account, error) {
	return s.repo.GetAccounts(ctx, ownerID, includeArchived)
}

// TotalBalance sums the balances of the owner's non-archived accounts
func (s *Service) TotalBalance(ctx context.Context, ownerID string) (decimal.Decimal, error) {
	accounts, err := s.repo.GetAccounts(ctx, ownerID, false)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total, nil
}

// UpdateAccount applies the non-zero fields of the request to an account
func (s *Service) UpdateAccount(ctx context.Context, ownerID string, accountID string, req *UpdateAccountRequest) (*Account, error) {
	a, err := s.repo.GetAccount(ctx, ownerID, accountID)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		name := strings.TrimSpace(req.Name)
		if err := validator.NonBlank("name", name); err != nil {
			return nil, err
		}
		existing, err := s.repo.GetAccounts(ctx, ownerID, true)
		if err != nil {
			return nil, err
		}
		if dup := findByName(existing, name, accountID); dup != nil {
			return nil, errors.NewConflictError("account name already exists")
		}
		a.Name = name
	}
	if req.Currency != "" {
		if err := validator.CurrencyCode(req.Currency); err != nil {
			return nil, err
		}
		a.Currency = req.Currency
	}
	if req.Color != nil {
		a.Color = *req.Color
	}
	if req.Icon != "" {
		a.Icon = req.Icon
	}
	a.UpdatedAt = time.Now().UTC()

	return s.repo.UpdateAccount(ctx, a)
}

// DeleteAccount hard-deletes an account that no transaction references.
// The referential check and the delete are one conditional store operation;
// a referenced account fails with a ConflictError and should be archived
// instead.
func (s *Service) DeleteAccount(ctx context.Context, ownerID string, accountID string) error {
	if _, err := s.repo.GetAccount(ctx, ownerID, accountID); err != nil {
		return err
	}
	if err := s.repo.DeleteAccount(ctx, ownerID, accountID); err != nil {
		return err
	}
	s.logger.Info("account deleted", "ownerId", ownerID, "accountId", accountID)
	return nil
}

// SetDefaultAccount makes the account the owner's default, demoting the
// previous default in the same unit
func (s *Service) SetDefaultAccount(ctx context.Context, ownerID string, accountID string) error {
	a, err := s.repo.GetAccount(ctx, ownerID, accountID)
	if err != nil {
		return err
	}
	if a.IsArchived {
		return errors.NewConflictError("an archived account cannot be the default")
	}
	if a.IsDefault {
		return nil
	}

	existing, err := s.repo.GetAccounts(ctx, ownerID, true)
	if err != nil {
		return err
	}
	demoteID := ""
	if prev := currentDefault(existing); prev != nil && prev.AccountID != accountID {
		demoteID = prev.AccountID
	}

	return s.repo.SetDefaultAccount(ctx, ownerID, accountID, demoteID)
}

// ArchiveAccount soft-deletes an account. The current default cannot be
// archived; switch the default first.
func (s *Service) ArchiveAccount(ctx context.Context, ownerID string, accountID string) error {
	a, err := s.repo.GetAccount(ctx, ownerID, accountID)
	if err != nil {
		return err
	}
	if a.IsDefault {
		return errors.NewConflictError("cannot archive the default account; set another account as default first")
	}
	return s.repo.SetArchived(ctx, ownerID, accountID, true)
}

// UnarchiveAccount clears the archived flag
func (s *Service) UnarchiveAccount(ctx context.Context, ownerID string, accountID string) error {
	if _, err := s.repo.GetAccount(ctx, ownerID, accountID); err != nil {
		return err
	}
	return s.repo.SetArchived(ctx, ownerID, accountID, false)
}

// RecalculateBalance recomputes an account's balance from its transaction
// history and overwrites the stored value. Both legs of a transfer are
// ordinary income/expense postings, so they are included without double
// counting. The operation is idempotent: with no intervening writes it
// returns the same value every time.
func (s *Service) RecalculateBalance(ctx context.Context, ownerID string, accountID string) (decimal.Decimal, error) {
	if _, err := s.repo.GetAccount(ctx, ownerID, accountID); err != nil {
		return decimal.Zero, err
	}

	income, expense, err := s.ledger.IncomeExpenseSums(ctx, ownerID, accountID)
	if err != nil {
		return decimal.Zero, err
	}

	balance := income.Sub(expense)
	if err := s.repo.UpdateBalance(ctx, ownerID, accountID, balance); err != nil {
		return decimal.Zero, err
	}

	s.logger.Info("balance recalculated", "ownerId", ownerID, "accountId", accountID, "balance", balance.String())
	return balance, nil
}

func findByName(accounts []*Account, name string, excludeID string) *Account {
	for _, a := range accounts {
		if a.AccountID == excludeID {
			continue
		}
		if strings.EqualFold(a.Name, name) {
			return a
		}
	}
	return nil
}

func currentDefault(accounts []*Account) *Account {
	for _, a := range accounts {
		if a.IsDefault && !a.IsArchived {
			return a
		}
	}
	return nil
}
