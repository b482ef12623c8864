package transaction

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/pyera/ledger/internal/domain/account"
	"github.com/pyera/ledger/internal/domain/errors"
	"github.com/pyera/ledger/pkg/validator"
)

// Service provides posting-related business logic
type Service struct {
	repo     Repository
	accounts account.Repository
	logger   *slog.Logger
}

// NewService creates a new transaction service
func NewService(repo Repository, accounts account.Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		accounts: accounts,
		logger:   logger,
	}
}

// RecordTransaction records a direct (non-transfer) posting against an
// account. Category assignment happens upstream; the id arrives already
// resolved or empty. Recording a posting does not touch the account's stored
// balance; RecalculateBalance is the explicit correction operation.
func (s *Service) RecordTransaction(ctx context.Context, ownerID string, req *RecordTransactionRequest) (*Transaction, error) {
	if err := validator.PositiveAmount("amount", req.Amount); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, errors.NewValidationError("transaction type must be income or expense")
	}
	if _, err := s.accounts.GetAccount(ctx, ownerID, req.AccountID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	date := req.Date
	if date.IsZero() {
		date = now
	}

	t := &Transaction{
		OwnerID:       ownerID,
		TransactionID: ulid.Make().String(),
		AccountID:     req.AccountID,
		Amount:        req.Amount,
		Note:          req.Note,
		Date:          date,
		Type:          req.Type,
		CategoryID:    req.CategoryID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	created, err := s.repo.CreateTransaction(ctx, t)
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction recorded",
		"ownerId", ownerID, "transactionId", created.TransactionID,
		"accountId", created.AccountID, "type", created.Type)
	return created, nil
}

// GetTransaction retrieves a posting by ID
func (s *Service) GetTransaction(ctx context.Context, ownerID string, transactionID string) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, ownerID, transactionID)
}

// ListTransactions retrieves an account's postings, newest first within the
// filter's date range
func (s *Service) ListTransactions(ctx context.Context, ownerID string, filter *Filter) ([]*Transaction, error) {
	if filter == nil || filter.AccountID == "" {
		return nil, errors.NewValidationError("an account id is required to list transactions")
	}
	return s.repo.GetTransactions(ctx, ownerID, filter)
}

// SumByType sums an account's postings of the given type
func (s *Service) SumByType(ctx context.Context, ownerID string, accountID string, t Type) (decimal.Decimal, error) {
	if !t.Valid() {
		return decimal.Zero, errors.NewValidationError("transaction type must be income or expense")
	}
	return s.repo.SumByAccount(ctx, ownerID, accountID, t)
}

// DeleteTransaction removes a posting. The owning account's stored balance is
// deliberately left alone; whether a delete triggers recalculation is the
// caller's policy.
func (s *Service) DeleteTransaction(ctx context.Context, ownerID string, transactionID string) error {
	if _, err := s.repo.GetTransaction(ctx, ownerID, transactionID); err != nil {
		return err
	}
	return s.repo.DeleteTransaction(ctx, ownerID, transactionID)
}
