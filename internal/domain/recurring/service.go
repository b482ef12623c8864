package recurring

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pyera/ledger/internal/domain/account"
	"github.com/pyera/ledger/internal/domain/errors"
	"github.com/pyera/ledger/internal/domain/transaction"
	"github.com/pyera/ledger/pkg/validator"
)

// Service provides recurring-definition business logic and the scheduling
// operations the background driver calls.
type Service struct {
	repo     Repository
	accounts account.Repository
	logger   *slog.Logger
}

// NewService creates a new recurring transaction service
func NewService(repo Repository, accounts account.Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		accounts: accounts,
		logger:   logger,
	}
}

// CreateDefinition creates a recurring definition. The definition starts
// active with NextDueDate defaulting to StartDate.
func (s *Service) CreateDefinition(ctx context.Context, ownerID string, req *CreateDefinitionRequest) (*Definition, error) {
	if err := validator.PositiveAmount("amount", req.Amount); err != nil {
		return nil, err
	}
	if !req.Type.Valid() {
		return nil, errors.NewValidationError("transaction type must be income or expense")
	}
	if err := validator.NonBlank("description", req.Description); err != nil {
		return nil, err
	}
	if !req.Frequency.Valid() {
		return nil, errors.NewValidationError("unknown frequency")
	}
	if req.StartDate.IsZero() {
		return nil, errors.NewValidationError("start date is required")
	}
	if _, err := s.accounts.GetAccount(ctx, ownerID, req.AccountID); err != nil {
		return nil, err
	}

	start := DateOnly(req.StartDate)
	next := start
	if !req.NextDueDate.IsZero() {
		next = DateOnly(req.NextDueDate)
	}
	if next.Before(start) {
		return nil, errors.NewValidationError("next due date cannot be before the start date")
	}

	var end *time.Time
	if req.EndDate != nil {
		e := DateOnly(*req.EndDate)
		if e.Before(start) {
			return nil, errors.NewValidationError("end date cannot be before the start date")
		}
		if next.After(e) {
			return nil, errors.NewValidationError("next due date cannot be after the end date")
		}
		end = &e
	}

	now := time.Now().UTC()
	d := &Definition{
		OwnerID:      ownerID,
		DefinitionID: ulid.Make().String(),
		AccountID:    req.AccountID,
		Amount:       req.Amount,
		Type:         req.Type,
		CategoryID:   req.CategoryID,
		Description:  req.Description,
		Frequency:    req.Frequency,
		StartDate:    start,
		EndDate:      end,
		NextDueDate:  next,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.repo.CreateDefinition(ctx, d)
	if err != nil {
		return nil, err
	}

	s.logger.Info("recurring definition created",
		"ownerId", ownerID, "definitionId", created.DefinitionID,
		"frequency", created.Frequency, "nextDueDate", created.NextDueDate.Format("2006-01-02"))
	return created, nil
}

// GetDefinition retrieves a definition by ID
func (s *Service) GetDefinition(ctx context.Context, ownerID string, definitionID string) (*Definition, error) {
	return s.repo.GetDefinition(ctx, ownerID, definitionID)
}

// ListDefinitions retrieves all of an owner's definitions
func (s *Service) ListDefinitions(ctx context.Context, ownerID string) ([]*Definition, error) {
	return s.repo.GetDefinitions(ctx, ownerID)
}

// UpdateDefinition applies an edit to a definition. Schedule state is not
// editable here; use Activate/Deactivate.
func (s *Service) UpdateDefinition(ctx context.Context, ownerID string, definitionID string, req *UpdateDefinitionRequest) (*Definition, error) {
	d, err := s.repo.GetDefinition(ctx, ownerID, definitionID)
	if err != nil {
		return nil, err
	}

	if !req.Amount.IsZero() {
		if err := validator.PositiveAmount("amount", req.Amount); err != nil {
			return nil, err
		}
		d.Amount = req.Amount
	}
	if req.Description != "" {
		d.Description = req.Description
	}
	if req.CategoryID != nil {
		d.CategoryID = *req.CategoryID
	}
	if req.EndDate != nil {
		e := DateOnly(*req.EndDate)
		if e.Before(d.StartDate) {
			return nil, errors.NewValidationError("end date cannot be before the start date")
		}
		if d.IsActive && e.Before(d.NextDueDate) {
			return nil, errors.NewValidationError("end date cannot be before the next due date; deactivate the definition instead")
		}
		d.EndDate = &e
	}
	d.UpdatedAt = time.Now().UTC()

	return s.repo.UpdateDefinition(ctx, d)
}

// DeleteDefinition removes a definition. Transactions it already
// materialized stay in the ledger.
func (s *Service) DeleteDefinition(ctx context.Context, ownerID string, definitionID string) error {
	if _, err := s.repo.GetDefinition(ctx, ownerID, definitionID); err != nil {
		return err
	}
	return s.repo.DeleteDefinition(ctx, ownerID, definitionID)
}

// GetDue returns the active definitions whose due date has arrived as of the
// given time.
func (s *Service) GetDue(ctx context.Context, asOf time.Time) ([]*Definition, error) {
	return s.repo.GetDue(ctx, asOf)
}

// ProcessDue materializes one due definition: a transaction dated at the
// current due date is inserted and the schedule advances, all in one atomic
// unit. When the advanced date would pass a set end date the definition
// instead goes inactive with its due date untouched, so the history shows
// the last materialized occurrence.
//
// The unit is conditioned on the due date this call read; concurrent
// processing of the same definition posts exactly once and the loser
// receives a ConflictError.
func (s *Service) ProcessDue(ctx context.Context, d *Definition) error {
	if !d.IsActive {
		return errors.NewConflictError("recurring definition is not active")
	}

	now := time.Now().UTC()
	t := &transaction.Transaction{
		OwnerID:       d.OwnerID,
		TransactionID: ulid.Make().String(),
		AccountID:     d.AccountID,
		Amount:        d.Amount,
		Note:          d.Description,
		Date:          d.NextDueDate,
		Type:          d.Type,
		CategoryID:    d.CategoryID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	candidateNext := NextDueDate(d.Frequency, d.NextDueDate)
	deactivate := d.EndDate != nil && candidateNext.After(*d.EndDate)

	if err := s.repo.MaterializeDue(ctx, d, t, candidateNext, deactivate); err != nil {
		return err
	}

	if deactivate {
		s.logger.Info("recurring definition reached its end date",
			"ownerId", d.OwnerID, "definitionId", d.DefinitionID)
	} else {
		s.logger.Info("recurring definition materialized",
			"ownerId", d.OwnerID, "definitionId", d.DefinitionID,
			"nextDueDate", candidateNext.Format("2006-01-02"))
	}
	return nil
}

// Deactivate explicitly pauses a definition.
func (s *Service) Deactivate(ctx context.Context, ownerID string, definitionID string) error {
	d, err := s.repo.GetDefinition(ctx, ownerID, definitionID)
	if err != nil {
		return err
	}
	if !d.IsActive {
		return nil
	}
	return s.repo.SetActive(ctx, d, d.NextDueDate, false)
}

// Activate resumes an inactive definition. The caller supplies the
// re-anchored due date; the old one is never recomputed.
func (s *Service) Activate(ctx context.Context, ownerID string, definitionID string, nextDue time.Time) error {
	d, err := s.repo.GetDefinition(ctx, ownerID, definitionID)
	if err != nil {
		return err
	}

	next := DateOnly(nextDue)
	if next.Before(d.StartDate) {
		return errors.NewValidationError("next due date cannot be before the start date")
	}
	if d.EndDate != nil && next.After(*d.EndDate) {
		return errors.NewValidationError("next due date cannot be after the end date")
	}
	return s.repo.SetActive(ctx, d, next, true)
}
