package recurring

import (
	"context"
	stderrors "errors"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyera/ledger/internal/domain/account"
	"github.com/pyera/ledger/internal/domain/errors"
	"github.com/pyera/ledger/internal/domain/transaction"
)

// stubAccounts knows a fixed set of account IDs.
type stubAccounts struct {
	known map[string]bool
}

func (s *stubAccounts) GetAccount(ctx context.Context, ownerID string, accountID string) (*account.Account, error) {
	if !s.known[accountID] {
		return nil, errors.NewNotFoundError("account not found")
	}
	return &account.Account{OwnerID: ownerID, AccountID: accountID}, nil
}

func (s *stubAccounts) CreateAccount(ctx context.Context, a *account.Account, demoteDefaultID string) (*account.Account, error) {
	return nil, errors.NewInternalError("not implemented", nil)
}

func (s *stubAccounts) GetAccounts(ctx context.Context, ownerID string, includeArchived bool) ([]*account.Account, error) {
	return nil, errors.NewInternalError("not implemented", nil)
}

func (s *stubAccounts) UpdateAccount(ctx context.Context, a *account.Account) (*account.Account, error) {
	return nil, errors.NewInternalError("not implemented", nil)
}

func (s *stubAccounts) DeleteAccount(ctx context.Context, ownerID string, accountID string) error {
	return errors.NewInternalError("not implemented", nil)
}

func (s *stubAccounts) SetDefaultAccount(ctx context.Context, ownerID string, accountID string, previousDefaultID string) error {
	return errors.NewInternalError("not implemented", nil)
}

func (s *stubAccounts) SetArchived(ctx context.Context, ownerID string, accountID string, archived bool) error {
	return errors.NewInternalError("not implemented", nil)
}

func (s *stubAccounts) UpdateBalance(ctx context.Context, ownerID string, accountID string, balance decimal.Decimal) error {
	return errors.NewInternalError("not implemented", nil)
}

// fakeRepository is an in-memory recurring.Repository. MaterializeDue honors
// the same due-date condition as the real store.
type fakeRepository struct {
	definitions  map[string]*Definition
	materialized []*transaction.Transaction
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{definitions: make(map[string]*Definition)}
}

func (f *fakeRepository) CreateDefinition(ctx context.Context, d *Definition) (*Definition, error) {
	stored := *d
	f.definitions[d.DefinitionID] = &stored
	return d, nil
}

func (f *fakeRepository) GetDefinition(ctx context.Context, ownerID string, definitionID string) (*Definition, error) {
	d, ok := f.definitions[definitionID]
	if !ok || d.OwnerID != ownerID {
		return nil, errors.NewNotFoundError("recurring definition not found")
	}
	copied := *d
	return &copied, nil
}

func (f *fakeRepository) GetDefinitions(ctx context.Context, ownerID string) ([]*Definition, error) {
	var result []*Definition
	for _, d := range f.definitions {
		if d.OwnerID != ownerID {
			continue
		}
		copied := *d
		result = append(result, &copied)
	}
	return result, nil
}

func (f *fakeRepository) UpdateDefinition(ctx context.Context, d *Definition) (*Definition, error) {
	if _, ok := f.definitions[d.DefinitionID]; !ok {
		return nil, errors.NewNotFoundError("recurring definition not found")
	}
	stored := *d
	f.definitions[d.DefinitionID] = &stored
	return d, nil
}

func (f *fakeRepository) DeleteDefinition(ctx context.Context, ownerID string, definitionID string) error {
	if _, ok := f.definitions[definitionID]; !ok {
		return errors.NewNotFoundError("recurring definition not found")
	}
	delete(f.definitions, definitionID)
	return nil
}

func (f *fakeRepository) GetDue(ctx context.Context, asOf time.Time) ([]*Definition, error) {
	day := DateOnly(asOf)
	var result []*Definition
	for _, d := range f.definitions {
		if !d.IsActive || d.NextDueDate.After(day) {
			continue
		}
		copied := *d
		result = append(result, &copied)
	}
	return result, nil
}

func (f *fakeRepository) MaterializeDue(ctx context.Context, d *Definition, t *transaction.Transaction, candidateNext time.Time, deactivate bool) error {
	stored, ok := f.definitions[d.DefinitionID]
	if !ok {
		return errors.NewNotFoundError("recurring definition not found")
	}
	if !stored.IsActive || !stored.NextDueDate.Equal(d.NextDueDate) {
		return errors.NewConflictError("recurring definition already processed for this due date")
	}

	copied := *t
	f.materialized = append(f.materialized, &copied)
	if deactivate {
		stored.IsActive = false
	} else {
		stored.NextDueDate = candidateNext
	}
	return nil
}

func (f *fakeRepository) SetActive(ctx context.Context, d *Definition, nextDue time.Time, active bool) error {
	stored, ok := f.definitions[d.DefinitionID]
	if !ok {
		return errors.NewNotFoundError("recurring definition not found")
	}
	stored.IsActive = active
	stored.NextDueDate = nextDue
	return nil
}

func newTestService(repo *fakeRepository) *Service {
	return NewService(repo, &stubAccounts{known: map[string]bool{"acc1": true}}, slog.Default())
}

func monthlyRequest() *CreateDefinitionRequest {
	return &CreateDefinitionRequest{
		AccountID:   "acc1",
		Amount:      decimal.RequireFromString("9.99"),
		Type:        transaction.Expense,
		Description: "Streaming subscription",
		Frequency:   Monthly,
		StartDate:   date(2025, time.January, 15),
	}
}

func TestCreateDefinition(t *testing.T) {
	ctx := context.Background()
	ownerID := "owner1"

	t.Run("starts active with next due defaulting to start", func(t *testing.T) {
		svc := newTestService(newFakeRepository())

		d, err := svc.CreateDefinition(ctx, ownerID, monthlyRequest())
		require.NoError(t, err)
		assert.True(t, d.IsActive)
		assert.Equal(t, date(2025, time.January, 15), d.NextDueDate)
		assert.NotEmpty(t, d.DefinitionID)
	})

	t.Run("explicit next due date is kept", func(t *testing.T) {
		svc := newTestService(newFakeRepository())

		req := monthlyRequest()
		req.NextDueDate = date(2025, time.February, 15)
		d, err := svc.CreateDefinition(ctx, ownerID, req)
		require.NoError(t, err)
		assert.Equal(t, date(2025, time.February, 15), d.NextDueDate)
	})

	t.Run("validation failures", func(t *testing.T) {
		svc := newTestService(newFakeRepository())

		req := monthlyRequest()
		req.Amount = decimal.Zero
		_, err := svc.CreateDefinition(ctx, ownerID, req)
		assert.True(t, stderrors.Is(err, errors.NewValidationError("")))

		req = monthlyRequest()
		req.Type = "transfer"
		_, err = svc.CreateDefinition(ctx, ownerID, req)
		assert.True(t, stderrors.Is(err, errors.NewValidationError("")))

		req = monthlyRequest()
		req.Description = ""
		_, err = svc.CreateDefinition(ctx, ownerID, req)
		assert.True(t, stderrors.Is(err, errors.NewValidationError("")))

		req = monthlyRequest()
		req.Frequency = "hourly"
		_, err = svc.CreateDefinition(ctx, ownerID, req)
		assert.True(t, stderrors.Is(err, errors.NewValidationError("")))

		req = monthlyRequest()
		req.StartDate = time.Time{}
		_, err = svc.CreateDefinition(ctx, ownerID, req)
		assert.True(t, stderrors.Is(err, errors.NewValidationError("")))

		req = monthlyRequest()
		req.NextDueDate = date(2025, time.January, 1)
		_, err = svc.CreateDefinition(ctx, ownerID, req)
		assert.True(t, stderrors.Is(err, errors.NewValidationError("")))

		req = monthlyRequest()
		end := date(2024, time.December, 31)
		req.EndDate = &end
		_, err = svc.CreateDefinition(ctx, ownerID, req)
		assert.True(t, stderrors.Is(err, errors.NewValidationError("")))
	})

	t.Run("unknown account is rejected", func(t *testing.T) {
		svc := newTestService(newFakeRepository())

		req := monthlyRequest()
		req.AccountID = "missing"
		_, err := svc.CreateDefinition(ctx, ownerID, req)
		assert.True(t, stderrors.Is(err, errors.NewNotFoundError("")))
	})
}

func TestProcessDue(t *testing.T) {
	ctx := context.Background()
	ownerID := "owner1"

	t.Run("materializes a transaction dated at the due date", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)

		d, err := svc.CreateDefinition(ctx, ownerID, monthlyRequest())
		require.NoError(t, err)

		require.NoError(t, svc.ProcessDue(ctx, d))

		require.Len(t, repo.materialized, 1)
		materialized := repo.materialized[0]
		assert.True(t, materialized.Date.Equal(date(2025, time.January, 15)))
		assert.Equal(t, "Streaming subscription", materialized.Note)
		assert.Equal(t, transaction.Expense, materialized.Type)
		assert.Equal(t, "9.99", materialized.Amount.String())
		assert.False(t, materialized.IsTransfer)

		stored, err := svc.GetDefinition(ctx, ownerID, d.DefinitionID)
		require.NoError(t, err)
		assert.Equal(t, date(2025, time.February, 15), stored.NextDueDate)
		assert.True(t, stored.IsActive)
	})

	t.Run("deactivates when the advance passes the end date", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)

		// Daily schedule ending two days after the start: due dates D and
		// D+1 materialize, then the definition goes inactive with its due
		// date left at the last processed occurrence.
		req := &CreateDefinitionRequest{
			AccountID:   "acc1",
			Amount:      decimal.NewFromInt(5),
			Type:        transaction.Expense,
			Description: "Parking",
			Frequency:   Daily,
			StartDate:   date(2025, time.March, 1),
		}
		end := date(2025, time.March, 2)
		req.EndDate = &end

		d, err := svc.CreateDefinition(ctx, ownerID, req)
		require.NoError(t, err)

		// D
		require.NoError(t, svc.ProcessDue(ctx, d))
		d, err = svc.GetDefinition(ctx, ownerID, d.DefinitionID)
		require.NoError(t, err)
		assert.True(t, d.IsActive)
		assert.Equal(t, date(2025, time.March, 2), d.NextDueDate)

		// D+1 is the last occurrence; the advance to D+2 passes the end date.
		require.NoError(t, svc.ProcessDue(ctx, d))
		d, err = svc.GetDefinition(ctx, ownerID, d.DefinitionID)
		require.NoError(t, err)
		assert.False(t, d.IsActive)
		assert.Equal(t, date(2025, time.March, 2), d.NextDueDate)

		assert.Len(t, repo.materialized, 2)

		// An inactive definition never materializes again.
		err = svc.ProcessDue(ctx, d)
		assert.True(t, stderrors.Is(err, errors.NewConflictError("")))
		assert.Len(t, repo.materialized, 2)
	})

	t.Run("stale due date loses with a conflict", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)

		d, err := svc.CreateDefinition(ctx, ownerID, monthlyRequest())
		require.NoError(t, err)

		// Two workers read the same definition; the first wins.
		stale := *d
		require.NoError(t, svc.ProcessDue(ctx, d))

		err = svc.ProcessDue(ctx, &stale)
		assert.True(t, stderrors.Is(err, errors.NewConflictError("")))
		assert.Len(t, repo.materialized, 1)
	})
}

func TestGetDue(t *testing.T) {
	ctx := context.Background()
	ownerID := "owner1"

	repo := newFakeRepository()
	svc := newTestService(repo)

	due, err := svc.CreateDefinition(ctx, ownerID, monthlyRequest())
	require.NoError(t, err)

	later := monthlyRequest()
	later.Description = "Gym"
	later.NextDueDate = date(2025, time.June, 1)
	_, err = svc.CreateDefinition(ctx, ownerID, later)
	require.NoError(t, err)

	got, err := svc.GetDue(ctx, date(2025, time.February, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due.DefinitionID, got[0].DefinitionID)
}

func TestActivateDeactivate(t *testing.T) {
	ctx := context.Background()
	ownerID := "owner1"

	t.Run("deactivate is idempotent", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)

		d, err := svc.CreateDefinition(ctx, ownerID, monthlyRequest())
		require.NoError(t, err)

		require.NoError(t, svc.Deactivate(ctx, ownerID, d.DefinitionID))
		require.NoError(t, svc.Deactivate(ctx, ownerID, d.DefinitionID))

		stored, err := svc.GetDefinition(ctx, ownerID, d.DefinitionID)
		require.NoError(t, err)
		assert.False(t, stored.IsActive)
	})

	t.Run("activate re-anchors the due date", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)

		d, err := svc.CreateDefinition(ctx, ownerID, monthlyRequest())
		require.NoError(t, err)
		require.NoError(t, svc.Deactivate(ctx, ownerID, d.DefinitionID))

		require.NoError(t, svc.Activate(ctx, ownerID, d.DefinitionID, date(2025, time.August, 1)))

		stored, err := svc.GetDefinition(ctx, ownerID, d.DefinitionID)
		require.NoError(t, err)
		assert.True(t, stored.IsActive)
		assert.Equal(t, date(2025, time.August, 1), stored.NextDueDate)
	})

	t.Run("activate validates the new date against the bounds", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)

		req := monthlyRequest()
		end := date(2025, time.June, 30)
		req.EndDate = &end
		d, err := svc.CreateDefinition(ctx, ownerID, req)
		require.NoError(t, err)

		err = svc.Activate(ctx, ownerID, d.DefinitionID, date(2024, time.December, 1))
		assert.True(t, stderrors.Is(err, errors.NewValidationError("")))

		err = svc.Activate(ctx, ownerID, d.DefinitionID, date(2025, time.July, 1))
		assert.True(t, stderrors.Is(err, errors.NewValidationError("")))
	})
}

func TestUpdateDefinition(t *testing.T) {
	ctx := context.Background()
	ownerID := "owner1"

	repo := newFakeRepository()
	svc := newTestService(repo)

	d, err := svc.CreateDefinition(ctx, ownerID, monthlyRequest())
	require.NoError(t, err)

	t.Run("partial edit", func(t *testing.T) {
		updated, err := svc.UpdateDefinition(ctx, ownerID, d.DefinitionID, &UpdateDefinitionRequest{
			Amount: decimal.RequireFromString("12.99"),
		})
		require.NoError(t, err)
		assert.Equal(t, "12.99", updated.Amount.String())
		assert.Equal(t, "Streaming subscription", updated.Description)
		assert.Equal(t, d.NextDueDate, updated.NextDueDate)
	})

	t.Run("end date before start is rejected", func(t *testing.T) {
		end := date(2024, time.June, 1)
		_, err := svc.UpdateDefinition(ctx, ownerID, d.DefinitionID, &UpdateDefinitionRequest{EndDate: &end})
		assert.True(t, stderrors.Is(err, errors.NewValidationError("")))
	})

	t.Run("end date cannot undercut the pending due date", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newTestService(repo)

		d, err := svc.CreateDefinition(ctx, ownerID, monthlyRequest())
		require.NoError(t, err)

		// The schedule has advanced past the proposed end date.
		require.NoError(t, svc.ProcessDue(ctx, d))
		d, err = svc.GetDefinition(ctx, ownerID, d.DefinitionID)
		require.NoError(t, err)
		require.Equal(t, date(2025, time.February, 15), d.NextDueDate)

		end := date(2025, time.February, 1)
		_, err = svc.UpdateDefinition(ctx, ownerID, d.DefinitionID, &UpdateDefinitionRequest{EndDate: &end})
		assert.True(t, stderrors.Is(err, errors.NewValidationError("")))

		// The definition never becomes due-and-doomed: nothing past the
		// last materialized occurrence exists.
		assert.Len(t, repo.materialized, 1)

		// An end date at the pending due date is fine.
		atDue := date(2025, time.February, 15)
		updated, err := svc.UpdateDefinition(ctx, ownerID, d.DefinitionID, &UpdateDefinitionRequest{EndDate: &atDue})
		require.NoError(t, err)
		require.NotNil(t, updated.EndDate)
		assert.Equal(t, atDue, *updated.EndDate)
	})
}
