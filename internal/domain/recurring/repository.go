package recurring

import (
	"context"
	"time"

	"github.com/pyera/ledger/internal/domain/transaction"
)

// Repository defines the interface for recurring definition data operations
type Repository interface {
	// Create a new definition
	CreateDefinition(ctx context.Context, d *Definition) (*Definition, error)

	// Get a definition by ID
	GetDefinition(ctx context.Context, ownerID string, definitionID string) (*Definition, error)

	// Get all definitions for an owner
	GetDefinitions(ctx context.Context, ownerID string) ([]*Definition, error)

	// Update an existing definition
	UpdateDefinition(ctx context.Context, d *Definition) (*Definition, error)

	// Delete a definition
	DeleteDefinition(ctx context.Context, ownerID string, definitionID string) error

	// Get active definitions due on or before asOf, across owners. No
	// ordering guarantee; each result is processed independently.
	GetDue(ctx context.Context, asOf time.Time) ([]*Definition, error)

	// Materialize one due definition: insert the transaction and either
	// advance the due date to candidateNext or, when deactivate is set, flip
	// the definition inactive leaving NextDueDate unchanged. The whole unit
	// commits atomically and is conditioned on the definition still holding
	// the NextDueDate carried by d, so two workers processing the same
	// definition cannot both post; the loser gets a ConflictError.
	MaterializeDue(ctx context.Context, d *Definition, t *transaction.Transaction, candidateNext time.Time, deactivate bool) error

	// Explicitly activate (with a re-anchored due date) or deactivate a
	// definition
	SetActive(ctx context.Context, d *Definition, nextDue time.Time, active bool) error
}
