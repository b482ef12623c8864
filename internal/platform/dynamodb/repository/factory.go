package repository

import (
	"log/slog"

	"github.com/pyera/ledger/internal/domain/account"
	"github.com/pyera/ledger/internal/domain/recurring"
	"github.com/pyera/ledger/internal/domain/transaction"
	"github.com/pyera/ledger/internal/domain/transfer"
	"github.com/pyera/ledger/internal/platform/dynamodb/client"
)

// Factory creates repository instances
type Factory struct {
	client    client.Client
	tableName string
	logger    *slog.Logger
}

// NewFactory creates a new repository factory
func NewFactory(client client.Client, tableName string, logger *slog.Logger) *Factory {
	return &Factory{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// AccountRepository returns an implementation of the account.Repository interface
func (f *Factory) AccountRepository() account.Repository {
	return NewDynamoDBAccountRepository(f.client, f.tableName, f.logger)
}

// TransactionRepository returns an implementation of the transaction.Repository interface
func (f *Factory) TransactionRepository() transaction.Repository {
	return NewDynamoDBTransactionRepository(f.client, f.tableName, f.logger)
}

// LedgerReader returns the income/expense aggregation view used by balance
// recalculation.
func (f *Factory) LedgerReader() account.LedgerReader {
	return NewDynamoDBTransactionRepository(f.client, f.tableName, f.logger)
}

// TransferRepository returns an implementation of the transfer.Repository interface
func (f *Factory) TransferRepository() transfer.Repository {
	return NewDynamoDBTransferRepository(f.client, f.tableName, f.logger)
}

// RecurringRepository returns an implementation of the recurring.Repository interface
func (f *Factory) RecurringRepository() recurring.Repository {
	return NewDynamoDBRecurringRepository(f.client, f.tableName, f.logger)
}
