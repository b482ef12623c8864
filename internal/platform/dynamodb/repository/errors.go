package repository

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	commonErrors "github.com/pyera/ledger/internal/domain/errors"
)

// isConditionalCheckFailed reports whether err is a failed condition on a
// single-item write.
func isConditionalCheckFailed(err error) bool {
	var condErr *types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}

// isTransactionCanceled reports whether err is a canceled TransactWriteItems
// call whose cancellation reasons include a failed condition. DynamoDB
// cancels the whole unit, so nothing was written.
func isTransactionCanceled(err error) bool {
	var cancelErr *types.TransactionCanceledException
	if !errors.As(err, &cancelErr) {
		return false
	}
	for _, reason := range cancelErr.CancellationReasons {
		if reason.Code == nil {
			continue
		}
		// TransactionConflict means another transaction touched the same
		// items; for callers both cases mean "state moved, re-read and retry".
		if *reason.Code == "ConditionalCheckFailed" || *reason.Code == "TransactionConflict" {
			return true
		}
	}
	return false
}

// storageError wraps any other store failure unmodified; the caller owns
// retry policy.
func storageError(op string, err error) error {
	return commonErrors.NewStorageError("dynamodb "+op+" failed", err)
}
