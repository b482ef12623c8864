package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	commonErrors "github.com/pyera/ledger/internal/domain/errors"
	"github.com/pyera/ledger/internal/domain/transfer"
	"github.com/pyera/ledger/internal/platform/dynamodb/client"
)

// DynamoDBTransferRepository implements the transfer.Repository interface
type DynamoDBTransferRepository struct {
	client client.Client
	table  string
	logger *slog.Logger
}

// NewDynamoDBTransferRepository creates a new DynamoDBTransferRepository
func NewDynamoDBTransferRepository(client client.Client, table string, logger *slog.Logger) *DynamoDBTransferRepository {
	return &DynamoDBTransferRepository{
		client: client,
		table:  table,
		logger: logger,
	}
}

// PostTransfer writes both legs and both balance updates in a single
// transact unit. Each balance update is conditioned on the balance the
// coordinator read, so a concurrent writer cancels the whole unit and
// neither leg lands.
func (r *DynamoDBTransferRepository) PostTransfer(ctx context.Context, p *transfer.Posting) error {
	outgoing, err := attributevalue.MarshalMap(newTransactionItem(p.Outgoing))
	if err != nil {
		return commonErrors.NewInternalError("failed to marshal outgoing leg", err)
	}
	incoming, err := attributevalue.MarshalMap(newTransactionItem(p.Incoming))
	if err != nil {
		return commonErrors.NewInternalError("failed to marshal incoming leg", err)
	}

	now := time.Now().UTC().Format(timestampFormat)
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(r.table),
					Item:                outgoing,
					ConditionExpression: aws.String("attribute_not_exists(PK)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(r.table),
					Item:                incoming,
					ConditionExpression: aws.String("attribute_not_exists(PK)"),
				},
			},
			balanceUpdate(r.table, p.OwnerID, p.FromAccountID, p.FromBalance.String(), p.NewFromBalance.String(), now),
			balanceUpdate(r.table, p.OwnerID, p.ToAccountID, p.ToBalance.String(), p.NewToBalance.String(), now),
		},
	})
	if err != nil {
		if isTransactionCanceled(err) {
			return commonErrors.NewConflictError("account balance changed concurrently; retry the transfer")
		}
		return storageError("TransactWriteItems", err)
	}
	return nil
}

// balanceUpdate moves an account's balance from a known value to a new one
// and records the posting reference in the same expression.
func balanceUpdate(table, ownerID, accountID, current, next, now string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:           aws.String(table),
			Key:                 itemKey(ownerPK(ownerID), accountSK(accountID)),
			UpdateExpression:    aws.String("SET Balance = :balance, UpdatedAt = :now ADD TransactionCount :one"),
			ConditionExpression: aws.String("attribute_exists(PK) AND Balance = :current"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":balance": &types.AttributeValueMemberS{Value: next},
				":current": &types.AttributeValueMemberS{Value: current},
				":now":     &types.AttributeValueMemberS{Value: now},
				":one":     &types.AttributeValueMemberN{Value: "1"},
			},
		},
	}
}
