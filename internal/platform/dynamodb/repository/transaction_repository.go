package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	commonErrors "github.com/pyera/ledger/internal/domain/errors"
	"github.com/pyera/ledger/internal/domain/transaction"
	"github.com/pyera/ledger/internal/platform/dynamodb/client"
)

// DynamoDBTransactionRepository implements the transaction.Repository
// interface. It also satisfies account.LedgerReader for balance
// recalculation.
type DynamoDBTransactionRepository struct {
	client client.Client
	table  string
	logger *slog.Logger
}

// NewDynamoDBTransactionRepository creates a new DynamoDBTransactionRepository
func NewDynamoDBTransactionRepository(client client.Client, table string, logger *slog.Logger) *DynamoDBTransactionRepository {
	return &DynamoDBTransactionRepository{
		client: client,
		table:  table,
		logger: logger,
	}
}

// CreateTransaction inserts a posting and bumps the owning account's
// reference count in one transact unit.
func (r *DynamoDBTransactionRepository) CreateTransaction(ctx context.Context, t *transaction.Transaction) (*transaction.Transaction, error) {
	item, err := attributevalue.MarshalMap(newTransactionItem(t))
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to marshal transaction", err)
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(r.table),
					Item:                item,
					ConditionExpression: aws.String("attribute_not_exists(PK)"),
				},
			},
			referenceCountUpdate(r.table, t.OwnerID, t.AccountID, 1),
		},
	})
	if err != nil {
		if isTransactionCanceled(err) {
			return nil, commonErrors.NewConflictError("transaction already exists or account is missing")
		}
		return nil, storageError("TransactWriteItems", err)
	}
	return t, nil
}

// GetTransaction retrieves a posting by ID
func (r *DynamoDBTransactionRepository) GetTransaction(ctx context.Context, ownerID string, transactionID string) (*transaction.Transaction, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       itemKey(ownerPK(ownerID), transactionSK(transactionID)),
	})
	if err != nil {
		return nil, storageError("GetItem", err)
	}
	if len(result.Item) == 0 {
		return nil, commonErrors.NewNotFoundError("transaction not found")
	}

	var item transactionItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, commonErrors.NewInternalError("failed to unmarshal transaction", err)
	}
	return item.toTransaction()
}

// GetTransactions retrieves an account's postings via the account index,
// newest first, bounded by the filter's date range when set.
func (r *DynamoDBTransactionRepository) GetTransactions(ctx context.Context, ownerID string, filter *transaction.Filter) ([]*transaction.Transaction, error) {
	items, err := r.queryByAccount(ctx, filter)
	if err != nil {
		return nil, err
	}

	transactions := make([]*transaction.Transaction, 0, len(items))
	for _, item := range items {
		t, err := item.toTransaction()
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, nil
}

// SumByAccount sums the amounts of an account's postings of one type
func (r *DynamoDBTransactionRepository) SumByAccount(ctx context.Context, ownerID string, accountID string, t transaction.Type) (decimal.Decimal, error) {
	income, expense, err := r.IncomeExpenseSums(ctx, ownerID, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	if t == transaction.Income {
		return income, nil
	}
	return expense, nil
}

// IncomeExpenseSums computes both aggregate sums for an account in one pass.
// Transfer legs are ordinary income/expense postings here, which is what
// keeps recalculated balances consistent without double counting.
func (r *DynamoDBTransactionRepository) IncomeExpenseSums(ctx context.Context, ownerID string, accountID string) (decimal.Decimal, decimal.Decimal, error) {
	items, err := r.queryByAccount(ctx, &transaction.Filter{AccountID: accountID})
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	income, expense := decimal.Zero, decimal.Zero
	for _, item := range items {
		amount, err := decimal.NewFromString(item.Amount)
		if err != nil {
			return decimal.Zero, decimal.Zero, commonErrors.NewInternalError("invalid stored amount", err)
		}
		switch transaction.Type(item.TransactionType) {
		case transaction.Income:
			income = income.Add(amount)
		case transaction.Expense:
			expense = expense.Add(amount)
		}
	}
	return income, expense, nil
}

// CountByAccount counts the postings referencing an account
func (r *DynamoDBTransactionRepository) CountByAccount(ctx context.Context, ownerID string, accountID string) (int, error) {
	keyCondition := expression.Key("GSI1PK").Equal(expression.Value(accountPostingsPK(accountID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCondition).Build()
	if err != nil {
		return 0, commonErrors.NewInternalError("failed to build expression", err)
	}

	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		IndexName:                 aws.String(gsi1Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Select:                    types.SelectCount,
	})
	if err != nil {
		return 0, storageError("Query", err)
	}
	return int(result.Count), nil
}

// DeleteTransaction removes a posting and releases its reference on the
// owning account in one transact unit.
func (r *DynamoDBTransactionRepository) DeleteTransaction(ctx context.Context, ownerID string, transactionID string) error {
	t, err := r.GetTransaction(ctx, ownerID, transactionID)
	if err != nil {
		return err
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Delete: &types.Delete{
					TableName:           aws.String(r.table),
					Key:                 itemKey(ownerPK(ownerID), transactionSK(transactionID)),
					ConditionExpression: aws.String("attribute_exists(PK)"),
				},
			},
			referenceCountUpdate(r.table, ownerID, t.AccountID, -1),
		},
	})
	if err != nil {
		if isTransactionCanceled(err) {
			return commonErrors.NewConflictError("transaction or account changed concurrently")
		}
		return storageError("TransactWriteItems", err)
	}
	return nil
}

func (r *DynamoDBTransactionRepository) queryByAccount(ctx context.Context, filter *transaction.Filter) ([]transactionItem, error) {
	keyCondition := expression.Key("GSI1PK").Equal(expression.Value(accountPostingsPK(filter.AccountID)))

	hasStart := !filter.StartDate.IsZero()
	hasEnd := !filter.EndDate.IsZero()
	switch {
	case hasStart && hasEnd:
		keyCondition = keyCondition.And(expression.Key("GSI1SK").Between(
			expression.Value("DATE#"+filter.StartDate.UTC().Format(dateFormat)),
			expression.Value("DATE#"+filter.EndDate.UTC().Format(dateFormat)+"\uffff"),
		))
	case hasStart:
		keyCondition = keyCondition.And(expression.Key("GSI1SK").GreaterThanEqual(
			expression.Value("DATE#" + filter.StartDate.UTC().Format(dateFormat)),
		))
	case hasEnd:
		keyCondition = keyCondition.And(expression.Key("GSI1SK").LessThanEqual(
			expression.Value("DATE#" + filter.EndDate.UTC().Format(dateFormat) + "\uffff"),
		))
	}

	expr, err := expression.NewBuilder().WithKeyCondition(keyCondition).Build()
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to build expression", err)
	}

	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		IndexName:                 aws.String(gsi1Name),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	})
	if err != nil {
		return nil, storageError("Query", err)
	}

	items := make([]transactionItem, 0, len(result.Items))
	for _, raw := range result.Items {
		var item transactionItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, commonErrors.NewInternalError("failed to unmarshal transaction", err)
		}
		items = append(items, item)
	}
	return items, nil
}

// referenceCountUpdate adjusts an account's posting reference count inside a
// transact unit. Every posting insert or delete carries one of these, which
// is what makes the referential delete guard on accounts trustworthy.
func referenceCountUpdate(table, ownerID, accountID string, delta int64) types.TransactWriteItem {
	value := "1"
	if delta < 0 {
		value = "-1"
	}
	return types.TransactWriteItem{
		Update: &types.Update{
			TableName:           aws.String(table),
			Key:                 itemKey(ownerPK(ownerID), accountSK(accountID)),
			UpdateExpression:    aws.String("SET UpdatedAt = :now ADD TransactionCount :delta"),
			ConditionExpression: aws.String("attribute_exists(PK)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":now":   &types.AttributeValueMemberS{Value: time.Now().UTC().Format(timestampFormat)},
				":delta": &types.AttributeValueMemberN{Value: value},
			},
		},
	}
}
