package repository

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/pyera/ledger/internal/domain/account"
	commonErrors "github.com/pyera/ledger/internal/domain/errors"
	"github.com/pyera/ledger/internal/platform/dynamodb/client"
)

// DynamoDBAccountRepository implements the account.Repository interface
type DynamoDBAccountRepository struct {
	client client.Client
	table  string
	logger *slog.Logger
}

// NewDynamoDBAccountRepository creates a new DynamoDBAccountRepository
func NewDynamoDBAccountRepository(client client.Client, table string, logger *slog.Logger) *DynamoDBAccountRepository {
	return &DynamoDBAccountRepository{
		client: client,
		table:  table,
		logger: logger,
	}
}

// CreateAccount writes a new account item. When demoteDefaultID is set, the
// previous default loses its flag in the same transact unit so the
// one-default-per-owner invariant never has an observable gap.
func (r *DynamoDBAccountRepository) CreateAccount(ctx context.Context, a *account.Account, demoteDefaultID string) (*account.Account, error) {
	item, err := attributevalue.MarshalMap(newAccountItem(a))
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to marshal account", err)
	}

	if demoteDefaultID == "" {
		_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(r.table),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		})
		if err != nil {
			if isConditionalCheckFailed(err) {
				return nil, commonErrors.NewConflictError("account already exists")
			}
			return nil, storageError("PutItem", err)
		}
		return a, nil
	}

	now := time.Now().UTC().Format(timestampFormat)
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           aws.String(r.table),
					Item:                item,
					ConditionExpression: aws.String("attribute_not_exists(PK)"),
				},
			},
			{
				Update: &types.Update{
					TableName:           aws.String(r.table),
					Key:                 itemKey(ownerPK(a.OwnerID), accountSK(demoteDefaultID)),
					UpdateExpression:    aws.String("SET IsDefault = :false, UpdatedAt = :now"),
					ConditionExpression: aws.String("attribute_exists(PK)"),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":false": &types.AttributeValueMemberBOOL{Value: false},
						":now":   &types.AttributeValueMemberS{Value: now},
					},
				},
			},
		},
	})
	if err != nil {
		if isTransactionCanceled(err) {
			return nil, commonErrors.NewConflictError("account already exists")
		}
		return nil, storageError("TransactWriteItems", err)
	}
	return a, nil
}

// GetAccount retrieves an account by ID
func (r *DynamoDBAccountRepository) GetAccount(ctx context.Context, ownerID string, accountID string) (*account.Account, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       itemKey(ownerPK(ownerID), accountSK(accountID)),
	})
	if err != nil {
		return nil, storageError("GetItem", err)
	}
	if len(result.Item) == 0 {
		return nil, commonErrors.NewNotFoundError("account not found")
	}

	var item accountItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, commonErrors.NewInternalError("failed to unmarshal account", err)
	}
	return item.toAccount()
}

// GetAccounts retrieves all accounts for an owner
func (r *DynamoDBAccountRepository) GetAccounts(ctx context.Context, ownerID string, includeArchived bool) ([]*account.Account, error) {
	keyCondition := expression.Key("PK").Equal(expression.Value(ownerPK(ownerID))).
		And(expression.Key("SK").BeginsWith("ACCOUNT#"))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCondition).Build()
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to build expression", err)
	}

	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, storageError("Query", err)
	}

	accounts := make([]*account.Account, 0, len(result.Items))
	for _, raw := range result.Items {
		var item accountItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, commonErrors.NewInternalError("failed to unmarshal account", err)
		}
		if item.IsArchived && !includeArchived {
			continue
		}
		a, err := item.toAccount()
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

// UpdateAccount writes the editable fields of an account. Balance and
// TransactionCount belong to the posting units and are never written here,
// so an edit racing a concurrent transfer cannot roll the balance back or
// disarm the referential delete guard.
func (r *DynamoDBAccountRepository) UpdateAccount(ctx context.Context, a *account.Account) (*account.Account, error) {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.table),
		Key:                      itemKey(ownerPK(a.OwnerID), accountSK(a.AccountID)),
		UpdateExpression:         aws.String("SET #name = :name, Currency = :currency, Color = :color, Icon = :icon, UpdatedAt = :now"),
		ConditionExpression:      aws.String("attribute_exists(PK)"),
		ExpressionAttributeNames: map[string]string{"#name": "Name"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":name":     &types.AttributeValueMemberS{Value: a.Name},
			":currency": &types.AttributeValueMemberS{Value: a.Currency},
			":color":    &types.AttributeValueMemberN{Value: strconv.Itoa(a.Color)},
			":icon":     &types.AttributeValueMemberS{Value: a.Icon},
			":now":      &types.AttributeValueMemberS{Value: a.UpdatedAt.UTC().Format(timestampFormat)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, commonErrors.NewNotFoundError("account not found")
		}
		return nil, storageError("UpdateItem", err)
	}
	return a, nil
}

// DeleteAccount hard-deletes an account. The delete carries the referential
// check as its condition: it succeeds only while no transaction references
// the account, in one atomic check-then-act.
func (r *DynamoDBAccountRepository) DeleteAccount(ctx context.Context, ownerID string, accountID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.table),
		Key:                 itemKey(ownerPK(ownerID), accountSK(accountID)),
		ConditionExpression: aws.String("attribute_exists(PK) AND TransactionCount = :zero"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return commonErrors.NewConflictError("cannot delete an account with transactions; archive it instead")
		}
		return storageError("DeleteItem", err)
	}
	return nil
}

// SetDefaultAccount promotes an account to default and demotes the previous
// default in the same transact unit. The promotion is conditioned on the
// account being present and not archived.
func (r *DynamoDBAccountRepository) SetDefaultAccount(ctx context.Context, ownerID string, accountID string, previousDefaultID string) error {
	now := time.Now().UTC().Format(timestampFormat)

	items := []types.TransactWriteItem{
		{
			Update: &types.Update{
				TableName:           aws.String(r.table),
				Key:                 itemKey(ownerPK(ownerID), accountSK(accountID)),
				UpdateExpression:    aws.String("SET IsDefault = :true, UpdatedAt = :now"),
				ConditionExpression: aws.String("attribute_exists(PK) AND IsArchived = :false"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":true":  &types.AttributeValueMemberBOOL{Value: true},
					":false": &types.AttributeValueMemberBOOL{Value: false},
					":now":   &types.AttributeValueMemberS{Value: now},
				},
			},
		},
	}
	if previousDefaultID != "" {
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:           aws.String(r.table),
				Key:                 itemKey(ownerPK(ownerID), accountSK(previousDefaultID)),
				UpdateExpression:    aws.String("SET IsDefault = :false, UpdatedAt = :now"),
				ConditionExpression: aws.String("attribute_exists(PK)"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":false": &types.AttributeValueMemberBOOL{Value: false},
					":now":   &types.AttributeValueMemberS{Value: now},
				},
			},
		})
	}

	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if isTransactionCanceled(err) {
			return commonErrors.NewConflictError("account is missing or archived")
		}
		return storageError("TransactWriteItems", err)
	}
	return nil
}

// SetArchived sets or clears the archived flag
func (r *DynamoDBAccountRepository) SetArchived(ctx context.Context, ownerID string, accountID string, archived bool) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.table),
		Key:                 itemKey(ownerPK(ownerID), accountSK(accountID)),
		UpdateExpression:    aws.String("SET IsArchived = :archived, UpdatedAt = :now"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":archived": &types.AttributeValueMemberBOOL{Value: archived},
			":now":      &types.AttributeValueMemberS{Value: time.Now().UTC().Format(timestampFormat)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return commonErrors.NewNotFoundError("account not found")
		}
		return storageError("UpdateItem", err)
	}
	return nil
}

// UpdateBalance overwrites the stored balance, used by recalculation
func (r *DynamoDBAccountRepository) UpdateBalance(ctx context.Context, ownerID string, accountID string, balance decimal.Decimal) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.table),
		Key:                 itemKey(ownerPK(ownerID), accountSK(accountID)),
		UpdateExpression:    aws.String("SET Balance = :balance, UpdatedAt = :now"),
		ConditionExpression: aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":balance": &types.AttributeValueMemberS{Value: balance.String()},
			":now":     &types.AttributeValueMemberS{Value: time.Now().UTC().Format(timestampFormat)},
		},
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return commonErrors.NewNotFoundError("account not found")
		}
		return storageError("UpdateItem", err)
	}
	return nil
}
