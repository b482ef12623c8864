package repository

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	commonErrors "github.com/pyera/ledger/internal/domain/errors"
	"github.com/pyera/ledger/internal/domain/recurring"
	"github.com/pyera/ledger/internal/domain/transaction"
	"github.com/pyera/ledger/internal/platform/dynamodb/client"
)

// DynamoDBRecurringRepository implements the recurring.Repository interface
type DynamoDBRecurringRepository struct {
	client client.Client
	table  string
	logger *slog.Logger
}

// NewDynamoDBRecurringRepository creates a new DynamoDBRecurringRepository
func NewDynamoDBRecurringRepository(client client.Client, table string, logger *slog.Logger) *DynamoDBRecurringRepository {
	return &DynamoDBRecurringRepository{
		client: client,
		table:  table,
		logger: logger,
	}
}

// CreateDefinition inserts a new recurring definition
func (r *DynamoDBRecurringRepository) CreateDefinition(ctx context.Context, d *recurring.Definition) (*recurring.Definition, error) {
	item, err := attributevalue.MarshalMap(newRecurringItem(d))
	if err != nil {
		return nil, commonErrors.NewInternalError("failed to marshal recurring definition", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, commonErrors.NewConflictError("recurring definition already exists")
		}
		return nil, storageError("PutItem", err)
	}
	return d, nil
}

// GetDefinition retrieves a recurring definition by ID
func (r *DynamoDBRecurringRepository) GetDefinition(ctx context.Context, ownerID string, definitionID string) (*recurring.Definition, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       itemKey(ownerPK(ownerID), recurringSK(definitionID)),
	})
	if err != nil {
		return nil, storageError("GetItem", err)
	}
	if len(result.Item) == 0 {
		return nil, commonErrors.NewNotFoundError("recurring definition not found")
	}

	var item recurringItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, commonErrors.NewInternalError("failed to unmarshal recurring definition", err)
	}
	return item.toDefinition()
}

// GetDefinitions retrieves all recurring definitions for an owner
func (r *DynamoDBRecurringRepository) GetDefinitions(ctx context.Context, ownerID string) ([]*recurring.Definition, error) {
	keyCondition := expression.Key("PK").Equal(expression.Value(ownerPK(ownerID))).
		And(expression.Key("SK").BeginsWith("RECUR#"))

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

	definitions := make([]*recurring.Definition, 0, len(result.Items))
	for _, raw := range result.Items {
		var item recurringItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, commonErrors.NewInternalError("failed to unmarshal recurring definition", err)
		}
		d, err := item.toDefinition()
		if err != nil {
			return nil, err
		}
		definitions = append(definitions, d)
	}
	return definitions, nil
}

// UpdateDefinition writes the editable fields of a definition. Schedule
// state stays untouched and the write is conditioned on the NextDueDate the
// caller read, so an edit racing a materialization cannot write a stale
// schedule back and make an already-processed occurrence due again.
func (r *DynamoDBRecurringRepository) UpdateDefinition(ctx context.Context, d *recurring.Definition) (*recurring.Definition, error) {
	set := []string{"Amount = :amount", "Description = :description", "UpdatedAt = :now"}
	var remove []string
	values := map[string]types.AttributeValue{
		":amount":      &types.AttributeValueMemberS{Value: d.Amount.String()},
		":description": &types.AttributeValueMemberS{Value: d.Description},
		":now":         &types.AttributeValueMemberS{Value: d.UpdatedAt.UTC().Format(timestampFormat)},
		":current":     &types.AttributeValueMemberS{Value: d.NextDueDate.UTC().Format(dateFormat)},
	}
	if d.CategoryID != "" {
		set = append(set, "CategoryID = :categoryId")
		values[":categoryId"] = &types.AttributeValueMemberS{Value: d.CategoryID}
	} else {
		remove = append(remove, "CategoryID")
	}
	if d.EndDate != nil {
		set = append(set, "EndDate = :endDate")
		values[":endDate"] = &types.AttributeValueMemberS{Value: d.EndDate.UTC().Format(dateFormat)}
	} else {
		remove = append(remove, "EndDate")
	}

	update := "SET " + strings.Join(set, ", ")
	if len(remove) > 0 {
		update += " REMOVE " + strings.Join(remove, ", ")
	}

	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       itemKey(ownerPK(d.OwnerID), recurringSK(d.DefinitionID)),
		UpdateExpression:          aws.String(update),
		ConditionExpression:       aws.String("attribute_exists(PK) AND NextDueDate = :current"),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return nil, commonErrors.NewConflictError("recurring definition changed concurrently; retry the edit")
		}
		return nil, storageError("UpdateItem", err)
	}
	return d, nil
}

// DeleteDefinition removes a definition. Already-materialized transactions
// are untouched.
func (r *DynamoDBRecurringRepository) DeleteDefinition(ctx context.Context, ownerID string, definitionID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.table),
		Key:                 itemKey(ownerPK(ownerID), recurringSK(definitionID)),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return commonErrors.NewNotFoundError("recurring definition not found")
		}
		return storageError("DeleteItem", err)
	}
	return nil
}

// GetDue queries the sparse due index for active definitions whose next due
// date is on or before asOf, across all owners.
func (r *DynamoDBRecurringRepository) GetDue(ctx context.Context, asOf time.Time) ([]*recurring.Definition, error) {
	keyCondition := expression.Key("GSI1PK").Equal(expression.Value(duePartition)).
		And(expression.Key("GSI1SK").LessThanEqual(
			expression.Value("DUE#" + asOf.UTC().Format(dateFormat) + "\uffff"),
		))

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
	})
	if err != nil {
		return nil, storageError("Query", err)
	}

	definitions := make([]*recurring.Definition, 0, len(result.Items))
	for _, raw := range result.Items {
		var item recurringItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, commonErrors.NewInternalError("failed to unmarshal recurring definition", err)
		}
		d, err := item.toDefinition()
		if err != nil {
			return nil, err
		}
		definitions = append(definitions, d)
	}
	return definitions, nil
}

// MaterializeDue posts the generated transaction, advances or deactivates
// the definition, and bumps the account's reference count in one transact
// unit. The definition update is conditioned on NextDueDate still matching
// what the caller read, so concurrent workers materialize each occurrence
// at most once.
func (r *DynamoDBRecurringRepository) MaterializeDue(ctx context.Context, d *recurring.Definition, t *transaction.Transaction, candidateNext time.Time, deactivate bool) error {
	item, err := attributevalue.MarshalMap(newTransactionItem(t))
	if err != nil {
		return commonErrors.NewInternalError("failed to marshal transaction", err)
	}

	now := time.Now().UTC().Format(timestampFormat)
	currentDue := d.NextDueDate.UTC().Format(dateFormat)

	var definitionUpdate types.TransactWriteItem
	if deactivate {
		definitionUpdate = types.TransactWriteItem{
			Update: &types.Update{
				TableName:           aws.String(r.table),
				Key:                 itemKey(ownerPK(d.OwnerID), recurringSK(d.DefinitionID)),
				UpdateExpression:    aws.String("SET IsActive = :false, UpdatedAt = :now REMOVE GSI1PK, GSI1SK"),
				ConditionExpression: aws.String("IsActive = :true AND NextDueDate = :current"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":false":   &types.AttributeValueMemberBOOL{Value: false},
					":true":    &types.AttributeValueMemberBOOL{Value: true},
					":current": &types.AttributeValueMemberS{Value: currentDue},
					":now":     &types.AttributeValueMemberS{Value: now},
				},
			},
		}
	} else {
		definitionUpdate = types.TransactWriteItem{
			Update: &types.Update{
				TableName:           aws.String(r.table),
				Key:                 itemKey(ownerPK(d.OwnerID), recurringSK(d.DefinitionID)),
				UpdateExpression:    aws.String("SET NextDueDate = :next, GSI1SK = :gsi1sk, UpdatedAt = :now"),
				ConditionExpression: aws.String("IsActive = :true AND NextDueDate = :current"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":next":    &types.AttributeValueMemberS{Value: candidateNext.UTC().Format(dateFormat)},
					":gsi1sk":  &types.AttributeValueMemberS{Value: dueSK(candidateNext, d.DefinitionID)},
					":true":    &types.AttributeValueMemberBOOL{Value: true},
					":current": &types.AttributeValueMemberS{Value: currentDue},
					":now":     &types.AttributeValueMemberS{Value: now},
				},
			},
		}
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
			definitionUpdate,
			referenceCountUpdate(r.table, t.OwnerID, t.AccountID, 1),
		},
	})
	if err != nil {
		if isTransactionCanceled(err) {
			return commonErrors.NewConflictError("recurring definition already processed for this due date")
		}
		return storageError("TransactWriteItems", err)
	}
	return nil
}

// SetActive flips a definition's active flag. Activation restores the due
// index keys with the re-anchored date; deactivation removes them so the
// definition drops out of the due query.
func (r *DynamoDBRecurringRepository) SetActive(ctx context.Context, d *recurring.Definition, nextDue time.Time, active bool) error {
	now := time.Now().UTC().Format(timestampFormat)

	input := &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.table),
		Key:                 itemKey(ownerPK(d.OwnerID), recurringSK(d.DefinitionID)),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	}
	if active {
		input.UpdateExpression = aws.String("SET IsActive = :true, NextDueDate = :next, GSI1PK = :gsi1pk, GSI1SK = :gsi1sk, UpdatedAt = :now")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":true":   &types.AttributeValueMemberBOOL{Value: true},
			":next":   &types.AttributeValueMemberS{Value: nextDue.UTC().Format(dateFormat)},
			":gsi1pk": &types.AttributeValueMemberS{Value: duePartition},
			":gsi1sk": &types.AttributeValueMemberS{Value: dueSK(nextDue, d.DefinitionID)},
			":now":    &types.AttributeValueMemberS{Value: now},
		}
	} else {
		input.UpdateExpression = aws.String("SET IsActive = :false, UpdatedAt = :now REMOVE GSI1PK, GSI1SK")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":now":   &types.AttributeValueMemberS{Value: now},
		}
	}

	_, err := r.client.UpdateItem(ctx, input)
	if err != nil {
		if isConditionalCheckFailed(err) {
			return commonErrors.NewNotFoundError("recurring definition not found")
		}
		return storageError("UpdateItem", err)
	}
	return nil
}
