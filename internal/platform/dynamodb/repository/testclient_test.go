package repository

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// TestClient is an in-memory stand-in for the DynamoDB client interface. It
// understands the slice of the expression language the repositories emit:
// equality/begins_with/BETWEEN/bound key conditions, attribute_exists style
// condition expressions, and SET/ADD/REMOVE update expressions. Transact
// units are all-or-nothing with conditions checked up front.
type TestClient struct {
	items map[string]map[string]types.AttributeValue
}

// NewTestClient creates a new test client with an empty items map
func NewTestClient() *TestClient {
	return &TestClient{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func storageKey(item map[string]types.AttributeValue) string {
	pk := item["PK"].(*types.AttributeValueMemberS).Value
	sk := item["SK"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

// GetItem retrieves an item from the in-memory store
func (c *TestClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if item, exists := c.items[storageKey(params.Key)]; exists {
		return &dynamodb.GetItemOutput{Item: item}, nil
	}
	return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{}}, nil
}

// PutItem adds or replaces an item, honoring the condition expression
func (c *TestClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	key := storageKey(params.Item)
	if !c.checkCondition(c.items[key], params.ConditionExpression, params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	c.items[key] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

// UpdateItem applies an update expression, honoring the condition expression
func (c *TestClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	key := storageKey(params.Key)
	if !c.checkCondition(c.items[key], params.ConditionExpression, params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	c.applyUpdate(key, params.Key, *params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	return &dynamodb.UpdateItemOutput{}, nil
}

// DeleteItem removes an item, honoring the condition expression
func (c *TestClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	key := storageKey(params.Key)
	if !c.checkCondition(c.items[key], params.ConditionExpression, params.ExpressionAttributeValues) {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	delete(c.items, key)
	return &dynamodb.DeleteItemOutput{}, nil
}

// Query evaluates a key condition against the main table or GSI1
func (c *TestClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	pkAttr, skAttr := "PK", "SK"
	if params.IndexName != nil {
		pkAttr, skAttr = "GSI1PK", "GSI1SK"
	}

	clauses := splitKeyCondition(*params.KeyConditionExpression, params.ExpressionAttributeNames)

	var matched []map[string]types.AttributeValue
	for _, item := range c.items {
		// Sparse index: items without the index keys are invisible there.
		if params.IndexName != nil {
			if _, ok := item[pkAttr]; !ok {
				continue
			}
		}
		if matchesClauses(item, clauses, params.ExpressionAttributeValues) {
			matched = append(matched, item)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return stringAttr(matched[i], skAttr) < stringAttr(matched[j], skAttr)
	})
	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	out := &dynamodb.QueryOutput{Count: int32(len(matched))}
	if params.Select != types.SelectCount {
		out.Items = matched
	}
	return out, nil
}

// TransactWriteItems applies every write or none: all conditions are checked
// against the current store before any mutation.
func (c *TestClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	for i, item := range params.TransactItems {
		var ok bool
		switch {
		case item.Put != nil:
			ok = c.checkCondition(c.items[storageKey(item.Put.Item)], item.Put.ConditionExpression, item.Put.ExpressionAttributeValues)
		case item.Update != nil:
			ok = c.checkCondition(c.items[storageKey(item.Update.Key)], item.Update.ConditionExpression, item.Update.ExpressionAttributeValues)
		case item.Delete != nil:
			ok = c.checkCondition(c.items[storageKey(item.Delete.Key)], item.Delete.ConditionExpression, item.Delete.ExpressionAttributeValues)
		}
		if ok {
			reasons[i] = types.CancellationReason{Code: aws.String("None")}
		} else {
			reasons[i] = types.CancellationReason{Code: aws.String("ConditionalCheckFailed")}
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, item := range params.TransactItems {
		switch {
		case item.Put != nil:
			c.items[storageKey(item.Put.Item)] = item.Put.Item
		case item.Update != nil:
			c.applyUpdate(storageKey(item.Update.Key), item.Update.Key, *item.Update.UpdateExpression, item.Update.ExpressionAttributeNames, item.Update.ExpressionAttributeValues)
		case item.Delete != nil:
			delete(c.items, storageKey(item.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (c *TestClient) GetRawClient() *dynamodb.Client {
	return nil
}

// checkCondition evaluates the conjunction of clauses in a condition
// expression against one stored item (nil when absent).
func (c *TestClient) checkCondition(item map[string]types.AttributeValue, condition *string, values map[string]types.AttributeValue) bool {
	if condition == nil {
		return true
	}
	for _, clause := range strings.Split(*condition, " AND ") {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "attribute_not_exists("):
			if item != nil {
				return false
			}
		case strings.HasPrefix(clause, "attribute_exists("):
			if item == nil {
				return false
			}
		default:
			// "Attr = :value"
			parts := strings.SplitN(clause, " = ", 2)
			if len(parts) != 2 || item == nil {
				return false
			}
			if !attrEqual(item[strings.TrimSpace(parts[0])], values[strings.TrimSpace(parts[1])]) {
				return false
			}
		}
	}
	return true
}

// applyUpdate interprets the SET/ADD/REMOVE update expressions the
// repositories emit, resolving #placeholder attribute names. A missing item
// is created from its key, matching DynamoDB's upsert behavior for
// unconditional updates.
func (c *TestClient) applyUpdate(key string, itemKey map[string]types.AttributeValue, expression string, names map[string]string, values map[string]types.AttributeValue) {
	item := c.items[key]
	if item == nil {
		item = map[string]types.AttributeValue{}
		for k, v := range itemKey {
			item[k] = v
		}
	}

	for _, section := range splitUpdateSections(expression) {
		switch {
		case strings.HasPrefix(section, "SET "):
			for _, assign := range strings.Split(section[len("SET "):], ", ") {
				parts := strings.SplitN(assign, " = ", 2)
				item[resolveName(strings.TrimSpace(parts[0]), names)] = values[strings.TrimSpace(parts[1])]
			}
		case strings.HasPrefix(section, "ADD "):
			for _, add := range strings.Split(section[len("ADD "):], ", ") {
				parts := strings.SplitN(strings.TrimSpace(add), " ", 2)
				name := resolveName(parts[0], names)
				delta, _ := strconv.ParseInt(values[strings.TrimSpace(parts[1])].(*types.AttributeValueMemberN).Value, 10, 64)
				current := int64(0)
				if existing, ok := item[name].(*types.AttributeValueMemberN); ok {
					current, _ = strconv.ParseInt(existing.Value, 10, 64)
				}
				item[name] = &types.AttributeValueMemberN{Value: strconv.FormatInt(current+delta, 10)}
			}
		case strings.HasPrefix(section, "REMOVE "):
			for _, name := range strings.Split(section[len("REMOVE "):], ", ") {
				delete(item, resolveName(strings.TrimSpace(name), names))
			}
		}
	}
	c.items[key] = item
}

func resolveName(token string, names map[string]string) string {
	if name, ok := names[token]; ok {
		return name
	}
	return token
}

// splitUpdateSections slices an update expression into its SET/ADD/REMOVE
// sections, in order of appearance.
func splitUpdateSections(expression string) []string {
	var boundaries []int
	for _, keyword := range []string{"SET ", " ADD ", " REMOVE "} {
		if idx := strings.Index(expression, keyword); idx >= 0 {
			start := idx
			if keyword[0] == ' ' {
				start++
			}
			boundaries = append(boundaries, start)
		}
	}
	sort.Ints(boundaries)

	var sections []string
	for i, start := range boundaries {
		end := len(expression)
		if i+1 < len(boundaries) {
			end = boundaries[i+1] - 1
		}
		sections = append(sections, strings.TrimSpace(expression[start:end]))
	}
	return sections
}

// keyClause is one parsed clause of a key condition expression.
type keyClause struct {
	attr     string
	operator string // "=", "begins_with", "between", "<=", ">="
	value    string // value placeholder
	upper    string // second placeholder for BETWEEN
}

// splitKeyCondition parses the expression-builder output for the key
// condition forms used by the repositories: "(#0 = :0) AND (...)" with
// equality, begins_with, BETWEEN and bound comparisons.
func splitKeyCondition(expression string, names map[string]string) []keyClause {
	var raw []string
	if strings.Contains(expression, ") AND (") {
		trimmed := strings.TrimSuffix(strings.TrimPrefix(expression, "("), ")")
		raw = strings.Split(trimmed, ") AND (")
	} else {
		raw = []string{expression}
	}

	resolve := func(token string) string {
		return resolveName(token, names)
	}

	var clauses []keyClause
	for _, clause := range raw {
		clause = strings.TrimSpace(clause)
		switch {
		case strings.HasPrefix(clause, "begins_with"):
			inner := clause[strings.Index(clause, "(")+1 : strings.LastIndex(clause, ")")]
			parts := strings.Split(inner, ",")
			clauses = append(clauses, keyClause{
				attr:     resolve(strings.TrimSpace(parts[0])),
				operator: "begins_with",
				value:    strings.TrimSpace(parts[1]),
			})
		case strings.Contains(clause, " BETWEEN "):
			parts := strings.SplitN(clause, " BETWEEN ", 2)
			bounds := strings.SplitN(parts[1], " AND ", 2)
			clauses = append(clauses, keyClause{
				attr:     resolve(strings.TrimSpace(parts[0])),
				operator: "between",
				value:    strings.TrimSpace(bounds[0]),
				upper:    strings.TrimSpace(bounds[1]),
			})
		case strings.Contains(clause, " <= "):
			parts := strings.SplitN(clause, " <= ", 2)
			clauses = append(clauses, keyClause{attr: resolve(strings.TrimSpace(parts[0])), operator: "<=", value: strings.TrimSpace(parts[1])})
		case strings.Contains(clause, " >= "):
			parts := strings.SplitN(clause, " >= ", 2)
			clauses = append(clauses, keyClause{attr: resolve(strings.TrimSpace(parts[0])), operator: ">=", value: strings.TrimSpace(parts[1])})
		default:
			parts := strings.SplitN(clause, " = ", 2)
			clauses = append(clauses, keyClause{attr: resolve(strings.TrimSpace(parts[0])), operator: "=", value: strings.TrimSpace(parts[1])})
		}
	}
	return clauses
}

func matchesClauses(item map[string]types.AttributeValue, clauses []keyClause, values map[string]types.AttributeValue) bool {
	for _, clause := range clauses {
		actual := stringAttr(item, clause.attr)
		expected := stringValue(values[clause.value])
		switch clause.operator {
		case "=":
			if actual != expected {
				return false
			}
		case "begins_with":
			if !strings.HasPrefix(actual, expected) {
				return false
			}
		case "between":
			if actual < expected || actual > stringValue(values[clause.upper]) {
				return false
			}
		case "<=":
			if actual > expected {
				return false
			}
		case ">=":
			if actual < expected {
				return false
			}
		}
	}
	return true
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	return stringValue(item[name])
}

func stringValue(v types.AttributeValue) string {
	if s, ok := v.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func attrEqual(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	}
	return false
}
