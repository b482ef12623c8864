package repository

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Single-table layout. Every record lives under the owner's partition;
// transactions additionally project into GSI1 under their account for
// per-account queries and sums, and active recurring definitions project
// into GSI1 under a shared partition ordered by due date so the background
// driver can find everything due in one query.
const (
	gsi1Name = "GSI1"

	duePartition = "RECURRING#ACTIVE"

	dateFormat      = "2006-01-02"
	timestampFormat = time.RFC3339Nano
)

func ownerPK(ownerID string) string {
	return "OWNER#" + ownerID
}

func accountSK(accountID string) string {
	return "ACCOUNT#" + accountID
}

func transactionSK(transactionID string) string {
	return "TXN#" + transactionID
}

func recurringSK(definitionID string) string {
	return "RECUR#" + definitionID
}

func accountPostingsPK(accountID string) string {
	return "ACCOUNT#" + accountID
}

func transactionDateSK(date time.Time, transactionID string) string {
	return "DATE#" + date.UTC().Format(dateFormat) + "#TXN#" + transactionID
}

func dueSK(date time.Time, definitionID string) string {
	return "DUE#" + date.UTC().Format(dateFormat) + "#" + definitionID
}

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}
