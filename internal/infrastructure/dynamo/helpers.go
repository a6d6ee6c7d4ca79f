package dynamo

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDB service limits the repos page against.
const (
	// maxBatchWriteItems is the BatchWriteItem request limit.
	maxBatchWriteItems = 25
	// maxBatchStatements is the BatchExecuteStatement request limit.
	maxBatchStatements = 25
	// MaxInKeys is the largest partition-key IN list PartiQL serves as a query.
	MaxInKeys = 50
)

// strKey builds a DynamoDB primary key map with a single string attribute.
func strKey(name, value string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		name: &types.AttributeValueMemberS{Value: value},
	}
}

func str(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }

func boolean(v bool) types.AttributeValue { return &types.AttributeValueMemberBOOL{Value: v} }

// ident quotes a PartiQL identifier. Table and index names may contain dashes.
func ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// placeholders returns "?, ?, ?" with n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// statementError describes a failed statement of a batch response.
func statementError(e *types.BatchStatementError) error {
	msg := ""
	if e.Message != nil {
		msg = *e.Message
	}
	return fmt.Errorf("%s: %s", e.Code, msg)
}
