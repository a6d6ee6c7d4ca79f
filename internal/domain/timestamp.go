package domain

import (
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// SortableLayout always writes nine fractional digits in UTC, so stored
// values compare lexically in time order. Index range keys rely on it.
const SortableLayout = "2006-01-02T15:04:05.000000000Z"

// Timestamp is a time stored in DynamoDB as a fixed-width string.
// Reading accepts any RFC3339 value, including ones written by other
// services.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func (t Timestamp) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return &types.AttributeValueMemberS{Value: t.UTC().Format(SortableLayout)}, nil
}

func (t *Timestamp) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	s, ok := av.(*types.AttributeValueMemberS)
	if !ok {
		return fmt.Errorf("timestamp: expected string attribute, got %T", av)
	}
	parsed, err := time.Parse(time.RFC3339Nano, s.Value)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	t.Time = parsed.UTC()
	return nil
}
