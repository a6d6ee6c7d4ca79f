package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-push-dispatch/internal/domain"
)

// NotificationRepo appends in-app notification records.
type NotificationRepo struct {
	client    API
	tableName string
}

func NewNotificationRepo(client API, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

// PutBatch writes records and returns how many were stored.
func (r *NotificationRepo) PutBatch(ctx context.Context, records []domain.NotificationRecord) (int, error) {
	items := make([]map[string]types.AttributeValue, 0, len(records))
	for i := range records {
		item, err := attributevalue.MarshalMap(records[i])
		if err != nil {
			return 0, fmt.Errorf("marshal notification: %w", err)
		}
		items = append(items, item)
	}
	return batchPut(ctx, r.client, r.tableName, items)
}
