package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-push-dispatch/internal/domain"
)

// MetricsRepo stores one row per dispatch run. Rows expire after ttl.
type MetricsRepo struct {
	client    API
	tableName string
	ttl       time.Duration
}

func NewMetricsRepo(client API, tableName string, ttl time.Duration) *MetricsRepo {
	return &MetricsRepo{client: client, tableName: tableName, ttl: ttl}
}

func (r *MetricsRepo) Record(ctx context.Context, report *domain.DispatchReport) error {
	row := *report
	if r.ttl > 0 {
		row.ExpiresAt = report.StartedAt.Add(r.ttl).Unix()
	}
	item, err := attributevalue.MarshalMap(row)
	if err != nil {
		return fmt.Errorf("marshal metric row: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put metric row: %w", err)
	}
	return nil
}
