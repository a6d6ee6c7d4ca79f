package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-push-dispatch/internal/domain"
)

// UserRepo reads caller roles from the users table.
type UserRepo struct {
	client    API
	tableName string
}

func NewUserRepo(client API, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

// Role returns the role of userID, or domain.ErrNotFound.
func (r *UserRepo) Role(ctx context.Context, userID string) (string, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey("user_id", userID),
		ProjectionExpression:     aws.String("#uid, #role"),
		ExpressionAttributeNames: map[string]string{"#uid": "user_id", "#role": "role"},
		ConsistentRead:           aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("get user role: %w", err)
	}
	if out.Item == nil {
		return "", fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return "", fmt.Errorf("unmarshal user: %w", err)
	}
	return u.Role, nil
}
