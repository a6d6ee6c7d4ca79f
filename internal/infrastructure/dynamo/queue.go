package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-push-dispatch/internal/domain"
	"github.com/go-push-dispatch/internal/pkg/batch"
)

const (
	// PendingIndex is a sparse GSI: only rows that still carry the pending
	// marker are projected into it, ordered by created_at.
	PendingIndex  = "pending-created_at-index"
	PendingMarker = "1"
)

// QueueRepo provides the claim protocol over the notification queue table.
type QueueRepo struct {
	client    API
	tableName string
	logger    *slog.Logger
	now       func() time.Time
}

func NewQueueRepo(client API, tableName string, logger *slog.Logger) *QueueRepo {
	return &QueueRepo{client: client, tableName: tableName, logger: logger.With("component", "queue_repo"), now: time.Now}
}

// FetchPending returns up to limit unprocessed rows, oldest first. The index
// is eventually consistent, so a row claimed moments ago may still be listed;
// Claim is what decides ownership.
func (r *QueueRepo) FetchPending(ctx context.Context, limit int) ([]domain.PendingNotification, error) {
	var rows []domain.PendingNotification
	var startKey map[string]types.AttributeValue
	for len(rows) < limit {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(r.tableName),
			IndexName:              aws.String(PendingIndex),
			KeyConditionExpression: aws.String("#pending = :p"),
			FilterExpression:       aws.String("#processed = :f"),
			ExpressionAttributeNames: map[string]string{
				"#pending":   "pending",
				"#processed": "processed",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":p": str(PendingMarker),
				":f": boolean(false),
			},
			ScanIndexForward:  aws.Bool(true),
			Limit:             aws.Int32(int32(limit - len(rows))),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query pending notifications: %w", err)
		}
		var page []domain.PendingNotification
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal pending notifications: %w", err)
		}
		rows = append(rows, page...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

// claimStatement flips processed only if it is still false, so two runs
// racing on the same row cannot both win it.
func claimStatement(table string) string {
	return fmt.Sprintf(`UPDATE %s SET "processed" = ? SET "claimed_at" = ? REMOVE "pending" WHERE "id" = ? AND "processed" = ?`, ident(table))
}

// Claim marks rows processed with one conditional write per row, batched 25
// statements per call, and returns the rows this caller won. Rows another
// invocation claimed first are dropped. Groups whose call failed are dropped
// too and reported in the returned error.
func (r *QueueRepo) Claim(ctx context.Context, rows []domain.PendingNotification) ([]domain.PendingNotification, error) {
	stmt := claimStatement(r.tableName)
	claimedAt := r.now().UTC().Format(time.RFC3339Nano)
	claimed := make([]domain.PendingNotification, 0, len(rows))
	var errs []error
	for _, group := range batch.Split(rows, maxBatchStatements) {
		reqs := make([]types.BatchStatementRequest, len(group))
		for i, row := range group {
			reqs[i] = types.BatchStatementRequest{
				Statement:  aws.String(stmt),
				Parameters: []types.AttributeValue{boolean(true), str(claimedAt), str(row.ID), boolean(false)},
			}
		}
		out, err := r.client.BatchExecuteStatement(ctx, &dynamodb.BatchExecuteStatementInput{Statements: reqs})
		if err != nil {
			// Some statements may have been applied before the call failed.
			// Those rows are no longer pending and will not be retried.
			ids := make([]string, len(group))
			for i, row := range group {
				ids[i] = row.ID
			}
			r.logger.Error("claim call failed, rows may be claimed without dispatch", "ids", ids, "err", err)
			errs = append(errs, fmt.Errorf("claim %d rows: %w", len(group), err))
			continue
		}
		for i, resp := range out.Responses {
			if i >= len(group) {
				break
			}
			row := group[i]
			switch {
			case resp.Error == nil:
				row.Processed = true
				row.Pending = ""
				claimed = append(claimed, row)
			case resp.Error.Code == types.BatchStatementErrorCodeEnumConditionalCheckFailed:
				r.logger.Debug("row already claimed", "id", row.ID)
			default:
				errs = append(errs, fmt.Errorf("claim %s: %w", row.ID, statementError(resp.Error)))
			}
		}
	}
	return claimed, errors.Join(errs...)
}

// PutAudit appends already-processed audit rows and returns how many were written.
func (r *QueueRepo) PutAudit(ctx context.Context, rows []domain.PendingNotification) (int, error) {
	items := make([]map[string]types.AttributeValue, 0, len(rows))
	for i := range rows {
		if !rows[i].Processed || rows[i].Pending != "" {
			return 0, fmt.Errorf("audit row %s must be processed and not pending: %w", rows[i].ID, domain.ErrBadRequest)
		}
		item, err := attributevalue.MarshalMap(rows[i])
		if err != nil {
			return 0, fmt.Errorf("marshal audit row: %w", err)
		}
		items = append(items, item)
	}
	return batchPut(ctx, r.client, r.tableName, items)
}
