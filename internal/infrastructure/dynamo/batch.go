package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-push-dispatch/internal/pkg/batch"
)

const maxUnprocessedRetries = 3

// unprocessedBackoff is the first wait before resubmitting throttled writes;
// it doubles on every retry.
var unprocessedBackoff = 50 * time.Millisecond

// batchPut writes items with BatchWriteItem in groups of 25, resubmitting
// unprocessed items a bounded number of times. It returns how many items were
// written before the first failing group.
func batchPut(ctx context.Context, client API, table string, items []map[string]types.AttributeValue) (int, error) {
	written := 0
	for _, group := range batch.Split(items, maxBatchWriteItems) {
		reqs := make([]types.WriteRequest, len(group))
		for i, item := range group {
			reqs[i] = types.WriteRequest{PutRequest: &types.PutRequest{Item: item}}
		}
		left, err := writeWithRetry(ctx, client, table, reqs)
		written += len(group) - left
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// writeWithRetry returns the number of requests still unprocessed.
func writeWithRetry(ctx context.Context, client API, table string, reqs []types.WriteRequest) (int, error) {
	pending := map[string][]types.WriteRequest{table: reqs}
	wait := unprocessedBackoff
	for attempt := 0; ; attempt++ {
		out, err := client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return len(pending[table]), fmt.Errorf("batch write %s: %w", table, err)
		}
		pending = out.UnprocessedItems
		if len(pending[table]) == 0 {
			return 0, nil
		}
		if attempt == maxUnprocessedRetries {
			return len(pending[table]), fmt.Errorf("batch write %s: %d items unprocessed after %d retries", table, len(pending[table]), maxUnprocessedRetries)
		}
		select {
		case <-ctx.Done():
			return len(pending[table]), ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
}
