package dynamo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-push-dispatch/internal/domain"
	"github.com/go-push-dispatch/internal/pkg/batch"
)

// TokensByUserIndex is the GSI of the tokens table keyed by user_id.
const TokensByUserIndex = "user_id-index"

// TokenRepo provides typed DynamoDB operations for the push tokens table.
type TokenRepo struct {
	client    API
	tableName string
	logger    *slog.Logger
	now       func() time.Time
}

func NewTokenRepo(client API, tableName string, logger *slog.Logger) *TokenRepo {
	return &TokenRepo{client: client, tableName: tableName, logger: logger.With("component", "token_repo"), now: time.Now}
}

// selectTokensStatement builds the PartiQL lookup for n user ids. The filter
// flags add equality conditions after the IN list.
func selectTokensStatement(table string, n int, filter domain.TokenFilter) string {
	var b strings.Builder
	fmt.Fprintf(&b, `SELECT "user_id", "token", "device_type", "active", "signed_in" FROM %s.%s WHERE "user_id" IN [%s]`,
		ident(table), ident(TokensByUserIndex), placeholders(n))
	if filter.RequireActive {
		b.WriteString(` AND "active" = ?`)
	}
	if filter.RequireSignedIn {
		b.WriteString(` AND "signed_in" = ?`)
	}
	return b.String()
}

// TokensByUsers returns the tokens of up to MaxInKeys users in one query,
// following NextToken until the result is drained.
func (r *TokenRepo) TokensByUsers(ctx context.Context, userIDs []string, filter domain.TokenFilter) ([]domain.PushToken, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	if len(userIDs) > MaxInKeys {
		return nil, fmt.Errorf("token lookup for %d users exceeds %d: %w", len(userIDs), MaxInKeys, domain.ErrBadRequest)
	}
	params := make([]types.AttributeValue, 0, len(userIDs)+2)
	for _, id := range userIDs {
		params = append(params, str(id))
	}
	if filter.RequireActive {
		params = append(params, boolean(true))
	}
	if filter.RequireSignedIn {
		params = append(params, boolean(true))
	}
	stmt := selectTokensStatement(r.tableName, len(userIDs), filter)

	var tokens []domain.PushToken
	var next *string
	for {
		out, err := r.client.ExecuteStatement(ctx, &dynamodb.ExecuteStatementInput{
			Statement:  aws.String(stmt),
			Parameters: params,
			NextToken:  next,
		})
		if err != nil {
			return nil, fmt.Errorf("select tokens: %w", err)
		}
		var page []domain.PushToken
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal tokens: %w", err)
		}
		tokens = append(tokens, page...)
		if out.NextToken == nil || *out.NextToken == "" {
			return tokens, nil
		}
		next = out.NextToken
	}
}

func deactivateStatement(table string) string {
	return fmt.Sprintf(`UPDATE %s SET "active" = ? SET "deactivated_at" = ? WHERE "token" = ?`, ident(table))
}

// Deactivate sets active=false on exactly the given tokens and returns how
// many rows were updated. Tokens that no longer exist are skipped.
func (r *TokenRepo) Deactivate(ctx context.Context, tokens []string) (int, error) {
	stmt := deactivateStatement(r.tableName)
	at := r.now().UTC().Format(time.RFC3339Nano)
	updated := 0
	var errs []error
	for _, group := range batch.Split(tokens, maxBatchStatements) {
		reqs := make([]types.BatchStatementRequest, len(group))
		for i, tok := range group {
			reqs[i] = types.BatchStatementRequest{
				Statement:  aws.String(stmt),
				Parameters: []types.AttributeValue{boolean(false), str(at), str(tok)},
			}
		}
		out, err := r.client.BatchExecuteStatement(ctx, &dynamodb.BatchExecuteStatementInput{Statements: reqs})
		if err != nil {
			errs = append(errs, fmt.Errorf("deactivate %d tokens: %w", len(group), err))
			continue
		}
		for i, resp := range out.Responses {
			switch {
			case resp.Error == nil:
				updated++
			case resp.Error.Code == types.BatchStatementErrorCodeEnumConditionalCheckFailed:
				if i < len(group) {
					r.logger.Debug("token already gone", "token", group[i])
				}
			default:
				errs = append(errs, statementError(resp.Error))
			}
		}
	}
	return updated, errors.Join(errs...)
}
