package dynamo

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// fakeAPI records calls and delegates to the configured funcs.
type fakeAPI struct {
	getItem        func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	putItem        func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	query          func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	batchWrite     func(*dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error)
	execute        func(*dynamodb.ExecuteStatementInput) (*dynamodb.ExecuteStatementOutput, error)
	batchExecute   func(*dynamodb.BatchExecuteStatementInput) (*dynamodb.BatchExecuteStatementOutput, error)
	batchWriteCall int
	executeCalls   []*dynamodb.ExecuteStatementInput
	batchExecCalls []*dynamodb.BatchExecuteStatementInput
	queryCalls     []*dynamodb.QueryInput
}

var errNotStubbed = errors.New("not stubbed")

func (f *fakeAPI) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if f.getItem == nil {
		return nil, errNotStubbed
	}
	return f.getItem(in)
}

func (f *fakeAPI) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if f.putItem == nil {
		return nil, errNotStubbed
	}
	return f.putItem(in)
}

func (f *fakeAPI) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryCalls = append(f.queryCalls, in)
	if f.query == nil {
		return nil, errNotStubbed
	}
	return f.query(in)
}

func (f *fakeAPI) BatchWriteItem(_ context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	f.batchWriteCall++
	if f.batchWrite == nil {
		return nil, errNotStubbed
	}
	return f.batchWrite(in)
}

func (f *fakeAPI) ExecuteStatement(_ context.Context, in *dynamodb.ExecuteStatementInput, _ ...func(*dynamodb.Options)) (*dynamodb.ExecuteStatementOutput, error) {
	f.executeCalls = append(f.executeCalls, in)
	if f.execute == nil {
		return nil, errNotStubbed
	}
	return f.execute(in)
}

func (f *fakeAPI) BatchExecuteStatement(_ context.Context, in *dynamodb.BatchExecuteStatementInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchExecuteStatementOutput, error) {
	f.batchExecCalls = append(f.batchExecCalls, in)
	if f.batchExecute == nil {
		return nil, errNotStubbed
	}
	return f.batchExecute(in)
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }
