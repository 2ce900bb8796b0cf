package services

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"
)

// stubStore serves canned rows in place of DynamoDB and records every
// call so tests can assert on the expressions a pass built. GSI rows
// are keyed by "table/index" since match and chat tables reuse index
// names.
type stubStore struct {
	indexRows  map[string][]map[string]types.AttributeValue
	filterRows map[string][]map[string]types.AttributeValue
	batchRows  map[string][]map[string]types.AttributeValue
	getRows    map[string]map[string]types.AttributeValue

	queries   []recordedQuery
	batchKeys [][]map[string]types.AttributeValue
	puts      []recordedPut
	updates   []recordedUpdate
}

type recordedQuery struct {
	table        string
	index        string
	keyCondition string
	filter       string
}

type recordedPut struct {
	table string
	item  interface{}
}

type recordedUpdate struct {
	table      string
	expression string
}

func (s *stubStore) QueryItemsWithIndex(ctx context.Context, tableName, indexName, keyConditionExpression string, expressionAttributeValues map[string]types.AttributeValue, expressionAttributeNames map[string]string, filterExpression string, limit int32) ([]map[string]types.AttributeValue, error) {
	s.queries = append(s.queries, recordedQuery{table: tableName, index: indexName, keyCondition: keyConditionExpression, filter: filterExpression})
	return s.indexRows[tableName+"/"+indexName], nil
}

func (s *stubStore) QueryItemsWithFilters(ctx context.Context, tableName, keyCondition string, expressionValues map[string]types.AttributeValue, expressionNames map[string]string, filterExpression string, limit int32) ([]map[string]types.AttributeValue, error) {
	s.queries = append(s.queries, recordedQuery{table: tableName, keyCondition: keyCondition, filter: filterExpression})
	return s.filterRows[tableName], nil
}

func (s *stubStore) BatchGetItems(ctx context.Context, tableName string, keys []map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	s.batchKeys = append(s.batchKeys, keys)
	return s.batchRows[tableName], nil
}

func (s *stubStore) GetItem(ctx context.Context, tableName string, key map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	item, ok := s.getRows[tableName]
	if !ok {
		return nil, errors.New("item not found")
	}
	return item, nil
}

func (s *stubStore) PutItem(ctx context.Context, tableName string, item interface{}) error {
	s.puts = append(s.puts, recordedPut{table: tableName, item: item})
	return nil
}

func (s *stubStore) UpdateItem(ctx context.Context, tableName string, updateExpression string, key map[string]types.AttributeValue, expressionAttributeValues map[string]types.AttributeValue, expressionAttributeNames map[string]string) (map[string]types.AttributeValue, error) {
	s.updates = append(s.updates, recordedUpdate{table: tableName, expression: updateExpression})
	return map[string]types.AttributeValue{}, nil
}

func marshalRow(t *testing.T, v interface{}) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	return item
}
