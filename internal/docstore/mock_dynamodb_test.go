package docstore

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeDynamo understands exactly the expressions dynamoCollection emits.
type fakeDynamo struct {
	mu       sync.Mutex
	tables   map[string]map[string]map[string]types.AttributeValue
	pageSize int
	scans    int
	failWith error
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{
		tables:   map[string]map[string]map[string]types.AttributeValue{},
		pageSize: 2,
	}
}

func (m *fakeDynamo) table(name string) map[string]map[string]types.AttributeValue {
	t, ok := m.tables[name]
	if !ok {
		t = map[string]map[string]types.AttributeValue{}
		m.tables[name] = t
	}
	return t
}

func keyOf(item map[string]types.AttributeValue) string {
	return item["id"].(*types.AttributeValueMemberS).Value
}

func (m *fakeDynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	t := m.table(*in.TableName)
	k := keyOf(in.Item)
	if in.ConditionExpression != nil && *in.ConditionExpression == "attribute_not_exists(id)" {
		if _, ok := t[k]; ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	t[k] = in.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *fakeDynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	item, ok := m.table(*in.TableName)[keyOf(in.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *fakeDynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	t := m.table(*in.TableName)
	k := keyOf(in.Key)
	item, ok := t[k]
	if !ok {
		if in.ConditionExpression != nil && *in.ConditionExpression == "attribute_exists(id)" {
			return nil, &types.ConditionalCheckFailedException{}
		}
		item = map[string]types.AttributeValue{"id": in.Key["id"]}
	}
	for n, field := range in.ExpressionAttributeNames {
		if !strings.HasPrefix(n, "#f") {
			continue
		}
		item[field] = in.ExpressionAttributeValues[":v"+strings.TrimPrefix(n, "#f")]
	}
	t[k] = item
	return &dyn.UpdateItemOutput{}, nil
}

func (m *fakeDynamo) DeleteItem(ctx context.Context, in *dyn.DeleteItemInput, optFns ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	delete(m.table(*in.TableName), keyOf(in.Key))
	return &dyn.DeleteItemOutput{}, nil
}

// Scan pages through items in key order, pageSize at a time.
func (m *fakeDynamo) Scan(ctx context.Context, in *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.scans++
	t := m.table(*in.TableName)
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if in.ExclusiveStartKey != nil {
		last := keyOf(in.ExclusiveStartKey)
		start = sort.SearchStrings(keys, last) + 1
	}
	end := start + m.pageSize
	if end > len(keys) {
		end = len(keys)
	}

	out := &dyn.ScanOutput{}
	for _, k := range keys[start:end] {
		item := t[k]
		if in.FilterExpression != nil {
			if *in.FilterExpression != "#f = :v" {
				return nil, errors.New("unsupported filter")
			}
			field := in.ExpressionAttributeNames["#f"]
			if !reflect.DeepEqual(item[field], in.ExpressionAttributeValues[":v"]) {
				continue
			}
		}
		out.Items = append(out.Items, item)
	}
	if end < len(keys) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: keys[end-1]}}
	}
	return out, nil
}
