package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/bagshop/internal/aws"
)

// dynamoCollection maps one collection onto one DynamoDB table keyed by "id".
// Documents are encoded through their json tags.
type dynamoCollection[T any] struct {
	client aws.DynamoDBAPI
	name   string
	table  string
	hub    *Hub
	logger *zap.Logger
}

func jsonTags(o *attributevalue.EncoderOptions)   { o.TagKey = "json" }
func jsonTagsIn(o *attributevalue.DecoderOptions) { o.TagKey = "json" }

func idKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"id": &types.AttributeValueMemberS{Value: id},
	}
}

func (c *dynamoCollection[T]) marshal(id string, doc T) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMapWithOptions(doc, jsonTags)
	if err != nil {
		return nil, fmt.Errorf("marshal %s item: %w", c.name, err)
	}
	item["id"] = &types.AttributeValueMemberS{Value: id}
	return item, nil
}

func (c *dynamoCollection[T]) unmarshal(item map[string]types.AttributeValue) (Record[T], error) {
	var rec Record[T]
	if err := attributevalue.UnmarshalMapWithOptions(item, &rec.Data, jsonTagsIn); err != nil {
		return rec, fmt.Errorf("unmarshal %s item: %w", c.name, err)
	}
	if v, ok := item["id"].(*types.AttributeValueMemberS); ok {
		rec.ID = v.Value
	}
	return rec, nil
}

func (c *dynamoCollection[T]) Create(ctx context.Context, doc T) (string, error) {
	id := uuid.NewString()
	created, err := c.PutIfAbsent(ctx, id, doc)
	if err != nil {
		return "", err
	}
	if !created {
		return "", ErrExists
	}
	return id, nil
}

func (c *dynamoCollection[T]) Put(ctx context.Context, id string, doc T) error {
	item, err := c.marshal(id, doc)
	if err != nil {
		return err
	}
	if _, err := c.client.PutItem(ctx, &dyn.PutItemInput{
		TableName: &c.table,
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	c.hub.Publish(c.name)
	return nil
}

func (c *dynamoCollection[T]) PutIfAbsent(ctx context.Context, id string, doc T) (bool, error) {
	item, err := c.marshal(id, doc)
	if err != nil {
		return false, err
	}
	_, err = c.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &c.table,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	c.hub.Publish(c.name)
	return true, nil
}

func (c *dynamoCollection[T]) Get(ctx context.Context, id string) (*Record[T], error) {
	out, err := c.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &c.table,
		Key:            idKey(id),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	rec, err := c.unmarshal(out.Item)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *dynamoCollection[T]) List(ctx context.Context) ([]Record[T], error) {
	return c.scan(ctx, &dyn.ScanInput{TableName: &c.table})
}

func (c *dynamoCollection[T]) Find(ctx context.Context, field string, value any) ([]Record[T], error) {
	av, err := attributevalue.MarshalWithOptions(value, jsonTags)
	if err != nil {
		return nil, fmt.Errorf("marshal filter value: %w", err)
	}
	return c.scan(ctx, &dyn.ScanInput{
		TableName:                 &c.table,
		FilterExpression:          awsString("#f = :v"),
		ExpressionAttributeNames:  map[string]string{"#f": field},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": av},
	})
}

func (c *dynamoCollection[T]) scan(ctx context.Context, input *dyn.ScanInput) ([]Record[T], error) {
	var out []Record[T]
	pages := dyn.NewScanPaginator(c.client, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", c.table, err)
		}
		for _, item := range page.Items {
			rec, err := c.unmarshal(item)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func (c *dynamoCollection[T]) Update(ctx context.Context, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	names := map[string]string{}
	values := map[string]types.AttributeValue{}
	sets := make([]string, 0, len(keys))
	for i, k := range keys {
		av, err := attributevalue.MarshalWithOptions(fields[k], jsonTags)
		if err != nil {
			return fmt.Errorf("marshal field %s: %w", k, err)
		}
		n, v := "#f"+strconv.Itoa(i), ":v"+strconv.Itoa(i)
		names[n] = k
		values[v] = av
		sets = append(sets, n+" = "+v)
	}

	_, err := c.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &c.table,
		Key:                       idKey(id),
		UpdateExpression:          awsString("SET " + strings.Join(sets, ", ")),
		ConditionExpression:       awsString("attribute_exists(id)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		if isConditionFailed(err) {
			return ErrNotFound
		}
		return fmt.Errorf("update item: %w", err)
	}
	c.hub.Publish(c.name)
	return nil
}

func (c *dynamoCollection[T]) Delete(ctx context.Context, id string) error {
	if _, err := c.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &c.table,
		Key:       idKey(id),
	}); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	c.hub.Publish(c.name)
	return nil
}

// Subscribe sees writes made through this process only; DynamoDB has no push
// channel here.
func (c *dynamoCollection[T]) Subscribe(ctx context.Context, onChange func([]Record[T])) (func(), error) {
	return subscribeVia(ctx, c.hub, c.name, c.List, onChange, c.logger)
}

func isConditionFailed(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }
