package session

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoClient is the subset of *dynamodb.Client used by DynamoBackend.
type DynamoClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// dynamoRecord is one row of the sessions table. expires_at is configured as
// the table's TTL attribute; DynamoDB deletes lazily, so reads re-check it.
type dynamoRecord struct {
	Key       string            `dynamodbav:"key"`
	Fields    map[string]string `dynamodbav:"fields,omitempty"`
	Value     string            `dynamodbav:"value,omitempty"`
	ExpiresAt int64             `dynamodbav:"expires_at"`
}

// DynamoBackend stores session records in a DynamoDB table keyed by "key".
type DynamoBackend struct {
	client    DynamoClient
	tableName string
	now       func() time.Time
}

// NewDynamoBackend creates a DynamoBackend for tableName.
func NewDynamoBackend(client DynamoClient, tableName string) *DynamoBackend {
	return &DynamoBackend{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

func (d *DynamoBackend) keyAttr(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"key": &types.AttributeValueMemberS{Value: key},
	}
}

func (d *DynamoBackend) put(ctx context.Context, rec dynamoRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", rec.Key, err)
	}

	_, err = d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put record %s: %w", rec.Key, err)
	}
	return nil
}

// get returns the live record at key or ErrKeyNotFound.
func (d *DynamoBackend) get(ctx context.Context, key string) (*dynamoRecord, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            d.keyAttr(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", key, err)
	}
	if out.Item == nil {
		return nil, ErrKeyNotFound
	}

	var rec dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %s: %w", key, err)
	}
	if rec.ExpiresAt <= d.now().Unix() {
		return nil, ErrKeyNotFound
	}
	return &rec, nil
}

func (d *DynamoBackend) SetFields(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	return d.put(ctx, dynamoRecord{
		Key:       key,
		Fields:    fields,
		ExpiresAt: d.now().Add(ttl).Unix(),
	})
}

func (d *DynamoBackend) GetFields(ctx context.Context, key string) (map[string]string, error) {
	rec, err := d.get(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(rec.Fields) == 0 {
		return nil, ErrKeyNotFound
	}
	return rec.Fields, nil
}

func (d *DynamoBackend) SetValue(ctx context.Context, key, value string, ttl time.Duration) error {
	return d.put(ctx, dynamoRecord{
		Key:       key,
		Value:     value,
		ExpiresAt: d.now().Add(ttl).Unix(),
	})
}

func (d *DynamoBackend) GetValue(ctx context.Context, key string) (string, error) {
	rec, err := d.get(ctx, key)
	if err != nil {
		return "", err
	}
	if rec.Value == "" {
		return "", ErrKeyNotFound
	}
	return rec.Value, nil
}

func (d *DynamoBackend) Delete(ctx context.Context, key string) (bool, error) {
	out, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(d.tableName),
		Key:          d.keyAttr(key),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete record %s: %w", key, err)
	}
	if len(out.Attributes) == 0 {
		return false, nil
	}

	var old dynamoRecord
	if err := attributevalue.UnmarshalMap(out.Attributes, &old); err != nil {
		return true, nil
	}
	// A row past its TTL was already logically gone.
	return old.ExpiresAt > d.now().Unix(), nil
}

func (d *DynamoBackend) ScanValues(ctx context.Context, prefix string) (map[string]string, error) {
	out := make(map[string]string)

	paginator := dynamodb.NewScanPaginator(d.client, &dynamodb.ScanInput{
		TableName:        aws.String(d.tableName),
		FilterExpression: aws.String("begins_with(#k, :prefix) AND expires_at > :now"),
		ExpressionAttributeNames: map[string]string{
			"#k": "key",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: prefix},
			":now":    &types.AttributeValueMemberN{Value: strconv.FormatInt(d.now().Unix(), 10)},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s*: %w", prefix, err)
		}

		var recs []dynamoRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal scan page: %w", err)
		}
		for _, rec := range recs {
			if rec.Value != "" {
				out[rec.Key] = rec.Value
			}
		}
	}
	return out, nil
}
