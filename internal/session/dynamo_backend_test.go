package session

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDynamo is an in-memory table keyed by the "key" attribute. Scan applies
// the prefix and expiry filter the backend sends, and never deletes on TTL,
// matching DynamoDB's lazy expiry.
type fakeDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeDynamo() *fakeDynamo {
	return &fakeDynamo{items: make(map[string]map[string]types.AttributeValue)}
}

func keyOf(av map[string]types.AttributeValue) string {
	return av["key"].(*types.AttributeValueMemberS).Value
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[keyOf(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.items[keyOf(in.Key)]}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := keyOf(in.Key)
	old := f.items[k]
	delete(f.items, k)
	return &dynamodb.DeleteItemOutput{Attributes: old}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	prefix := in.ExpressionAttributeValues[":prefix"].(*types.AttributeValueMemberS).Value
	now, _ := strconv.ParseInt(in.ExpressionAttributeValues[":now"].(*types.AttributeValueMemberN).Value, 10, 64)

	var out []map[string]types.AttributeValue
	for k, item := range f.items {
		exp, _ := strconv.ParseInt(item["expires_at"].(*types.AttributeValueMemberN).Value, 10, 64)
		if strings.HasPrefix(k, prefix) && exp > now {
			out = append(out, item)
		}
	}
	return &dynamodb.ScanOutput{Items: out}, nil
}

func newTestDynamoBackend() (*DynamoBackend, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	b := NewDynamoBackend(newFakeDynamo(), "Sessions")
	b.now = clock.Now
	return b, clock
}

func TestDynamoBackend_Fields(t *testing.T) {
	b, clock := newTestDynamoBackend()
	ctx := context.Background()

	require.NoError(t, b.SetFields(ctx, "credentials:abc", map[string]string{"token": "t"}, time.Hour))

	got, err := b.GetFields(ctx, "credentials:abc")
	require.NoError(t, err)
	assert.Equal(t, "t", got["token"])

	clock.Advance(time.Hour)
	_, err = b.GetFields(ctx, "credentials:abc")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestDynamoBackend_Values(t *testing.T) {
	b, _ := newTestDynamoBackend()
	ctx := context.Background()

	_, err := b.GetValue(ctx, "session:source")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, b.SetValue(ctx, "session:source", "tok-1", time.Hour))
	require.NoError(t, b.SetValue(ctx, "session:source", "tok-2", time.Hour))

	v, err := b.GetValue(ctx, "session:source")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", v)
}

func TestDynamoBackend_Delete(t *testing.T) {
	b, clock := newTestDynamoBackend()
	ctx := context.Background()

	require.NoError(t, b.SetValue(ctx, "k", "v", time.Minute))
	deleted, err := b.Delete(ctx, "k")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = b.Delete(ctx, "k")
	require.NoError(t, err)
	assert.False(t, deleted)

	require.NoError(t, b.SetValue(ctx, "expired", "v", time.Minute))
	clock.Advance(2 * time.Minute)
	deleted, err = b.Delete(ctx, "expired")
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDynamoBackend_ScanValues(t *testing.T) {
	b, clock := newTestDynamoBackend()
	ctx := context.Background()

	require.NoError(t, b.SetValue(ctx, "session:source", "s", time.Hour))
	require.NoError(t, b.SetValue(ctx, "session:destination", "d", 2*time.Hour))
	require.NoError(t, b.SetFields(ctx, "credentials:x", map[string]string{"token": "t"}, time.Hour))

	got, err := b.ScanValues(ctx, "session:")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"session:source": "s", "session:destination": "d"}, got)

	clock.Advance(90 * time.Minute)
	got, err = b.ScanValues(ctx, "session:")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"session:destination": "d"}, got)
}

func TestDynamoBackend_WithStore(t *testing.T) {
	b, _ := newTestDynamoBackend()
	store := NewStore(b, nil, 0)
	ctx := context.Background()

	token, err := store.Store(ctx, testBundle("dyn"), "source")
	require.NoError(t, err)

	got, err := store.ResolveByRole(ctx, "source")
	require.NoError(t, err)
	assert.Equal(t, "dyn", got.AccessToken)
	assert.NotEmpty(t, token)
}
