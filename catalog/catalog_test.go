package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/lexgo"
)

func testInfo() SegmentInfo {
	return SegmentInfo{
		ID:       "seg-0001",
		BasePath: "/data/segments/0001",
		Codec:    "postings:1",
		Stats: lexgo.FieldStatistics{
			SumTermHits:  42,
			TotalTerms:   7,
			SumTermsDocs: 12,
			DocsCount:    5,
		},
	}
}

func TestMemoryCatalog(t *testing.T) {
	ctx := context.Background()
	cat := NewMemory()

	info := testInfo()
	require.NoError(t, cat.Register(ctx, info))
	assert.ErrorIs(t, cat.Register(ctx, info), ErrSegmentExists)

	got, err := cat.Get(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, info, got)

	_, err = cat.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// fakeDDB implements DDBClient over a map, honoring the conditional put.
type fakeDDB struct {
	items map[string]map[string]types.AttributeValue
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeDDB) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	id := params.Item["segment_id"].(*types.AttributeValueMemberS).Value
	if _, ok := f.items[id]; ok {
		return nil, &types.ConditionalCheckFailedException{}
	}
	f.items[id] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	id := params.Key["segment_id"].(*types.AttributeValueMemberS).Value
	item, ok := f.items[id]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func TestDynamoDBCatalog(t *testing.T) {
	ctx := context.Background()
	cat := NewDynamoDB(newFakeDDB(), "lexgo-segments")

	info := testInfo()
	require.NoError(t, cat.Register(ctx, info))
	assert.ErrorIs(t, cat.Register(ctx, info), ErrSegmentExists)

	got, err := cat.Get(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, info, got)

	_, err = cat.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

type failingDDB struct{}

func (failingDDB) PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return nil, errors.New("throttled")
}

func (failingDDB) GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return nil, errors.New("throttled")
}

func TestDynamoDBCatalogErrors(t *testing.T) {
	ctx := context.Background()
	cat := NewDynamoDB(failingDDB{}, "lexgo-segments")

	err := cat.Register(ctx, testInfo())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSegmentExists)

	_, err = cat.Get(ctx, "seg-0001")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
