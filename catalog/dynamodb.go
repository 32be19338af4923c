package catalog

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DDBClient is the interface for the DynamoDB operations the catalog uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoDB is a Catalog backed by one DynamoDB table.
//
// Table schema:
//   - Partition key: segment_id (string)
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name lexgo-segments \
//	  --attribute-definitions AttributeName=segment_id,AttributeType=S \
//	  --key-schema AttributeName=segment_id,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
type DynamoDB struct {
	client    DDBClient
	tableName string
}

// NewDynamoDB creates a catalog over an existing table.
func NewDynamoDB(client DDBClient, tableName string) *DynamoDB {
	return &DynamoDB{
		client:    client,
		tableName: tableName,
	}
}

// NewDynamoDBDefault creates a catalog with a client from the default AWS
// configuration chain.
func NewDynamoDBDefault(ctx context.Context, tableName string) (*DynamoDB, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewDynamoDB(dynamodb.NewFromConfig(cfg), tableName), nil
}

var _ Catalog = (*DynamoDB)(nil)

// Register records info with a conditional put, so each segment ID is
// accepted exactly once.
func (d *DynamoDB) Register(ctx context.Context, info SegmentInfo) error {
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item: map[string]types.AttributeValue{
			"segment_id":     &types.AttributeValueMemberS{Value: info.ID},
			"base_path":      &types.AttributeValueMemberS{Value: info.BasePath},
			"codec":          &types.AttributeValueMemberS{Value: info.Codec},
			"sum_term_hits":  &types.AttributeValueMemberN{Value: strconv.FormatUint(info.Stats.SumTermHits, 10)},
			"total_terms":    &types.AttributeValueMemberN{Value: strconv.FormatUint(info.Stats.TotalTerms, 10)},
			"sum_terms_docs": &types.AttributeValueMemberN{Value: strconv.FormatUint(info.Stats.SumTermsDocs, 10)},
			"docs_count":     &types.AttributeValueMemberN{Value: strconv.FormatUint(info.Stats.DocsCount, 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(segment_id)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrSegmentExists
		}
		return fmt.Errorf("catalog: register segment: %w", err)
	}
	return nil
}

// Get returns the registered info for id.
func (d *DynamoDB) Get(ctx context.Context, id string) (SegmentInfo, error) {
	resp, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"segment_id": &types.AttributeValueMemberS{Value: id},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return SegmentInfo{}, fmt.Errorf("catalog: get segment: %w", err)
	}
	if len(resp.Item) == 0 {
		return SegmentInfo{}, ErrNotFound
	}

	info := SegmentInfo{ID: id}
	if v, ok := resp.Item["base_path"].(*types.AttributeValueMemberS); ok {
		info.BasePath = v.Value
	}
	if v, ok := resp.Item["codec"].(*types.AttributeValueMemberS); ok {
		info.Codec = v.Value
	}

	counters := map[string]*uint64{
		"sum_term_hits":  &info.Stats.SumTermHits,
		"total_terms":    &info.Stats.TotalTerms,
		"sum_terms_docs": &info.Stats.SumTermsDocs,
		"docs_count":     &info.Stats.DocsCount,
	}
	for attr, dst := range counters {
		v, ok := resp.Item[attr].(*types.AttributeValueMemberN)
		if !ok {
			return SegmentInfo{}, fmt.Errorf("catalog: invalid %s attribute", attr)
		}
		parsed, err := strconv.ParseUint(v.Value, 10, 64)
		if err != nil {
			return SegmentInfo{}, fmt.Errorf("catalog: parse %s: %w", attr, err)
		}
		*dst = parsed
	}

	return info, nil
}
