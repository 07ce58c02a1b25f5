package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// SlotTTL is how long an untouched favorites slot survives
const SlotTTL = 365 * 24 * time.Hour

// DynamoDBClient defines the interface for DynamoDB operations we need
type DynamoDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// SlotRecord is the DynamoDB item holding one slot. Version increases by one
// on every write and guards the conditional put.
type SlotRecord struct {
	Slot        string `dynamodbav:"slot"`
	Payload     string `dynamodbav:"payload"`
	Version     int64  `dynamodbav:"version"`
	LastUpdated int64  `dynamodbav:"lastUpdated"`
	TTL         int64  `dynamodbav:"ttl"`
}

// DynamoBlob keeps the favorites slot as one item, expiring a year after the last write
type DynamoBlob struct {
	client    DynamoDBClient
	tableName string
	slot      string
	clock     clockwork.Clock
}

func NewDynamoBlob(client DynamoDBClient, tableName, slot string, clock clockwork.Clock) *DynamoBlob {
	if slot == "" {
		slot = DefaultSlot
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &DynamoBlob{
		client:    client,
		tableName: tableName,
		slot:      slot,
		clock:     clock,
	}
}

// Read returns the payload and the item version. An expired item reads as
// absent but keeps its version so the next write still replaces it.
func (b *DynamoBlob) Read(ctx context.Context) ([]byte, string, error) {
	result, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(b.tableName),
		Key: map[string]types.AttributeValue{
			"slot": &types.AttributeValueMemberS{Value: b.slot},
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("getting slot from DynamoDB: %w", err)
	}

	if result.Item == nil {
		return nil, "", nil
	}

	var record SlotRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, "", fmt.Errorf("unmarshaling slot record: %w", err)
	}
	version := strconv.FormatInt(record.Version, 10)

	// DynamoDB deletes expired items lazily
	if record.TTL > 0 && b.clock.Now().Unix() >= record.TTL {
		log.Debug().Str("slot", b.slot).Msg("Favorites slot expired")
		return nil, version, nil
	}

	return []byte(record.Payload), version, nil
}

// Write puts the item only if it still has the version the caller read. An
// empty version means the item must not exist yet.
func (b *DynamoBlob) Write(ctx context.Context, data []byte, version string) error {
	input := &dynamodb.PutItemInput{
		TableName: aws.String(b.tableName),
	}

	var previous int64
	if version == "" {
		input.ConditionExpression = aws.String("attribute_not_exists(#slot)")
		input.ExpressionAttributeNames = map[string]string{"#slot": "slot"}
	} else {
		v, err := strconv.ParseInt(version, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid slot version %q: %w", version, err)
		}
		previous = v
		condition := "#version = :v"
		if v == 0 {
			// items written before versioning carry no version attribute
			condition = "attribute_not_exists(#version) OR #version = :v"
		}
		input.ConditionExpression = aws.String(condition)
		input.ExpressionAttributeNames = map[string]string{"#version": "version"}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":v": &types.AttributeValueMemberN{Value: version},
		}
	}

	now := b.clock.Now()
	record := SlotRecord{
		Slot:        b.slot,
		Payload:     string(data),
		Version:     previous + 1,
		LastUpdated: now.Unix(),
		TTL:         now.Add(SlotTTL).Unix(),
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return fmt.Errorf("marshaling slot record: %w", err)
	}
	input.Item = item

	if _, err := b.client.PutItem(ctx, input); err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return fmt.Errorf("%w: %w", ErrConflict, err)
		}
		return fmt.Errorf("putting slot in DynamoDB: %w", err)
	}

	log.Debug().Str("slot", b.slot).Int("bytes", len(data)).Msg("Saved favorites slot to DynamoDB")
	return nil
}
