package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

const (
	pkPrefixClaim = "CLAIM#"
	skClaim       = "CLAIM#"
)

// dynamodbAPI is the minimal DynamoDB interface required by ClaimStore.
// Defined here for testability.
type dynamodbAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// ClaimStore hands out short-lived exclusive claims on a key. A claim is won by
// the first writer and expires after its TTL; it is never released early.
type ClaimStore struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
	newOwner  func() string
}

// New creates a ClaimStore backed by tableName. The table needs string keys PK
// and SK; the ttl attribute can be enabled for DynamoDB expiry.
func New(api dynamodbAPI, tableName string) (*ClaimStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &ClaimStore{
		api:       api,
		tableName: tableName,
		now:       time.Now,
		newOwner:  uuid.NewString,
	}, nil
}

func claimPK(key string) string {
	return pkPrefixClaim + key
}

// Claim reports whether the caller won key for ttl. An unexpired claim held by
// someone else yields (false, nil).
func (s *ClaimStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if strings.TrimSpace(key) == "" {
		return false, errors.New("repository: Claim: key is required")
	}
	if ttl <= 0 {
		return false, errors.New("repository: Claim: ttl must be positive")
	}

	now := s.now().UTC()
	expiresAt := now.Add(ttl)
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"PK":        &types.AttributeValueMemberS{Value: claimPK(key)},
			"SK":        &types.AttributeValueMemberS{Value: skClaim},
			"owner":     &types.AttributeValueMemberS{Value: s.newOwner()},
			"claimedAt": &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
			"expiresAt": &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt.UnixMilli(), 10)},
			// DynamoDB TTL sweeps lazily, so expiresAt stays authoritative.
			"ttl": &types.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt.Add(time.Hour).Unix(), 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK) OR expiresAt < :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.UnixMilli(), 10)},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return false, nil
		}
		return false, fmt.Errorf("repository: Claim: %w", err)
	}
	return true, nil
}
