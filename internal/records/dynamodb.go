package records

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// attribute names written by the processing pipeline
const (
	attrIdentity  = "idEmail"
	attrUploadRef = "idUpload"
	attrObjectKey = "s3_key"
	attrStatus    = "status"
)

// DynamoDBClient defines the DynamoDB operations used by the record store.
type DynamoDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// DynamoStore implements RecordStore on a DynamoDB table with partition key idEmail and sort key idUpload.
type DynamoStore struct {
	client DynamoDBClient
	table  string
}

// NewDynamoStore creates a record store reading from table.
func NewDynamoStore(client DynamoDBClient, table string) *DynamoStore {
	return &DynamoStore{client: client, table: table}
}

// Get implements RecordStore.
func (s *DynamoStore) Get(ctx context.Context, key RecordKey) (*Record, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]dbtypes.AttributeValue{
			attrIdentity:  &dbtypes.AttributeValueMemberS{Value: key.Identity},
			attrUploadRef: &dbtypes.AttributeValueMemberS{Value: key.UploadRef},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dynamodb get item from %s: %w", s.table, err)
	}
	if len(result.Item) == 0 {
		return nil, ErrRecordNotFound
	}

	objectKey, err := stringAttribute(result.Item, attrObjectKey)
	if err != nil {
		return nil, err
	}
	status, err := stringAttribute(result.Item, attrStatus)
	if err != nil {
		return nil, err
	}

	return &Record{
		Key:       key,
		ObjectKey: objectKey,
		Status:    Status(status),
	}, nil
}

// stringAttribute returns the value of a string attribute; absent and NULL attributes are empty.
func stringAttribute(item map[string]dbtypes.AttributeValue, name string) (string, error) {
	switch v := item[name].(type) {
	case nil:
		return "", nil
	case *dbtypes.AttributeValueMemberNULL:
		return "", nil
	case *dbtypes.AttributeValueMemberS:
		return v.Value, nil
	default:
		return "", fmt.Errorf("dynamodb attribute %s has unexpected type %T", name, v)
	}
}
