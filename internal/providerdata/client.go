// internal/providerdata/client.go
package providerdata

import (
	"context"
	goerrors "errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"licensure-workers/internal/common/errors"
	"licensure-workers/internal/common/logger"
	"licensure-workers/internal/models"
)

// StoreAPI is the slice of the table client this package consumes.
type StoreAPI interface {
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// ClientConfig carries the table layout, the timezone licensure dates are
// evaluated in, and the per-page store call budget for filtered queries.
type ClientConfig struct {
	TableName         string
	NameIndexName     string
	ReferenceTimezone string
	MaxQueryCalls     int
}

// Client reads and writes provider partitions.
type Client struct {
	store         StoreAPI
	tableName     string
	nameIndex     string
	tz            *time.Location
	maxQueryCalls int
	log           logger.Logger
	now           func() time.Time
}

func NewClient(store StoreAPI, cfg ClientConfig, log logger.Logger) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("store client is required")
	}
	if cfg.TableName == "" {
		return nil, fmt.Errorf("provider table name is required")
	}

	tz := time.UTC
	if cfg.ReferenceTimezone != "" {
		loc, err := time.LoadLocation(cfg.ReferenceTimezone)
		if err != nil {
			return nil, fmt.Errorf("invalid reference timezone %q: %w", cfg.ReferenceTimezone, err)
		}
		tz = loc
	}

	return &Client{
		store:         store,
		tableName:     cfg.TableName,
		nameIndex:     cfg.NameIndexName,
		tz:            tz,
		maxQueryCalls: cfg.MaxQueryCalls,
		log:           log,
		now:           time.Now,
	}, nil
}

// ProviderPartition is everything stored for one provider in one compact.
type ProviderPartition struct {
	Provider   *models.Provider
	Licenses   []models.License
	Privileges []models.Privilege
}

// GetProviderPartition reads the provider's full partition: the summary
// item, every license, and every privilege.
func (c *Client) GetProviderPartition(ctx context.Context, compact, providerID string) (*ProviderPartition, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: providerPK(compact, providerID)},
		},
	}

	part := &ProviderPartition{}
	for {
		out, err := c.store.Query(ctx, input)
		if err != nil {
			return nil, classifyStoreError("query provider partition", err)
		}

		for _, item := range out.Items {
			switch itemType(item) {
			case models.RecordTypeProvider:
				var p models.Provider
				if err := attributevalue.UnmarshalMap(item, &p); err != nil {
					return nil, fmt.Errorf("unmarshal provider item: %w", err)
				}
				part.Provider = &p
			case models.RecordTypeLicense:
				var l models.License
				if err := attributevalue.UnmarshalMap(item, &l); err != nil {
					return nil, fmt.Errorf("unmarshal license item: %w", err)
				}
				part.Licenses = append(part.Licenses, l)
			case models.RecordTypePrivilege:
				var p models.Privilege
				if err := attributevalue.UnmarshalMap(item, &p); err != nil {
					return nil, fmt.Errorf("unmarshal privilege item: %w", err)
				}
				part.Privileges = append(part.Privileges, p)
			default:
				if c.log != nil {
					c.log.Warn("Skipping provider partition item of unknown type", map[string]interface{}{
						"providerId": providerID,
						"compact":    compact,
					})
				}
			}
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	return part, nil
}

// classifyStoreError sorts raw store failures into the retryable
// infrastructure taxonomy. Callers add provider context on top.
func classifyStoreError(operation string, err error) error {
	var apiErr smithy.APIError
	if goerrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ProvisionedThroughputExceededException", "ThrottlingException", "RequestLimitExceeded":
			return errors.NewStoreThrottledError(err)
		}
	}
	if goerrors.Is(err, context.DeadlineExceeded) {
		return errors.NewDeadlineExceededError(operation, err)
	}
	return errors.NewStoreUnavailableError(operation, err)
}
