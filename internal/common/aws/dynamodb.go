// internal/common/aws/dynamodb.go
package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

type DynamoDBClient struct {
	client *dynamodb.Client
}

// NewDynamoDBClient connects to the record store. An empty endpoint uses the
// regional AWS endpoint; local stacks pass their own.
func NewDynamoDBClient(ctx context.Context, region, endpoint string) (*DynamoDBClient, error) {
	cfg, err := loadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = awssdk.String(endpoint)
		}
	})
	return &DynamoDBClient{client: client}, nil
}

// API exposes the raw service client for components that accept the
// narrower operation interfaces.
func (d *DynamoDBClient) API() *dynamodb.Client {
	return d.client
}

// Ping verifies table access during startup.
func (d *DynamoDBClient) Ping(ctx context.Context, table string) error {
	_, err := d.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: awssdk.String(table),
	})
	return err
}
