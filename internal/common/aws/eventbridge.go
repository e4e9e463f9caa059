// internal/common/aws/eventbridge.go
package aws

import (
	"context"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
)

type EventBridgeClient struct {
	client *eventbridge.Client
}

func NewEventBridgeClient(ctx context.Context, region, endpoint string) (*EventBridgeClient, error) {
	cfg, err := loadConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	client := eventbridge.NewFromConfig(cfg, func(o *eventbridge.Options) {
		if endpoint != "" {
			o.BaseEndpoint = awssdk.String(endpoint)
		}
	})
	return &EventBridgeClient{client: client}, nil
}

// API exposes the raw service client for the batch writer's transport interface.
func (e *EventBridgeClient) API() *eventbridge.Client {
	return e.client
}

func (e *EventBridgeClient) PutEvents(ctx context.Context, input *eventbridge.PutEventsInput) (*eventbridge.PutEventsOutput, error) {
	return e.client.PutEvents(ctx, input)
}
