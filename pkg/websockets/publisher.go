package websockets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
)

// ConnectionsGetter returns the connection IDs opened by the given users.
type ConnectionsGetter interface {
	GetConnections(ctx context.Context, userIDs []string) ([]string, error)
}

// ConnectionPoster is the part of the API Gateway management client used to
// push messages.
type ConnectionPoster interface {
	PostToConnection(ctx context.Context, params *apigatewaymanagementapi.PostToConnectionInput, optFns ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error)
}

// DefaultPublisher pushes messages to the API Gateway websocket connections
// of the message recipients.
type DefaultPublisher struct {
	store       ConnectionsGetter
	connManager ConnectionManager
	apiGwClient ConnectionPoster
}

// NewPublisher creates a new DefaultPublisher for the given API endpoint.
func NewPublisher(ctx context.Context, store ConnectionsGetter, connManager ConnectionManager, apiEndpoint string) (*DefaultPublisher, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	apiGwClient := apigatewaymanagementapi.NewFromConfig(cfg, func(o *apigatewaymanagementapi.Options) {
		o.BaseEndpoint = aws.String(apiEndpoint)
	})

	return NewPublisherWithClient(store, connManager, apiGwClient), nil
}

// NewPublisherWithClient creates a DefaultPublisher around an existing client.
func NewPublisherWithClient(store ConnectionsGetter, connManager ConnectionManager, client ConnectionPoster) *DefaultPublisher {
	return &DefaultPublisher{
		store:       store,
		connManager: connManager,
		apiGwClient: client,
	}
}

// Publish sends a message to the recipients' connections. Stale connections
// are removed and other delivery failures are logged and skipped.
func (p *DefaultPublisher) Publish(ctx context.Context, message Message) error {
	if len(message.Recipients) == 0 {
		return nil
	}
	connectionIDs, err := p.store.GetConnections(ctx, message.Recipients)
	if err != nil {
		return fmt.Errorf("failed to get connections: %w", err)
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	for _, connectionID := range connectionIDs {
		_, err := p.apiGwClient.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
			ConnectionId: aws.String(connectionID),
			Data:         payload,
		})
		if err == nil {
			continue
		}

		var goneErr *apigwtypes.GoneException
		if errors.As(err, &goneErr) {
			slog.Info("stale connection found, deleting", "connectionId", connectionID)
			if err := p.connManager.RemoveConnection(ctx, connectionID); err != nil {
				slog.Error("failed to delete stale connection", "error", err)
			}
		} else {
			slog.Error("failed to post to connection", "connectionId", connectionID, "error", err)
		}
	}

	return nil
}
