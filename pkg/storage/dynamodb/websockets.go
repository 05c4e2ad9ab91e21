package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// connectionTTL bounds how long a record outlives a missed disconnect.
const connectionTTL = 24 * time.Hour

// WebSocketConnection represents a record in the WebSocket connections table.
type WebSocketConnection struct {
	ConnectionID string `dynamodbav:"connection_id"`
	UserID       string `dynamodbav:"user_id"`
	ExpiresAt    int64  `dynamodbav:"expires_at"`
}

// AddConnection saves a new WebSocket connection for the user.
func (s *Store) AddConnection(ctx context.Context, connectionID, userID string) error {
	conn := WebSocketConnection{
		ConnectionID: connectionID,
		UserID:       userID,
		ExpiresAt:    time.Now().Add(connectionTTL).Unix(),
	}
	item, err := attributevalue.MarshalMap(conn)
	if err != nil {
		return fmt.Errorf("failed to marshal connection: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.WebsocketConnectionsTableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}

	return nil
}

// RemoveConnection deletes a WebSocket connection ID from the database.
func (s *Store) RemoveConnection(ctx context.Context, connectionID string) error {
	key, err := attributevalue.MarshalMap(map[string]string{
		"connection_id": connectionID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal connection key: %w", err)
	}

	_, err = s.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.WebsocketConnectionsTableName),
		Key:       key,
	})
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	return nil
}

// GetConnections retrieves the connection IDs opened by the given users.
func (s *Store) GetConnections(ctx context.Context, userIDs []string) ([]string, error) {
	var connectionIDs []string
	for _, userID := range userIDs {
		input := &dynamodb.QueryInput{
			TableName:              aws.String(s.WebsocketConnectionsTableName),
			IndexName:              aws.String(UserIndexName),
			KeyConditionExpression: aws.String("user_id = :uid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uid": &types.AttributeValueMemberS{Value: userID},
			},
			ProjectionExpression: aws.String("connection_id, user_id"),
		}
		for {
			queryOutput, err := s.Client.Query(ctx, input)
			if err != nil {
				return nil, fmt.Errorf("failed to query connections table: %w", err)
			}

			var connections []WebSocketConnection
			if err := attributevalue.UnmarshalListOfMaps(queryOutput.Items, &connections); err != nil {
				return nil, fmt.Errorf("failed to unmarshal connections: %w", err)
			}
			for _, conn := range connections {
				connectionIDs = append(connectionIDs, conn.ConnectionID)
			}

			if len(queryOutput.LastEvaluatedKey) == 0 {
				break
			}
			input.ExclusiveStartKey = queryOutput.LastEvaluatedKey
		}
	}

	return connectionIDs, nil
}
