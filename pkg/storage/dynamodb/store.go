// Package dynamodb keeps the registry of API Gateway websocket connections.
package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/chris/student-escrow-market/pkg/websockets"
)

// DynamoDBAPI is the part of the DynamoDB client the registry uses.
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// UserIndexName is the global secondary index keyed by user_id.
const UserIndexName = "user_id-index"

// Store implements the connection registry on a DynamoDB table.
type Store struct {
	Client                        DynamoDBAPI
	WebsocketConnectionsTableName string
}

// New creates a new Store.
func New(client DynamoDBAPI, connectionsTable string) *Store {
	return &Store{
		Client:                        client,
		WebsocketConnectionsTableName: connectionsTable,
	}
}

// Make sure we conform to the interfaces
var (
	_ websockets.ConnectionManager = (*Store)(nil)
	_ websockets.ConnectionsGetter = (*Store)(nil)
)
