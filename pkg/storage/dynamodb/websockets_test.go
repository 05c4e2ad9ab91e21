package dynamodb

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/chris/student-escrow-market/pkg/storage/dynamodb/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func item(connectionID, userID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"connection_id": &types.AttributeValueMemberS{Value: connectionID},
		"user_id":       &types.AttributeValueMemberS{Value: userID},
	}
}

func TestAddConnection(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockClient := mocks.NewDynamoDBAPI(t)
		mockClient.On("PutItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.PutItemInput) bool {
			conn, ok := in.Item["connection_id"].(*types.AttributeValueMemberS)
			user, ok2 := in.Item["user_id"].(*types.AttributeValueMemberS)
			_, hasTTL := in.Item["expires_at"].(*types.AttributeValueMemberN)
			return *in.TableName == "connections" && ok && ok2 && conn.Value == "c-1" && user.Value == "u-1" && hasTTL
		})).Return(&dynamodb.PutItemOutput{}, nil)

		store := New(mockClient, "connections")
		assert.NoError(t, store.AddConnection(context.Background(), "c-1", "u-1"))
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockClient := mocks.NewDynamoDBAPI(t)
		mockClient.On("PutItem", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

		store := New(mockClient, "connections")
		err := store.AddConnection(context.Background(), "c-1", "u-1")
		assert.ErrorContains(t, err, "failed to put item")
	})
}

func TestRemoveConnection(t *testing.T) {
	mockClient := mocks.NewDynamoDBAPI(t)
	mockClient.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		key, ok := in.Key["connection_id"].(*types.AttributeValueMemberS)
		return ok && key.Value == "c-1"
	})).Return(&dynamodb.DeleteItemOutput{}, nil)

	store := New(mockClient, "connections")
	assert.NoError(t, store.RemoveConnection(context.Background(), "c-1"))
}

func TestGetConnections(t *testing.T) {
	forUser := func(userID string) interface{} {
		return mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
			v, ok := in.ExpressionAttributeValues[":uid"].(*types.AttributeValueMemberS)
			return ok && v.Value == userID && *in.IndexName == UserIndexName
		})
	}

	t.Run("Success", func(t *testing.T) {
		mockClient := mocks.NewDynamoDBAPI(t)
		mockClient.On("Query", mock.Anything, forUser("buyer")).Return(&dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{item("c-1", "buyer"), item("c-2", "buyer")},
		}, nil)
		mockClient.On("Query", mock.Anything, forUser("seller")).Return(&dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{item("c-3", "seller")},
		}, nil)

		store := New(mockClient, "connections")
		ids, err := store.GetConnections(context.Background(), []string{"buyer", "seller"})
		require.NoError(t, err)
		assert.Equal(t, []string{"c-1", "c-2", "c-3"}, ids)
	})

	t.Run("Query Error", func(t *testing.T) {
		mockClient := mocks.NewDynamoDBAPI(t)
		mockClient.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("unavailable"))

		store := New(mockClient, "connections")
		_, err := store.GetConnections(context.Background(), []string{"buyer"})
		assert.ErrorContains(t, err, "failed to query connections table")
	})
}
