package main

import (
	"context"
	"log"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/student-escrow-market/pkg/bootstrap"
	wshandler "github.com/chris/student-escrow-market/pkg/handlers/websockets"
	"github.com/chris/student-escrow-market/pkg/middleware"
)

var handler *wshandler.Handler

func init() {
	ctx := context.Background()

	deps, err := bootstrap.Load(ctx)
	if err != nil {
		log.Fatalf("failed to initialise: %v", err)
	}
	if err := deps.Config.RequireJWTSecret(); err != nil {
		log.Fatal(err)
	}

	conns, err := deps.Connections(ctx)
	if err != nil {
		log.Fatalf("failed to create connection store: %v", err)
	}
	if conns == nil {
		log.Fatal("DYNAMODB_CONNECTIONS_TABLE_NAME environment variable not set")
	}

	auth := middleware.NewAuthenticator(deps.Store, deps.Config.JWTSecret, deps.Logger)
	handler = wshandler.NewHandler(conns, auth, deps.Logger)
}

// HandleRequest routes API Gateway websocket events by route key.
func HandleRequest(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	switch request.RequestContext.RouteKey {
	case "$connect":
		return handler.HandleConnect(ctx, request)
	case "$disconnect":
		return handler.HandleDisconnect(ctx, request)
	case "$default":
		return handler.HandleDefault(ctx, request)
	default:
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNotFound}, nil
	}
}

func main() {
	lambda.Start(HandleRequest)
}
