package websockets

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/chris/student-escrow-market/pkg/ids"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/render"
	"github.com/chris/student-escrow-market/pkg/websockets"
	"github.com/gorilla/websocket"
)

// Authenticator resolves the caller of a websocket connection.
type Authenticator interface {
	Authenticate(r *http.Request) (models.Principal, error)
	AuthenticateToken(ctx context.Context, raw string) (models.Principal, error)
}

// Handler handles WebSocket connections.
type Handler struct {
	connManager websockets.ConnectionManager
	auth        Authenticator
	hub         *websockets.Hub
	logger      *slog.Logger
}

// NewHandler creates a Handler for API Gateway connections.
func NewHandler(connManager websockets.ConnectionManager, auth Authenticator, logger *slog.Logger) *Handler {
	return &Handler{connManager: connManager, auth: auth, logger: logger}
}

// NewLocalHandler creates a Handler that attaches connections to hub.
func NewLocalHandler(hub *websockets.Hub, auth Authenticator, logger *slog.Logger) *Handler {
	return &Handler{hub: hub, auth: auth, logger: logger}
}

// HandleConnect authenticates the token query parameter and registers the
// connection for its user.
func (h *Handler) HandleConnect(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	connectionID := request.RequestContext.ConnectionID

	p, err := h.auth.AuthenticateToken(ctx, request.QueryStringParameters["token"])
	if err != nil {
		h.logger.Info("rejected websocket connection", "connectionId", connectionID, "error", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized}, nil
	}

	if err := h.connManager.AddConnection(ctx, connectionID, p.ID); err != nil {
		h.logger.Error("failed to save connection ID", "error", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, err
	}

	h.logger.Info("client connected", "connectionId", connectionID, "userId", p.ID)
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

// HandleDisconnect handles client disconnections.
func (h *Handler) HandleDisconnect(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	h.logger.Info("client disconnected", "connectionId", request.RequestContext.ConnectionID)

	if err := h.connManager.RemoveConnection(ctx, request.RequestContext.ConnectionID); err != nil {
		h.logger.Error("failed to delete connection ID", "error", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError}, err
	}

	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

// HandleDefault handles messages sent from a client. Clients are not
// expected to send any.
func (h *Handler) HandleDefault(ctx context.Context, request events.APIGatewayWebsocketProxyRequest) (events.APIGatewayProxyResponse, error) {
	h.logger.Debug("received message", "connectionId", request.RequestContext.ConnectionID)
	return events.APIGatewayProxyResponse{StatusCode: http.StatusOK}, nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all connections by default for local development.
		return true
	},
}

// ServeHTTP handles WebSocket requests for the local development server.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, err := h.auth.Authenticate(r)
	if err != nil {
		render.Error(w, r, h.logger, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", "error", err)
		return
	}
	defer conn.Close()

	connectionID := ids.New()
	h.hub.Attach(connectionID, p.ID, conn)
	h.logger.Info("client connected locally", "connectionId", connectionID, "userId", p.ID)

	defer func() {
		h.hub.Detach(connectionID)
		h.logger.Info("client disconnected locally", "connectionId", connectionID)
	}()

	// The loop only detects when the client closes the connection.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("unexpected close error", "error", err)
			}
			break
		}
	}
}
