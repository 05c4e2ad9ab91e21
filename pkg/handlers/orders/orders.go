package orders

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/chris/student-escrow-market/pkg/api"
	"github.com/chris/student-escrow-market/pkg/mapping"
	"github.com/chris/student-escrow-market/pkg/middleware"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/render"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// OrderService is the order workflow behind the endpoints.
type OrderService interface {
	CreateOrder(ctx context.Context, caller models.Principal, listingID string) (*models.OrderView, bool, error)
	GetOrder(ctx context.Context, caller models.Principal, orderID string) (*models.OrderView, error)
	ListOrders(ctx context.Context, caller models.Principal, role string) ([]models.OrderView, error)
	InitiatePayment(ctx context.Context, caller models.Principal, orderID string) (*models.OrderView, error)
	ConfirmPaymentManually(ctx context.Context, caller models.Principal, orderID string) (*models.OrderView, error)
	CancelOrder(ctx context.Context, caller models.Principal, orderID string) (*models.OrderView, error)
	ConfirmReceipt(ctx context.Context, caller models.Principal, orderID string) (*models.OrderView, error)
	PostMessage(ctx context.Context, caller models.Principal, orderID, text string) (*models.OrderMessage, error)
	ListMessages(ctx context.Context, caller models.Principal, orderID string) ([]models.OrderMessage, error)
}

// OrdersHandler holds the dependencies for order-related handlers.
type OrdersHandler struct {
	Service OrderService
	Logger  *slog.Logger
}

// NewOrdersHandler creates a new OrdersHandler.
func NewOrdersHandler(service OrderService, logger *slog.Logger) *OrdersHandler {
	return &OrdersHandler{Service: service, Logger: logger}
}

// CreateOrder opens an order for a listing. It answers 201 for a new order
// and 200 when the caller's open order is returned instead.
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var body api.NewOrder
	if err := render.DecodeJSON(r, &body); err != nil {
		render.Error(w, r, h.Logger, err)
		return
	}

	caller := middleware.PrincipalFrom(r.Context())
	view, created, err := h.Service.CreateOrder(r.Context(), caller, body.ListingId.String())
	if err != nil {
		render.Error(w, r, h.Logger, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	render.JSON(w, status, api.OrderResponse{Order: mapping.ToApiOrder(caller, view)})
}

// GetOrder returns one order projection.
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request, orderID openapi_types.UUID) {
	h.respond(w, r, orderID, h.Service.GetOrder)
}

// ListOrders returns the caller's orders as buyer (default) or seller.
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request, params api.ListOrdersParams) {
	role := ""
	if params.Role != nil {
		role = string(*params.Role)
	}

	caller := middleware.PrincipalFrom(r.Context())
	views, err := h.Service.ListOrders(r.Context(), caller, role)
	if err != nil {
		render.Error(w, r, h.Logger, err)
		return
	}
	render.JSON(w, http.StatusOK, api.OrderList{Orders: mapping.ToApiOrders(caller, views)})
}

// InitiatePayment creates or reuses the SBP QR payment.
func (h *OrdersHandler) InitiatePayment(w http.ResponseWriter, r *http.Request, orderID openapi_types.UUID) {
	h.respond(w, r, orderID, h.Service.InitiatePayment)
}

// ConfirmPayment confirms the payment by hand where the gateway allows it.
func (h *OrdersHandler) ConfirmPayment(w http.ResponseWriter, r *http.Request, orderID openapi_types.UUID) {
	h.respond(w, r, orderID, h.Service.ConfirmPaymentManually)
}

// CancelOrder cancels an unpaid order.
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request, orderID openapi_types.UUID) {
	h.respond(w, r, orderID, h.Service.CancelOrder)
}

// ConfirmReceipt releases the escrow to the seller.
func (h *OrdersHandler) ConfirmReceipt(w http.ResponseWriter, r *http.Request, orderID openapi_types.UUID) {
	h.respond(w, r, orderID, h.Service.ConfirmReceipt)
}

// ListOrderMessages returns the order thread.
func (h *OrdersHandler) ListOrderMessages(w http.ResponseWriter, r *http.Request, orderID openapi_types.UUID) {
	caller := middleware.PrincipalFrom(r.Context())
	messages, err := h.Service.ListMessages(r.Context(), caller, orderID.String())
	if err != nil {
		render.Error(w, r, h.Logger, err)
		return
	}
	render.JSON(w, http.StatusOK, api.MessageList{Messages: mapping.ToApiMessages(messages)})
}

// PostOrderMessage appends a message to the order thread.
func (h *OrdersHandler) PostOrderMessage(w http.ResponseWriter, r *http.Request, orderID openapi_types.UUID) {
	var body api.NewMessage
	if err := render.DecodeJSON(r, &body); err != nil {
		render.Error(w, r, h.Logger, err)
		return
	}

	caller := middleware.PrincipalFrom(r.Context())
	message, err := h.Service.PostMessage(r.Context(), caller, orderID.String(), body.Message)
	if err != nil {
		render.Error(w, r, h.Logger, err)
		return
	}
	render.JSON(w, http.StatusCreated, api.MessageResponse{Message: mapping.ToApiMessage(message)})
}

func (h *OrdersHandler) respond(w http.ResponseWriter, r *http.Request, orderID openapi_types.UUID,
	op func(context.Context, models.Principal, string) (*models.OrderView, error)) {
	caller := middleware.PrincipalFrom(r.Context())
	view, err := op(r.Context(), caller, orderID.String())
	if err != nil {
		render.Error(w, r, h.Logger, err)
		return
	}
	render.JSON(w, http.StatusOK, api.OrderResponse{Order: mapping.ToApiOrder(caller, view)})
}
