// Package api holds the HTTP wire types and the chi server glue. Both files
// are regenerated from api/openapi.yaml with go generate ./api.
package api

import (
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
)

const (
	BearerAuthScopes = "bearerAuth.Scopes"
)

// Defines values for OrderStatus.
const (
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusEscrow         OrderStatus = "escrow"
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusReleased       OrderStatus = "released"
)

// Defines values for ListOrdersParamsRole.
const (
	Buyer  ListOrdersParamsRole = "buyer"
	Seller ListOrdersParamsRole = "seller"
)

// OrderStatus defines model for OrderStatus.
type OrderStatus string

// Order is the order projection with its latest payment, dispute and refund.
type Order struct {
	Amount      string             `json:"amount"`
	BuyerId     openapi_types.UUID `json:"buyerId"`
	ConfirmedAt *time.Time         `json:"confirmedAt,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	Dispute     *Dispute           `json:"dispute,omitempty"`
	Id          openapi_types.UUID `json:"id"`
	ListingId   openapi_types.UUID `json:"listingId"`
	Payment     *Payment           `json:"payment,omitempty"`
	Refund      *Refund            `json:"refund,omitempty"`
	SellerId    openapi_types.UUID `json:"sellerId"`
	Status      OrderStatus        `json:"status"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// Payment defines model for Payment. QrPayload is only shown to the buyer.
type Payment struct {
	CreatedAt         time.Time          `json:"createdAt"`
	Id                openapi_types.UUID `json:"id"`
	Method            string             `json:"method"`
	PaidAt            *time.Time         `json:"paidAt,omitempty"`
	Provider          string             `json:"provider"`
	ProviderPaymentId *string            `json:"providerPaymentId,omitempty"`
	QrPayload         *string            `json:"qrPayload,omitempty"`
	SbpReference      string             `json:"sbpReference"`
	Status            string             `json:"status"`
}

// Dispute defines model for Dispute.
type Dispute struct {
	CreatedAt  time.Time          `json:"createdAt"`
	Id         openapi_types.UUID `json:"id"`
	Notes      *string            `json:"notes,omitempty"`
	OpenedBy   openapi_types.UUID `json:"openedBy"`
	OrderId    openapi_types.UUID `json:"orderId"`
	Reason     string             `json:"reason"`
	Resolution *string            `json:"resolution,omitempty"`
	ResolvedAt *time.Time         `json:"resolvedAt,omitempty"`
	Status     string             `json:"status"`
}

// DisputeSummary is a dispute with the order facts staff need.
type DisputeSummary struct {
	BuyerId     openapi_types.UUID `json:"buyerId"`
	Dispute     Dispute            `json:"dispute"`
	OrderAmount string             `json:"orderAmount"`
	OrderStatus OrderStatus        `json:"orderStatus"`
	SellerId    openapi_types.UUID `json:"sellerId"`
}

// Refund defines model for Refund.
type Refund struct {
	Amount    string             `json:"amount"`
	CreatedAt time.Time          `json:"createdAt"`
	Id        openapi_types.UUID `json:"id"`
	PaymentId openapi_types.UUID `json:"paymentId"`
	Provider  string             `json:"provider"`
	Status    string             `json:"status"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Wallet defines model for Wallet.
type Wallet struct {
	Available string             `json:"available"`
	Held      string             `json:"held"`
	UpdatedAt time.Time          `json:"updatedAt"`
	UserId    openapi_types.UUID `json:"userId"`
}

// WalletEntry defines model for WalletEntry.
type WalletEntry struct {
	AvailableDelta string              `json:"availableDelta"`
	CreatedAt      time.Time           `json:"createdAt"`
	HeldDelta      string              `json:"heldDelta"`
	Id             openapi_types.UUID  `json:"id"`
	OrderId        *openapi_types.UUID `json:"orderId,omitempty"`
	Reason         string              `json:"reason"`
}

// Message defines model for Message.
type Message struct {
	CreatedAt time.Time          `json:"createdAt"`
	Id        openapi_types.UUID `json:"id"`
	Message   string             `json:"message"`
	OrderId   openapi_types.UUID `json:"orderId"`
	SenderId  openapi_types.UUID `json:"senderId"`
}

// OrderResponse wraps the projection returned by mutating endpoints.
type OrderResponse struct {
	Order Order `json:"order"`
}

// OrderList defines model for OrderList.
type OrderList struct {
	Orders []Order `json:"orders"`
}

// WalletEntryList defines model for WalletEntryList.
type WalletEntryList struct {
	Entries []WalletEntry `json:"entries"`
}

// MessageList defines model for MessageList.
type MessageList struct {
	Messages []Message `json:"messages"`
}

// MessageResponse defines model for MessageResponse.
type MessageResponse struct {
	Message Message `json:"message"`
}

// DisputeList defines model for DisputeList.
type DisputeList struct {
	Disputes []DisputeSummary `json:"disputes"`
}

// Health defines model for Health.
type Health struct {
	Status string `json:"status"`
}

// NewOrder defines model for NewOrder.
type NewOrder struct {
	ListingId openapi_types.UUID `json:"listingId"`
}

// NewDispute defines model for NewDispute.
type NewDispute struct {
	Reason string `json:"reason"`
}

// NewMessage defines model for NewMessage.
type NewMessage struct {
	Message string `json:"message"`
}

// DisputeResolution defines model for DisputeResolution.
type DisputeResolution struct {
	Notes      *string `json:"notes,omitempty"`
	Resolution string  `json:"resolution"`
}

// ListOrdersParams defines parameters for ListOrders.
type ListOrdersParams struct {
	Role *ListOrdersParamsRole `form:"role,omitempty" json:"role,omitempty"`
}

// ListOrdersParamsRole defines parameters for ListOrders.
type ListOrdersParamsRole string

// ListMyWalletEntriesParams defines parameters for ListMyWalletEntries.
type ListMyWalletEntriesParams struct {
	Limit *int32 `form:"limit,omitempty" json:"limit,omitempty"`
}

// ListDisputesParams defines parameters for ListDisputes.
type ListDisputesParams struct {
	Status *string `form:"status,omitempty" json:"status,omitempty"`
}
