package websockets

import (
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/money"
)

// MessageType defines the type of a WebSocket message.
type MessageType string

const (
	// MessageTypeOrderUpdate is sent after an order changes state.
	MessageTypeOrderUpdate MessageType = "orderUpdate"
	// MessageTypeWalletUpdate is for messages that update wallet balances.
	MessageTypeWalletUpdate MessageType = "walletUpdate"
)

// Message represents a generic WebSocket message.
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`

	// Recipients limits delivery to these users where the transport can tell
	// users apart. Empty means everyone.
	Recipients []string `json:"-"`
}

// OrderUpdatePayload is the payload for an orderUpdate message.
type OrderUpdatePayload struct {
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	BuyerID  string `json:"buyer_id"`
	SellerID string `json:"seller_id"`
	Amount   string `json:"amount"`
}

// WalletUpdatePayload is the payload for a walletUpdate message.
type WalletUpdatePayload struct {
	UserID    string `json:"user_id"`
	OrderID   string `json:"order_id"`
	Available string `json:"available"`
	Held      string `json:"held"`
}

// OrderUpdate builds the message announcing the order's current status.
func OrderUpdate(order *models.Order) Message {
	return Message{
		Type: MessageTypeOrderUpdate,
		Payload: OrderUpdatePayload{
			OrderID:  order.ID,
			Status:   string(order.Status),
			BuyerID:  order.BuyerID,
			SellerID: order.SellerID,
			Amount:   money.Format(order.Amount),
		},
		Recipients: []string{order.BuyerID, order.SellerID},
	}
}

// WalletUpdate builds the message announcing a wallet's balances.
func WalletUpdate(w *models.Wallet, orderID string) Message {
	return Message{
		Type: MessageTypeWalletUpdate,
		Payload: WalletUpdatePayload{
			UserID:    w.UserID,
			OrderID:   orderID,
			Available: money.Format(w.Available),
			Held:      money.Format(w.Held),
		},
		Recipients: []string{w.UserID},
	}
}
