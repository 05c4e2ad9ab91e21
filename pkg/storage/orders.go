package storage

import (
	"context"
	"time"

	"github.com/chris/student-escrow-market/pkg/models"
)

// ListingTx reads the listing collaborator inside a transaction.
type ListingTx interface {
	GetListing(ctx context.Context, listingID string) (*models.Listing, error)
}

// OrderTx defines order operations inside a transaction.
type OrderTx interface {
	LockOrder(ctx context.Context, orderID string) (*models.Order, error)

	// FindOpenOrder returns the pending_payment or escrow order for the pair, or nil.
	FindOpenOrder(ctx context.Context, listingID, buyerID string) (*models.Order, error)

	// InsertOrder returns ErrDuplicateOpenOrder if an open order already exists for the pair.
	InsertOrder(ctx context.Context, order *models.Order) error

	UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, confirmedAt *time.Time, at time.Time) error
}

// OrderFilter selects the orders of one participant.
type OrderFilter struct {
	BuyerID  string
	SellerID string
}

// OrderReader defines read access to orders and their projections.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)

	// GetOrderView reads the order and its latest payment, dispute and refund from one snapshot.
	GetOrderView(ctx context.Context, orderID string) (*models.OrderView, error)

	// ListOrderViews returns matching orders, newest first.
	ListOrderViews(ctx context.Context, filter OrderFilter) ([]models.OrderView, error)
}
