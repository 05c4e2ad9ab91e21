package storage

import (
	"context"
	"time"

	"github.com/chris/student-escrow-market/pkg/models"
)

// RefundTx defines refund operations inside a transaction.
type RefundTx interface {
	// LatestRefund locks and returns the order's latest refund, or nil.
	LatestRefund(ctx context.Context, orderID string) (*models.Refund, error)

	LockRefund(ctx context.Context, refundID string) (*models.Refund, error)

	InsertRefund(ctx context.Context, refund *models.Refund) error

	UpdateRefundStatus(ctx context.Context, refundID string, status models.RefundStatus, at time.Time) error
}

// RefundReader defines read access to refunds.
type RefundReader interface {
	GetRefund(ctx context.Context, refundID string) (*models.Refund, error)

	// FindPendingRefundByPayment returns the pending refund of a payment, or nil.
	FindPendingRefundByPayment(ctx context.Context, paymentID string) (*models.Refund, error)

	// ListPendingRefunds returns pending refunds created before the cutoff.
	ListPendingRefunds(ctx context.Context, before time.Time, limit int32) ([]models.Refund, error)
}
