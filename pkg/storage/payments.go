package storage

import (
	"context"
	"time"

	"github.com/chris/student-escrow-market/pkg/models"
)

// PaymentTx defines payment operations inside a transaction.
type PaymentTx interface {
	// LatestPayment locks and returns the order's latest payment, or nil.
	LatestPayment(ctx context.Context, orderID string) (*models.Payment, error)

	LockPayment(ctx context.Context, paymentID string) (*models.Payment, error)

	InsertPayment(ctx context.Context, payment *models.Payment) error

	// MarkPaymentPaid keeps an existing paid_at and provider payment id.
	MarkPaymentPaid(ctx context.Context, paymentID string, paidAt time.Time, providerPaymentID string) error

	// UpdatePaymentStatus sets the status, and the provider payment id when it was unset.
	UpdatePaymentStatus(ctx context.Context, paymentID string, status models.PaymentStatus, providerPaymentID string) error

	// CancelPendingPayments marks every pending payment of the order cancelled.
	CancelPendingPayments(ctx context.Context, orderID string) (int64, error)
}

// PaymentReader defines read access to payments.
type PaymentReader interface {
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
	FindPaymentByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error)
	FindPaymentByReference(ctx context.Context, reference string) (*models.Payment, error)

	// ListStalePayments returns pending payments of the provider, created before the
	// cutoff, whose order is still awaiting payment.
	ListStalePayments(ctx context.Context, provider string, before time.Time, limit int32) ([]models.Payment, error)
}
