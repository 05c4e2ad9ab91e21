package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/storage"
)

// LatestPayment locks and returns the order's latest payment, or nil.
func (d db) LatestPayment(ctx context.Context, orderID string) (*models.Payment, error) {
	p, err := scanPayment(d.q.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE order_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
		FOR UPDATE`, orderID))
	return optional(p, err, "failed to lock latest payment")
}

// LockPayment returns the payment and holds a row lock on it.
func (d db) LockPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	p, err := scanPayment(d.q.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, paymentID))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to lock payment %s: %w", paymentID, err))
	}
	return p, nil
}

// InsertPayment records a payment attempt.
func (d db) InsertPayment(ctx context.Context, p *models.Payment) error {
	_, err := d.q.Exec(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.OrderID, p.Method, p.Status, p.Provider, p.ProviderPaymentID,
		p.SBPReference, p.QRPayload, p.CreatedAt, p.PaidAt)
	if err != nil {
		return mapErr(fmt.Errorf("failed to insert payment: %w", err))
	}
	return nil
}

// MarkPaymentPaid keeps an existing paid_at and provider payment id.
func (d db) MarkPaymentPaid(ctx context.Context, paymentID string, paidAt time.Time, providerPaymentID string) error {
	tag, err := d.q.Exec(ctx, `
		UPDATE payments
		SET status = 'paid',
		    paid_at = COALESCE(paid_at, $2),
		    provider_payment_id = COALESCE(provider_payment_id, NULLIF($3, ''))
		WHERE id = $1`, paymentID, paidAt, providerPaymentID)
	if err != nil {
		return mapErr(fmt.Errorf("failed to mark payment %s paid: %w", paymentID, err))
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// UpdatePaymentStatus sets the status, and the provider payment id when it was unset.
func (d db) UpdatePaymentStatus(ctx context.Context, paymentID string, status models.PaymentStatus, providerPaymentID string) error {
	tag, err := d.q.Exec(ctx, `
		UPDATE payments
		SET status = $2,
		    provider_payment_id = COALESCE(provider_payment_id, NULLIF($3, ''))
		WHERE id = $1`, paymentID, status, providerPaymentID)
	if err != nil {
		return mapErr(fmt.Errorf("failed to update payment %s: %w", paymentID, err))
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CancelPendingPayments marks every pending payment of the order cancelled.
func (d db) CancelPendingPayments(ctx context.Context, orderID string) (int64, error) {
	tag, err := d.q.Exec(ctx,
		`UPDATE payments SET status = 'cancelled' WHERE order_id = $1 AND status = 'pending'`, orderID)
	if err != nil {
		return 0, mapErr(fmt.Errorf("failed to cancel payments of order %s: %w", orderID, err))
	}
	return tag.RowsAffected(), nil
}

// GetPayment retrieves a payment.
func (d db) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	p, err := scanPayment(d.q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, paymentID))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get payment %s: %w", paymentID, err))
	}
	return p, nil
}

// FindPaymentByProviderID retrieves the latest payment with the provider id.
func (d db) FindPaymentByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error) {
	p, err := scanPayment(d.q.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE provider_payment_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, providerPaymentID))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to find payment by provider id: %w", err))
	}
	return p, nil
}

// FindPaymentByReference retrieves the payment with the SBP reference.
func (d db) FindPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	p, err := scanPayment(d.q.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE sbp_reference = $1`, reference))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to find payment by reference: %w", err))
	}
	return p, nil
}

// ListStalePayments returns old pending payments whose order awaits payment.
func (d db) ListStalePayments(ctx context.Context, provider string, before time.Time, limit int32) ([]models.Payment, error) {
	rows, err := d.q.Query(ctx, `
		SELECT p.id, p.order_id, p.method, p.status, p.provider, p.provider_payment_id,
		       p.sbp_reference, p.qr_payload, p.created_at, p.paid_at
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		WHERE p.provider = $1 AND p.status = 'pending' AND p.created_at < $2
		  AND o.status = 'pending_payment'
		ORDER BY p.created_at, p.id
		LIMIT $3`, provider, before, limit)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to list stale payments: %w", err))
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, mapErr(rows.Err())
}

// optional turns a missing row into a nil result.
func optional[T any](v *T, err error, msg string) (*T, error) {
	if err != nil {
		err = mapErr(err)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	return v, nil
}
