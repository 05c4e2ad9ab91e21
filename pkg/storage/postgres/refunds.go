package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/storage"
)

// LatestRefund locks and returns the order's latest refund, or nil.
func (d db) LatestRefund(ctx context.Context, orderID string) (*models.Refund, error) {
	r, err := scanRefund(d.q.QueryRow(ctx, `
		SELECT `+refundColumns+` FROM refunds
		WHERE order_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
		FOR UPDATE`, orderID))
	return optional(r, err, "failed to lock latest refund")
}

// LockRefund returns the refund and holds a row lock on it.
func (d db) LockRefund(ctx context.Context, refundID string) (*models.Refund, error) {
	r, err := scanRefund(d.q.QueryRow(ctx,
		`SELECT `+refundColumns+` FROM refunds WHERE id = $1 FOR UPDATE`, refundID))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to lock refund %s: %w", refundID, err))
	}
	return r, nil
}

// InsertRefund records a refund.
func (d db) InsertRefund(ctx context.Context, r *models.Refund) error {
	_, err := d.q.Exec(ctx, `
		INSERT INTO refunds (`+refundColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.OrderID, r.PaymentID, r.Amount, r.Status, r.Provider, r.ProviderRefundID, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return mapErr(fmt.Errorf("failed to insert refund: %w", err))
	}
	return nil
}

// UpdateRefundStatus sets the refund status.
func (d db) UpdateRefundStatus(ctx context.Context, refundID string, status models.RefundStatus, at time.Time) error {
	tag, err := d.q.Exec(ctx,
		`UPDATE refunds SET status = $2, updated_at = $3 WHERE id = $1`, refundID, status, at)
	if err != nil {
		return mapErr(fmt.Errorf("failed to update refund %s: %w", refundID, err))
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetRefund retrieves a refund.
func (d db) GetRefund(ctx context.Context, refundID string) (*models.Refund, error) {
	r, err := scanRefund(d.q.QueryRow(ctx, `SELECT `+refundColumns+` FROM refunds WHERE id = $1`, refundID))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get refund %s: %w", refundID, err))
	}
	return r, nil
}

// FindPendingRefundByPayment returns the pending refund of a payment, or nil.
func (d db) FindPendingRefundByPayment(ctx context.Context, paymentID string) (*models.Refund, error) {
	r, err := scanRefund(d.q.QueryRow(ctx, `
		SELECT `+refundColumns+` FROM refunds
		WHERE payment_id = $1 AND status = 'pending'
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, paymentID))
	return optional(r, err, "failed to find pending refund")
}

// ListPendingRefunds returns pending refunds created before the cutoff, oldest first.
func (d db) ListPendingRefunds(ctx context.Context, before time.Time, limit int32) ([]models.Refund, error) {
	rows, err := d.q.Query(ctx, `
		SELECT `+refundColumns+` FROM refunds
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at, id
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to list pending refunds: %w", err))
	}
	defer rows.Close()

	var out []models.Refund
	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan refund: %w", err)
		}
		out = append(out, *r)
	}
	return out, mapErr(rows.Err())
}
