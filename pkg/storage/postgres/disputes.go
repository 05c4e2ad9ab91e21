package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/storage"
)

// LatestDispute locks and returns the order's latest dispute, or nil.
func (d db) LatestDispute(ctx context.Context, orderID string) (*models.Dispute, error) {
	dispute, err := scanDispute(d.q.QueryRow(ctx, `
		SELECT `+disputeColumns+` FROM order_disputes
		WHERE order_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
		FOR UPDATE`, orderID))
	return optional(dispute, err, "failed to lock latest dispute")
}

// LockDispute returns the dispute and holds a row lock on it.
func (d db) LockDispute(ctx context.Context, disputeID string) (*models.Dispute, error) {
	dispute, err := scanDispute(d.q.QueryRow(ctx,
		`SELECT `+disputeColumns+` FROM order_disputes WHERE id = $1 FOR UPDATE`, disputeID))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to lock dispute %s: %w", disputeID, err))
	}
	return dispute, nil
}

// InsertDispute records a new dispute.
func (d db) InsertDispute(ctx context.Context, dispute *models.Dispute) error {
	_, err := d.q.Exec(ctx, `
		INSERT INTO order_disputes (`+disputeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		dispute.ID, dispute.OrderID, dispute.OpenedBy, dispute.Reason, dispute.Status,
		dispute.Resolution, dispute.Notes, dispute.CreatedAt, dispute.ResolvedAt)
	if err != nil {
		return mapErr(fmt.Errorf("failed to insert dispute: %w", err))
	}
	return nil
}

// ResolveDispute closes the dispute with the resolution.
func (d db) ResolveDispute(ctx context.Context, disputeID string, resolution models.Resolution, notes string, at time.Time) error {
	tag, err := d.q.Exec(ctx, `
		UPDATE order_disputes
		SET status = 'resolved', resolution = $2, notes = $3, resolved_at = $4
		WHERE id = $1`, disputeID, resolution, notes, at)
	if err != nil {
		return mapErr(fmt.Errorf("failed to resolve dispute %s: %w", disputeID, err))
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetDispute retrieves a dispute.
func (d db) GetDispute(ctx context.Context, disputeID string) (*models.Dispute, error) {
	dispute, err := scanDispute(d.q.QueryRow(ctx,
		`SELECT `+disputeColumns+` FROM order_disputes WHERE id = $1`, disputeID))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get dispute %s: %w", disputeID, err))
	}
	return dispute, nil
}

// ListDisputes returns disputes with the status and their order facts, newest first.
func (d db) ListDisputes(ctx context.Context, status models.DisputeStatus) ([]models.DisputeSummary, error) {
	rows, err := d.q.Query(ctx, `
		SELECT d.id, d.order_id, d.opened_by, d.reason, d.status, d.resolution, d.notes,
		       d.created_at, d.resolved_at, o.amount, o.status, o.buyer_id, o.seller_id
		FROM order_disputes d
		JOIN orders o ON o.id = d.order_id
		WHERE d.status = $1
		ORDER BY d.created_at DESC, d.id DESC`, status)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to list disputes: %w", err))
	}
	defer rows.Close()

	var out []models.DisputeSummary
	for rows.Next() {
		var s models.DisputeSummary
		err := rows.Scan(&s.ID, &s.OrderID, &s.OpenedBy, &s.Reason, &s.Status, &s.Resolution, &s.Notes,
			&s.CreatedAt, &s.ResolvedAt, &s.OrderAmount, &s.OrderStatus, &s.BuyerID, &s.SellerID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dispute: %w", err)
		}
		out = append(out, s)
	}
	return out, mapErr(rows.Err())
}
