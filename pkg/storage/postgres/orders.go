package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/storage"
)

const viewQuery = `
	SELECT o.id, o.listing_id, o.buyer_id, o.seller_id, o.amount, o.status,
	       o.confirmed_at, o.created_at, o.updated_at,
	       CASE WHEN p.id IS NULL THEN NULL ELSE to_jsonb(p) END,
	       CASE WHEN d.id IS NULL THEN NULL ELSE to_jsonb(d) END,
	       CASE WHEN r.id IS NULL THEN NULL ELSE to_jsonb(r) END
	FROM orders o
	LEFT JOIN LATERAL (
		SELECT * FROM payments WHERE order_id = o.id ORDER BY created_at DESC, id DESC LIMIT 1
	) p ON true
	LEFT JOIN LATERAL (
		SELECT * FROM order_disputes WHERE order_id = o.id ORDER BY created_at DESC, id DESC LIMIT 1
	) d ON true
	LEFT JOIN LATERAL (
		SELECT * FROM refunds WHERE order_id = o.id ORDER BY created_at DESC, id DESC LIMIT 1
	) r ON true`

func scanView(row scanner) (*models.OrderView, error) {
	var (
		v       models.OrderView
		payment *paymentDoc
		dispute *disputeDoc
		refund  *refundDoc
	)
	o := &v.Order
	err := row.Scan(&o.ID, &o.ListingID, &o.BuyerID, &o.SellerID, &o.Amount, &o.Status,
		&o.ConfirmedAt, &o.CreatedAt, &o.UpdatedAt, &payment, &dispute, &refund)
	if err != nil {
		return nil, err
	}
	v.Payment = payment.model()
	v.Dispute = dispute.model()
	v.Refund = refund.model()
	return &v, nil
}

// GetListing reads the listing and its owner's status.
func (d db) GetListing(ctx context.Context, listingID string) (*models.Listing, error) {
	var l models.Listing
	err := d.q.QueryRow(ctx, `
		SELECT l.id, l.title, l.price, l.status, l.owner_id, u.status
		FROM listings l
		JOIN users u ON u.id = l.owner_id
		WHERE l.id = $1`, listingID,
	).Scan(&l.ID, &l.Title, &l.Price, &l.Status, &l.OwnerID, &l.OwnerStatus)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get listing %s: %w", listingID, err))
	}
	return &l, nil
}

// GetPrincipal resolves a user.
func (d db) GetPrincipal(ctx context.Context, userID string) (*models.Principal, error) {
	var p models.Principal
	err := d.q.QueryRow(ctx, `SELECT id, role, status FROM users WHERE id = $1`, userID).
		Scan(&p.ID, &p.Role, &p.Status)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get user %s: %w", userID, err))
	}
	return &p, nil
}

// LockOrder returns the order and holds a row lock on it.
func (d db) LockOrder(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := scanOrder(d.q.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to lock order %s: %w", orderID, err))
	}
	return o, nil
}

// FindOpenOrder locks and returns the open order for the pair, or nil.
func (d db) FindOpenOrder(ctx context.Context, listingID, buyerID string) (*models.Order, error) {
	o, err := scanOrder(d.q.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE listing_id = $1 AND buyer_id = $2 AND status IN ('pending_payment', 'escrow')
		FOR UPDATE`, listingID, buyerID))
	if err != nil {
		err = mapErr(err)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find open order: %w", err)
	}
	return o, nil
}

// InsertOrder creates the order. The partial unique index reports a
// concurrent open order for the same pair.
func (d db) InsertOrder(ctx context.Context, o *models.Order) error {
	_, err := d.q.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		o.ID, o.ListingID, o.BuyerID, o.SellerID, o.Amount, o.Status, o.ConfirmedAt, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if err := mapErr(err); errors.Is(err, storage.ErrDuplicateOpenOrder) {
			return err
		}
		return mapErr(fmt.Errorf("failed to insert order: %w", err))
	}
	return nil
}

// UpdateOrderStatus moves the order to status. A nil confirmedAt keeps the
// stored value.
func (d db) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, confirmedAt *time.Time, at time.Time) error {
	tag, err := d.q.Exec(ctx, `
		UPDATE orders
		SET status = $2, confirmed_at = COALESCE($3, confirmed_at), updated_at = $4
		WHERE id = $1`, orderID, status, confirmedAt, at)
	if err != nil {
		return mapErr(fmt.Errorf("failed to update order %s: %w", orderID, err))
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetOrder retrieves an order without locking it.
func (d db) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	o, err := scanOrder(d.q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get order %s: %w", orderID, err))
	}
	return o, nil
}

// GetOrderView reads the order and its latest related rows in one statement.
func (d db) GetOrderView(ctx context.Context, orderID string) (*models.OrderView, error) {
	v, err := scanView(d.q.QueryRow(ctx, viewQuery+` WHERE o.id = $1`, orderID))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get order view %s: %w", orderID, err))
	}
	return v, nil
}

// ListOrderViews returns the participant's orders, newest first.
func (d db) ListOrderViews(ctx context.Context, filter storage.OrderFilter) ([]models.OrderView, error) {
	rows, err := d.q.Query(ctx, viewQuery+`
		WHERE ($1 = '' OR o.buyer_id::text = $1)
		  AND ($2 = '' OR o.seller_id::text = $2)
		ORDER BY o.created_at DESC, o.id DESC`, filter.BuyerID, filter.SellerID)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to list orders: %w", err))
	}
	defer rows.Close()

	var views []models.OrderView
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order view: %w", err)
		}
		views = append(views, *v)
	}
	return views, mapErr(rows.Err())
}
