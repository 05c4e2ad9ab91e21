package memory

import (
	"context"
	"time"

	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/storage"
)

// tx operates on the working copy owned by one WithTx call. The store mutex
// is held for its whole lifetime, so row locks are implicit.
type tx struct {
	st *state
}

var _ storage.Tx = (*tx)(nil)

func (t *tx) EnsureWallet(ctx context.Context, userID string) error {
	if _, ok := t.st.wallets[userID]; !ok {
		t.st.wallets[userID] = models.Wallet{UserID: userID, UpdatedAt: time.Now().UTC()}
	}
	return nil
}

func (t *tx) LockWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	w, ok := t.st.wallets[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &w, nil
}

func (t *tx) AdjustWallet(ctx context.Context, entry *models.WalletEntry) error {
	w, ok := t.st.wallets[entry.UserID]
	if !ok {
		return storage.ErrNotFound
	}
	w.Available = w.Available.Add(entry.AvailableDelta)
	w.Held = w.Held.Add(entry.HeldDelta)
	w.UpdatedAt = entry.CreatedAt
	t.st.wallets[entry.UserID] = w
	t.st.entries = append(t.st.entries, *entry)
	return nil
}

func (t *tx) GetListing(ctx context.Context, listingID string) (*models.Listing, error) {
	l, ok := t.st.listings[listingID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if owner, ok := t.st.users[l.OwnerID]; ok {
		l.OwnerStatus = owner.Status
	}
	return &l, nil
}

func (t *tx) LockOrder(ctx context.Context, orderID string) (*models.Order, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &o, nil
}

func (t *tx) FindOpenOrder(ctx context.Context, listingID, buyerID string) (*models.Order, error) {
	var found *models.Order
	for _, o := range t.st.orders {
		if o.ListingID != listingID || o.BuyerID != buyerID || !o.Status.IsOpen() {
			continue
		}
		if found == nil || newer(o.CreatedAt, o.ID, found.CreatedAt, found.ID) {
			o := o
			found = &o
		}
	}
	return found, nil
}

func (t *tx) InsertOrder(ctx context.Context, order *models.Order) error {
	existing, _ := t.FindOpenOrder(ctx, order.ListingID, order.BuyerID)
	if existing != nil && order.Status.IsOpen() {
		return storage.ErrDuplicateOpenOrder
	}
	t.st.orders[order.ID] = *order
	return nil
}

func (t *tx) UpdateOrderStatus(ctx context.Context, orderID string, status models.OrderStatus, confirmedAt *time.Time, at time.Time) error {
	o, ok := t.st.orders[orderID]
	if !ok {
		return storage.ErrNotFound
	}
	o.Status = status
	if confirmedAt != nil {
		o.ConfirmedAt = confirmedAt
	}
	o.UpdatedAt = at
	t.st.orders[orderID] = o
	return nil
}

func (t *tx) LatestPayment(ctx context.Context, orderID string) (*models.Payment, error) {
	return t.st.latestPayment(orderID), nil
}

func (t *tx) LockPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	p, ok := t.st.payments[paymentID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

func (t *tx) InsertPayment(ctx context.Context, payment *models.Payment) error {
	t.st.payments[payment.ID] = *payment
	return nil
}

func (t *tx) MarkPaymentPaid(ctx context.Context, paymentID string, paidAt time.Time, providerPaymentID string) error {
	p, ok := t.st.payments[paymentID]
	if !ok {
		return storage.ErrNotFound
	}
	p.Status = models.PaymentPaid
	if p.PaidAt == nil {
		p.PaidAt = &paidAt
	}
	if p.ProviderPaymentID == nil && providerPaymentID != "" {
		p.ProviderPaymentID = &providerPaymentID
	}
	t.st.payments[paymentID] = p
	return nil
}

func (t *tx) UpdatePaymentStatus(ctx context.Context, paymentID string, status models.PaymentStatus, providerPaymentID string) error {
	p, ok := t.st.payments[paymentID]
	if !ok {
		return storage.ErrNotFound
	}
	p.Status = status
	if p.ProviderPaymentID == nil && providerPaymentID != "" {
		p.ProviderPaymentID = &providerPaymentID
	}
	t.st.payments[paymentID] = p
	return nil
}

func (t *tx) CancelPendingPayments(ctx context.Context, orderID string) (int64, error) {
	var n int64
	for id, p := range t.st.payments {
		if p.OrderID == orderID && p.Status == models.PaymentPending {
			p.Status = models.PaymentCancelled
			t.st.payments[id] = p
			n++
		}
	}
	return n, nil
}

func (t *tx) LatestDispute(ctx context.Context, orderID string) (*models.Dispute, error) {
	return t.st.latestDispute(orderID), nil
}

func (t *tx) LockDispute(ctx context.Context, disputeID string) (*models.Dispute, error) {
	d, ok := t.st.disputes[disputeID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &d, nil
}

func (t *tx) InsertDispute(ctx context.Context, dispute *models.Dispute) error {
	t.st.disputes[dispute.ID] = *dispute
	return nil
}

func (t *tx) ResolveDispute(ctx context.Context, disputeID string, resolution models.Resolution, notes string, at time.Time) error {
	d, ok := t.st.disputes[disputeID]
	if !ok {
		return storage.ErrNotFound
	}
	d.Status = models.DisputeResolved
	d.Resolution = &resolution
	d.Notes = notes
	d.ResolvedAt = &at
	t.st.disputes[disputeID] = d
	return nil
}

func (t *tx) LatestRefund(ctx context.Context, orderID string) (*models.Refund, error) {
	return t.st.latestRefund(orderID), nil
}

func (t *tx) LockRefund(ctx context.Context, refundID string) (*models.Refund, error) {
	r, ok := t.st.refunds[refundID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

func (t *tx) InsertRefund(ctx context.Context, refund *models.Refund) error {
	t.st.refunds[refund.ID] = *refund
	return nil
}

func (t *tx) UpdateRefundStatus(ctx context.Context, refundID string, status models.RefundStatus, at time.Time) error {
	r, ok := t.st.refunds[refundID]
	if !ok {
		return storage.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = at
	t.st.refunds[refundID] = r
	return nil
}

func (t *tx) InsertMessage(ctx context.Context, message *models.OrderMessage) error {
	t.st.messages = append(t.st.messages, *message)
	return nil
}
