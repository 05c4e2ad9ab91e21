// Package memory is an in-process implementation of the storage contract.
// Transactions are serialised by a single mutex and applied to a copy of
// the state, which replaces the live state only on commit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/storage"
)

type state struct {
	users    map[string]models.Principal
	listings map[string]models.Listing
	wallets  map[string]models.Wallet
	entries  []models.WalletEntry
	orders   map[string]models.Order
	payments map[string]models.Payment
	disputes map[string]models.Dispute
	refunds  map[string]models.Refund
	messages []models.OrderMessage
}

func newState() *state {
	return &state{
		users:    map[string]models.Principal{},
		listings: map[string]models.Listing{},
		wallets:  map[string]models.Wallet{},
		orders:   map[string]models.Order{},
		payments: map[string]models.Payment{},
		disputes: map[string]models.Dispute{},
		refunds:  map[string]models.Refund{},
	}
}

// clone copies the maps and slices. Pointer fields inside rows are never
// mutated in place, so sharing them between copies is safe.
func (s *state) clone() *state {
	c := &state{
		users:    make(map[string]models.Principal, len(s.users)),
		listings: make(map[string]models.Listing, len(s.listings)),
		wallets:  make(map[string]models.Wallet, len(s.wallets)),
		entries:  append([]models.WalletEntry(nil), s.entries...),
		orders:   make(map[string]models.Order, len(s.orders)),
		payments: make(map[string]models.Payment, len(s.payments)),
		disputes: make(map[string]models.Dispute, len(s.disputes)),
		refunds:  make(map[string]models.Refund, len(s.refunds)),
		messages: append([]models.OrderMessage(nil), s.messages...),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.listings {
		c.listings[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.disputes {
		c.disputes[k] = v
	}
	for k, v := range s.refunds {
		c.refunds[k] = v
	}
	return c
}

// Store implements storage.Store in memory.
type Store struct {
	mu sync.Mutex
	st *state
}

// New creates an empty Store.
func New() *Store {
	return &Store{st: newState()}
}

// Make sure we conform to the interface
var _ storage.Store = (*Store)(nil)

// PutUser registers a user of the auth collaborator.
func (s *Store) PutUser(p models.Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[p.ID] = p
}

// PutListing registers a listing of the listing collaborator.
func (s *Store) PutListing(l models.Listing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.listings[l.ID] = l
}

// WithTx runs fn against a private copy of the state and publishes the copy
// if fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// GetPrincipal resolves a user.
func (s *Store) GetPrincipal(ctx context.Context, userID string) (*models.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.users[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// GetWallet retrieves a user's wallet.
func (s *Store) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.st.wallets[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &w, nil
}

// ListWalletEntries returns the user's entries, newest first.
func (s *Store) ListWalletEntries(ctx context.Context, userID string, limit int32) ([]models.WalletEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.WalletEntry
	for i := len(s.st.entries) - 1; i >= 0; i-- {
		if s.st.entries[i].UserID != userID {
			continue
		}
		out = append(out, s.st.entries[i])
		if limit > 0 && int32(len(out)) == limit {
			break
		}
	}
	return out, nil
}

// GetOrder retrieves an order.
func (s *Store) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[orderID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &o, nil
}

// GetOrderView reads the order projection.
func (s *Store) GetOrderView(ctx context.Context, orderID string) (*models.OrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[orderID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	v := s.st.view(o)
	return &v, nil
}

// ListOrderViews returns the participant's orders, newest first.
func (s *Store) ListOrderViews(ctx context.Context, filter storage.OrderFilter) ([]models.OrderView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var orders []models.Order
	for _, o := range s.st.orders {
		if filter.BuyerID != "" && o.BuyerID != filter.BuyerID {
			continue
		}
		if filter.SellerID != "" && o.SellerID != filter.SellerID {
			continue
		}
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		return newer(orders[i].CreatedAt, orders[i].ID, orders[j].CreatedAt, orders[j].ID)
	})
	views := make([]models.OrderView, len(orders))
	for i, o := range orders {
		views[i] = s.st.view(o)
	}
	return views, nil
}

// GetPayment retrieves a payment.
func (s *Store) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.payments[paymentID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

// FindPaymentByProviderID finds a payment by the gateway's identifier.
func (s *Store) FindPaymentByProviderID(ctx context.Context, providerPaymentID string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.findPayment(func(p models.Payment) bool {
		return p.ProviderPaymentID != nil && *p.ProviderPaymentID == providerPaymentID
	})
}

// FindPaymentByReference finds a payment by its internal reference.
func (s *Store) FindPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.findPayment(func(p models.Payment) bool {
		return p.SBPReference == reference
	})
}

// ListStalePayments returns pending payments awaiting a missed notification.
func (s *Store) ListStalePayments(ctx context.Context, provider string, before time.Time, limit int32) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Payment
	for _, p := range s.st.payments {
		if p.Provider != provider || p.Status != models.PaymentPending || !p.CreatedAt.Before(before) {
			continue
		}
		if s.st.orders[p.OrderID].Status != models.OrderPendingPayment {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[j].CreatedAt, out[j].ID, out[i].CreatedAt, out[i].ID) })
	if limit > 0 && int32(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetDispute retrieves a dispute.
func (s *Store) GetDispute(ctx context.Context, disputeID string) (*models.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.st.disputes[disputeID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &d, nil
}

// ListDisputes returns disputes with the status, newest first.
func (s *Store) ListDisputes(ctx context.Context, status models.DisputeStatus) ([]models.DisputeSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DisputeSummary
	for _, d := range s.st.disputes {
		if d.Status != status {
			continue
		}
		o := s.st.orders[d.OrderID]
		out = append(out, models.DisputeSummary{
			Dispute:     d,
			OrderAmount: o.Amount,
			OrderStatus: o.Status,
			BuyerID:     o.BuyerID,
			SellerID:    o.SellerID,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[i].ID, out[j].CreatedAt, out[j].ID)
	})
	return out, nil
}

// GetRefund retrieves a refund.
func (s *Store) GetRefund(ctx context.Context, refundID string) (*models.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.st.refunds[refundID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &r, nil
}

// FindPendingRefundByPayment returns the pending refund of a payment, or nil.
func (s *Store) FindPendingRefundByPayment(ctx context.Context, paymentID string) (*models.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *models.Refund
	for _, r := range s.st.refunds {
		if r.PaymentID != paymentID || r.Status != models.RefundPending {
			continue
		}
		if found == nil || newer(r.CreatedAt, r.ID, found.CreatedAt, found.ID) {
			r := r
			found = &r
		}
	}
	return found, nil
}

// ListPendingRefunds returns pending refunds created before the cutoff.
func (s *Store) ListPendingRefunds(ctx context.Context, before time.Time, limit int32) ([]models.Refund, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Refund
	for _, r := range s.st.refunds {
		if r.Status == models.RefundPending && r.CreatedAt.Before(before) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return newer(out[j].CreatedAt, out[j].ID, out[i].CreatedAt, out[i].ID) })
	if limit > 0 && int32(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListMessages returns the order's messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, orderID string) ([]models.OrderMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.OrderMessage
	for _, m := range s.st.messages {
		if m.OrderID == orderID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[j].CreatedAt, out[j].ID, out[i].CreatedAt, out[i].ID)
	})
	return out, nil
}

// newer orders rows by created_at then id, both descending.
func newer(at time.Time, id string, otherAt time.Time, otherID string) bool {
	if !at.Equal(otherAt) {
		return at.After(otherAt)
	}
	return id > otherID
}

func (s *state) view(o models.Order) models.OrderView {
	return models.OrderView{
		Order:   o,
		Payment: s.latestPayment(o.ID),
		Dispute: s.latestDispute(o.ID),
		Refund:  s.latestRefund(o.ID),
	}
}

func (s *state) findPayment(match func(models.Payment) bool) (*models.Payment, error) {
	var found *models.Payment
	for _, p := range s.payments {
		if !match(p) {
			continue
		}
		if found == nil || newer(p.CreatedAt, p.ID, found.CreatedAt, found.ID) {
			p := p
			found = &p
		}
	}
	if found == nil {
		return nil, storage.ErrNotFound
	}
	return found, nil
}

func (s *state) latestPayment(orderID string) *models.Payment {
	var latest *models.Payment
	for _, p := range s.payments {
		if p.OrderID != orderID {
			continue
		}
		if latest == nil || newer(p.CreatedAt, p.ID, latest.CreatedAt, latest.ID) {
			p := p
			latest = &p
		}
	}
	return latest
}

func (s *state) latestDispute(orderID string) *models.Dispute {
	var latest *models.Dispute
	for _, d := range s.disputes {
		if d.OrderID != orderID {
			continue
		}
		if latest == nil || newer(d.CreatedAt, d.ID, latest.CreatedAt, latest.ID) {
			d := d
			latest = &d
		}
	}
	return latest
}

func (s *state) latestRefund(orderID string) *models.Refund {
	var latest *models.Refund
	for _, r := range s.refunds {
		if r.OrderID != orderID {
			continue
		}
		if latest == nil || newer(r.CreatedAt, r.ID, latest.CreatedAt, latest.ID) {
			r := r
			latest = &r
		}
	}
	return latest
}
