package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/ids"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore migrates a throwaway schema on the database named by
// DATABASE_URL and drops it when the test ends.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL is not set")
	}
	ctx := context.Background()
	name := "escrow_test_" + strings.ReplaceAll(ids.New(), "-", "")

	admin, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+name)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+name+" CASCADE")
		admin.Close()
	})

	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = name
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)

	s := New(pool)
	t.Cleanup(s.Close)
	require.NoError(t, s.Migrate(ctx))
	// Migrate is re-run on every boot.
	require.NoError(t, s.Migrate(ctx))
	return s
}

type fixture struct {
	buyer, seller, listing string
}

func seed(t *testing.T, s *Store) fixture {
	t.Helper()
	ctx := context.Background()
	f := fixture{buyer: ids.New(), seller: ids.New(), listing: ids.New()}
	for _, id := range []string{f.buyer, f.seller} {
		_, err := s.pool.Exec(ctx, `INSERT INTO users (id) VALUES ($1)`, id)
		require.NoError(t, err)
		require.NoError(t, s.EnsureWallet(ctx, id))
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO listings (id, owner_id, title, price, status)
		VALUES ($1, $2, 'Camera', 500, 'approved')`, f.listing, f.seller)
	require.NoError(t, err)
	return f
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func insertOrder(t *testing.T, s *Store, f fixture, status models.OrderStatus) *models.Order {
	t.Helper()
	at := now()
	o := &models.Order{
		ID:        ids.New(),
		ListingID: f.listing,
		BuyerID:   f.buyer,
		SellerID:  f.seller,
		Amount:    decimal.RequireFromString("500.00"),
		Status:    status,
		CreatedAt: at,
		UpdatedAt: at,
	}
	require.NoError(t, s.InsertOrder(context.Background(), o))
	return o
}

func insertPayment(t *testing.T, s *Store, orderID string, status models.PaymentStatus, createdAt time.Time) *models.Payment {
	t.Helper()
	p := &models.Payment{
		ID:           ids.New(),
		OrderID:      orderID,
		Method:       "sbp",
		Status:       status,
		Provider:     "mock",
		SBPReference: ids.Reference("SBP"),
		QRPayload:    "https://qr.example/pay",
		CreatedAt:    createdAt,
	}
	require.NoError(t, s.InsertPayment(context.Background(), p))
	return p
}

func TestGetOrderView(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("Order Without Payment Dispute Or Refund", func(t *testing.T) {
		f := seed(t, s)
		o := insertOrder(t, s, f, models.OrderPendingPayment)

		view, err := s.GetOrderView(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, o.ID, view.Order.ID)
		assert.Equal(t, "500.00", view.Order.Amount.StringFixed(2))
		assert.Equal(t, models.OrderPendingPayment, view.Order.Status)
		assert.Nil(t, view.Order.ConfirmedAt)
		assert.Nil(t, view.Payment)
		assert.Nil(t, view.Dispute)
		assert.Nil(t, view.Refund)
	})

	t.Run("Latest Payment Dispute And Refund", func(t *testing.T) {
		f := seed(t, s)
		o := insertOrder(t, s, f, models.OrderEscrow)
		insertPayment(t, s, o.ID, models.PaymentCancelled, now().Add(-time.Minute))
		paid := insertPayment(t, s, o.ID, models.PaymentPending, now())
		paidAt := now()
		require.NoError(t, s.MarkPaymentPaid(ctx, paid.ID, paidAt, "tb-42"))

		dispute := &models.Dispute{
			ID:        ids.New(),
			OrderID:   o.ID,
			OpenedBy:  f.buyer,
			Reason:    "never arrived",
			Status:    models.DisputeOpen,
			CreatedAt: now(),
		}
		require.NoError(t, s.InsertDispute(ctx, dispute))
		require.NoError(t, s.ResolveDispute(ctx, dispute.ID, models.ResolutionRefund, "buyer wins", now()))

		refund := &models.Refund{
			ID:        ids.New(),
			OrderID:   o.ID,
			PaymentID: paid.ID,
			Amount:    decimal.RequireFromString("500.00"),
			Status:    models.RefundPending,
			Provider:  "mock",
			CreatedAt: now(),
			UpdatedAt: now(),
		}
		require.NoError(t, s.InsertRefund(ctx, refund))

		view, err := s.GetOrderView(ctx, o.ID)
		require.NoError(t, err)

		require.NotNil(t, view.Payment)
		assert.Equal(t, paid.ID, view.Payment.ID)
		assert.Equal(t, models.PaymentPaid, view.Payment.Status)
		require.NotNil(t, view.Payment.ProviderPaymentID)
		assert.Equal(t, "tb-42", *view.Payment.ProviderPaymentID)
		require.NotNil(t, view.Payment.PaidAt)
		assert.True(t, paidAt.Equal(*view.Payment.PaidAt))
		assert.Equal(t, paid.SBPReference, view.Payment.SBPReference)

		require.NotNil(t, view.Dispute)
		assert.Equal(t, models.DisputeResolved, view.Dispute.Status)
		require.NotNil(t, view.Dispute.Resolution)
		assert.Equal(t, models.ResolutionRefund, *view.Dispute.Resolution)
		assert.Equal(t, "buyer wins", view.Dispute.Notes)
		assert.NotNil(t, view.Dispute.ResolvedAt)

		require.NotNil(t, view.Refund)
		assert.Equal(t, refund.ID, view.Refund.ID)
		assert.Equal(t, "500.00", view.Refund.Amount.StringFixed(2))
		assert.Equal(t, models.RefundPending, view.Refund.Status)
		assert.Nil(t, view.Refund.ProviderRefundID)
	})

	t.Run("Missing Order", func(t *testing.T) {
		_, err := s.GetOrderView(ctx, ids.New())
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Malformed Id Is Not Found", func(t *testing.T) {
		_, err := s.GetOrderView(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestWallets(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	credit := func(userID, amount string) *models.WalletEntry {
		return &models.WalletEntry{
			ID:             ids.New(),
			UserID:         userID,
			AvailableDelta: decimal.RequireFromString(amount),
			HeldDelta:      decimal.Zero,
			Reason:         models.ReasonRefundCredit,
			CreatedAt:      now(),
		}
	}

	t.Run("EnsureWallet Is Idempotent", func(t *testing.T) {
		f := seed(t, s)
		require.NoError(t, s.AdjustWallet(ctx, credit(f.buyer, "120.50")))

		require.NoError(t, s.EnsureWallet(ctx, f.buyer))
		require.NoError(t, s.EnsureWallet(ctx, f.buyer))

		w, err := s.GetWallet(ctx, f.buyer)
		require.NoError(t, err)
		assert.Equal(t, "120.50", w.Available.StringFixed(2))
		assert.Equal(t, "0.00", w.Held.StringFixed(2))
	})

	t.Run("Adjustment Records Entry", func(t *testing.T) {
		f := seed(t, s)
		require.NoError(t, s.AdjustWallet(ctx, credit(f.seller, "75.00")))

		entries, err := s.ListWalletEntries(ctx, f.seller, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "", entries[0].OrderID)
		assert.Equal(t, "75.00", entries[0].AvailableDelta.StringFixed(2))
		assert.Equal(t, models.ReasonRefundCredit, entries[0].Reason)
	})

	t.Run("Negative Balance Is Integrity Violation", func(t *testing.T) {
		f := seed(t, s)
		err := s.WithTx(ctx, func(tx storage.Tx) error {
			if _, err := tx.LockWallet(ctx, f.buyer); err != nil {
				return err
			}
			return tx.AdjustWallet(ctx, credit(f.buyer, "-0.01"))
		})
		require.Error(t, err)
		assert.Equal(t, apperrors.KindIntegrityViolation, apperrors.KindOf(err))

		w, err := s.GetWallet(ctx, f.buyer)
		require.NoError(t, err)
		assert.True(t, w.Available.IsZero())
		entries, err := s.ListWalletEntries(ctx, f.buyer, 10)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("Unknown Wallet", func(t *testing.T) {
		err := s.AdjustWallet(ctx, credit(ids.New(), "1.00"))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestOrders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t.Run("Duplicate Open Order", func(t *testing.T) {
		f := seed(t, s)
		insertOrder(t, s, f, models.OrderPendingPayment)

		at := now()
		err := s.InsertOrder(ctx, &models.Order{
			ID:        ids.New(),
			ListingID: f.listing,
			BuyerID:   f.buyer,
			SellerID:  f.seller,
			Amount:    decimal.RequireFromString("500.00"),
			Status:    models.OrderPendingPayment,
			CreatedAt: at,
			UpdatedAt: at,
		})
		assert.ErrorIs(t, err, storage.ErrDuplicateOpenOrder)
	})

	t.Run("Closed Order Frees The Pair", func(t *testing.T) {
		f := seed(t, s)
		o := insertOrder(t, s, f, models.OrderPendingPayment)
		require.NoError(t, s.UpdateOrderStatus(ctx, o.ID, models.OrderCancelled, nil, now()))

		next := insertOrder(t, s, f, models.OrderPendingPayment)
		err := s.WithTx(ctx, func(tx storage.Tx) error {
			open, err := tx.FindOpenOrder(ctx, f.listing, f.buyer)
			require.NoError(t, err)
			require.NotNil(t, open)
			assert.Equal(t, next.ID, open.ID)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("No Open Order", func(t *testing.T) {
		f := seed(t, s)
		err := s.WithTx(ctx, func(tx storage.Tx) error {
			open, err := tx.FindOpenOrder(ctx, f.listing, f.buyer)
			assert.Nil(t, open)
			return err
		})
		assert.NoError(t, err)
	})

	t.Run("Lock Missing Order", func(t *testing.T) {
		err := s.WithTx(ctx, func(tx storage.Tx) error {
			_, err := tx.LockOrder(ctx, ids.New())
			return err
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("List By Role", func(t *testing.T) {
		f := seed(t, s)
		o := insertOrder(t, s, f, models.OrderPendingPayment)

		bought, err := s.ListOrderViews(ctx, storage.OrderFilter{BuyerID: f.buyer})
		require.NoError(t, err)
		require.Len(t, bought, 1)
		assert.Equal(t, o.ID, bought[0].Order.ID)

		sold, err := s.ListOrderViews(ctx, storage.OrderFilter{BuyerID: f.seller})
		require.NoError(t, err)
		assert.Empty(t, sold)
	})
}

func TestListStalePayments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	f := seed(t, s)
	waiting := insertOrder(t, s, f, models.OrderPendingPayment)
	stale := insertPayment(t, s, waiting.ID, models.PaymentPending, now().Add(-time.Hour))

	other := seed(t, s)
	settled := insertOrder(t, s, other, models.OrderEscrow)
	insertPayment(t, s, settled.ID, models.PaymentPending, now().Add(-time.Hour))

	fresh := seed(t, s)
	recent := insertOrder(t, s, fresh, models.OrderPendingPayment)
	insertPayment(t, s, recent.ID, models.PaymentPending, now())

	payments, err := s.ListStalePayments(ctx, "mock", now().Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, stale.ID, payments[0].ID)
	assert.Nil(t, payments[0].PaidAt)
}
