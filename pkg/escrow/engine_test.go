package escrow_test

import (
	"context"
	"testing"
	"time"

	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/escrow"
	"github.com/chris/student-escrow-market/pkg/ids"
	"github.com/chris/student-escrow-market/pkg/markettest"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/money"
	"github.com/chris/student-escrow-market/pkg/storage"
	"github.com/chris/student-escrow-market/pkg/storage/memory"
	"github.com/chris/student-escrow-market/pkg/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store   *memory.Store
	engine  *escrow.Engine
	order   models.Order
	payment models.Payment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := markettest.NewStore()
	now := time.Now().UTC()
	f := &fixture{
		store:  store,
		engine: escrow.NewEngine(store, wallet.NewLedger(), markettest.Logger()),
		order: models.Order{
			ID:        ids.New(),
			ListingID: markettest.Listing.ID,
			BuyerID:   markettest.Buyer.ID,
			SellerID:  markettest.Seller.ID,
			Amount:    money.MustParse("500.00"),
			Status:    models.OrderPendingPayment,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	f.payment = models.Payment{
		ID:           ids.New(),
		OrderID:      f.order.ID,
		Method:       "sbp",
		Status:       models.PaymentPending,
		Provider:     "mock",
		SBPReference: ids.Reference("SBP"),
		CreatedAt:    now,
	}
	require.NoError(t, store.WithTx(context.Background(), func(tx storage.Tx) error {
		if err := tx.InsertOrder(context.Background(), &f.order); err != nil {
			return err
		}
		return tx.InsertPayment(context.Background(), &f.payment)
	}))
	return f
}

func (f *fixture) balances(t *testing.T, userID string) (string, string) {
	t.Helper()
	w, err := f.store.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	return money.Format(w.Available), money.Format(w.Held)
}

// inTx locks the order and runs fn against it.
func (f *fixture) inTx(t *testing.T, fn func(tx storage.Tx, order *models.Order) error) error {
	t.Helper()
	ctx := context.Background()
	return f.store.WithTx(ctx, func(tx storage.Tx) error {
		order, err := tx.LockOrder(ctx, f.order.ID)
		if err != nil {
			return err
		}
		return fn(tx, order)
	})
}

func TestConfirmPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Holds Funds Once", func(t *testing.T) {
		f := newFixture(t)

		order, moved, err := f.engine.ConfirmPayment(ctx, f.payment.ID, "")
		require.NoError(t, err)
		assert.True(t, moved)
		assert.Equal(t, models.OrderEscrow, order.Status)

		_, moved, err = f.engine.ConfirmPayment(ctx, f.payment.ID, "")
		require.NoError(t, err)
		assert.False(t, moved)

		available, held := f.balances(t, markettest.Buyer.ID)
		assert.Equal(t, "0.00", available)
		assert.Equal(t, "500.00", held)
	})

	t.Run("Unknown Payment", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.engine.ConfirmPayment(ctx, ids.New(), "")
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})
}

func TestSettleToReleased(t *testing.T) {
	ctx := context.Background()

	t.Run("Pays Seller", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.engine.ConfirmPayment(ctx, f.payment.ID, "")
		require.NoError(t, err)

		require.NoError(t, f.inTx(t, func(tx storage.Tx, order *models.Order) error {
			moved, err := f.engine.SettleToReleased(ctx, tx, order)
			assert.True(t, moved)
			return err
		}))

		available, _ := f.balances(t, markettest.Seller.ID)
		assert.Equal(t, "500.00", available)
		_, held := f.balances(t, markettest.Buyer.ID)
		assert.Equal(t, "0.00", held)

		order, err := f.store.GetOrder(ctx, f.order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderReleased, order.Status)
		assert.NotNil(t, order.ConfirmedAt)
	})

	t.Run("Not In Escrow", func(t *testing.T) {
		f := newFixture(t)
		err := f.inTx(t, func(tx storage.Tx, order *models.Order) error {
			_, err := f.engine.SettleToReleased(ctx, tx, order)
			return err
		})
		assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
	})

	t.Run("Open Dispute", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.engine.ConfirmPayment(ctx, f.payment.ID, "")
		require.NoError(t, err)
		require.NoError(t, f.store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.InsertDispute(ctx, &models.Dispute{
				ID: ids.New(), OrderID: f.order.ID, OpenedBy: markettest.Buyer.ID,
				Reason: "damaged", Status: models.DisputeOpen, CreatedAt: time.Now().UTC(),
			})
		}))

		err = f.inTx(t, func(tx storage.Tx, order *models.Order) error {
			_, err := f.engine.SettleToReleased(ctx, tx, order)
			return err
		})
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

		_, held := f.balances(t, markettest.Buyer.ID)
		assert.Equal(t, "500.00", held)
	})
}

func TestCompleteRefund(t *testing.T) {
	ctx := context.Background()

	newRefund := func(t *testing.T, f *fixture, orderID string) string {
		t.Helper()
		now := time.Now().UTC()
		refund := models.Refund{
			ID: ids.New(), OrderID: orderID, PaymentID: f.payment.ID,
			Amount: f.order.Amount, Status: models.RefundPending, Provider: "mock",
			CreatedAt: now, UpdatedAt: now,
		}
		require.NoError(t, f.store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.InsertRefund(ctx, &refund)
		}))
		return refund.ID
	}

	t.Run("Returns Funds To Buyer", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.engine.ConfirmPayment(ctx, f.payment.ID, "")
		require.NoError(t, err)
		refundID := newRefund(t, f, f.order.ID)

		order, moved, err := f.engine.CompleteRefund(ctx, refundID)
		require.NoError(t, err)
		assert.True(t, moved)
		assert.Equal(t, models.OrderCancelled, order.Status)

		available, held := f.balances(t, markettest.Buyer.ID)
		assert.Equal(t, "500.00", available)
		assert.Equal(t, "0.00", held)

		_, moved, err = f.engine.CompleteRefund(ctx, refundID)
		require.NoError(t, err)
		assert.False(t, moved)
	})

	t.Run("Held Funds Missing", func(t *testing.T) {
		f := newFixture(t)
		// The order claims escrow but no funds were ever held.
		require.NoError(t, f.store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.UpdateOrderStatus(ctx, f.order.ID, models.OrderEscrow, nil, time.Now().UTC())
		}))
		refundID := newRefund(t, f, f.order.ID)

		_, _, err := f.engine.CompleteRefund(ctx, refundID)
		assert.Equal(t, apperrors.KindIntegrityViolation, apperrors.KindOf(err))

		refund, err := f.store.GetRefund(ctx, refundID)
		require.NoError(t, err)
		assert.Equal(t, models.RefundPending, refund.Status)
	})

	t.Run("Fail Keeps Escrow", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.engine.ConfirmPayment(ctx, f.payment.ID, "")
		require.NoError(t, err)
		refundID := newRefund(t, f, f.order.ID)

		require.NoError(t, f.engine.FailRefund(ctx, refundID))

		refund, err := f.store.GetRefund(ctx, refundID)
		require.NoError(t, err)
		assert.Equal(t, models.RefundFailed, refund.Status)
		_, held := f.balances(t, markettest.Buyer.ID)
		assert.Equal(t, "500.00", held)
	})
}
