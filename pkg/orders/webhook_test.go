package orders_test

import (
	"context"
	"testing"

	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/config"
	"github.com/chris/student-escrow-market/pkg/gateway"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	terminalKey = "TestTerminal"
	password    = "secret"
)

// liveGateway verifies notifications like the live client but issues
// payments without a network call.
type liveGateway struct {
	*gateway.TBank
	nextID string
}

func (g *liveGateway) CreatePayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.PaymentIntent, error) {
	return &gateway.PaymentIntent{
		Provider:          config.ProviderTBank,
		ProviderPaymentID: g.nextID,
		Status:            models.PaymentPending,
		QRPayload:         "https://qr.nspk.ru/" + g.nextID,
	}, nil
}

func newLiveGateway(id string) *liveGateway {
	return &liveGateway{
		TBank:  gateway.NewTBank(config.TBank{APIURL: "http://127.0.0.1:0", TerminalKey: terminalKey, Password: password}, nil, nil),
		nextID: id,
	}
}

func notification(fields map[string]any) map[string]any {
	fields["TerminalKey"] = terminalKey
	fields["Token"] = gateway.Signer{Secret: password, Mode: gateway.SecretAsField}.Token(fields)
	return fields
}

func TestHandleNotification(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, *models.OrderView) {
		f := newFixture(t, newLiveGateway("13660"))
		view, _, err := f.svc.CreateOrder(ctx, buyer, listingID)
		require.NoError(t, err)
		view, err = f.svc.InitiatePayment(ctx, buyer, view.Order.ID)
		require.NoError(t, err)
		require.Equal(t, config.ProviderTBank, view.Payment.Provider)
		return f, view
	}

	t.Run("Confirmed Twice", func(t *testing.T) {
		f, view := setup(t)
		payload := func() map[string]any {
			return notification(map[string]any{
				"OrderId":   view.Payment.SBPReference,
				"PaymentId": "13660",
				"Status":    "CONFIRMED",
				"Success":   true,
				"Amount":    "50000",
			})
		}

		require.NoError(t, f.svc.HandleNotification(ctx, payload()))
		require.NoError(t, f.svc.HandleNotification(ctx, payload()))

		after, err := f.svc.GetOrder(ctx, buyer, view.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderEscrow, after.Order.Status)
		assert.Equal(t, models.PaymentPaid, after.Payment.Status)

		_, held := f.balances(t, buyer.ID)
		assert.Equal(t, "500.00", held)
		entries, err := f.store.ListWalletEntries(ctx, buyer.ID, 10)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("Resolved By Reference", func(t *testing.T) {
		f, view := setup(t)
		require.NoError(t, f.svc.HandleNotification(ctx, notification(map[string]any{
			"OrderId": view.Payment.SBPReference,
			"Status":  "CONFIRMED",
		})))

		after, err := f.svc.GetOrder(ctx, buyer, view.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderEscrow, after.Order.Status)
	})

	t.Run("Rejected Payment", func(t *testing.T) {
		f, view := setup(t)
		require.NoError(t, f.svc.HandleNotification(ctx, notification(map[string]any{
			"PaymentId": "13660",
			"Status":    "REJECTED",
		})))

		after, err := f.svc.GetOrder(ctx, buyer, view.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderPendingPayment, after.Order.Status)
		assert.Equal(t, models.PaymentCancelled, after.Payment.Status)
	})

	t.Run("Paid Is Never Downgraded", func(t *testing.T) {
		f, view := setup(t)
		require.NoError(t, f.svc.HandleNotification(ctx, notification(map[string]any{"PaymentId": "13660", "Status": "CONFIRMED"})))
		require.NoError(t, f.svc.HandleNotification(ctx, notification(map[string]any{"PaymentId": "13660", "Status": "REJECTED"})))

		after, err := f.svc.GetOrder(ctx, buyer, view.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentPaid, after.Payment.Status)
	})

	t.Run("Completes Pending Refund", func(t *testing.T) {
		f, view := setup(t)
		require.NoError(t, f.svc.HandleNotification(ctx, notification(map[string]any{"PaymentId": "13660", "Status": "CONFIRMED"})))
		require.NoError(t, f.store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.InsertRefund(ctx, &models.Refund{
				ID:        "r-1",
				OrderID:   view.Order.ID,
				PaymentID: view.Payment.ID,
				Amount:    view.Order.Amount,
				Status:    models.RefundPending,
				Provider:  config.ProviderTBank,
			})
		}))

		require.NoError(t, f.svc.HandleNotification(ctx, notification(map[string]any{"PaymentId": "13660", "Status": "REVERSED"})))

		after, err := f.svc.GetOrder(ctx, buyer, view.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderCancelled, after.Order.Status)
		assert.Equal(t, models.RefundSucceeded, after.Refund.Status)
		available, held := f.balances(t, buyer.ID)
		assert.Equal(t, "500.00", available)
		assert.Equal(t, "0.00", held)
	})

	t.Run("Tampered Signature", func(t *testing.T) {
		f, view := setup(t)
		payload := notification(map[string]any{"PaymentId": "13660", "Status": "REJECTED"})
		payload["Status"] = "CONFIRMED"

		err := f.svc.HandleNotification(ctx, payload)
		assert.ErrorIs(t, err, gateway.ErrInvalidSignature)

		after, err := f.svc.GetOrder(ctx, buyer, view.Order.ID)
		require.NoError(t, err)
		assert.Equal(t, models.OrderPendingPayment, after.Order.Status)
	})

	t.Run("Unknown Payment", func(t *testing.T) {
		f, _ := setup(t)
		err := f.svc.HandleNotification(ctx, notification(map[string]any{"PaymentId": "404", "OrderId": "SBP-NOPE", "Status": "CONFIRMED"}))
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	t.Run("Manual Confirmation Disabled", func(t *testing.T) {
		f, view := setup(t)
		_, err := f.svc.ConfirmPaymentManually(ctx, buyer, view.Order.ID)
		assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
	})
}
