package mapping

import (
	"testing"
	"time"

	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/money"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	buyerID  = "0190a000-0000-7000-8000-000000000001"
	sellerID = "0190a000-0000-7000-8000-000000000002"
)

func testView() *models.OrderView {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	providerID := "13660"
	return &models.OrderView{
		Order: models.Order{
			ID:        "0190a000-0000-7000-8000-0000000000b1",
			ListingID: "0190a000-0000-7000-8000-0000000000a1",
			BuyerID:   buyerID,
			SellerID:  sellerID,
			Amount:    money.MustParse("500"),
			Status:    models.OrderPendingPayment,
			CreatedAt: now,
			UpdatedAt: now,
		},
		Payment: &models.Payment{
			ID:                "0190a000-0000-7000-8000-0000000000c1",
			Method:            models.PaymentMethodSBPQR,
			Status:            models.PaymentPending,
			Provider:          "mock",
			ProviderPaymentID: &providerID,
			SBPReference:      "SBP-01J",
			QRPayload:         "https://qr.nspk.ru/mock",
			CreatedAt:         now,
		},
	}
}

func TestToApiOrder(t *testing.T) {
	t.Run("Buyer Sees QR Payload", func(t *testing.T) {
		out := ToApiOrder(models.Principal{ID: buyerID, Status: models.UserActive}, testView())

		assert.Equal(t, "500.00", out.Amount)
		assert.Equal(t, buyerID, out.BuyerId.String())
		require.NotNil(t, out.Payment)
		require.NotNil(t, out.Payment.QrPayload)
		assert.Equal(t, "https://qr.nspk.ru/mock", *out.Payment.QrPayload)
		assert.Equal(t, "SBP-01J", out.Payment.SbpReference)
		assert.Nil(t, out.Dispute)
		assert.Nil(t, out.Refund)
	})

	t.Run("Seller Does Not See QR Payload", func(t *testing.T) {
		out := ToApiOrder(models.Principal{ID: sellerID, Status: models.UserActive}, testView())

		require.NotNil(t, out.Payment)
		assert.Nil(t, out.Payment.QrPayload)
	})

	t.Run("Dispute And Refund", func(t *testing.T) {
		view := testView()
		resolution := models.ResolutionRefund
		view.Dispute = &models.Dispute{ID: "0190a000-0000-7000-8000-0000000000d1", Status: models.DisputeResolved, Resolution: &resolution, Notes: "refunded"}
		view.Refund = &models.Refund{ID: "0190a000-0000-7000-8000-0000000000e1", Amount: money.MustParse("500"), Status: models.RefundSucceeded}

		out := ToApiOrder(models.Principal{ID: buyerID, Status: models.UserActive}, view)
		require.NotNil(t, out.Dispute)
		assert.Equal(t, "refund", *out.Dispute.Resolution)
		assert.Equal(t, "refunded", *out.Dispute.Notes)
		require.NotNil(t, out.Refund)
		assert.Equal(t, "500.00", out.Refund.Amount)
		assert.Equal(t, "succeeded", out.Refund.Status)
	})
}

func TestToApiWalletEntries(t *testing.T) {
	entries := ToApiWalletEntries([]models.WalletEntry{
		{ID: "0190a000-0000-7000-8000-0000000000f1", AvailableDelta: money.MustParse("0"), HeldDelta: money.MustParse("500"), Reason: models.ReasonEscrowHold, OrderID: "0190a000-0000-7000-8000-0000000000b1"},
		{ID: "0190a000-0000-7000-8000-0000000000f2", AvailableDelta: decimal.RequireFromString("-1.5"), HeldDelta: money.MustParse("0"), Reason: "adjustment"},
	})

	require.Len(t, entries, 2)
	assert.Equal(t, "500.00", entries[0].HeldDelta)
	require.NotNil(t, entries[0].OrderId)
	assert.Nil(t, entries[1].OrderId)
	assert.Equal(t, "-1.50", entries[1].AvailableDelta)
}
