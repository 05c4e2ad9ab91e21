package disputes_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/config"
	"github.com/chris/student-escrow-market/pkg/disputes"
	"github.com/chris/student-escrow-market/pkg/escrow"
	"github.com/chris/student-escrow-market/pkg/gateway"
	"github.com/chris/student-escrow-market/pkg/gateway/mocks"
	"github.com/chris/student-escrow-market/pkg/markettest"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/money"
	"github.com/chris/student-escrow-market/pkg/orders"
	"github.com/chris/student-escrow-market/pkg/storage"
	"github.com/chris/student-escrow-market/pkg/storage/memory"
	"github.com/chris/student-escrow-market/pkg/wallet"
	"github.com/chris/student-escrow-market/pkg/websockets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	buyer     = markettest.Buyer
	seller    = markettest.Seller
	moderator = markettest.Moderator
	stranger  = markettest.Stranger
)

type fixture struct {
	store    *memory.Store
	engine   *escrow.Engine
	orders   *orders.Service
	disputes *disputes.Service
}

func newFixture(t *testing.T, gw gateway.Gateway) *fixture {
	t.Helper()
	store := markettest.NewStore()
	logger := markettest.Logger()
	engine := escrow.NewEngine(store, wallet.NewLedger(), logger)
	notifier := websockets.NewNotifier(&markettest.Publisher{}, store, logger)
	return &fixture{
		store:    store,
		engine:   engine,
		orders:   orders.NewService(store, engine, gw, notifier, logger),
		disputes: disputes.NewService(store, engine, gw, notifier, logger),
	}
}

// escrowOrder creates and pays an order. With the mock gateway the payment
// is confirmed manually; live gateways are expected to report it paid.
func (f *fixture) escrowOrder(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	view, _, err := f.orders.CreateOrder(ctx, buyer, markettest.Listing.ID)
	require.NoError(t, err)
	view, err = f.orders.InitiatePayment(ctx, buyer, view.Order.ID)
	require.NoError(t, err)
	if view.Order.Status != models.OrderEscrow {
		view, err = f.orders.ConfirmPaymentManually(ctx, buyer, view.Order.ID)
		require.NoError(t, err)
	}
	require.Equal(t, models.OrderEscrow, view.Order.Status)
	return view.Order.ID
}

func (f *fixture) balances(t *testing.T, userID string) (available, held string) {
	t.Helper()
	w, err := f.store.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	return money.Format(w.Available), money.Format(w.Held)
}

func (f *fixture) open(t *testing.T, orderID string) string {
	t.Helper()
	view, err := f.disputes.OpenDispute(context.Background(), seller, orderID, "item not delivered")
	require.NoError(t, err)
	require.NotNil(t, view.Dispute)
	return view.Dispute.ID
}

func TestOpenDispute(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		f := newFixture(t, gateway.NewMock(""))
		orderID := f.escrowOrder(t)

		view, err := f.disputes.OpenDispute(ctx, seller, orderID, "  item not delivered ")
		require.NoError(t, err)
		assert.Equal(t, models.DisputeOpen, view.Dispute.Status)
		assert.Equal(t, "item not delivered", view.Dispute.Reason)
		assert.Equal(t, seller.ID, view.Dispute.OpenedBy)
		assert.Equal(t, models.OrderEscrow, view.Order.Status)
	})

	t.Run("Already Open", func(t *testing.T) {
		f := newFixture(t, gateway.NewMock(""))
		orderID := f.escrowOrder(t)
		f.open(t, orderID)

		_, err := f.disputes.OpenDispute(ctx, buyer, orderID, "")
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
	})

	t.Run("Allowed After Earlier Dispute Closed", func(t *testing.T) {
		f := newFixture(t, gateway.NewMock(""))
		orderID := f.escrowOrder(t)
		require.NoError(t, f.store.WithTx(ctx, func(tx storage.Tx) error {
			return tx.InsertDispute(ctx, &models.Dispute{ID: "old", OrderID: orderID, OpenedBy: buyer.ID, Status: models.DisputeCancelled})
		}))

		view, err := f.disputes.OpenDispute(ctx, buyer, orderID, "")
		require.NoError(t, err)
		assert.NotEqual(t, "old", view.Dispute.ID)
		assert.Equal(t, models.DisputeOpen, view.Dispute.Status)
	})

	t.Run("Not In Escrow", func(t *testing.T) {
		f := newFixture(t, gateway.NewMock(""))
		view, _, err := f.orders.CreateOrder(ctx, buyer, markettest.Listing.ID)
		require.NoError(t, err)

		_, err = f.disputes.OpenDispute(ctx, buyer, view.Order.ID, "")
		assert.Equal(t, apperrors.KindInvalidState, apperrors.KindOf(err))
	})

	t.Run("Not A Participant", func(t *testing.T) {
		f := newFixture(t, gateway.NewMock(""))
		orderID := f.escrowOrder(t)

		_, err := f.disputes.OpenDispute(ctx, stranger, orderID, "")
		assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
		_, err = f.disputes.OpenDispute(ctx, moderator, orderID, "")
		assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	})
}

func TestResolveDisputeRefund(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, gateway.NewMock(""))
	orderID := f.escrowOrder(t)
	disputeID := f.open(t, orderID)

	view, err := f.disputes.ResolveDispute(ctx, moderator, disputeID, models.ResolutionRefund, "seller admitted")
	require.NoError(t, err)

	assert.Equal(t, models.OrderCancelled, view.Order.Status)
	require.NotNil(t, view.Refund)
	assert.Equal(t, models.RefundSucceeded, view.Refund.Status)
	assert.Equal(t, "500.00", money.Format(view.Refund.Amount))
	assert.Equal(t, config.ProviderMock, view.Refund.Provider)
	require.NotNil(t, view.Refund.ProviderRefundID)

	assert.Equal(t, models.DisputeResolved, view.Dispute.Status)
	require.NotNil(t, view.Dispute.Resolution)
	assert.Equal(t, models.ResolutionRefund, *view.Dispute.Resolution)
	assert.Equal(t, "seller admitted", view.Dispute.Notes)
	assert.NotNil(t, view.Dispute.ResolvedAt)

	available, held := f.balances(t, buyer.ID)
	assert.Equal(t, "500.00", available)
	assert.Equal(t, "0.00", held)
	sellerAvailable, _ := f.balances(t, seller.ID)
	assert.Equal(t, "0.00", sellerAvailable)

	t.Run("Resolve Twice", func(t *testing.T) {
		_, err := f.disputes.ResolveDispute(ctx, moderator, disputeID, models.ResolutionRelease, "")
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
		sellerAvailable, _ := f.balances(t, seller.ID)
		assert.Equal(t, "0.00", sellerAvailable)
	})
}

func TestResolveDisputeRelease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, gateway.NewMock(""))
	orderID := f.escrowOrder(t)
	disputeID := f.open(t, orderID)

	view, err := f.disputes.ResolveDispute(ctx, moderator, disputeID, models.ResolutionRelease, "")
	require.NoError(t, err)

	assert.Equal(t, models.OrderReleased, view.Order.Status)
	assert.NotNil(t, view.Order.ConfirmedAt)
	assert.Equal(t, models.ResolutionRelease, *view.Dispute.Resolution)
	assert.Nil(t, view.Refund)

	_, held := f.balances(t, buyer.ID)
	assert.Equal(t, "0.00", held)
	available, _ := f.balances(t, seller.ID)
	assert.Equal(t, "500.00", available)
}

func TestResolveDisputeRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, gateway.NewMock(""))
	orderID := f.escrowOrder(t)
	disputeID := f.open(t, orderID)

	t.Run("Not Staff", func(t *testing.T) {
		_, err := f.disputes.ResolveDispute(ctx, buyer, disputeID, models.ResolutionRefund, "")
		assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	})

	t.Run("Invalid Resolution", func(t *testing.T) {
		_, err := f.disputes.ResolveDispute(ctx, moderator, disputeID, "split", "")
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})

	t.Run("Not Found", func(t *testing.T) {
		_, err := f.disputes.ResolveDispute(ctx, moderator, "missing", models.ResolutionRefund, "")
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})

	_, held := f.balances(t, buyer.ID)
	assert.Equal(t, "500.00", held)
}

func liveGateway(t *testing.T) *mocks.Gateway {
	gw := mocks.NewGateway(t)
	gw.On("Name").Return(config.ProviderTBank).Maybe()
	gw.On("Live").Return(true).Maybe()
	gw.On("CreatePayment", mock.Anything, mock.Anything).Return(&gateway.PaymentIntent{
		Provider:          config.ProviderTBank,
		ProviderPaymentID: "13660",
		Status:            models.PaymentPaid,
		QRPayload:         "https://qr.nspk.ru/13660",
	}, nil)
	return gw
}

func TestResolveDisputeLiveRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("Pending At Provider", func(t *testing.T) {
		gw := liveGateway(t)
		gw.On("Refund", mock.Anything, mock.MatchedBy(func(req gateway.RefundRequest) bool {
			return req.ProviderPaymentID == "13660" && req.Amount.Equal(money.MustParse("500.00"))
		})).
			Return(&gateway.RefundResult{Provider: config.ProviderTBank, ProviderRefundID: "13660", Status: models.RefundPending}, nil)
		f := newFixture(t, gw)
		orderID := f.escrowOrder(t)
		disputeID := f.open(t, orderID)

		view, err := f.disputes.ResolveDispute(ctx, moderator, disputeID, models.ResolutionRefund, "")
		require.NoError(t, err)
		assert.Equal(t, models.OrderEscrow, view.Order.Status)
		assert.Equal(t, models.RefundPending, view.Refund.Status)
		assert.Equal(t, models.DisputeResolved, view.Dispute.Status)

		_, err = f.orders.ConfirmReceipt(ctx, buyer, orderID)
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
		_, err = f.disputes.OpenDispute(ctx, buyer, orderID, "")
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

		order, moved, err := f.engine.CompleteRefund(ctx, view.Refund.ID)
		require.NoError(t, err)
		assert.True(t, moved)
		assert.Equal(t, models.OrderCancelled, order.Status)

		available, held := f.balances(t, buyer.ID)
		assert.Equal(t, "500.00", available)
		assert.Equal(t, "0.00", held)
	})

	t.Run("Gateway Failure", func(t *testing.T) {
		gw := liveGateway(t)
		gw.On("Refund", mock.Anything, mock.Anything).Return(nil, errors.New("connection reset"))
		f := newFixture(t, gw)
		orderID := f.escrowOrder(t)
		disputeID := f.open(t, orderID)

		_, err := f.disputes.ResolveDispute(ctx, moderator, disputeID, models.ResolutionRefund, "")
		assert.Equal(t, apperrors.KindUpstreamGateway, apperrors.KindOf(err))

		view, err := f.orders.GetOrder(ctx, moderator, orderID)
		require.NoError(t, err)
		assert.Nil(t, view.Refund)
		assert.Equal(t, models.DisputeOpen, view.Dispute.Status)
		assert.Equal(t, models.OrderEscrow, view.Order.Status)
	})

	t.Run("Rejected By Provider", func(t *testing.T) {
		gw := liveGateway(t)
		gw.On("Refund", mock.Anything, mock.Anything).
			Return(&gateway.RefundResult{Provider: config.ProviderTBank, Status: models.RefundFailed}, nil)
		f := newFixture(t, gw)
		orderID := f.escrowOrder(t)
		disputeID := f.open(t, orderID)

		_, err := f.disputes.ResolveDispute(ctx, moderator, disputeID, models.ResolutionRefund, "")
		assert.Equal(t, apperrors.KindUpstreamGateway, apperrors.KindOf(err))

		view, err := f.orders.GetOrder(ctx, moderator, orderID)
		require.NoError(t, err)
		assert.Nil(t, view.Refund)
	})
}

func TestListDisputes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, gateway.NewMock(""))
	orderID := f.escrowOrder(t)
	disputeID := f.open(t, orderID)

	t.Run("Open By Default", func(t *testing.T) {
		list, err := f.disputes.ListDisputes(ctx, moderator, "")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, disputeID, list[0].ID)
		assert.Equal(t, "500.00", money.Format(list[0].OrderAmount))
		assert.Equal(t, buyer.ID, list[0].BuyerID)
		assert.Equal(t, seller.ID, list[0].SellerID)
	})

	t.Run("Resolved", func(t *testing.T) {
		list, err := f.disputes.ListDisputes(ctx, moderator, "resolved")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("Invalid Status", func(t *testing.T) {
		_, err := f.disputes.ListDisputes(ctx, moderator, "closed")
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})

	t.Run("Not Staff", func(t *testing.T) {
		_, err := f.disputes.ListDisputes(ctx, buyer, "")
		assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
	})
}

// barrierGateway holds every Refund call until parties calls have arrived.
type barrierGateway struct {
	*gateway.Mock
	arrived sync.WaitGroup
	calls   atomic.Int32
}

func newBarrierGateway(parties int) *barrierGateway {
	g := &barrierGateway{Mock: gateway.NewMock("")}
	g.arrived.Add(parties)
	return g
}

func (g *barrierGateway) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error) {
	g.calls.Add(1)
	g.arrived.Done()
	g.arrived.Wait()
	return g.Mock.Refund(ctx, req)
}

func TestResolveDisputeConcurrently(t *testing.T) {
	ctx := context.Background()

	t.Run("Second Refund Is Conflict", func(t *testing.T) {
		gw := newBarrierGateway(2)
		f := newFixture(t, gw)
		orderID := f.escrowOrder(t)
		disputeID := f.open(t, orderID)

		errs := make([]error, 2)
		var wg sync.WaitGroup
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = f.disputes.ResolveDispute(ctx, moderator, disputeID, models.ResolutionRefund, "")
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(2), gw.calls.Load())
		var succeeded, conflicts int
		for _, err := range errs {
			switch {
			case err == nil:
				succeeded++
			case apperrors.KindOf(err) == apperrors.KindConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, succeeded)
		assert.Equal(t, 1, conflicts)

		available, held := f.balances(t, buyer.ID)
		assert.Equal(t, "500.00", available)
		assert.Equal(t, "0.00", held)
	})

	t.Run("Release After Refund Is Conflict", func(t *testing.T) {
		f := newFixture(t, gateway.NewMock(""))
		orderID := f.escrowOrder(t)
		disputeID := f.open(t, orderID)
		dispute, err := f.store.GetDispute(ctx, disputeID)
		require.NoError(t, err)

		_, err = f.disputes.ResolveDispute(ctx, moderator, disputeID, models.ResolutionRefund, "")
		require.NoError(t, err)

		// Replays the release path with the dispute read before the refund committed.
		err = f.store.WithTx(ctx, func(tx storage.Tx) error {
			order, err := tx.LockOrder(ctx, dispute.OrderID)
			if err != nil {
				return err
			}
			_, err = f.engine.ReleaseForDispute(ctx, tx, order, dispute.ID)
			return err
		})
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

		available, _ := f.balances(t, seller.ID)
		assert.Equal(t, "0.00", available)
	})
}
