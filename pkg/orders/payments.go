package orders

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/authz"
	"github.com/chris/student-escrow-market/pkg/gateway"
	"github.com/chris/student-escrow-market/pkg/ids"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/storage"
)

const referencePrefix = "SBP"

// InitiatePayment issues a payment QR for an unpaid order. An order whose
// latest payment from the active provider is pending or paid is returned
// unchanged, so retries never issue a second QR.
func (s *Service) InitiatePayment(ctx context.Context, caller models.Principal, orderID string) (*models.OrderView, error) {
	if _, err := s.authorize(ctx, caller, orderID, authz.CanPay); err != nil {
		return nil, err
	}
	view, err := s.view(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch view.Order.Status {
	case models.OrderReleased, models.OrderCancelled:
		return nil, apperrors.InvalidState(fmt.Sprintf("order is %s", view.Order.Status))
	case models.OrderEscrow:
		return view, nil
	}
	if s.reusable(view.Payment) {
		return view, nil
	}

	// The gateway is called before any transaction is opened. A failure
	// leaves the order without a new payment row.
	paymentID := ids.New()
	reference := ids.Reference(referencePrefix)
	intent, err := s.gateway.CreatePayment(ctx, gateway.PaymentRequest{
		OrderID:     orderID,
		Reference:   reference,
		Description: fmt.Sprintf("Order %s", orderID),
		Amount:      view.Order.Amount,
	})
	if err != nil {
		s.logger.Warn("payment initiation failed", slog.String("order_id", orderID), slog.Any("error", err))
		if apperrors.KindOf(err) == apperrors.KindInternal {
			return nil, apperrors.Wrap(apperrors.KindUpstreamGateway, err, "payment gateway error")
		}
		return nil, err
	}

	var order *models.Order
	var moved bool
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		order, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		switch order.Status {
		case models.OrderPendingPayment:
		case models.OrderEscrow:
			return nil
		default:
			return apperrors.InvalidState(fmt.Sprintf("order is %s", order.Status))
		}

		latest, err := tx.LatestPayment(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to lock latest payment: %w", err)
		}
		if s.reusable(latest) {
			s.logger.Info("concurrent payment initiation, discarding new intent", slog.String("order_id", orderID))
			return nil
		}

		payment := &models.Payment{
			ID:           paymentID,
			OrderID:      orderID,
			Method:       models.PaymentMethodSBPQR,
			Status:       models.PaymentPending,
			Provider:     intent.Provider,
			SBPReference: reference,
			QRPayload:    intent.QRPayload,
			CreatedAt:    s.now(),
		}
		if intent.ProviderPaymentID != "" {
			payment.ProviderPaymentID = &intent.ProviderPaymentID
		}
		if intent.Status == models.PaymentCancelled || intent.Status == models.PaymentFailed {
			payment.Status = intent.Status
		}
		if err := tx.InsertPayment(ctx, payment); err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}

		if intent.Status == models.PaymentPaid {
			moved, err = s.engine.SettleToEscrow(ctx, tx, order, paymentID, intent.ProviderPaymentID)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment initiated", slog.String("order_id", orderID), slog.String("payment_id", paymentID), slog.String("provider", intent.Provider))
	if moved {
		s.notifier.OrderChanged(ctx, order, order.BuyerID)
	} else {
		s.notifier.OrderChanged(ctx, order)
	}
	return s.view(ctx, orderID)
}

// ConfirmPaymentManually marks the latest payment paid and moves the order
// to escrow. It is allowed only while the gateway permits manual confirmation.
func (s *Service) ConfirmPaymentManually(ctx context.Context, caller models.Principal, orderID string) (*models.OrderView, error) {
	order, err := s.authorize(ctx, caller, orderID, authz.CanPay)
	if err != nil {
		return nil, err
	}
	if !s.gateway.AllowsManualConfirmation() {
		return nil, apperrors.InvalidState("manual payment confirmation is disabled, waiting for the bank notification")
	}
	if order.Status == models.OrderCancelled {
		return nil, apperrors.InvalidState("order is cancelled")
	}

	var moved bool
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		order, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		switch order.Status {
		case models.OrderPendingPayment:
		case models.OrderCancelled:
			return apperrors.InvalidState("order is cancelled")
		default:
			return nil
		}

		payment, err := tx.LatestPayment(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to lock latest payment: %w", err)
		}
		if payment == nil {
			return apperrors.InvalidState("no payment to confirm, initiate payment first")
		}
		if payment.Status != models.PaymentPending && payment.Status != models.PaymentPaid {
			return apperrors.InvalidState(fmt.Sprintf("latest payment is %s", payment.Status))
		}

		moved, err = s.engine.SettleToEscrow(ctx, tx, order, payment.ID, deref(payment.ProviderPaymentID))
		return err
	})
	if err != nil {
		return nil, err
	}

	if moved {
		s.logger.Info("payment confirmed manually", slog.String("order_id", orderID))
		s.notifier.OrderChanged(ctx, order, order.BuyerID)
	}
	return s.view(ctx, orderID)
}

// reusable reports whether p already serves the active provider.
func (s *Service) reusable(p *models.Payment) bool {
	if p == nil || p.Provider != s.gateway.Name() {
		return false
	}
	return p.Status == models.PaymentPending || p.Status == models.PaymentPaid
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
