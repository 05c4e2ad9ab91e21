package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/gateway"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/storage"
)

// HandleNotification applies a payment provider webhook. The caller answers
// the provider with success whatever this returns; the error is for logging.
func (s *Service) HandleNotification(ctx context.Context, payload map[string]any) error {
	n, err := s.gateway.VerifyNotification(payload)
	if err != nil {
		return fmt.Errorf("rejected notification: %w", err)
	}

	payment, err := s.findPayment(ctx, n)
	if err != nil {
		return err
	}
	if payment.Provider != s.gateway.Name() {
		return apperrors.InvalidState(fmt.Sprintf("payment %s belongs to provider %s", payment.ID, payment.Provider))
	}

	log := s.logger.With(
		slog.String("payment_id", payment.ID),
		slog.String("order_id", payment.OrderID),
		slog.String("gateway_status", n.RawStatus),
	)

	if gateway.IsRefunded(n.RawStatus) {
		refund, err := s.store.FindPendingRefundByPayment(ctx, payment.ID)
		if err != nil {
			return fmt.Errorf("failed to find pending refund: %w", err)
		}
		if refund != nil {
			order, moved, err := s.engine.CompleteRefund(ctx, refund.ID)
			if err != nil {
				return err
			}
			if moved {
				log.Info("refund completed by notification", slog.String("refund_id", refund.ID))
				s.notifier.OrderChanged(ctx, order, order.BuyerID)
			}
			return nil
		}
	}

	switch n.Status {
	case models.PaymentPaid:
		order, moved, err := s.engine.ConfirmPayment(ctx, payment.ID, n.ProviderPaymentID)
		if err != nil {
			return err
		}
		if moved {
			log.Info("payment confirmed by notification")
			s.notifier.OrderChanged(ctx, order, order.BuyerID)
		}
		return nil
	case models.PaymentPending:
		return nil
	default:
		log.Info("payment status updated by notification", slog.String("status", string(n.Status)))
		return s.engine.RecordPaymentStatus(ctx, payment.ID, n.Status, n.ProviderPaymentID)
	}
}

// findPayment resolves the notification by provider payment id, then by
// the internal reference.
func (s *Service) findPayment(ctx context.Context, n *gateway.Notification) (*models.Payment, error) {
	if n.ProviderPaymentID != "" {
		payment, err := s.store.FindPaymentByProviderID(ctx, n.ProviderPaymentID)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to find payment by provider id: %w", err)
		}
	}
	if n.OrderReference != "" {
		payment, err := s.store.FindPaymentByReference(ctx, n.OrderReference)
		if err == nil {
			return payment, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to find payment by reference: %w", err)
		}
	}
	return nil, apperrors.NotFound("no payment matches the notification")
}
