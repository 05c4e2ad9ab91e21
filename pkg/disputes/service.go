// Package disputes runs the dispute workflow on top of the order state
// machine. Staff resolve an open dispute by releasing the escrow to the
// seller or refunding it to the buyer.
package disputes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/authz"
	"github.com/chris/student-escrow-market/pkg/escrow"
	"github.com/chris/student-escrow-market/pkg/gateway"
	"github.com/chris/student-escrow-market/pkg/ids"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/storage"
	"github.com/chris/student-escrow-market/pkg/websockets"
)

// MaxTextLength bounds dispute reasons and resolution notes, in characters.
const MaxTextLength = 2000

// Service is the dispute workflow.
type Service struct {
	store    storage.Store
	engine   *escrow.Engine
	gateway  gateway.Gateway
	notifier *websockets.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new Service.
func NewService(store storage.Store, engine *escrow.Engine, gw gateway.Gateway, notifier *websockets.Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		engine:   engine,
		gateway:  gw,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OpenDispute lets a participant contest an order in escrow.
func (s *Service) OpenDispute(ctx context.Context, caller models.Principal, orderID, reason string) (*models.OrderView, error) {
	reason, err := text("reason", reason)
	if err != nil {
		return nil, err
	}
	if err := authz.RequireActive(caller); err != nil {
		return nil, err
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order not found")
	}
	if err := authz.Require(caller, order, authz.CanDispute); err != nil {
		return nil, err
	}

	dispute := &models.Dispute{
		ID:       ids.New(),
		OrderID:  orderID,
		OpenedBy: caller.ID,
		Reason:   reason,
		Status:   models.DisputeOpen,
	}
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		order, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		if order.Status != models.OrderEscrow {
			return apperrors.InvalidState(fmt.Sprintf("only orders in escrow can be disputed, order is %s", order.Status))
		}

		latest, err := tx.LatestDispute(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to lock latest dispute: %w", err)
		}
		if latest != nil && latest.Status == models.DisputeOpen {
			return apperrors.Conflict("a dispute is already open for this order")
		}
		refund, err := tx.LatestRefund(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to lock latest refund: %w", err)
		}
		if refund != nil && refund.Status == models.RefundPending {
			return apperrors.Conflict("order has a pending refund")
		}

		dispute.CreatedAt = s.now()
		if err := tx.InsertDispute(ctx, dispute); err != nil {
			return fmt.Errorf("failed to insert dispute: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("dispute opened", slog.String("dispute_id", dispute.ID), slog.String("order_id", orderID), slog.String("opened_by", caller.ID))
	s.notifier.OrderChanged(ctx, order)
	return s.view(ctx, orderID)
}

// ListDisputes returns disputes in the given status, open by default.
func (s *Service) ListDisputes(ctx context.Context, caller models.Principal, status string) ([]models.DisputeSummary, error) {
	if err := authz.RequireStaff(caller); err != nil {
		return nil, err
	}
	st := models.DisputeOpen
	if status != "" {
		st = models.DisputeStatus(status)
	}
	if !st.Valid() {
		return nil, apperrors.Validation("status must be open, resolved or cancelled")
	}
	out, err := s.store.ListDisputes(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("failed to list disputes: %w", err)
	}
	return out, nil
}

// ResolveDispute settles an open dispute as decided by staff.
func (s *Service) ResolveDispute(ctx context.Context, caller models.Principal, disputeID string, resolution models.Resolution, notes string) (*models.OrderView, error) {
	if err := authz.RequireStaff(caller); err != nil {
		return nil, err
	}
	if !resolution.Valid() {
		return nil, apperrors.Validation("resolution must be refund or release")
	}
	notes, err := text("notes", notes)
	if err != nil {
		return nil, err
	}

	dispute, err := s.store.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, notFound(err, "dispute not found")
	}
	if dispute.Status != models.DisputeOpen {
		return nil, apperrors.Conflict(fmt.Sprintf("dispute is already %s", dispute.Status))
	}
	view, err := s.view(ctx, dispute.OrderID)
	if err != nil {
		return nil, err
	}
	if view.Order.Status != models.OrderEscrow {
		return nil, apperrors.InvalidState(fmt.Sprintf("order is %s, expected escrow", view.Order.Status))
	}

	var order *models.Order
	switch resolution {
	case models.ResolutionRelease:
		order, err = s.release(ctx, dispute, notes)
	default:
		order, err = s.refund(ctx, dispute, view, notes)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("dispute resolved",
		slog.String("dispute_id", disputeID),
		slog.String("order_id", order.ID),
		slog.String("resolution", string(resolution)),
		slog.String("resolved_by", caller.ID),
	)
	return s.view(ctx, order.ID)
}

func (s *Service) release(ctx context.Context, dispute *models.Dispute, notes string) (*models.Order, error) {
	var order *models.Order
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		order, err = tx.LockOrder(ctx, dispute.OrderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		if _, err := s.engine.LockOpenDispute(ctx, tx, order, dispute.ID); err != nil {
			return err
		}
		if order.Status != models.OrderEscrow {
			return apperrors.InvalidState(fmt.Sprintf("order is %s, expected escrow", order.Status))
		}
		if _, err := s.engine.ReleaseForDispute(ctx, tx, order, dispute.ID); err != nil {
			return err
		}
		return tx.ResolveDispute(ctx, dispute.ID, models.ResolutionRelease, notes, s.now())
	})
	if err != nil {
		return nil, err
	}
	s.notifier.OrderChanged(ctx, order, order.BuyerID, order.SellerID)
	return order, nil
}

// refund asks the payment's provider to return the money before opening the
// transaction, so a gateway failure leaves no refund row and the dispute open.
func (s *Service) refund(ctx context.Context, dispute *models.Dispute, view *models.OrderView, notes string) (*models.Order, error) {
	payment := view.Payment
	if payment == nil || payment.Status != models.PaymentPaid {
		return nil, apperrors.InvalidState("order has no paid payment to refund")
	}
	refunder, err := gateway.RefunderFor(s.gateway, payment.Provider)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamGateway, err, fmt.Sprintf("payment provider %s is not configured", payment.Provider))
	}
	providerPaymentID := ""
	if payment.ProviderPaymentID != nil {
		providerPaymentID = *payment.ProviderPaymentID
	}
	if refunder.Live() && providerPaymentID == "" {
		return nil, apperrors.InvalidState("payment has no provider payment id to refund")
	}

	result, err := refunder.Refund(ctx, gateway.RefundRequest{
		ProviderPaymentID: providerPaymentID,
		Amount:            view.Order.Amount,
	})
	if err != nil {
		s.logger.Warn("refund request failed", slog.String("dispute_id", dispute.ID), slog.Any("error", err))
		if apperrors.KindOf(err) == apperrors.KindInternal {
			return nil, apperrors.Wrap(apperrors.KindUpstreamGateway, err, "payment gateway error")
		}
		return nil, err
	}
	if result.Status == models.RefundFailed || result.Status == models.RefundCancelled {
		s.logger.Warn("refund rejected by provider", slog.String("dispute_id", dispute.ID), slog.String("status", string(result.Status)))
		return nil, apperrors.New(apperrors.KindUpstreamGateway, "refund was rejected by the payment provider")
	}

	var order *models.Order
	var settled bool
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		order, err = tx.LockOrder(ctx, dispute.OrderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		if _, err := s.engine.LockOpenDispute(ctx, tx, order, dispute.ID); err != nil {
			return err
		}
		if order.Status != models.OrderEscrow {
			return apperrors.InvalidState(fmt.Sprintf("order is %s, expected escrow", order.Status))
		}
		latest, err := tx.LatestRefund(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("failed to lock latest refund: %w", err)
		}
		if latest != nil && latest.Status == models.RefundPending {
			return apperrors.Conflict("order has a pending refund")
		}

		now := s.now()
		refund := &models.Refund{
			ID:        ids.New(),
			OrderID:   order.ID,
			PaymentID: payment.ID,
			Amount:    order.Amount,
			Status:    models.RefundPending,
			Provider:  result.Provider,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if result.ProviderRefundID != "" {
			refund.ProviderRefundID = &result.ProviderRefundID
		}
		if err := tx.InsertRefund(ctx, refund); err != nil {
			return fmt.Errorf("failed to insert refund: %w", err)
		}

		// A pending refund is settled later by the provider's notification
		// or by reconciliation.
		if result.Status == models.RefundSucceeded {
			if settled, err = s.engine.SettleRefund(ctx, tx, order, refund.ID); err != nil {
				return err
			}
		}
		return tx.ResolveDispute(ctx, dispute.ID, models.ResolutionRefund, notes, now)
	})
	if err != nil {
		return nil, err
	}

	if settled {
		s.notifier.OrderChanged(ctx, order, order.BuyerID)
	} else {
		s.notifier.OrderChanged(ctx, order)
	}
	return order, nil
}

func (s *Service) view(ctx context.Context, orderID string) (*models.OrderView, error) {
	view, err := s.store.GetOrderView(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order not found")
	}
	return view, nil
}

func text(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) > MaxTextLength {
		return "", apperrors.Validation(fmt.Sprintf("%s must be at most %d characters", field, MaxTextLength))
	}
	return value, nil
}

func notFound(err error, message string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Wrap(apperrors.KindNotFound, err, message)
	}
	return err
}
