// Package escrow moves order funds between the buyer's held balance and an
// available balance. Every settlement runs inside one storage transaction;
// the methods taking a storage.Tx expect the caller to have locked the order.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/storage"
	"github.com/chris/student-escrow-market/pkg/wallet"
)

// Store is the persistence the engine needs for its self-contained operations.
type Store interface {
	storage.Transactor
	storage.PaymentReader
	storage.RefundReader
}

// Engine performs escrow settlements.
type Engine struct {
	store  Store
	ledger *wallet.Ledger
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates a new Engine.
func NewEngine(store Store, ledger *wallet.Ledger, logger *slog.Logger) *Engine {
	return &Engine{
		store:  store,
		ledger: ledger,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// LockParticipants ensures and locks the buyer wallet, then the seller wallet.
func (e *Engine) LockParticipants(ctx context.Context, tx storage.Tx, order *models.Order) error {
	if _, err := e.ledger.EnsureWallet(ctx, tx, order.BuyerID); err != nil {
		return err
	}
	if _, err := e.ledger.EnsureWallet(ctx, tx, order.SellerID); err != nil {
		return err
	}
	return nil
}

// SettleToEscrow records the payment as paid and, if the order still awaits
// payment, holds the amount on the buyer's wallet. It reports whether the
// order moved to escrow.
func (e *Engine) SettleToEscrow(ctx context.Context, tx storage.Tx, order *models.Order, paymentID, providerPaymentID string) (bool, error) {
	now := e.now()
	if err := tx.MarkPaymentPaid(ctx, paymentID, now, providerPaymentID); err != nil {
		return false, fmt.Errorf("failed to mark payment %s paid: %w", paymentID, err)
	}
	if order.Status != models.OrderPendingPayment {
		return false, nil
	}

	if err := e.LockParticipants(ctx, tx, order); err != nil {
		return false, err
	}
	if err := e.ledger.HoldFunds(ctx, tx, order.BuyerID, order.ID, order.Amount); err != nil {
		return false, e.check(order, err)
	}
	if err := tx.UpdateOrderStatus(ctx, order.ID, models.OrderEscrow, nil, now); err != nil {
		return false, fmt.Errorf("failed to move order %s to escrow: %w", order.ID, err)
	}

	order.Status = models.OrderEscrow
	order.UpdatedAt = now
	return true, nil
}

// SettleToReleased pays the seller. It is a no-op for released orders and
// refuses while a dispute is open or a refund is pending.
func (e *Engine) SettleToReleased(ctx context.Context, tx storage.Tx, order *models.Order) (bool, error) {
	return e.release(ctx, tx, order, "")
}

// ReleaseForDispute pays the seller as the outcome of the open dispute
// disputeID, which must be the order's latest dispute.
func (e *Engine) ReleaseForDispute(ctx context.Context, tx storage.Tx, order *models.Order, disputeID string) (bool, error) {
	return e.release(ctx, tx, order, disputeID)
}

func (e *Engine) release(ctx context.Context, tx storage.Tx, order *models.Order, resolving string) (bool, error) {
	if resolving != "" {
		if _, err := e.LockOpenDispute(ctx, tx, order, resolving); err != nil {
			return false, err
		}
	}
	if order.Status == models.OrderReleased {
		return false, nil
	}
	if order.Status != models.OrderEscrow {
		return false, apperrors.InvalidState(fmt.Sprintf("order is %s, expected escrow", order.Status))
	}

	if err := e.LockParticipants(ctx, tx, order); err != nil {
		return false, err
	}

	dispute, err := tx.LatestDispute(ctx, order.ID)
	if err != nil {
		return false, fmt.Errorf("failed to lock latest dispute: %w", err)
	}
	if dispute != nil && dispute.Status == models.DisputeOpen && dispute.ID != resolving {
		return false, apperrors.Conflict("order has an open dispute")
	}

	refund, err := tx.LatestRefund(ctx, order.ID)
	if err != nil {
		return false, fmt.Errorf("failed to lock latest refund: %w", err)
	}
	if refund != nil && refund.Status == models.RefundPending {
		return false, apperrors.Conflict("order has a pending refund")
	}

	if err := e.ledger.Release(ctx, tx, order.BuyerID, order.SellerID, order.ID, order.Amount); err != nil {
		return false, e.check(order, err)
	}

	now := e.now()
	if err := tx.UpdateOrderStatus(ctx, order.ID, models.OrderReleased, &now, now); err != nil {
		return false, fmt.Errorf("failed to release order %s: %w", order.ID, err)
	}

	order.Status = models.OrderReleased
	order.ConfirmedAt = &now
	order.UpdatedAt = now
	return true, nil
}

// LockOpenDispute locks the participant wallets and then the dispute, in
// that order. A dispute that is no longer open, or that belongs to another
// order, is a Conflict regardless of the order's status.
func (e *Engine) LockOpenDispute(ctx context.Context, tx storage.Tx, order *models.Order, disputeID string) (*models.Dispute, error) {
	if err := e.LockParticipants(ctx, tx, order); err != nil {
		return nil, err
	}
	dispute, err := tx.LockDispute(ctx, disputeID)
	if err != nil {
		return nil, notFound(err, "dispute not found")
	}
	if dispute.OrderID != order.ID {
		return nil, apperrors.Conflict("dispute belongs to another order")
	}
	if dispute.Status != models.DisputeOpen {
		return nil, apperrors.Conflict(fmt.Sprintf("dispute is already %s", dispute.Status))
	}
	return dispute, nil
}

// SettleRefund returns the refund amount from the buyer's held balance to
// the buyer's available balance and cancels the order. A refund that already
// succeeded is a no-op.
func (e *Engine) SettleRefund(ctx context.Context, tx storage.Tx, order *models.Order, refundID string) (bool, error) {
	if _, err := e.ledger.EnsureWallet(ctx, tx, order.BuyerID); err != nil {
		return false, err
	}

	refund, err := tx.LockRefund(ctx, refundID)
	if err != nil {
		return false, fmt.Errorf("failed to lock refund %s: %w", refundID, err)
	}
	if refund.OrderID != order.ID {
		return false, apperrors.New(apperrors.KindIntegrityViolation, "refund belongs to another order")
	}
	switch refund.Status {
	case models.RefundSucceeded:
		return false, nil
	case models.RefundPending:
	default:
		return false, apperrors.InvalidState(fmt.Sprintf("refund is %s", refund.Status))
	}
	if order.Status != models.OrderEscrow {
		return false, apperrors.InvalidState(fmt.Sprintf("order is %s, expected escrow", order.Status))
	}

	if err := e.ledger.Refund(ctx, tx, order.BuyerID, order.ID, refund.Amount); err != nil {
		return false, e.check(order, err)
	}

	now := e.now()
	if err := tx.UpdateOrderStatus(ctx, order.ID, models.OrderCancelled, nil, now); err != nil {
		return false, fmt.Errorf("failed to cancel order %s: %w", order.ID, err)
	}
	if err := tx.UpdateRefundStatus(ctx, refundID, models.RefundSucceeded, now); err != nil {
		return false, fmt.Errorf("failed to mark refund %s succeeded: %w", refundID, err)
	}

	order.Status = models.OrderCancelled
	order.UpdatedAt = now
	return true, nil
}

// ConfirmPayment settles a payment to escrow in its own transaction.
func (e *Engine) ConfirmPayment(ctx context.Context, paymentID, providerPaymentID string) (*models.Order, bool, error) {
	payment, err := e.store.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, false, notFound(err, "payment not found")
	}

	var order *models.Order
	var moved bool
	err = e.store.WithTx(ctx, func(tx storage.Tx) error {
		order, err = tx.LockOrder(ctx, payment.OrderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		if _, err := tx.LockPayment(ctx, paymentID); err != nil {
			return notFound(err, "payment not found")
		}
		moved, err = e.SettleToEscrow(ctx, tx, order, paymentID, providerPaymentID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return order, moved, nil
}

// RecordPaymentStatus stores a non-paid status reported by the provider. A
// paid payment is never downgraded.
func (e *Engine) RecordPaymentStatus(ctx context.Context, paymentID string, status models.PaymentStatus, providerPaymentID string) error {
	payment, err := e.store.GetPayment(ctx, paymentID)
	if err != nil {
		return notFound(err, "payment not found")
	}
	return e.store.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.LockOrder(ctx, payment.OrderID); err != nil {
			return notFound(err, "order not found")
		}
		current, err := tx.LockPayment(ctx, paymentID)
		if err != nil {
			return notFound(err, "payment not found")
		}
		if current.Status == models.PaymentPaid || current.Status == status {
			return nil
		}
		return tx.UpdatePaymentStatus(ctx, paymentID, status, providerPaymentID)
	})
}

// CompleteRefund settles a pending refund in its own transaction.
func (e *Engine) CompleteRefund(ctx context.Context, refundID string) (*models.Order, bool, error) {
	refund, err := e.store.GetRefund(ctx, refundID)
	if err != nil {
		return nil, false, notFound(err, "refund not found")
	}

	var order *models.Order
	var moved bool
	err = e.store.WithTx(ctx, func(tx storage.Tx) error {
		order, err = tx.LockOrder(ctx, refund.OrderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		moved, err = e.SettleRefund(ctx, tx, order, refundID)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return order, moved, nil
}

// FailRefund marks a pending refund failed. The held funds stay in escrow.
func (e *Engine) FailRefund(ctx context.Context, refundID string) error {
	refund, err := e.store.GetRefund(ctx, refundID)
	if err != nil {
		return notFound(err, "refund not found")
	}
	return e.store.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := tx.LockOrder(ctx, refund.OrderID); err != nil {
			return notFound(err, "order not found")
		}
		current, err := tx.LockRefund(ctx, refundID)
		if err != nil {
			return notFound(err, "refund not found")
		}
		if current.Status != models.RefundPending {
			return nil
		}
		return tx.UpdateRefundStatus(ctx, refundID, models.RefundFailed, e.now())
	})
}

// check logs integrity violations distinctly before handing err back.
func (e *Engine) check(order *models.Order, err error) error {
	if apperrors.Is(err, apperrors.KindIntegrityViolation) {
		e.logger.Error("integrity violation during settlement",
			slog.Bool("alert", true),
			slog.String("order_id", order.ID),
			slog.String("buyer_id", order.BuyerID),
			slog.String("amount", order.Amount.StringFixed(2)),
			slog.Any("error", err),
		)
	}
	return err
}

func notFound(err error, message string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Wrap(apperrors.KindNotFound, err, message)
	}
	return err
}
