// Package wallet applies balance adjustments to user wallets. It never opens
// a transaction of its own: every call joins the caller's storage.Tx.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/ids"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/money"
	"github.com/chris/student-escrow-market/pkg/storage"
	"github.com/shopspring/decimal"
)

// ErrInsufficientHeldFunds is returned when a release would drive a held balance below zero.
var ErrInsufficientHeldFunds = errors.New("insufficient held funds")

// Ledger holds funds in escrow and moves them out again.
type Ledger struct {
	now func() time.Time
}

// NewLedger creates a new Ledger.
func NewLedger() *Ledger {
	return &Ledger{now: func() time.Time { return time.Now().UTC() }}
}

// EnsureWallet creates the wallet if needed and returns it locked.
func (l *Ledger) EnsureWallet(ctx context.Context, tx storage.WalletTx, userID string) (*models.Wallet, error) {
	if err := tx.EnsureWallet(ctx, userID); err != nil {
		return nil, fmt.Errorf("failed to ensure wallet for %s: %w", userID, err)
	}
	w, err := tx.LockWallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallet for %s: %w", userID, err)
	}
	return w, nil
}

// HoldFunds increases the held balance. The available balance is untouched:
// held funds come from the payment, not from an existing balance.
func (l *Ledger) HoldFunds(ctx context.Context, tx storage.WalletTx, userID, orderID string, amount decimal.Decimal) error {
	if err := validate(amount); err != nil {
		return err
	}
	if _, err := l.EnsureWallet(ctx, tx, userID); err != nil {
		return err
	}
	return l.apply(ctx, tx, userID, orderID, decimal.Zero, amount, models.ReasonEscrowHold)
}

// ReleaseFromHold decreases the held balance. It fails with an integrity
// violation when the held balance is smaller than amount.
func (l *Ledger) ReleaseFromHold(ctx context.Context, tx storage.WalletTx, userID, orderID string, amount decimal.Decimal, reason string) error {
	if err := validate(amount); err != nil {
		return err
	}
	w, err := tx.LockWallet(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.Wrap(apperrors.KindIntegrityViolation, ErrInsufficientHeldFunds,
				fmt.Sprintf("wallet %s missing while releasing held funds", userID))
		}
		return fmt.Errorf("failed to lock wallet for %s: %w", userID, err)
	}
	if w.Held.LessThan(amount) {
		return apperrors.Wrap(apperrors.KindIntegrityViolation, ErrInsufficientHeldFunds,
			fmt.Sprintf("held balance %s of %s is below %s", money.Format(w.Held), userID, money.Format(amount)))
	}
	return l.apply(ctx, tx, userID, orderID, decimal.Zero, amount.Neg(), reason)
}

// CreditAvailable increases the available balance.
func (l *Ledger) CreditAvailable(ctx context.Context, tx storage.WalletTx, userID, orderID string, amount decimal.Decimal, reason string) error {
	if err := validate(amount); err != nil {
		return err
	}
	if _, err := l.EnsureWallet(ctx, tx, userID); err != nil {
		return err
	}
	return l.apply(ctx, tx, userID, orderID, amount, decimal.Zero, reason)
}

// Release moves amount from the buyer's held balance to the seller's
// available balance. The buyer wallet is locked before the seller wallet.
func (l *Ledger) Release(ctx context.Context, tx storage.WalletTx, buyerID, sellerID, orderID string, amount decimal.Decimal) error {
	if err := l.ReleaseFromHold(ctx, tx, buyerID, orderID, amount, models.ReasonReleaseDebit); err != nil {
		return err
	}
	return l.CreditAvailable(ctx, tx, sellerID, orderID, amount, models.ReasonReleaseCredit)
}

// Refund moves amount from the buyer's held balance back to the buyer's
// available balance.
func (l *Ledger) Refund(ctx context.Context, tx storage.WalletTx, buyerID, orderID string, amount decimal.Decimal) error {
	if err := l.ReleaseFromHold(ctx, tx, buyerID, orderID, amount, models.ReasonRefundDebit); err != nil {
		return err
	}
	return l.CreditAvailable(ctx, tx, buyerID, orderID, amount, models.ReasonRefundCredit)
}

// Snapshot ensures the user's wallet exists and returns its committed state.
func (l *Ledger) Snapshot(ctx context.Context, store interface {
	storage.Transactor
	storage.WalletReader
}, userID string) (*models.Wallet, error) {
	err := store.WithTx(ctx, func(tx storage.Tx) error {
		return tx.EnsureWallet(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure wallet: %w", err)
	}
	w, err := store.GetWallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

func (l *Ledger) apply(ctx context.Context, tx storage.WalletTx, userID, orderID string, availableDelta, heldDelta decimal.Decimal, reason string) error {
	entry := &models.WalletEntry{
		ID:             ids.New(),
		UserID:         userID,
		OrderID:        orderID,
		AvailableDelta: availableDelta,
		HeldDelta:      heldDelta,
		Reason:         reason,
		CreatedAt:      l.now(),
	}
	if err := tx.AdjustWallet(ctx, entry); err != nil {
		return fmt.Errorf("failed to adjust wallet for %s: %w", userID, err)
	}
	return nil
}

func validate(amount decimal.Decimal) error {
	if err := money.Validate(amount); err != nil {
		return apperrors.Wrap(apperrors.KindValidation, err, "invalid amount")
	}
	return nil
}
