package storage

import (
	"context"

	"github.com/chris/student-escrow-market/pkg/models"
)

// WalletTx defines the wallet operations that participate in a transaction.
type WalletTx interface {
	// EnsureWallet creates a zero-balance wallet if none exists.
	EnsureWallet(ctx context.Context, userID string) error

	// LockWallet returns the wallet and holds a row lock on it.
	LockWallet(ctx context.Context, userID string) (*models.Wallet, error)

	// AdjustWallet applies the entry's deltas to the wallet and records the entry.
	AdjustWallet(ctx context.Context, entry *models.WalletEntry) error
}

// WalletReader defines read access to wallets.
type WalletReader interface {
	// GetWallet retrieves a user's wallet by their user ID.
	GetWallet(ctx context.Context, userID string) (*models.Wallet, error)

	// ListWalletEntries retrieves the most recent balance adjustments for a user.
	ListWalletEntries(ctx context.Context, userID string, limit int32) ([]models.WalletEntry, error)
}
