package postgres

import (
	"context"
	"fmt"

	"github.com/chris/student-escrow-market/pkg/models"
)

const walletColumns = `user_id, available, held, updated_at`

func scanWallet(row scanner) (*models.Wallet, error) {
	var w models.Wallet
	if err := row.Scan(&w.UserID, &w.Available, &w.Held, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

// EnsureWallet creates a zero-balance wallet if none exists.
func (d db) EnsureWallet(ctx context.Context, userID string) error {
	_, err := d.q.Exec(ctx, `
		INSERT INTO wallets (user_id, available, held, updated_at)
		VALUES ($1, 0, 0, now())
		ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return mapErr(fmt.Errorf("failed to ensure wallet for user %s: %w", userID, err))
	}
	return nil
}

// LockWallet returns the wallet and holds a row lock on it.
func (d db) LockWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	w, err := scanWallet(d.q.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to lock wallet for user %s: %w", userID, err))
	}
	return w, nil
}

// AdjustWallet applies the entry's deltas and records the entry. The
// balance CHECK constraints reject a negative result.
func (d db) AdjustWallet(ctx context.Context, entry *models.WalletEntry) error {
	tag, err := d.q.Exec(ctx, `
		UPDATE wallets
		SET available = available + $2, held = held + $3, updated_at = $4
		WHERE user_id = $1`,
		entry.UserID, entry.AvailableDelta, entry.HeldDelta, entry.CreatedAt)
	if err != nil {
		return mapErr(fmt.Errorf("failed to adjust wallet for user %s: %w", entry.UserID, err))
	}
	if tag.RowsAffected() == 0 {
		return mapErr(fmt.Errorf("failed to adjust wallet for user %s: %w", entry.UserID, errNoRows))
	}

	_, err = d.q.Exec(ctx, `
		INSERT INTO wallet_entries (id, user_id, order_id, available_delta, held_delta, reason, created_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7)`,
		entry.ID, entry.UserID, entry.OrderID, entry.AvailableDelta, entry.HeldDelta, entry.Reason, entry.CreatedAt)
	if err != nil {
		return mapErr(fmt.Errorf("failed to record wallet entry: %w", err))
	}
	return nil
}

// GetWallet retrieves a user's wallet.
func (d db) GetWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	w, err := scanWallet(d.q.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to get wallet for user %s: %w", userID, err))
	}
	return w, nil
}

// ListWalletEntries returns the user's most recent entries.
func (d db) ListWalletEntries(ctx context.Context, userID string, limit int32) ([]models.WalletEntry, error) {
	rows, err := d.q.Query(ctx, `
		SELECT id, user_id, COALESCE(order_id::text, ''), available_delta, held_delta, reason, created_at
		FROM wallet_entries
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to list wallet entries: %w", err))
	}
	defer rows.Close()

	var entries []models.WalletEntry
	for rows.Next() {
		var e models.WalletEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.OrderID, &e.AvailableDelta, &e.HeldDelta, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, mapErr(rows.Err())
}
