package wallets

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/chris/student-escrow-market/pkg/api"
	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/mapping"
	"github.com/chris/student-escrow-market/pkg/middleware"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/render"
	"github.com/chris/student-escrow-market/pkg/storage"
)

// Entry page bounds.
const (
	DefaultEntriesLimit = 50
	MaxEntriesLimit     = 200
)

// WalletStore is the storage the wallet endpoints read.
type WalletStore interface {
	storage.Transactor
	storage.WalletReader
}

// Snapshotter ensures and reads a wallet.
type Snapshotter interface {
	Snapshot(ctx context.Context, store interface {
		storage.Transactor
		storage.WalletReader
	}, userID string) (*models.Wallet, error)
}

// WalletsHandler holds the dependencies for wallet-related handlers.
type WalletsHandler struct {
	Store  WalletStore
	Ledger Snapshotter
	Logger *slog.Logger
}

// NewWalletsHandler creates a new WalletsHandler.
func NewWalletsHandler(store WalletStore, ledger Snapshotter, logger *slog.Logger) *WalletsHandler {
	return &WalletsHandler{Store: store, Ledger: ledger, Logger: logger}
}

// GetMyWallet returns the caller's wallet, creating an empty one on first use.
func (h *WalletsHandler) GetMyWallet(w http.ResponseWriter, r *http.Request) {
	caller := middleware.PrincipalFrom(r.Context())
	if caller.ID == "" {
		render.Error(w, r, h.Logger, apperrors.Unauthorized("authentication required"))
		return
	}

	wallet, err := h.Ledger.Snapshot(r.Context(), h.Store, caller.ID)
	if err != nil {
		render.Error(w, r, h.Logger, err)
		return
	}
	render.JSON(w, http.StatusOK, mapping.ToApiWallet(wallet))
}

// ListMyWalletEntries returns the caller's most recent balance adjustments.
func (h *WalletsHandler) ListMyWalletEntries(w http.ResponseWriter, r *http.Request, params api.ListMyWalletEntriesParams) {
	caller := middleware.PrincipalFrom(r.Context())
	if caller.ID == "" {
		render.Error(w, r, h.Logger, apperrors.Unauthorized("authentication required"))
		return
	}

	limit := int32(DefaultEntriesLimit)
	if params.Limit != nil {
		limit = *params.Limit
	}
	if limit < 1 || limit > MaxEntriesLimit {
		render.Error(w, r, h.Logger, apperrors.Validation("limit must be between 1 and 200"))
		return
	}

	entries, err := h.Store.ListWalletEntries(r.Context(), caller.ID, limit)
	if err != nil {
		render.Error(w, r, h.Logger, err)
		return
	}
	render.JSON(w, http.StatusOK, api.WalletEntryList{Entries: mapping.ToApiWalletEntries(entries)})
}
