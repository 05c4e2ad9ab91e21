package wallets_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chris/student-escrow-market/pkg/api"
	"github.com/chris/student-escrow-market/pkg/handlers/wallets"
	"github.com/chris/student-escrow-market/pkg/markettest"
	"github.com/chris/student-escrow-market/pkg/middleware"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/money"
	"github.com/chris/student-escrow-market/pkg/storage"
	"github.com/chris/student-escrow-market/pkg/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asCaller(req *http.Request, p models.Principal) *http.Request {
	return req.WithContext(middleware.WithPrincipal(req.Context(), p))
}

func TestGetMyWallet(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		store := markettest.NewStore()
		h := wallets.NewWalletsHandler(store, wallet.NewLedger(), markettest.Logger())

		rr := httptest.NewRecorder()
		h.GetMyWallet(rr, asCaller(httptest.NewRequest(http.MethodGet, "/api/wallets/me", nil), markettest.Buyer))

		assert.Equal(t, http.StatusOK, rr.Code)
		var got api.Wallet
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		assert.Equal(t, markettest.Buyer.ID, got.UserId.String())
		assert.Equal(t, "0.00", got.Available)
		assert.Equal(t, "0.00", got.Held)
	})

	t.Run("Anonymous", func(t *testing.T) {
		h := wallets.NewWalletsHandler(markettest.NewStore(), wallet.NewLedger(), markettest.Logger())

		rr := httptest.NewRecorder()
		h.GetMyWallet(rr, httptest.NewRequest(http.MethodGet, "/api/wallets/me", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestListMyWalletEntries(t *testing.T) {
	store := markettest.NewStore()
	ledger := wallet.NewLedger()
	ctx := context.Background()
	require.NoError(t, store.WithTx(ctx, func(tx storage.Tx) error {
		if _, err := ledger.EnsureWallet(ctx, tx, markettest.Seller.ID); err != nil {
			return err
		}
		return ledger.CreditAvailable(ctx, tx, markettest.Seller.ID, "", money.MustParse("75.50"), models.ReasonReleaseCredit)
	}))
	h := wallets.NewWalletsHandler(store, ledger, markettest.Logger())

	t.Run("Success", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ListMyWalletEntries(rr, asCaller(httptest.NewRequest(http.MethodGet, "/api/wallets/me/entries", nil), markettest.Seller), api.ListMyWalletEntriesParams{})

		assert.Equal(t, http.StatusOK, rr.Code)
		var got api.WalletEntryList
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
		require.Len(t, got.Entries, 1)
		assert.Equal(t, "75.50", got.Entries[0].AvailableDelta)
		assert.Equal(t, models.ReasonReleaseCredit, got.Entries[0].Reason)
	})

	t.Run("Limit Out Of Range", func(t *testing.T) {
		limit := int32(500)
		rr := httptest.NewRecorder()
		h.ListMyWalletEntries(rr, asCaller(httptest.NewRequest(http.MethodGet, "/api/wallets/me/entries", nil), markettest.Seller), api.ListMyWalletEntriesParams{Limit: &limit})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
