package authz

import (
	"testing"

	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestFor(t *testing.T) {
	order := &models.Order{ID: "o-1", BuyerID: "buyer", SellerID: "seller"}

	t.Run("Buyer", func(t *testing.T) {
		caps := For(models.Principal{ID: "buyer", Role: models.RoleUser, Status: models.UserActive}, order)
		assert.True(t, caps.Has(CanView|CanPay|CanConfirmReceipt|CanCancel|CanDispute|CanMessage|CanSeePaymentDetails))
		assert.False(t, caps.Has(CanResolve))
	})

	t.Run("Seller", func(t *testing.T) {
		caps := For(models.Principal{ID: "seller", Role: models.RoleUser, Status: models.UserActive}, order)
		assert.True(t, caps.Has(CanView|CanDispute|CanMessage))
		assert.False(t, caps.Has(CanPay))
		assert.False(t, caps.Has(CanConfirmReceipt))
		assert.False(t, caps.Has(CanSeePaymentDetails))
	})

	t.Run("Moderator", func(t *testing.T) {
		caps := For(models.Principal{ID: "mod", Role: models.RoleModerator, Status: models.UserActive}, order)
		assert.True(t, caps.Has(CanView|CanMessage|CanResolve))
		assert.False(t, caps.Has(CanDispute))
	})

	t.Run("Stranger", func(t *testing.T) {
		caps := For(models.Principal{ID: "x", Role: models.RoleUser, Status: models.UserActive}, order)
		assert.False(t, caps.Has(CanView))
	})

	t.Run("Blocked Buyer", func(t *testing.T) {
		caps := For(models.Principal{ID: "buyer", Role: models.RoleUser, Status: models.UserBlocked}, order)
		assert.True(t, caps.Has(CanView))
		assert.False(t, caps.Has(CanConfirmReceipt))
	})
}

func TestRequire(t *testing.T) {
	order := &models.Order{ID: "o-1", BuyerID: "buyer", SellerID: "seller"}

	err := Require(models.Principal{ID: "seller", Status: models.UserActive}, order, CanCancel)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	err = Require(models.Principal{ID: "buyer", Status: models.UserBlocked}, order, CanCancel)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))

	err = Require(models.Principal{ID: "buyer", Status: models.UserBlocked}, order, CanView)
	assert.NoError(t, err)

	assert.NoError(t, Require(models.Principal{ID: "buyer", Status: models.UserActive}, order, CanCancel))
}

func TestRequireStaff(t *testing.T) {
	assert.Equal(t, apperrors.KindUnauthorized, apperrors.KindOf(RequireStaff(models.Principal{})))
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(RequireStaff(models.Principal{ID: "u", Role: models.RoleUser, Status: models.UserActive})))
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(RequireStaff(models.Principal{ID: "a", Role: models.RoleAdmin, Status: models.UserBlocked})))
	assert.NoError(t, RequireStaff(models.Principal{ID: "a", Role: models.RoleAdmin, Status: models.UserActive}))
}
