// Package authz derives what a caller may do with an order.
package authz

import (
	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/models"
)

// Capability is one permitted action on an order.
type Capability uint16

const (
	CanView Capability = 1 << iota
	CanPay
	CanConfirmReceipt
	CanCancel
	CanDispute
	CanMessage
	CanResolve
	CanSeePaymentDetails
)

// Capabilities is a set of Capability values.
type Capabilities Capability

// Has reports whether c contains every capability in want.
func (c Capabilities) Has(want Capability) bool {
	return Capability(c)&want == want
}

// For derives the caller's capabilities over the order. Blocked callers get
// read access to their own orders only.
func For(caller models.Principal, order *models.Order) Capabilities {
	var caps Capability
	isBuyer := caller.ID == order.BuyerID
	isSeller := caller.ID == order.SellerID
	staff := caller.IsStaff()

	if isBuyer || isSeller || staff {
		caps |= CanView
	}
	if isBuyer {
		caps |= CanSeePaymentDetails
	}
	if !caller.IsActive() {
		return Capabilities(caps)
	}
	if isBuyer {
		caps |= CanPay | CanConfirmReceipt | CanCancel
	}
	if isBuyer || isSeller {
		caps |= CanDispute
	}
	if isBuyer || isSeller || staff {
		caps |= CanMessage
	}
	if staff {
		caps |= CanResolve
	}
	return Capabilities(caps)
}

// Require returns a Forbidden error unless the caller holds want over the order.
func Require(caller models.Principal, order *models.Order, want Capability) error {
	if err := RequireActive(caller); err != nil && want != CanView {
		return err
	}
	if !For(caller, order).Has(want) {
		return apperrors.Forbidden("you do not have access to this order")
	}
	return nil
}

// RequireActive rejects callers whose account is not active.
func RequireActive(caller models.Principal) error {
	if caller.ID == "" {
		return apperrors.Unauthorized("authentication required")
	}
	if !caller.IsActive() {
		return apperrors.Forbidden("account is blocked")
	}
	return nil
}

// RequireStaff rejects callers who are not active moderators or admins.
func RequireStaff(caller models.Principal) error {
	if err := RequireActive(caller); err != nil {
		return err
	}
	if !caller.IsStaff() {
		return apperrors.Forbidden("staff access required")
	}
	return nil
}
