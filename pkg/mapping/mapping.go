// Package mapping converts domain models to API wire types.
package mapping

import (
	"github.com/chris/student-escrow-market/pkg/api"
	"github.com/chris/student-escrow-market/pkg/authz"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/google/uuid"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"
)

// id parses a stored identifier. Stored ids are always UUIDs, so a parse
// failure yields the zero UUID rather than an error.
func id(s string) openapi_types.UUID {
	u, _ := uuid.Parse(s)
	return u
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ToApiOrder converts an order view to its projection for the caller. Only
// callers allowed to see payment details receive the QR payload.
func ToApiOrder(caller models.Principal, view *models.OrderView) api.Order {
	o := view.Order
	out := api.Order{
		Id:          id(o.ID),
		ListingId:   id(o.ListingID),
		BuyerId:     id(o.BuyerID),
		SellerId:    id(o.SellerID),
		Amount:      amount(o.Amount),
		Status:      api.OrderStatus(o.Status),
		ConfirmedAt: o.ConfirmedAt,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	if view.Payment != nil {
		out.Payment = toApiPayment(view.Payment, authz.For(caller, &o).Has(authz.CanSeePaymentDetails))
	}
	if view.Dispute != nil {
		d := ToApiDispute(view.Dispute)
		out.Dispute = &d
	}
	if view.Refund != nil {
		out.Refund = toApiRefund(view.Refund)
	}
	return out
}

// ToApiOrders converts a list of views.
func ToApiOrders(caller models.Principal, views []models.OrderView) []api.Order {
	out := make([]api.Order, 0, len(views))
	for i := range views {
		out = append(out, ToApiOrder(caller, &views[i]))
	}
	return out
}

func toApiPayment(p *models.Payment, details bool) *api.Payment {
	out := &api.Payment{
		Id:                id(p.ID),
		Method:            p.Method,
		Status:            string(p.Status),
		Provider:          p.Provider,
		ProviderPaymentId: p.ProviderPaymentID,
		SbpReference:      p.SBPReference,
		CreatedAt:         p.CreatedAt,
		PaidAt:            p.PaidAt,
	}
	if details {
		qr := p.QRPayload
		out.QrPayload = &qr
	}
	return out
}

// ToApiDispute converts a dispute.
func ToApiDispute(d *models.Dispute) api.Dispute {
	out := api.Dispute{
		Id:         id(d.ID),
		OrderId:    id(d.OrderID),
		OpenedBy:   id(d.OpenedBy),
		Reason:     d.Reason,
		Status:     string(d.Status),
		CreatedAt:  d.CreatedAt,
		ResolvedAt: d.ResolvedAt,
	}
	if d.Resolution != nil {
		r := string(*d.Resolution)
		out.Resolution = &r
	}
	if d.Notes != "" {
		notes := d.Notes
		out.Notes = &notes
	}
	return out
}

// ToApiDisputeSummaries converts the staff dispute listing.
func ToApiDisputeSummaries(items []models.DisputeSummary) []api.DisputeSummary {
	out := make([]api.DisputeSummary, 0, len(items))
	for i := range items {
		s := &items[i]
		out = append(out, api.DisputeSummary{
			Dispute:     ToApiDispute(&s.Dispute),
			OrderAmount: amount(s.OrderAmount),
			OrderStatus: api.OrderStatus(s.OrderStatus),
			BuyerId:     id(s.BuyerID),
			SellerId:    id(s.SellerID),
		})
	}
	return out
}

func toApiRefund(r *models.Refund) *api.Refund {
	return &api.Refund{
		Id:        id(r.ID),
		PaymentId: id(r.PaymentID),
		Amount:    amount(r.Amount),
		Status:    string(r.Status),
		Provider:  r.Provider,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// ToApiWallet converts a domain Wallet model to an API Wallet model.
func ToApiWallet(wallet *models.Wallet) *api.Wallet {
	return &api.Wallet{
		UserId:    id(wallet.UserID),
		Available: amount(wallet.Available),
		Held:      amount(wallet.Held),
		UpdatedAt: wallet.UpdatedAt,
	}
}

// ToApiWalletEntries converts balance adjustments.
func ToApiWalletEntries(entries []models.WalletEntry) []api.WalletEntry {
	out := make([]api.WalletEntry, 0, len(entries))
	for _, e := range entries {
		entry := api.WalletEntry{
			Id:             id(e.ID),
			AvailableDelta: amount(e.AvailableDelta),
			HeldDelta:      amount(e.HeldDelta),
			Reason:         e.Reason,
			CreatedAt:      e.CreatedAt,
		}
		if e.OrderID != "" {
			orderID := id(e.OrderID)
			entry.OrderId = &orderID
		}
		out = append(out, entry)
	}
	return out
}

// ToApiMessage converts an order message.
func ToApiMessage(m *models.OrderMessage) api.Message {
	return api.Message{
		Id:        id(m.ID),
		OrderId:   id(m.OrderID),
		SenderId:  id(m.SenderID),
		Message:   m.Message,
		CreatedAt: m.CreatedAt,
	}
}

// ToApiMessages converts an order thread.
func ToApiMessages(messages []models.OrderMessage) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for i := range messages {
		out = append(out, ToApiMessage(&messages[i]))
	}
	return out
}
