package postgres

import (
	"time"

	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/shopspring/decimal"
)

const (
	orderColumns   = `id, listing_id, buyer_id, seller_id, amount, status, confirmed_at, created_at, updated_at`
	paymentColumns = `id, order_id, method, status, provider, provider_payment_id, sbp_reference, qr_payload, created_at, paid_at`
	disputeColumns = `id, order_id, opened_by, reason, status, resolution, notes, created_at, resolved_at`
	refundColumns  = `id, order_id, payment_id, amount, status, provider, provider_refund_id, created_at, updated_at`
)

func scanOrder(row scanner) (*models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.ListingID, &o.BuyerID, &o.SellerID, &o.Amount, &o.Status,
		&o.ConfirmedAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func scanPayment(row scanner) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Method, &p.Status, &p.Provider, &p.ProviderPaymentID,
		&p.SBPReference, &p.QRPayload, &p.CreatedAt, &p.PaidAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanDispute(row scanner) (*models.Dispute, error) {
	var d models.Dispute
	err := row.Scan(&d.ID, &d.OrderID, &d.OpenedBy, &d.Reason, &d.Status, &d.Resolution,
		&d.Notes, &d.CreatedAt, &d.ResolvedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanRefund(row scanner) (*models.Refund, error) {
	var r models.Refund
	err := row.Scan(&r.ID, &r.OrderID, &r.PaymentID, &r.Amount, &r.Status, &r.Provider,
		&r.ProviderRefundID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// The view query returns the latest payment, dispute and refund as jsonb
// documents; these rows decode them.

type paymentDoc struct {
	ID                string               `json:"id"`
	OrderID           string               `json:"order_id"`
	Method            string               `json:"method"`
	Status            models.PaymentStatus `json:"status"`
	Provider          string               `json:"provider"`
	ProviderPaymentID *string              `json:"provider_payment_id"`
	SBPReference      string               `json:"sbp_reference"`
	QRPayload         string               `json:"qr_payload"`
	CreatedAt         time.Time            `json:"created_at"`
	PaidAt            *time.Time           `json:"paid_at"`
}

func (d *paymentDoc) model() *models.Payment {
	if d == nil {
		return nil
	}
	return &models.Payment{
		ID:                d.ID,
		OrderID:           d.OrderID,
		Method:            d.Method,
		Status:            d.Status,
		Provider:          d.Provider,
		ProviderPaymentID: d.ProviderPaymentID,
		SBPReference:      d.SBPReference,
		QRPayload:         d.QRPayload,
		CreatedAt:         d.CreatedAt.UTC(),
		PaidAt:            utcPtr(d.PaidAt),
	}
}

type disputeDoc struct {
	ID         string               `json:"id"`
	OrderID    string               `json:"order_id"`
	OpenedBy   string               `json:"opened_by"`
	Reason     string               `json:"reason"`
	Status     models.DisputeStatus `json:"status"`
	Resolution *models.Resolution   `json:"resolution"`
	Notes      string               `json:"notes"`
	CreatedAt  time.Time            `json:"created_at"`
	ResolvedAt *time.Time           `json:"resolved_at"`
}

func (d *disputeDoc) model() *models.Dispute {
	if d == nil {
		return nil
	}
	return &models.Dispute{
		ID:         d.ID,
		OrderID:    d.OrderID,
		OpenedBy:   d.OpenedBy,
		Reason:     d.Reason,
		Status:     d.Status,
		Resolution: d.Resolution,
		Notes:      d.Notes,
		CreatedAt:  d.CreatedAt.UTC(),
		ResolvedAt: utcPtr(d.ResolvedAt),
	}
}

type refundDoc struct {
	ID               string              `json:"id"`
	OrderID          string              `json:"order_id"`
	PaymentID        string              `json:"payment_id"`
	Amount           decimal.Decimal     `json:"amount"`
	Status           models.RefundStatus `json:"status"`
	Provider         string              `json:"provider"`
	ProviderRefundID *string             `json:"provider_refund_id"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func (d *refundDoc) model() *models.Refund {
	if d == nil {
		return nil
	}
	return &models.Refund{
		ID:               d.ID,
		OrderID:          d.OrderID,
		PaymentID:        d.PaymentID,
		Amount:           d.Amount,
		Status:           d.Status,
		Provider:         d.Provider,
		ProviderRefundID: d.ProviderRefundID,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
