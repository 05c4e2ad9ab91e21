package gateway

import (
	"context"
	"fmt"

	"github.com/chris/student-escrow-market/pkg/config"
	"github.com/chris/student-escrow-market/pkg/ids"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/money"
)

// Mock is a provider that never leaves the process.
type Mock struct {
	merchantName string
}

// NewMock creates a Mock provider.
func NewMock(merchantName string) *Mock {
	return &Mock{merchantName: merchantName}
}

// Make sure we conform to the interface
var _ Gateway = (*Mock)(nil)

func (m *Mock) Name() string                   { return config.ProviderMock }
func (m *Mock) Live() bool                     { return false }
func (m *Mock) AllowsManualConfirmation() bool { return true }

// CreatePayment returns a pending payment with a deterministic QR payload.
func (m *Mock) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentIntent, error) {
	return &PaymentIntent{
		Provider:  config.ProviderMock,
		Status:    models.PaymentPending,
		QRPayload: fmt.Sprintf("SBP|%s|ORDER:%s|AMOUNT:%s", m.merchantName, req.OrderID, money.Format(req.Amount)),
	}, nil
}

// Refund always succeeds immediately.
func (m *Mock) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	return &RefundResult{
		Provider:         config.ProviderMock,
		ProviderRefundID: ids.Lower("refund"),
		Status:           models.RefundSucceeded,
	}, nil
}

func (m *Mock) VerifyNotification(payload map[string]any) (*Notification, error) {
	return nil, ErrNotSupported
}

func (m *Mock) PaymentState(ctx context.Context, providerPaymentID string) (*PaymentState, error) {
	return nil, ErrNotSupported
}
