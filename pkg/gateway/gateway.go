// Package gateway adapts payment providers to the order workflow. A mock
// provider synthesises QR payloads locally; the live provider talks to an
// SBP gateway over signed JSON requests.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/chris/student-escrow-market/pkg/config"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidSignature is returned when a notification token is missing or wrong.
	ErrInvalidSignature = errors.New("invalid notification signature")
	// ErrTerminalMismatch is returned when a notification names another terminal.
	ErrTerminalMismatch = errors.New("notification terminal does not match configuration")
	// ErrNotSupported is returned by providers that lack an operation.
	ErrNotSupported = errors.New("operation not supported by this provider")
	// ErrProviderUnavailable is returned when a payment's provider is not configured.
	ErrProviderUnavailable = errors.New("payment provider is not configured")
)

// PaymentRequest asks the provider for a payable QR code.
type PaymentRequest struct {
	OrderID     string
	Reference   string
	Description string
	Amount      decimal.Decimal
}

// PaymentIntent is the provider's answer to a PaymentRequest.
type PaymentIntent struct {
	Provider          string
	ProviderPaymentID string
	Status            models.PaymentStatus
	QRPayload         string
}

// RefundRequest cancels or refunds a paid payment.
type RefundRequest struct {
	ProviderPaymentID string
	Amount            decimal.Decimal
}

// RefundResult is the provider's answer to a RefundRequest.
type RefundResult struct {
	Provider         string
	ProviderRefundID string
	Status           models.RefundStatus
}

// Notification is a verified inbound webhook.
type Notification struct {
	TerminalKey       string
	ProviderPaymentID string
	OrderReference    string
	RawStatus         string
	Status            models.PaymentStatus
}

// PaymentState is the provider's current view of a payment.
type PaymentState struct {
	RawStatus string
	Status    models.PaymentStatus
}

// Gateway is a payment provider.
type Gateway interface {
	// Name identifies the provider on payment rows.
	Name() string

	// Live reports whether the provider is an external service.
	Live() bool

	// AllowsManualConfirmation reports whether buyers may confirm payments themselves.
	AllowsManualConfirmation() bool

	CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentIntent, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	VerifyNotification(payload map[string]any) (*Notification, error)
	PaymentState(ctx context.Context, providerPaymentID string) (*PaymentState, error)
}

// New builds the gateway selected by the configuration.
func New(cfg config.Payments, client *http.Client, logger *slog.Logger) Gateway {
	if cfg.LiveEnabled() {
		return NewTBank(cfg.TBank, client, logger)
	}
	return NewMock(cfg.MerchantName)
}

// RefunderFor returns the gateway able to refund a payment made through provider.
func RefunderFor(active Gateway, provider string) (Gateway, error) {
	if active.Name() == provider {
		return active, nil
	}
	if provider == config.ProviderMock {
		return NewMock(""), nil
	}
	return nil, ErrProviderUnavailable
}
