package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/config"
	"github.com/chris/student-escrow-market/pkg/money"
)

// TBank is the live SBP gateway client.
type TBank struct {
	cfg    config.TBank
	client *http.Client
	signer Signer
	logger *slog.Logger
}

// NewTBank creates a TBank client. A nil client gets one with the configured
// timeout; a nil logger discards.
func NewTBank(cfg config.TBank, client *http.Client, logger *slog.Logger) *TBank {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TBank{
		cfg:    cfg,
		client: client,
		signer: Signer{Secret: cfg.Password, Mode: SecretAsField},
		logger: logger.With(slog.String("gateway", config.ProviderTBank)),
	}
}

// Make sure we conform to the interface
var _ Gateway = (*TBank)(nil)

func (g *TBank) Name() string                   { return config.ProviderTBank }
func (g *TBank) Live() bool                     { return true }
func (g *TBank) AllowsManualConfirmation() bool { return g.cfg.AllowManualConfirm }

// CreatePayment registers the payment and fetches its QR payload.
func (g *TBank) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentIntent, error) {
	body := map[string]any{
		"Amount":      money.ToMinorUnits(req.Amount),
		"OrderId":     req.Reference,
		"Description": req.Description,
	}
	if g.cfg.NotificationURL != "" {
		body["NotificationURL"] = g.cfg.NotificationURL
	}

	initResp, err := g.call(ctx, "Init", body)
	if err != nil {
		return nil, err
	}
	paymentID, ok := scalarString(initResp["PaymentId"])
	if !ok || paymentID == "" {
		return nil, g.malformed("Init", "PaymentId")
	}
	status, _ := scalarString(initResp["Status"])

	qrResp, err := g.call(ctx, "GetQr", map[string]any{
		"PaymentId": paymentID,
		"DataType":  "PAYLOAD",
	})
	if err != nil {
		return nil, err
	}
	payload, ok := qrResp["Data"].(string)
	if !ok || payload == "" {
		return nil, g.malformed("GetQr", "Data")
	}

	return &PaymentIntent{
		Provider:          config.ProviderTBank,
		ProviderPaymentID: paymentID,
		Status:            MapPaymentStatus(status),
		QRPayload:         payload,
	}, nil
}

// Refund cancels the payment for the given amount.
func (g *TBank) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	body := map[string]any{
		"PaymentId": req.ProviderPaymentID,
		"Amount":    money.ToMinorUnits(req.Amount),
	}
	if g.cfg.QRMemberID != "" {
		body["QrMemberId"] = g.cfg.QRMemberID
	}

	resp, err := g.call(ctx, "Cancel", body)
	if err != nil {
		return nil, err
	}
	success, _ := resp["Success"].(bool)
	status, _ := scalarString(resp["Status"])
	refundID, _ := scalarString(resp["PaymentId"])

	return &RefundResult{
		Provider:         config.ProviderTBank,
		ProviderRefundID: refundID,
		Status:           MapRefundStatus(success, status),
	}, nil
}

// VerifyNotification checks the terminal and the token of an inbound webhook.
func (g *TBank) VerifyNotification(payload map[string]any) (*Notification, error) {
	terminal, _ := scalarString(payload["TerminalKey"])
	if terminal != g.cfg.TerminalKey {
		return nil, ErrTerminalMismatch
	}
	token, ok := payload[tokenField].(string)
	if !ok || token == "" {
		return nil, ErrInvalidSignature
	}
	if !g.signer.Verify(payload, token) {
		return nil, ErrInvalidSignature
	}

	status, _ := scalarString(payload["Status"])
	paymentID, _ := scalarString(payload["PaymentId"])
	reference, _ := scalarString(payload["OrderId"])
	return &Notification{
		TerminalKey:       terminal,
		ProviderPaymentID: paymentID,
		OrderReference:    reference,
		RawStatus:         status,
		Status:            MapPaymentStatus(status),
	}, nil
}

// PaymentState asks the gateway for the payment's current status.
func (g *TBank) PaymentState(ctx context.Context, providerPaymentID string) (*PaymentState, error) {
	resp, err := g.call(ctx, "GetState", map[string]any{"PaymentId": providerPaymentID})
	if err != nil {
		return nil, err
	}
	status, ok := scalarString(resp["Status"])
	if !ok {
		return nil, g.malformed("GetState", "Status")
	}
	return &PaymentState{RawStatus: status, Status: MapPaymentStatus(status)}, nil
}

// call signs body and posts it to the method endpoint.
func (g *TBank) call(ctx context.Context, method string, body map[string]any) (map[string]any, error) {
	body["TerminalKey"] = g.cfg.TerminalKey
	body[tokenField] = g.signer.Token(body)

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.APIURL+"/"+method, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Warn("payment gateway request failed", "method", method, "error", err)
		return nil, apperrors.Wrap(apperrors.KindUpstreamGateway, err, "payment gateway is unavailable")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUpstreamGateway, err, "failed to read payment gateway response")
	}

	var out map[string]any
	dec := json.NewDecoder(bytes.NewReader(respBody))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		if resp.StatusCode >= 300 {
			return nil, g.upstream(method, fmt.Sprintf("HTTP %d", resp.StatusCode))
		}
		return nil, apperrors.Wrap(apperrors.KindUpstreamGateway, err, "payment gateway returned malformed data")
	}

	if success, ok := out["Success"].(bool); resp.StatusCode >= 300 || (ok && !success) {
		msg, _ := scalarString(out["Message"])
		if msg == "" {
			msg, _ = scalarString(out["Details"])
		}
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return nil, g.upstream(method, msg)
	}

	return out, nil
}

func (g *TBank) upstream(method, msg string) error {
	g.logger.Warn("payment gateway rejected request", "method", method, "message", msg)
	return apperrors.Wrap(apperrors.KindUpstreamGateway, errors.New(msg), "payment gateway error: "+msg)
}

func (g *TBank) malformed(method, field string) error {
	g.logger.Warn("payment gateway response missing field", "method", method, "field", field)
	return apperrors.New(apperrors.KindUpstreamGateway, fmt.Sprintf("payment gateway returned malformed data: %s without %s", method, field))
}
