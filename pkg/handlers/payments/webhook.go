package payments

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/chris/student-escrow-market/pkg/apperrors"
)

// NotificationHandler applies a verified gateway notification.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, payload map[string]any) error
}

// WebhookHandler receives payment provider notifications.
type WebhookHandler struct {
	Notifications NotificationHandler
	Logger        *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(notifications NotificationHandler, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{Notifications: notifications, Logger: logger}
}

// HandleTBankWebhook always answers 200 OK so the provider does not retry;
// failures are logged.
func (h *WebhookHandler) HandleTBankWebhook(w http.ResponseWriter, r *http.Request) {
	defer func() {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "OK")
	}()

	var payload map[string]any
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		h.Logger.Warn("malformed payment notification", slog.Any("error", err))
		return
	}

	if err := h.Notifications.HandleNotification(r.Context(), payload); err != nil {
		attrs := []any{slog.Any("error", err), slog.String("kind", string(apperrors.KindOf(err)))}
		switch apperrors.KindOf(err) {
		case apperrors.KindIntegrityViolation:
			h.Logger.Error("payment notification failed", append(attrs, slog.Bool("alert", true))...)
		case apperrors.KindInternal, apperrors.KindUpstreamGateway:
			h.Logger.Error("payment notification failed", attrs...)
		default:
			h.Logger.Warn("payment notification rejected", attrs...)
		}
	}
}
