package gateway

import (
	"strings"

	"github.com/chris/student-escrow-market/pkg/models"
)

var cancelledStatuses = map[string]bool{
	"CANCELLED":        true,
	"CANCELED":         true,
	"REJECTED":         true,
	"DEADLINE_EXPIRED": true,
	"REVERSED":         true,
}

var refundedStatuses = map[string]bool{
	"REVERSED":         true,
	"REFUNDED":         true,
	"PARTIAL_REFUNDED": true,
}

// MapPaymentStatus maps a gateway status to a payment status.
func MapPaymentStatus(status string) models.PaymentStatus {
	status = strings.ToUpper(strings.TrimSpace(status))
	switch {
	case status == "CONFIRMED":
		return models.PaymentPaid
	case cancelledStatuses[status]:
		return models.PaymentCancelled
	default:
		return models.PaymentPending
	}
}

// MapRefundStatus maps a cancel response to a refund status.
func MapRefundStatus(success bool, status string) models.RefundStatus {
	switch {
	case success:
		return models.RefundSucceeded
	case strings.TrimSpace(status) != "":
		return models.RefundFailed
	default:
		return models.RefundPending
	}
}

// IsRefunded reports whether a payment status means the money went back to the payer.
func IsRefunded(status string) bool {
	return refundedStatuses[strings.ToUpper(strings.TrimSpace(status))]
}
