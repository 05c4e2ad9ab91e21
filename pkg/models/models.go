package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus defines the possible states of an order.
type OrderStatus string

const (
	OrderPendingPayment OrderStatus = "pending_payment"
	OrderEscrow         OrderStatus = "escrow"
	OrderReleased       OrderStatus = "released"
	OrderCancelled      OrderStatus = "cancelled"
)

// IsOpen reports whether the order still blocks a new order for the same listing and buyer.
func (s OrderStatus) IsOpen() bool {
	return s == OrderPendingPayment || s == OrderEscrow
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderReleased || s == OrderCancelled
}

// PaymentStatus defines the possible states of a payment attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

// PaymentMethodSBPQR is the only payment method: a bank-transfer QR code.
const PaymentMethodSBPQR = "sbp_qr"

// DisputeStatus defines the possible states of a dispute.
type DisputeStatus string

const (
	DisputeOpen      DisputeStatus = "open"
	DisputeResolved  DisputeStatus = "resolved"
	DisputeCancelled DisputeStatus = "cancelled"
)

// Valid reports whether s is a known dispute status.
func (s DisputeStatus) Valid() bool {
	switch s {
	case DisputeOpen, DisputeResolved, DisputeCancelled:
		return true
	}
	return false
}

// Resolution is the outcome chosen by staff for a dispute.
type Resolution string

const (
	ResolutionRefund  Resolution = "refund"
	ResolutionRelease Resolution = "release"
)

// Valid reports whether r is a known resolution.
func (r Resolution) Valid() bool {
	return r == ResolutionRefund || r == ResolutionRelease
}

// RefundStatus defines the possible states of a refund.
type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundSucceeded RefundStatus = "succeeded"
	RefundFailed    RefundStatus = "failed"
	RefundCancelled RefundStatus = "cancelled"
)

// Role is the platform role of a user.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// UserStatus is the account status of a user.
type UserStatus string

const (
	UserActive  UserStatus = "active"
	UserBlocked UserStatus = "blocked"
)

// ListingStatus is the moderation status of a listing.
type ListingStatus string

const (
	ListingPending  ListingStatus = "pending"
	ListingApproved ListingStatus = "approved"
	ListingRejected ListingStatus = "rejected"
)

// Principal is the authenticated caller.
type Principal struct {
	ID     string
	Role   Role
	Status UserStatus
}

// IsStaff reports whether the principal may moderate.
func (p Principal) IsStaff() bool {
	return p.Role == RoleModerator || p.Role == RoleAdmin
}

// IsActive reports whether the principal may mutate state.
func (p Principal) IsActive() bool {
	return p.Status == UserActive
}

// Listing is the part of a listing needed to open an order.
type Listing struct {
	ID          string
	Title       string
	Price       decimal.Decimal
	Status      ListingStatus
	OwnerID     string
	OwnerStatus UserStatus
}

// Wallet represents the internal domain model for a user's wallet.
type Wallet struct {
	UserID    string
	Available decimal.Decimal
	Held      decimal.Decimal
	UpdatedAt time.Time
}

// WalletEntry records one balance adjustment.
type WalletEntry struct {
	ID             string
	UserID         string
	OrderID        string
	AvailableDelta decimal.Decimal
	HeldDelta      decimal.Decimal
	Reason         string
	CreatedAt      time.Time
}

// Entry reasons.
const (
	ReasonEscrowHold    = "escrow_hold"
	ReasonReleaseDebit  = "release_debit"
	ReasonReleaseCredit = "release_credit"
	ReasonRefundDebit   = "refund_debit"
	ReasonRefundCredit  = "refund_credit"
)

// Order is one purchase attempt of one listing by one buyer.
type Order struct {
	ID          string
	ListingID   string
	BuyerID     string
	SellerID    string
	Amount      decimal.Decimal
	Status      OrderStatus
	ConfirmedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Payment is one payment attempt against an order.
type Payment struct {
	ID                string
	OrderID           string
	Method            string
	Status            PaymentStatus
	Provider          string
	ProviderPaymentID *string
	SBPReference      string
	QRPayload         string
	CreatedAt         time.Time
	PaidAt            *time.Time
}

// Dispute is a participant's complaint about an order in escrow.
type Dispute struct {
	ID         string
	OrderID    string
	OpenedBy   string
	Reason     string
	Status     DisputeStatus
	Resolution *Resolution
	Notes      string
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// DisputeSummary is a dispute with the order facts staff need to decide it.
type DisputeSummary struct {
	Dispute
	OrderAmount decimal.Decimal
	OrderStatus OrderStatus
	BuyerID     string
	SellerID    string
}

// Refund returns held funds to the buyer.
type Refund struct {
	ID               string
	OrderID          string
	PaymentID        string
	Amount           decimal.Decimal
	Status           RefundStatus
	Provider         string
	ProviderRefundID *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OrderMessage is an append-only chat entry.
type OrderMessage struct {
	ID        string
	OrderID   string
	SenderID  string
	Message   string
	CreatedAt time.Time
}

// OrderView is the order with its latest payment, dispute and refund.
type OrderView struct {
	Order   Order
	Payment *Payment
	Dispute *Dispute
	Refund  *Refund
}
