package storage

import "context"

// Store defines the root interface for the entire data layer.
// Components should depend on the granular interfaces below instead of this one.
type Store interface {
	Transactor
	OrderReader
	PaymentReader
	DisputeReader
	RefundReader
	WalletReader
	MessageReader
	PrincipalReader
}

// Transactor runs a unit of work inside a single database transaction.
type Transactor interface {
	// WithTx commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of operations available inside a transaction. Methods
// named Lock* and Latest* take row locks that are held until the
// transaction ends. Locks must be taken in the order:
// order, buyer wallet, seller wallet, dispute, refund.
type Tx interface {
	WalletTx
	ListingTx
	OrderTx
	PaymentTx
	DisputeTx
	RefundTx
	MessageTx
}
