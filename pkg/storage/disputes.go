package storage

import (
	"context"
	"time"

	"github.com/chris/student-escrow-market/pkg/models"
)

// DisputeTx defines dispute operations inside a transaction.
type DisputeTx interface {
	// LatestDispute locks and returns the order's latest dispute, or nil.
	LatestDispute(ctx context.Context, orderID string) (*models.Dispute, error)

	LockDispute(ctx context.Context, disputeID string) (*models.Dispute, error)

	InsertDispute(ctx context.Context, dispute *models.Dispute) error

	ResolveDispute(ctx context.Context, disputeID string, resolution models.Resolution, notes string, at time.Time) error
}

// DisputeReader defines read access to disputes.
type DisputeReader interface {
	GetDispute(ctx context.Context, disputeID string) (*models.Dispute, error)

	// ListDisputes returns disputes with the given status, newest first.
	ListDisputes(ctx context.Context, status models.DisputeStatus) ([]models.DisputeSummary, error)
}
