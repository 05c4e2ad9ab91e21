package storage

import (
	"context"

	"github.com/chris/student-escrow-market/pkg/models"
)

// MessageTx appends order messages.
type MessageTx interface {
	InsertMessage(ctx context.Context, message *models.OrderMessage) error
}

// MessageReader lists order messages, oldest first.
type MessageReader interface {
	ListMessages(ctx context.Context, orderID string) ([]models.OrderMessage, error)
}

// PrincipalReader resolves users from the auth collaborator.
type PrincipalReader interface {
	GetPrincipal(ctx context.Context, userID string) (*models.Principal, error)
}
