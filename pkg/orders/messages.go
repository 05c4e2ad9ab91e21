package orders

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/authz"
	"github.com/chris/student-escrow-market/pkg/ids"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/storage"
)

// MaxMessageLength bounds an order message, in characters.
const MaxMessageLength = 2000

// PostMessage appends a message to the order chat.
func (s *Service) PostMessage(ctx context.Context, caller models.Principal, orderID, text string) (*models.OrderMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.Validation("message is required")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return nil, apperrors.Validation(fmt.Sprintf("message must be at most %d characters", MaxMessageLength))
	}
	if _, err := s.authorize(ctx, caller, orderID, authz.CanMessage); err != nil {
		return nil, err
	}

	msg := &models.OrderMessage{
		ID:        ids.New(),
		OrderID:   orderID,
		SenderID:  caller.ID,
		Message:   text,
		CreatedAt: s.now(),
	}
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.InsertMessage(ctx, msg); err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns the order chat, oldest first.
func (s *Service) ListMessages(ctx context.Context, caller models.Principal, orderID string) ([]models.OrderMessage, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order not found")
	}
	if err := authz.Require(caller, order, authz.CanView); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}
