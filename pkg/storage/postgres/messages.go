package postgres

import (
	"context"
	"fmt"

	"github.com/chris/student-escrow-market/pkg/models"
)

// InsertMessage appends a message to the order's thread.
func (d db) InsertMessage(ctx context.Context, m *models.OrderMessage) error {
	_, err := d.q.Exec(ctx, `
		INSERT INTO order_messages (id, order_id, sender_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5)`, m.ID, m.OrderID, m.SenderID, m.Message, m.CreatedAt)
	if err != nil {
		return mapErr(fmt.Errorf("failed to insert message: %w", err))
	}
	return nil
}

// ListMessages returns the order's messages, oldest first.
func (d db) ListMessages(ctx context.Context, orderID string) ([]models.OrderMessage, error) {
	rows, err := d.q.Query(ctx, `
		SELECT id, order_id, sender_id, message, created_at
		FROM order_messages
		WHERE order_id = $1
		ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, mapErr(fmt.Errorf("failed to list messages: %w", err))
	}
	defer rows.Close()

	var out []models.OrderMessage
	for rows.Next() {
		var m models.OrderMessage
		if err := rows.Scan(&m.ID, &m.OrderID, &m.SenderID, &m.Message, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, mapErr(rows.Err())
}
