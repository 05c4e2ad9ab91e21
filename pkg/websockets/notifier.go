package websockets

import (
	"context"
	"log/slog"

	"github.com/chris/student-escrow-market/pkg/models"
)

// WalletGetter reads committed wallet balances.
type WalletGetter interface {
	GetWallet(ctx context.Context, userID string) (*models.Wallet, error)
}

// Notifier turns committed order changes into published messages. Failures
// are logged and never returned, since the change is already durable.
type Notifier struct {
	publisher Publisher
	wallets   WalletGetter
	logger    *slog.Logger
}

// NewNotifier creates a new Notifier. A nil publisher disables publishing.
func NewNotifier(publisher Publisher, wallets WalletGetter, logger *slog.Logger) *Notifier {
	if publisher == nil {
		publisher = &NoOpPublisher{}
	}
	return &Notifier{publisher: publisher, wallets: wallets, logger: logger}
}

// OrderChanged publishes the order's status and then the balances of each
// user whose wallet moved.
func (n *Notifier) OrderChanged(ctx context.Context, order *models.Order, walletUsers ...string) {
	if err := n.publisher.Publish(ctx, OrderUpdate(order)); err != nil {
		n.logger.Warn("failed to publish order update", slog.String("order_id", order.ID), slog.Any("error", err))
	}
	for _, userID := range walletUsers {
		w, err := n.wallets.GetWallet(ctx, userID)
		if err != nil {
			n.logger.Warn("failed to load wallet for update", slog.String("user_id", userID), slog.Any("error", err))
			continue
		}
		if err := n.publisher.Publish(ctx, WalletUpdate(w, order.ID)); err != nil {
			n.logger.Warn("failed to publish wallet update", slog.String("user_id", userID), slog.Any("error", err))
		}
	}
}
