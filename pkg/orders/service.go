// Package orders implements the order lifecycle: creation, payment,
// cancellation, receipt confirmation and the order chat.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/authz"
	"github.com/chris/student-escrow-market/pkg/escrow"
	"github.com/chris/student-escrow-market/pkg/gateway"
	"github.com/chris/student-escrow-market/pkg/ids"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/money"
	"github.com/chris/student-escrow-market/pkg/storage"
	"github.com/chris/student-escrow-market/pkg/websockets"
)

// Service is the order state machine.
type Service struct {
	store    storage.Store
	engine   *escrow.Engine
	gateway  gateway.Gateway
	notifier *websockets.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new Service.
func NewService(store storage.Store, engine *escrow.Engine, gw gateway.Gateway, notifier *websockets.Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		engine:   engine,
		gateway:  gw,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateOrder opens an order for the listing, or returns the caller's open
// order for it. created reports whether a new order was inserted.
func (s *Service) CreateOrder(ctx context.Context, caller models.Principal, listingID string) (view *models.OrderView, created bool, err error) {
	if err := authz.RequireActive(caller); err != nil {
		return nil, false, err
	}
	if listingID == "" {
		return nil, false, apperrors.Validation("listingId is required")
	}

	var order *models.Order
	// A concurrent create for the same listing and buyer loses on the unique
	// index; the second attempt then finds the winner's order.
	for attempt := 0; attempt < 2; attempt++ {
		order, created, err = s.createOrder(ctx, caller, listingID)
		if !errors.Is(err, storage.ErrDuplicateOpenOrder) {
			break
		}
	}
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateOpenOrder) {
			return nil, false, apperrors.Wrap(apperrors.KindConflict, err, "an order for this listing is being created")
		}
		return nil, false, err
	}

	if created {
		s.logger.Info("order created", slog.String("order_id", order.ID), slog.String("listing_id", listingID), slog.String("buyer_id", caller.ID))
		s.notifier.OrderChanged(ctx, order)
	}
	view, err = s.view(ctx, order.ID)
	return view, created, err
}

func (s *Service) createOrder(ctx context.Context, caller models.Principal, listingID string) (*models.Order, bool, error) {
	var order *models.Order
	var created bool
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		listing, err := tx.GetListing(ctx, listingID)
		if err != nil {
			return notFound(err, "listing not found")
		}
		if listing.Status != models.ListingApproved {
			return apperrors.InvalidState("listing is not available for purchase")
		}
		if listing.OwnerStatus != models.UserActive {
			return apperrors.InvalidState("listing owner is not active")
		}
		if listing.OwnerID == caller.ID {
			return apperrors.Forbidden("you cannot buy your own listing")
		}
		if err := money.Validate(listing.Price); err != nil {
			return apperrors.Wrap(apperrors.KindValidation, err, "listing price is invalid")
		}

		order, err = tx.FindOpenOrder(ctx, listingID, caller.ID)
		if err != nil {
			return fmt.Errorf("failed to find open order: %w", err)
		}
		if order != nil {
			return nil
		}

		now := s.now()
		order = &models.Order{
			ID:        ids.New(),
			ListingID: listing.ID,
			BuyerID:   caller.ID,
			SellerID:  listing.OwnerID,
			Amount:    listing.Price,
			Status:    models.OrderPendingPayment,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}
		created = true
		return nil
	})
	return order, created, err
}

// GetOrder returns the order projection to a participant or staff.
func (s *Service) GetOrder(ctx context.Context, caller models.Principal, orderID string) (*models.OrderView, error) {
	view, err := s.view(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := authz.Require(caller, &view.Order, authz.CanView); err != nil {
		return nil, err
	}
	return view, nil
}

// Order roles accepted by ListOrders.
const (
	RoleBuyer  = "buyer"
	RoleSeller = "seller"
)

// ListOrders returns the caller's orders as buyer or seller, newest first.
func (s *Service) ListOrders(ctx context.Context, caller models.Principal, role string) ([]models.OrderView, error) {
	if caller.ID == "" {
		return nil, apperrors.Unauthorized("authentication required")
	}
	var filter storage.OrderFilter
	switch role {
	case "", RoleBuyer:
		filter.BuyerID = caller.ID
	case RoleSeller:
		filter.SellerID = caller.ID
	default:
		return nil, apperrors.Validation("role must be buyer or seller")
	}
	views, err := s.store.ListOrderViews(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return views, nil
}

// CancelOrder cancels an unpaid order and its pending payments.
func (s *Service) CancelOrder(ctx context.Context, caller models.Principal, orderID string) (*models.OrderView, error) {
	order, err := s.authorize(ctx, caller, orderID, authz.CanCancel)
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		order, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		if order.Status != models.OrderPendingPayment {
			return apperrors.InvalidState(fmt.Sprintf("only unpaid orders can be cancelled, order is %s", order.Status))
		}
		now := s.now()
		if err := tx.UpdateOrderStatus(ctx, orderID, models.OrderCancelled, nil, now); err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}
		cancelled, err := tx.CancelPendingPayments(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to cancel pending payments: %w", err)
		}
		order.Status = models.OrderCancelled
		order.UpdatedAt = now
		s.logger.Info("order cancelled", slog.String("order_id", orderID), slog.Int64("payments_cancelled", cancelled))
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.OrderChanged(ctx, order)
	return s.view(ctx, orderID)
}

// ConfirmReceipt releases the escrowed funds to the seller. It is a no-op
// for an order that is already released.
func (s *Service) ConfirmReceipt(ctx context.Context, caller models.Principal, orderID string) (*models.OrderView, error) {
	order, err := s.authorize(ctx, caller, orderID, authz.CanConfirmReceipt)
	if err != nil {
		return nil, err
	}

	var moved bool
	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		order, err = tx.LockOrder(ctx, orderID)
		if err != nil {
			return notFound(err, "order not found")
		}
		moved, err = s.engine.SettleToReleased(ctx, tx, order)
		return err
	})
	if err != nil {
		return nil, err
	}

	if moved {
		s.logger.Info("order released", slog.String("order_id", orderID), slog.String("amount", money.Format(order.Amount)))
		s.notifier.OrderChanged(ctx, order, order.BuyerID, order.SellerID)
	}
	return s.view(ctx, orderID)
}

// authorize loads the order and checks the caller's capability on it.
func (s *Service) authorize(ctx context.Context, caller models.Principal, orderID string, want authz.Capability) (*models.Order, error) {
	if err := authz.RequireActive(caller); err != nil {
		return nil, err
	}
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order not found")
	}
	if err := authz.Require(caller, order, want); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) view(ctx context.Context, orderID string) (*models.OrderView, error) {
	view, err := s.store.GetOrderView(ctx, orderID)
	if err != nil {
		return nil, notFound(err, "order not found")
	}
	return view, nil
}

func notFound(err error, message string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Wrap(apperrors.KindNotFound, err, message)
	}
	return err
}
