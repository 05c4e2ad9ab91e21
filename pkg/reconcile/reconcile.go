// Package reconcile recovers from missed payment notifications by asking
// the live gateway for the state of payments and refunds left pending.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chris/student-escrow-market/pkg/apperrors"
	"github.com/chris/student-escrow-market/pkg/config"
	"github.com/chris/student-escrow-market/pkg/escrow"
	"github.com/chris/student-escrow-market/pkg/gateway"
	"github.com/chris/student-escrow-market/pkg/models"
	"github.com/chris/student-escrow-market/pkg/scheduler"
	"github.com/chris/student-escrow-market/pkg/storage"
	"github.com/chris/student-escrow-market/pkg/websockets"
)

// Store is the read access the reconciler needs.
type Store interface {
	storage.PaymentReader
	storage.RefundReader
}

// Reconciler finds stuck payments and refunds and settles them from the
// gateway's view.
type Reconciler struct {
	store     Store
	engine    *escrow.Engine
	gateway   gateway.Gateway
	scheduler scheduler.Scheduler
	notifier  *websockets.Notifier
	logger    *slog.Logger
	cfg       config.Reconcile
	now       func() time.Time
}

// New creates a new Reconciler.
func New(store Store, engine *escrow.Engine, gw gateway.Gateway, sched scheduler.Scheduler, notifier *websockets.Notifier, logger *slog.Logger, cfg config.Reconcile) *Reconciler {
	return &Reconciler{
		store:     store,
		engine:    engine,
		gateway:   gw,
		scheduler: sched,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// EnqueueStuck schedules a job for every payment and refund of the live
// provider that has been pending longer than the configured threshold. A
// failure to schedule one job does not stop the batch.
func (r *Reconciler) EnqueueStuck(ctx context.Context) (int, error) {
	if !r.gateway.Live() {
		r.logger.Info("no live gateway configured, nothing to reconcile")
		return 0, nil
	}
	before := r.now().Add(-r.cfg.StuckAfter)

	payments, err := r.store.ListStalePayments(ctx, r.gateway.Name(), before, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale payments: %w", err)
	}
	refunds, err := r.store.ListPendingRefunds(ctx, before, r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending refunds: %w", err)
	}

	var jobs []scheduler.Job
	for _, p := range payments {
		jobs = append(jobs, scheduler.Job{Kind: scheduler.JobPayment, ID: p.ID})
	}
	for _, rf := range refunds {
		if rf.Provider == r.gateway.Name() {
			jobs = append(jobs, scheduler.Job{Kind: scheduler.JobRefund, ID: rf.ID})
		}
	}

	scheduled := 0
	for _, job := range jobs {
		if err := r.scheduler.ScheduleJob(ctx, job, 0); err != nil {
			r.logger.Error("failed to enqueue reconciliation job", slog.String("kind", string(job.Kind)), slog.String("id", job.ID), slog.Any("error", err))
			continue
		}
		scheduled++
	}
	r.logger.Info("reconciliation jobs enqueued", slog.Int("found", len(jobs)), slog.Int("scheduled", scheduled))
	return scheduled, nil
}

// Process settles one job. Errors are returned so the queue redelivers.
func (r *Reconciler) Process(ctx context.Context, job scheduler.Job) error {
	switch job.Kind {
	case scheduler.JobPayment:
		return r.processPayment(ctx, job.ID)
	case scheduler.JobRefund:
		return r.processRefund(ctx, job.ID)
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

func (r *Reconciler) processPayment(ctx context.Context, paymentID string) error {
	payment, err := r.store.GetPayment(ctx, paymentID)
	if err != nil {
		return ignoreMissing(err)
	}
	if payment.Status != models.PaymentPending {
		return nil
	}
	if payment.ProviderPaymentID == nil || payment.Provider != r.gateway.Name() {
		r.logger.Warn("payment cannot be reconciled", slog.String("payment_id", paymentID), slog.String("provider", payment.Provider))
		return nil
	}

	state, err := r.gateway.PaymentState(ctx, *payment.ProviderPaymentID)
	if err != nil {
		return err
	}
	log := r.logger.With(slog.String("payment_id", paymentID), slog.String("gateway_status", state.RawStatus))

	switch state.Status {
	case models.PaymentPaid:
		order, moved, err := r.engine.ConfirmPayment(ctx, paymentID, *payment.ProviderPaymentID)
		if err != nil {
			return err
		}
		if moved {
			log.Info("payment confirmed by reconciliation", slog.String("order_id", order.ID))
			r.notifier.OrderChanged(ctx, order, order.BuyerID)
		}
	case models.PaymentCancelled, models.PaymentFailed:
		log.Info("payment closed by reconciliation")
		return r.engine.RecordPaymentStatus(ctx, paymentID, state.Status, "")
	default:
		log.Debug("payment still pending at gateway")
	}
	return nil
}

func (r *Reconciler) processRefund(ctx context.Context, refundID string) error {
	refund, err := r.store.GetRefund(ctx, refundID)
	if err != nil {
		return ignoreMissing(err)
	}
	if refund.Status != models.RefundPending {
		return nil
	}
	payment, err := r.store.GetPayment(ctx, refund.PaymentID)
	if err != nil {
		return ignoreMissing(err)
	}
	if payment.ProviderPaymentID == nil {
		r.logger.Warn("refunded payment has no provider id", slog.String("refund_id", refundID))
		return nil
	}

	state, err := r.gateway.PaymentState(ctx, *payment.ProviderPaymentID)
	if err != nil {
		return err
	}
	log := r.logger.With(slog.String("refund_id", refundID), slog.String("gateway_status", state.RawStatus))

	switch {
	case gateway.IsRefunded(state.RawStatus):
		order, moved, err := r.engine.CompleteRefund(ctx, refundID)
		if err != nil {
			return err
		}
		if moved {
			log.Info("refund completed by reconciliation", slog.String("order_id", order.ID))
			r.notifier.OrderChanged(ctx, order, order.BuyerID)
		}
	case state.Status == models.PaymentPaid:
		// Still confirmed well after the refund was requested.
		log.Error("refund failed at gateway", slog.Bool("alert", true), slog.String("order_id", refund.OrderID))
		return r.engine.FailRefund(ctx, refundID)
	default:
		log.Debug("refund still in progress at gateway")
	}
	return nil
}

// ignoreMissing drops jobs whose row no longer resolves; redelivery would not help.
func ignoreMissing(err error) error {
	if errors.Is(err, storage.ErrNotFound) || apperrors.Is(err, apperrors.KindNotFound) {
		return nil
	}
	return err
}
