package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chris/student-escrow-market/pkg/bootstrap"
	"github.com/chris/student-escrow-market/pkg/disputes"
	"github.com/chris/student-escrow-market/pkg/handlers"
	disputeshandler "github.com/chris/student-escrow-market/pkg/handlers/disputes"
	ordershandler "github.com/chris/student-escrow-market/pkg/handlers/orders"
	"github.com/chris/student-escrow-market/pkg/handlers/payments"
	"github.com/chris/student-escrow-market/pkg/handlers/wallets"
	wshandler "github.com/chris/student-escrow-market/pkg/handlers/websockets"
	"github.com/chris/student-escrow-market/pkg/middleware"
	"github.com/chris/student-escrow-market/pkg/orders"
	"github.com/chris/student-escrow-market/pkg/websockets"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.Load(ctx)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer deps.Close()
	logger := deps.Logger

	if err := deps.Config.RequireJWTSecret(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Local websocket clients are served from this process.
	hub := websockets.NewHub()
	notifier, err := deps.Notifier(ctx, hub)
	if err != nil {
		logger.Error("failed to set up notifications", "error", err)
		os.Exit(1)
	}

	orderService := orders.NewService(deps.Store, deps.Engine, deps.Gateway, notifier, logger)
	disputeService := disputes.NewService(deps.Store, deps.Engine, deps.Gateway, notifier, logger)
	auth := middleware.NewAuthenticator(deps.Store, deps.Config.JWTSecret, logger)

	handler := handlers.NewApiHandler(
		ordershandler.NewOrdersHandler(orderService, logger),
		disputeshandler.NewDisputesHandler(disputeService, logger),
		wallets.NewWalletsHandler(deps.Store, deps.Ledger, logger),
		payments.NewWebhookHandler(orderService, logger),
	)
	router := handlers.NewRouter(handler, handlers.RouterOptions{
		CORSOrigin: deps.Config.CORSOrigin,
		Auth:       auth,
		Logger:     logger,
		WebSocket:  wshandler.NewLocalHandler(hub, auth, logger),
	})

	srv := &http.Server{
		Addr:              ":" + deps.Config.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", deps.Config.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
