package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/student-escrow-market/pkg/bootstrap"
	"github.com/chris/student-escrow-market/pkg/reconcile"
)

var reconciler *reconcile.Reconciler

func init() {
	ctx := context.Background()

	deps, err := bootstrap.Load(ctx)
	if err != nil {
		log.Fatalf("failed to initialise: %v", err)
	}

	sched, err := deps.Scheduler(ctx)
	if err != nil {
		log.Fatalf("failed to create scheduler: %v", err)
	}
	notifier, err := deps.Notifier(ctx)
	if err != nil {
		log.Fatalf("failed to create notifier: %v", err)
	}

	reconciler = reconcile.New(deps.Store, deps.Engine, deps.Gateway, sched, notifier, deps.Logger, deps.Config.Reconcile)
}

// HandleRequest is triggered by an EventBridge Schedule and re-enqueues
// payments and refunds left pending.
func HandleRequest(ctx context.Context) error {
	_, err := reconciler.EnqueueStuck(ctx)
	return err
}

func main() {
	lambda.Start(HandleRequest)
}
