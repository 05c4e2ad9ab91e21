package main

import (
	"context"
	"log"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/chris/student-escrow-market/pkg/bootstrap"
	"github.com/chris/student-escrow-market/pkg/reconcile"
	"github.com/chris/student-escrow-market/pkg/scheduler"
)

var (
	reconciler *reconcile.Reconciler
	logger     *slog.Logger
)

func init() {
	ctx := context.Background()

	deps, err := bootstrap.Load(ctx)
	if err != nil {
		log.Fatalf("failed to initialise: %v", err)
	}
	logger = deps.Logger

	notifier, err := deps.Notifier(ctx)
	if err != nil {
		log.Fatalf("failed to create notifier: %v", err)
	}

	// Jobs are only consumed here, so no scheduler is needed.
	reconciler = reconcile.New(deps.Store, deps.Engine, deps.Gateway, nil, notifier, logger, deps.Config.Reconcile)
}

// HandleRequest settles the reconciliation jobs carried by SQS messages.
func HandleRequest(ctx context.Context, sqsEvent events.SQSEvent) error {
	for _, message := range sqsEvent.Records {
		job, err := scheduler.ParseJob(message.Body)
		if err != nil {
			// A malformed body never becomes valid, so it is dropped.
			logger.Error("dropping malformed job", "messageId", message.MessageId, "error", err)
			continue
		}

		if err := reconciler.Process(ctx, job); err != nil {
			logger.Error("failed to process job", "messageId", message.MessageId, "kind", job.Kind, "id", job.ID, "error", err)
			// Returning an error makes SQS redeliver the message.
			return err
		}
		logger.Info("processed job", "kind", job.Kind, "id", job.ID)
	}
	return nil
}

func main() {
	lambda.Start(HandleRequest)
}
