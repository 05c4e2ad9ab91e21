// Package bootstrap wires the process dependencies shared by the server and
// the lambdas.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/chris/student-escrow-market/pkg/config"
	"github.com/chris/student-escrow-market/pkg/escrow"
	"github.com/chris/student-escrow-market/pkg/gateway"
	"github.com/chris/student-escrow-market/pkg/scheduler"
	"github.com/chris/student-escrow-market/pkg/storage"
	dydbstore "github.com/chris/student-escrow-market/pkg/storage/dynamodb"
	"github.com/chris/student-escrow-market/pkg/storage/memory"
	"github.com/chris/student-escrow-market/pkg/storage/postgres"
	"github.com/chris/student-escrow-market/pkg/wallet"
	"github.com/chris/student-escrow-market/pkg/websockets"
	"github.com/redis/go-redis/v9"
)

// Deps holds the long-lived dependencies of one process.
type Deps struct {
	Config  config.Config
	Logger  *slog.Logger
	Store   storage.Store
	Ledger  *wallet.Ledger
	Engine  *escrow.Engine
	Gateway gateway.Gateway

	aws     *aws.Config
	closers []func()
}

// NewLogger returns a JSON logger at the configured level.
func NewLogger(cfg config.Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

// Load reads the configuration, opens the store and builds the settlement core.
func Load(ctx context.Context) (*Deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg)
	slog.SetDefault(logger)

	d := &Deps{Config: cfg, Logger: logger, Ledger: wallet.NewLedger()}

	switch cfg.Database.Driver {
	case config.StoragePostgres:
		store, err := postgres.Connect(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		d.Store = store
		d.closers = append(d.closers, store.Close)
	default:
		logger.Warn("using in-memory storage, data is lost on exit")
		d.Store = memory.New()
	}

	d.Gateway = gateway.New(cfg.Payments, nil, logger)
	d.Engine = escrow.NewEngine(d.Store, d.Ledger, logger)
	logger.Info("payment gateway selected", "provider", d.Gateway.Name(), "live", d.Gateway.Live())
	return d, nil
}

// AWSConfig loads the default AWS configuration once.
func (d *Deps) AWSConfig(ctx context.Context) (aws.Config, error) {
	if d.aws != nil {
		return *d.aws, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load SDK config: %w", err)
	}
	d.aws = &cfg
	return cfg, nil
}

// Connections returns the DynamoDB connection store, or nil when no table is configured.
func (d *Deps) Connections(ctx context.Context) (*dydbstore.Store, error) {
	table := d.Config.AWS.ConnectionsTableName
	if table == "" {
		return nil, nil
	}
	awsCfg, err := d.AWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return dydbstore.New(dynamodb.NewFromConfig(awsCfg), table), nil
}

// Scheduler returns the SQS job scheduler.
func (d *Deps) Scheduler(ctx context.Context) (scheduler.Scheduler, error) {
	if d.Config.AWS.SQSQueueURL == "" {
		return nil, errors.New("SQS_QUEUE_URL environment variable not set")
	}
	awsCfg, err := d.AWSConfig(ctx)
	if err != nil {
		return nil, err
	}
	return scheduler.NewSQSScheduler(sqs.NewFromConfig(awsCfg), d.Config.AWS.SQSQueueURL), nil
}

// Notifier fans order events out to local, the Redis channel and the API
// Gateway connections, each when configured.
func (d *Deps) Notifier(ctx context.Context, local ...websockets.Publisher) (*websockets.Notifier, error) {
	publishers := websockets.MultiPublisher(local)

	if d.Config.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: d.Config.Redis.Addr, Password: d.Config.Redis.Password})
		d.closers = append(d.closers, func() { _ = client.Close() })
		publishers = append(publishers, websockets.NewRedisPublisher(client, d.Config.Redis.EventsChannel))
	}

	if endpoint := d.Config.AWS.WebSocketAPIEndpoint; endpoint != "" {
		conns, err := d.Connections(ctx)
		if err != nil {
			return nil, err
		}
		if conns == nil {
			return nil, errors.New("DYNAMODB_CONNECTIONS_TABLE_NAME is required with WEBSOCKET_API_ENDPOINT")
		}
		pub, err := websockets.NewPublisher(ctx, conns, conns, endpoint)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, pub)
	}

	var publisher websockets.Publisher = publishers
	if len(publishers) == 0 {
		publisher = &websockets.NoOpPublisher{}
	}
	return websockets.NewNotifier(publisher, d.Store, d.Logger), nil
}

// Close releases the store and clients.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}
