// Package config builds the immutable process configuration once at startup.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names.
const (
	ProviderMock  = "mock"
	ProviderTBank = "tbank"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// TBank holds the live SBP gateway settings.
type TBank struct {
	APIURL             string
	TerminalKey        string
	Password           string
	NotificationURL    string
	QRMemberID         string
	AllowManualConfirm bool
	Timeout            time.Duration
}

// Payments selects and configures the payment gateway.
type Payments struct {
	Provider     string
	MerchantName string
	TBank        TBank
}

// LiveEnabled reports whether the live gateway is selected and has credentials.
func (p Payments) LiveEnabled() bool {
	return p.Provider == ProviderTBank && p.TBank.TerminalKey != "" && p.TBank.Password != ""
}

// Database configures the Postgres pool.
type Database struct {
	Driver   string
	URL      string
	MaxConns int32
	MinConns int32
}

// AWS holds the queue, connection table and websocket endpoint.
type AWS struct {
	SQSQueueURL          string
	ConnectionsTableName string
	WebSocketAPIEndpoint string
}

// Redis configures the event channel.
type Redis struct {
	Addr          string
	Password      string
	EventsChannel string
}

// Reconcile configures the missed-notification sweep.
type Reconcile struct {
	StuckAfter time.Duration
	BatchSize  int32
}

// Config is the whole process configuration. It is passed by value.
type Config struct {
	HTTPPort   string
	CORSOrigin string
	JWTSecret  string
	LogLevel   slog.Level
	Database   Database
	Payments   Payments
	AWS        AWS
	Redis      Redis
	Reconcile  Reconcile
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	return FromLookup(os.Getenv)
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(getenv func(string) string) (Config, error) {
	var errs []error
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	duration := func(key string, def time.Duration) time.Duration {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return d
	}
	integer := func(key string, def int32) int32 {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return int32(n)
	}

	cfg := Config{
		HTTPPort:   get("HTTP_PORT", get("PORT", "8080")),
		CORSOrigin: get("CORS_ORIGIN", "*"),
		JWTSecret:  get("JWT_SECRET", ""),
		Database: Database{
			Driver:   strings.ToLower(get("STORAGE_DRIVER", StoragePostgres)),
			URL:      get("DATABASE_URL", ""),
			MaxConns: integer("DB_MAX_CONNS", 10),
			MinConns: integer("DB_MIN_CONNS", 2),
		},
		Payments: Payments{
			Provider:     strings.ToLower(get("PAYMENT_PROVIDER", ProviderMock)),
			MerchantName: get("MERCHANT_NAME", "Student Market"),
			TBank: TBank{
				APIURL:             strings.TrimRight(get("TBANK_API_URL", "https://securepay.tinkoff.ru/v2"), "/"),
				TerminalKey:        get("TBANK_TERMINAL_KEY", ""),
				Password:           get("TBANK_PASSWORD", ""),
				NotificationURL:    get("TBANK_NOTIFICATION_URL", ""),
				QRMemberID:         get("TBANK_QR_MEMBER_ID", ""),
				AllowManualConfirm: get("TBANK_ALLOW_MANUAL_CONFIRM", "") == "true",
				Timeout:            duration("TBANK_TIMEOUT", 15*time.Second),
			},
		},
		AWS: AWS{
			SQSQueueURL:          get("SQS_QUEUE_URL", ""),
			ConnectionsTableName: get("DYNAMODB_CONNECTIONS_TABLE_NAME", ""),
			WebSocketAPIEndpoint: get("WEBSOCKET_API_ENDPOINT", ""),
		},
		Redis: Redis{
			Addr:          get("REDIS_ADDR", ""),
			Password:      get("REDIS_PASSWORD", ""),
			EventsChannel: get("REDIS_EVENTS_CHANNEL", "order_events"),
		},
		Reconcile: Reconcile{
			StuckAfter: duration("RECONCILE_STUCK_AFTER", 20*time.Minute),
			BatchSize:  integer("RECONCILE_BATCH_SIZE", 100),
		},
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(get("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	switch cfg.Payments.Provider {
	case ProviderMock, ProviderTBank:
	default:
		errs = append(errs, fmt.Errorf("PAYMENT_PROVIDER: unknown provider %q", cfg.Payments.Provider))
	}
	switch cfg.Database.Driver {
	case StoragePostgres, StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER: unknown driver %q", cfg.Database.Driver))
	}
	if cfg.Database.Driver == StoragePostgres && cfg.Database.URL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// RequireJWTSecret is checked by entrypoints that authenticate requests.
func (c Config) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable not set")
	}
	return nil
}
