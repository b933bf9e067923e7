package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress                 string
	DatabaseURI                string
	CatalogServiceAddress      string
	NotificationServiceAddress string
	JWTSecret                  string
	RelayTokenSecret           string
	RelayTokenTTL              time.Duration
	RedisAddress               string
	StoreTimeout               time.Duration
	StrictOrderTransitions     bool
	ReconcileInterval          time.Duration
	ReconcileBatchSize         int
	WorkerPoolSize             int
	ShutdownTimeout            time.Duration
	CourierSpeedKmh            float64
	RelaySubscriberBuffer      int
	RelaySinglePublisher       bool
	LogLevel                   string
}

const (
	defaultRunAddress            = ":8080"
	defaultLogLevel              = "info"
	defaultJWTSecret             = "change-me-in-production"
	defaultRelayTokenTTL         = 2 * time.Hour
	defaultStoreTimeout          = 5 * time.Second
	defaultReconcileInterval     = 30 * time.Second
	defaultReconcileBatchSize    = 50
	defaultWorkerPoolSize        = 4
	defaultShutdownTimeout       = 10 * time.Second
	defaultCourierSpeedKmh       = 25.0
	defaultRelaySubscriberBuffer = 16
)

// Load parses configuration from an optional .env file, environment variables and flags.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:                 getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:                getString(lookup, "DATABASE_URI", ""),
		CatalogServiceAddress:      getString(lookup, "CATALOG_SERVICE_ADDRESS", ""),
		NotificationServiceAddress: getString(lookup, "NOTIFICATION_SERVICE_ADDRESS", ""),
		JWTSecret:                  getString(lookup, "JWT_SECRET", defaultJWTSecret),
		RelayTokenSecret:           getString(lookup, "RELAY_TOKEN_SECRET", ""),
		RelayTokenTTL:              getDuration(lookup, "RELAY_TOKEN_TTL", defaultRelayTokenTTL),
		RedisAddress:               getString(lookup, "REDIS_ADDRESS", ""),
		StoreTimeout:               getDuration(lookup, "STORE_TIMEOUT", defaultStoreTimeout),
		StrictOrderTransitions:     getBool(lookup, "STRICT_ORDER_TRANSITIONS", false),
		ReconcileInterval:          getDuration(lookup, "RECONCILE_INTERVAL", defaultReconcileInterval),
		ReconcileBatchSize:         getInt(lookup, "RECONCILE_BATCH_SIZE", defaultReconcileBatchSize),
		WorkerPoolSize:             getInt(lookup, "WORKER_POOL_SIZE", defaultWorkerPoolSize),
		ShutdownTimeout:            getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		CourierSpeedKmh:            getFloat(lookup, "COURIER_SPEED_KMH", defaultCourierSpeedKmh),
		RelaySubscriberBuffer:      getInt(lookup, "RELAY_SUBSCRIBER_BUFFER", defaultRelaySubscriberBuffer),
		RelaySinglePublisher:       getBool(lookup, "RELAY_SINGLE_PUBLISHER", true),
		LogLevel:                   getString(lookup, "LOG_LEVEL", defaultLogLevel),
	}

	fs := flag.NewFlagSet("fooddelivery", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		storeTimeoutStr      = cfg.StoreTimeout.String()
		reconcileIntervalStr = cfg.ReconcileInterval.String()
		shutdownTimeoutStr   = cfg.ShutdownTimeout.String()
	)

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.CatalogServiceAddress, "c", cfg.CatalogServiceAddress, "Catalog service base URL")
	fs.StringVar(&cfg.NotificationServiceAddress, "n", cfg.NotificationServiceAddress, "Notification service base URL")
	fs.StringVar(&cfg.RedisAddress, "redis", cfg.RedisAddress, "Redis address for relay fan-out between instances")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "Secret for verifying identity tokens")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Minimum log level: debug, info, warn or error")
	fs.BoolVar(&cfg.StrictOrderTransitions, "strict-transitions", cfg.StrictOrderTransitions, "Reject order transitions outside the state machine")
	fs.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of concurrent reconcile workers")
	fs.IntVar(&cfg.ReconcileBatchSize, "reconcile-batch", cfg.ReconcileBatchSize, "Maximum deliveries per reconcile batch")
	fs.StringVar(&storeTimeoutStr, "store-timeout", storeTimeoutStr, "Timeout for a single store operation")
	fs.StringVar(&reconcileIntervalStr, "reconcile-interval", reconcileIntervalStr, "Interval between reconcile sweeps")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.StoreTimeout, err = time.ParseDuration(storeTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid store timeout: %w", err)
	}

	if cfg.ReconcileInterval, err = time.ParseDuration(reconcileIntervalStr); err != nil {
		return nil, fmt.Errorf("invalid reconcile interval: %w", err)
	}

	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	if secretFile, ok := lookup("JWT_SECRET_FILE"); ok && secretFile != "" {
		content, err := os.ReadFile(secretFile)
		if err != nil {
			return nil, fmt.Errorf("read jwt secret file: %w", err)
		}
		cfg.JWTSecret = strings.TrimSpace(string(content))
	}

	if cfg.RelayTokenSecret == "" {
		cfg.RelayTokenSecret = cfg.JWTSecret
	}

	if cfg.RelayTokenTTL <= 0 {
		cfg.RelayTokenTTL = defaultRelayTokenTTL
	}

	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = defaultStoreTimeout
	}

	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = defaultReconcileInterval
	}

	if cfg.ReconcileBatchSize <= 0 {
		cfg.ReconcileBatchSize = defaultReconcileBatchSize
	}

	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.CourierSpeedKmh <= 0 {
		cfg.CourierSpeedKmh = defaultCourierSpeedKmh
	}

	if cfg.RelaySubscriberBuffer <= 0 {
		cfg.RelaySubscriberBuffer = defaultRelaySubscriberBuffer
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}

	if cfg.CatalogServiceAddress == "" {
		return nil, fmt.Errorf("catalog service address must be provided")
	}

	return cfg, nil
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := cast.ToIntE(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(lookup envLookup, key string, def float64) float64 {
	if v, ok := lookup(key); ok && v != "" {
		if f, err := cast.ToFloat64E(v); err == nil {
			return f
		}
	}
	return def
}

func getBool(lookup envLookup, key string, def bool) bool {
	if v, ok := lookup(key); ok && v != "" {
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := cast.ToDurationE(v); err == nil {
			return d
		}
	}
	return def
}
