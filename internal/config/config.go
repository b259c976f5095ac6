// Package config provides configuration structures and validation for the ledger service.
// It covers the HTTP server, the Postgres store, the transfer engine's retry and
// failure-registry tuning, the background worker pool and the optional alert bus.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration with settings for all components.
// It is validated once during application startup.
type Config struct {
	Application       ApplicationConfig
	Logging           LoggingConfig
	Server            ServerConfig
	Postgres          PostgresConfig
	Transfer          TransferConfig
	Retry             RetryConfig
	OptimisticLock    OptimisticLockConfig
	FailureRegistry   FailureRegistryConfig
	WorkerPool        WorkerPoolConfig
	DeadLetterMonitor DeadLetterMonitorConfig
	Kafka             KafkaConfig
	Metrics           MetricsConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Minimum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// TransferConfig bounds the request-facing part of a transfer.
type TransferConfig struct {
	RequestTimeout time.Duration
}

// RetryConfig tunes the exponential policy used for background durability writes.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// OptimisticLockConfig tunes version-conflict retries on single-account mutations.
type OptimisticLockConfig struct {
	MaxAttempts int
}

// FailureRegistryConfig bounds the in-memory failed-transfer cache.
type FailureRegistryConfig struct {
	TTL     time.Duration
	MaxSize int
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of workers in the pool
}

// DeadLetterMonitorConfig controls the dead-letter backlog monitor.
type DeadLetterMonitorConfig struct {
	PollingInterval time.Duration
	BatchSize       int
}

// KafkaConfig contains Kafka configuration for failure alerts.
// An empty FailureAlertTopic disables alert publishing.
type KafkaConfig struct {
	Brokers           string
	FailureAlertTopic string
	NumPartitions     int // Number of partitions for the alert topic
	ReplicationFactor int // Replication factor for the alert topic
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// validate performs validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate PostgreSQL config
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns > c.Postgres.MaxConns {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must not exceed POSTGRES_MAX_CONNS")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate transfer engine config
	if c.Transfer.RequestTimeout <= 0 {
		validationErrors = append(validationErrors, "TRANSFER_REQUEST_TIMEOUT must be greater than 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		validationErrors = append(validationErrors, "RETRY_MAX_ATTEMPTS must be greater than 0")
	}
	if c.Retry.InitialDelay < 0 {
		validationErrors = append(validationErrors, "RETRY_INITIAL_DELAY must not be negative")
	}
	if c.Retry.MaxDelay < c.Retry.InitialDelay {
		validationErrors = append(validationErrors, "RETRY_MAX_DELAY must not be less than RETRY_INITIAL_DELAY")
	}
	if c.OptimisticLock.MaxAttempts <= 0 {
		validationErrors = append(validationErrors, "OPTIMISTIC_LOCK_MAX_ATTEMPTS must be greater than 0")
	}
	if c.FailureRegistry.TTL <= 0 {
		validationErrors = append(validationErrors, "FAILURE_REGISTRY_TTL must be greater than 0")
	}
	if c.FailureRegistry.MaxSize <= 0 {
		validationErrors = append(validationErrors, "FAILURE_REGISTRY_MAX_SIZE must be greater than 0")
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	// Validate dead-letter monitor config
	if c.DeadLetterMonitor.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "DLQ_MONITOR_INTERVAL must be greater than 0")
	}
	if c.DeadLetterMonitor.BatchSize <= 0 {
		validationErrors = append(validationErrors, "DLQ_MONITOR_BATCH_SIZE must be greater than 0")
	}

	// Kafka is only checked when alerts are enabled
	if c.Kafka.FailureAlertTopic != "" {
		if c.Kafka.Brokers == "" {
			validationErrors = append(validationErrors, "KAFKA_BROKERS is required when KAFKA_FAILURE_ALERT_TOPIC is set")
		}
		if c.Kafka.NumPartitions <= 0 {
			validationErrors = append(validationErrors, "KAFKA_ALERT_NUM_PARTITIONS must be greater than 0")
		}
		if c.Kafka.ReplicationFactor <= 0 {
			validationErrors = append(validationErrors, "KAFKA_ALERT_REPLICATION_FACTOR must be greater than 0")
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		validationErrors = append(validationErrors, "METRICS_PATH must start with '/'")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
