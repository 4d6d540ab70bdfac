// Package config provides configuration structures and validation for both
// pipeline services. Values come from an optional .env file, environment
// variables and defaults, in that order of precedence.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the complete service configuration. Both binaries load the same
// structure; each one only opens the subsystems it needs.
type Config struct {
	Application    ApplicationConfig
	Logging        LoggingConfig
	Server         ServerConfig
	Kafka          KafkaConfig
	Postgres       PostgresConfig
	MongoDB        MongoDBConfig
	Redis          RedisConfig
	Outbox         OutboxConfig
	WorkerPool     WorkerPoolConfig
	AntiFraud      AntiFraudConfig
	CircuitBreaker CircuitBreakerConfig
	Metrics        MetricsConfig
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

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string // Comma separated host:port list
	CreatedTopic      string
	ValidatedTopic    string
	DLQTopic          string
	NumPartitions     int // Number of partitions for topics
	ReplicationFactor int // Replication factor for topics
	AntiFraudGroup    string
	TransactionGroup  string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	HandlerTimeout    time.Duration // Per-attempt deadline for a message handler
	MaxAttempts       int           // Attempts before a message is dead-lettered
	RetryBackoff      time.Duration // Initial delay between attempts, doubled each time
	MaxRetryBackoff   time.Duration
	PublishTimeout    time.Duration
}

// BrokerList splits Brokers into individual addresses.
func (k KafkaConfig) BrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(k.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string        // Database connection string
	MaxConns        int32         // Maximum number of open connections
	MinConns        int32         // Maximum number of idle connections
	ConnMaxLifetime time.Duration // Maximum lifetime of a connection
	ConnMaxIdleTime time.Duration // Maximum idle time of a connection
	MigrationsPath  string        // Path to migration files
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// RedisConfig contains the read cache configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

// OutboxConfig contains outbox pattern configuration
type OutboxConfig struct {
	Enabled          bool
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int           // Maximum number of retry attempts for outbox messages
	PublishGrace     time.Duration // Rows younger than this are left to the inline publish
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int // Maximum number of handlers running at once
}

// AntiFraudConfig holds the decision rule parameters
type AntiFraudConfig struct {
	Threshold string // Decimal amount; values above it are rejected
}

// ThresholdAmount parses Threshold. validate guarantees it is well formed.
func (a AntiFraudConfig) ThresholdAmount() decimal.Decimal {
	d, err := decimal.NewFromString(a.Threshold)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// CircuitBreakerConfig tunes the breaker around the event producer
type CircuitBreakerConfig struct {
	MaxRequests         uint32
	Interval            time.Duration
	Timeout             time.Duration
	ConsecutiveFailures uint32
}

// MetricsConfig toggles the Prometheus collectors
type MetricsConfig struct {
	Enabled bool
}

// validate performs comprehensive validation of all configuration values,
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

	// Validate Kafka config
	if len(c.Kafka.BrokerList()) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.CreatedTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_CREATED_TOPIC is required")
	}
	if c.Kafka.ValidatedTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_VALIDATED_TOPIC is required")
	}
	if c.Kafka.CreatedTopic != "" && c.Kafka.CreatedTopic == c.Kafka.ValidatedTopic {
		validationErrors = append(validationErrors, "KAFKA_CREATED_TOPIC and KAFKA_VALIDATED_TOPIC must differ")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}
	if c.Kafka.AntiFraudGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_ANTI_FRAUD_GROUP is required")
	}
	if c.Kafka.TransactionGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_TRANSACTION_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.HandlerTimeout <= 0 {
		validationErrors = append(validationErrors, "KAFKA_HANDLER_TIMEOUT must be greater than 0")
	}
	if c.Kafka.MaxAttempts <= 0 {
		validationErrors = append(validationErrors, "KAFKA_HANDLER_MAX_ATTEMPTS must be greater than 0")
	}
	if c.Kafka.RetryBackoff <= 0 {
		validationErrors = append(validationErrors, "KAFKA_RETRY_BACKOFF must be greater than 0")
	}
	if c.Kafka.MaxRetryBackoff < c.Kafka.RetryBackoff {
		validationErrors = append(validationErrors, "KAFKA_MAX_RETRY_BACKOFF must not be lower than KAFKA_RETRY_BACKOFF")
	}
	if c.Kafka.PublishTimeout <= 0 {
		validationErrors = append(validationErrors, "KAFKA_PUBLISH_TIMEOUT must be greater than 0")
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
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate MongoDB config
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MinPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MIN_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Validate Redis config
	if c.Redis.Addr == "" {
		validationErrors = append(validationErrors, "REDIS_ADDR is required")
	}
	if c.Redis.CacheTTL <= 0 {
		validationErrors = append(validationErrors, "REDIS_CACHE_TTL must be greater than 0")
	}

	// Validate Outbox config
	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}
	if c.Outbox.PublishGrace < 0 {
		validationErrors = append(validationErrors, "OUTBOX_PUBLISH_GRACE must not be negative")
	}

	// Validate WorkerPool config
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	// Validate AntiFraud config
	if threshold, err := decimal.NewFromString(c.AntiFraud.Threshold); err != nil {
		validationErrors = append(validationErrors, "ANTI_FRAUD_THRESHOLD must be a decimal amount")
	} else if threshold.IsNegative() {
		validationErrors = append(validationErrors, "ANTI_FRAUD_THRESHOLD must not be negative")
	}

	// Validate CircuitBreaker config
	if c.CircuitBreaker.Timeout <= 0 {
		validationErrors = append(validationErrors, "CIRCUIT_BREAKER_TIMEOUT must be greater than 0")
	}
	if c.CircuitBreaker.ConsecutiveFailures == 0 {
		validationErrors = append(validationErrors, "CIRCUIT_BREAKER_CONSECUTIVE_FAILURES must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
