package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_HappyPath(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "config_test")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	tempConfigsSubDir := filepath.Join(tempDir, "configs")
	err = os.Mkdir(tempConfigsSubDir, 0755)
	require.NoError(t, err)

	testAppName := "anti-fraud-service"
	testPort := 3001
	testLogLevel := "debug"
	testKafkaBrokers := "kafka1:9092,kafka2:9092"

	envContent := fmt.Sprintf(
		"APP_NAME=%s\nSERVER_PORT=%d\nLOG_LEVEL=%s\nKAFKA_BROKERS=%s\nANTI_FRAUD_THRESHOLD=2500.50\n",
		testAppName, testPort, testLogLevel, testKafkaBrokers,
	)
	envFilePath := filepath.Join(tempConfigsSubDir, "test_happy.env")
	err = os.WriteFile(envFilePath, []byte(envContent), 0644)
	require.NoError(t, err)

	originalWD, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		_ = os.Chdir(originalWD)
	}()

	err = os.Chdir(tempDir)
	require.NoError(t, err)

	cfg, err := LoadConfig("test_happy")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, testAppName, cfg.Application.Name)
	assert.Equal(t, testPort, cfg.Server.Port)
	assert.Equal(t, testLogLevel, cfg.Logging.Level)
	assert.Equal(t, testKafkaBrokers, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"kafka1:9092", "kafka2:9092"}, cfg.Kafka.BrokerList())
	assert.True(t, decimal.RequireFromString("2500.5").Equal(cfg.AntiFraud.ThresholdAmount()))

	assert.Equal(t, "development", cfg.Application.Env)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "transaction.created", cfg.Kafka.CreatedTopic)
	assert.Equal(t, "transaction.validated", cfg.Kafka.ValidatedTopic)
	assert.Equal(t, "anti-fraud-consumer", cfg.Kafka.AntiFraudGroup)
	assert.Equal(t, "transaction-api-consumer", cfg.Kafka.TransactionGroup)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoDB.URI)
	assert.Equal(t, 10, cfg.WorkerPool.Size)
	assert.True(t, cfg.Outbox.Enabled)

	cfgWithName, err := LoadConfigWithName("configs/test_happy")
	require.NoError(t, err)
	require.NotNil(t, cfgWithName)
	assert.Equal(t, testAppName, cfgWithName.Application.Name)

	cfgWithNameAndType, err := LoadConfigWithNameAndType("configs/test_happy", "env")
	require.NoError(t, err)
	require.NotNil(t, cfgWithNameAndType)
	assert.Equal(t, testAppName, cfgWithNameAndType.Application.Name)
}

func TestLoadConfig_EnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("KAFKA_VALIDATED_TOPIC", "custom.validated")
	t.Setenv("OUTBOX_ENABLED", "false")

	cfg, err := LoadConfig("does_not_exist")
	require.NoError(t, err)

	assert.Equal(t, "custom.validated", cfg.Kafka.ValidatedTopic)
	assert.False(t, cfg.Outbox.Enabled)
}

func defaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	return buildConfig(v)
}

func TestConfig_Validate_HappyPath(t *testing.T) {
	err := defaultConfig().validate()
	assert.NoError(t, err, "Default config should be valid")
}

func TestConfig_Validate_Errors(t *testing.T) {
	testCases := []struct {
		name        string
		mutate      func(c *Config)
		expectedErr string
	}{
		{
			name:        "MissingBrokers",
			mutate:      func(c *Config) { c.Kafka.Brokers = " , " },
			expectedErr: "KAFKA_BROKERS is required",
		},
		{
			name: "SameTopics",
			mutate: func(c *Config) {
				c.Kafka.ValidatedTopic = c.Kafka.CreatedTopic
			},
			expectedErr: "KAFKA_CREATED_TOPIC and KAFKA_VALIDATED_TOPIC must differ",
		},
		{
			name:        "BadThreshold",
			mutate:      func(c *Config) { c.AntiFraud.Threshold = "a lot" },
			expectedErr: "ANTI_FRAUD_THRESHOLD must be a decimal amount",
		},
		{
			name:        "NegativeThreshold",
			mutate:      func(c *Config) { c.AntiFraud.Threshold = "-1" },
			expectedErr: "ANTI_FRAUD_THRESHOLD must not be negative",
		},
		{
			name: "BackoffCeilingBelowFloor",
			mutate: func(c *Config) {
				c.Kafka.RetryBackoff = time.Second
				c.Kafka.MaxRetryBackoff = time.Millisecond
			},
			expectedErr: "KAFKA_MAX_RETRY_BACKOFF must not be lower than KAFKA_RETRY_BACKOFF",
		},
		{
			name:        "ZeroAttempts",
			mutate:      func(c *Config) { c.Kafka.MaxAttempts = 0 },
			expectedErr: "KAFKA_HANDLER_MAX_ATTEMPTS must be greater than 0",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)

			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.expectedErr)
		})
	}
}

func TestConfig_Validate_CollectsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.Port = 0
	cfg.Redis.Addr = ""

	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT must be greater than 0")
	assert.Contains(t, err.Error(), "REDIS_ADDR is required")
}
