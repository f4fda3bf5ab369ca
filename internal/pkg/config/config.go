package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	IngestServerAddr string `env:"INGEST_SERVER_ADDR" envDefault:":8080"`
	AdminServerAddr  string `env:"ADMIN_SERVER_ADDR" envDefault:":9091"`
	MaxBatchSize     int64  `env:"MAX_BATCH_SIZE_BYTES" envDefault:"5242880"` // 5MB

	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	RateLimitPeriod   time.Duration `env:"RATE_LIMIT_PERIOD" envDefault:"1s"`

	RedisAddr      string `env:"REDIS_ADDR,required,notEmpty"`
	RedisDLQStream string `env:"REDIS_DLQ_STREAM" envDefault:"log_records_dlq"`

	// PostgresURL enables API key auth on ingest and is required by the consumer.
	PostgresURL    string        `env:"POSTGRES_URL"`
	APIKeyCacheTTL time.Duration `env:"API_KEY_CACHE_TTL" envDefault:"5m"`

	PIIRedactionFields string `env:"PII_REDACTION_FIELDS" envDefault:"email,password,credit_card,ssn"`

	WALPath        string `env:"WAL_PATH" envDefault:"./wal"`
	WALSegmentSize int64  `env:"WAL_SEGMENT_SIZE_BYTES" envDefault:"104857600"`  // 100MB
	WALMaxDiskSize int64  `env:"WAL_MAX_DISK_SIZE_BYTES" envDefault:"1073741824"` // 1GB

	AlertChannel      string        `env:"ALERT_CHANNEL" envDefault:"log"`
	AlertWebhookURL   string        `env:"ALERT_WEBHOOK_URL"`
	AlertRedisChannel string        `env:"ALERT_REDIS_CHANNEL" envDefault:"alerts"`
	KafkaBrokers      []string      `env:"KAFKA_BROKERS" envSeparator:","`
	AlertKafkaTopic   string        `env:"ALERT_KAFKA_TOPIC" envDefault:"log-alerts"`
	AlertTimeout      time.Duration `env:"ALERT_TIMEOUT" envDefault:"5s"`

	ConsumerGroup        string        `env:"CONSUMER_GROUP" envDefault:"log-processors"`
	ConsumerBatchSize    int           `env:"CONSUMER_BATCH_SIZE" envDefault:"1000"`
	ConsumerRetryCount   int           `env:"CONSUMER_RETRY_COUNT" envDefault:"3"`
	ConsumerRetryBackoff time.Duration `env:"CONSUMER_RETRY_BACKOFF" envDefault:"1s"`
	ConsumerMetricsAddr  string        `env:"CONSUMER_METRICS_ADDR" envDefault:":9092"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.RateLimitRequests)
	}
	if c.RateLimitPeriod <= 0 {
		return fmt.Errorf("RATE_LIMIT_PERIOD must be positive, got %s", c.RateLimitPeriod)
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("MAX_BATCH_SIZE_BYTES must be positive, got %d", c.MaxBatchSize)
	}
	return nil
}

// RedactionFields returns the configured PII keys.
func (c *Config) RedactionFields() []string {
	return strings.Split(c.PIIRedactionFields, ",")
}
