package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration. Values come from the built-in
// defaults, then the optional YAML file named by CONFIG_FILE, then environment
// variables, each layer overriding the previous one.
type Config struct {
	AppPort         string        `yaml:"app_port"`
	AppEnv          string        `yaml:"app_env"`
	LogLevel        string        `yaml:"log_level"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"` // CORS allowed origins

	AWSRegion       string       `yaml:"aws_region"`
	AWSEndpointURL  string       `yaml:"aws_endpoint_url"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID  string       `yaml:"-"`
	AWSSecretKey    string       `yaml:"-"`
	DynamoTables    DynamoTables `yaml:"dynamo_tables"`
	BootstrapTables bool         `yaml:"bootstrap_tables"`

	JWTPrivateKeyPath string        `yaml:"jwt_private_key_path"`
	JWTPublicKeyPath  string        `yaml:"jwt_public_key_path"`
	JWTExpiry         time.Duration `yaml:"jwt_expiry"`

	Push     Push     `yaml:"push"`
	Dispatch Dispatch `yaml:"dispatch"`
	Reports  Reports  `yaml:"reports"`
	Redis    Redis    `yaml:"redis"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Queue         string `yaml:"queue"`
	Tokens        string `yaml:"tokens"`
	Notifications string `yaml:"notifications"`
	Users         string `yaml:"users"`
	Metrics       string `yaml:"metrics"`
}

// Push configures the push gateway client and chunk pacing.
type Push struct {
	GatewayURL  string        `yaml:"gateway_url"`
	AccessToken string        `yaml:"-"`
	Timeout     time.Duration `yaml:"timeout"`
	ChunkSize   int           `yaml:"chunk_size"`
	ChunkDelay  time.Duration `yaml:"chunk_delay"`
}

// Dispatch configures paging of the storage operations and the limits of one
// invocation.
type Dispatch struct {
	TokenPageSize     int           `yaml:"token_page_size"`
	ClaimLimit        int           `yaml:"claim_limit"`
	PersistBatchSize  int           `yaml:"persist_batch_size"`
	RequireSignedIn   bool          `yaml:"require_signed_in"`
	RateLimitPerSec   int           `yaml:"rate_limit_per_sec"`
	InvocationTimeout time.Duration `yaml:"invocation_timeout"`
}

// Reports configures the optional per-run report sinks.
type Reports struct {
	MetricsEnabled bool          `yaml:"metrics_enabled"`
	MetricsTTL     time.Duration `yaml:"metrics_ttl"`
	Bucket         string        `yaml:"bucket"`
	Prefix         string        `yaml:"prefix"`
	AlertTopicARN  string        `yaml:"alert_topic_arn"`
}

// Redis configures the batch run lease. An empty URL disables it.
type Redis struct {
	URL      string        `yaml:"-"`
	LeaseKey string        `yaml:"lease_key"`
	LeaseTTL time.Duration `yaml:"lease_ttl"`
}

// Gateway limits the dispatcher and token lookups must stay within.
const (
	MaxChunkSize     = 100
	MaxTokenPageSize = 50
)

func defaults() *Config {
	return &Config{
		AppPort:         "3000",
		AppEnv:          "development",
		LogLevel:        "info",
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
		AllowedOrigins:  []string{"*"},
		AWSRegion:       "us-east-1",
		DynamoTables: DynamoTables{
			Queue:         "notification_queue",
			Tokens:        "push_tokens",
			Notifications: "notifications",
			Users:         "users",
			Metrics:       "dispatch_metrics",
		},
		JWTPrivateKeyPath: "./private_key.pem",
		JWTPublicKeyPath:  "./public_key.pem",
		JWTExpiry:         7 * 24 * time.Hour,
		Push: Push{
			GatewayURL: "https://exp.host/--/api/v2/push/send",
			Timeout:    30 * time.Second,
			ChunkSize:  MaxChunkSize,
			ChunkDelay: 100 * time.Millisecond,
		},
		Dispatch: Dispatch{
			TokenPageSize:     MaxTokenPageSize,
			ClaimLimit:        500,
			PersistBatchSize:  100,
			RequireSignedIn:   true,
			RateLimitPerSec:   2,
			InvocationTimeout: 4 * time.Minute,
		},
		Reports: Reports{
			MetricsEnabled: true,
			MetricsTTL:     90 * 24 * time.Hour,
			Prefix:         "dispatch-reports",
		},
		Redis: Redis{
			LeaseKey: "push-dispatch:batch-lease",
			LeaseTTL: 5 * time.Minute,
		},
	}
}

// Load reads configuration from the optional YAML file and the environment.
func Load() (*Config, error) {
	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(c *Config) {
	c.AppPort = getEnv("APP_PORT", c.AppPort)
	c.AppEnv = getEnv("APP_ENV", c.AppEnv)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.WriteTimeout = getEnvDuration("HTTP_WRITE_TIMEOUT", c.WriteTimeout)
	c.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", c.ShutdownTimeout)
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = strings.Split(v, ",")
	}

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.AWSEndpointURL = getEnv("AWS_ENDPOINT_URL", c.AWSEndpointURL)
	c.AWSAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", c.AWSAccessKeyID)
	c.AWSSecretKey = getEnv("AWS_SECRET_ACCESS_KEY", c.AWSSecretKey)
	c.DynamoTables.Queue = getEnv("DYNAMO_TABLE_QUEUE", c.DynamoTables.Queue)
	c.DynamoTables.Tokens = getEnv("DYNAMO_TABLE_TOKENS", c.DynamoTables.Tokens)
	c.DynamoTables.Notifications = getEnv("DYNAMO_TABLE_NOTIFICATIONS", c.DynamoTables.Notifications)
	c.DynamoTables.Users = getEnv("DYNAMO_TABLE_USERS", c.DynamoTables.Users)
	c.DynamoTables.Metrics = getEnv("DYNAMO_TABLE_METRICS", c.DynamoTables.Metrics)
	c.BootstrapTables = getEnvBool("DYNAMO_BOOTSTRAP", c.BootstrapTables)

	c.JWTPrivateKeyPath = getEnv("JWT_PRIVATE_KEY_PATH", c.JWTPrivateKeyPath)
	c.JWTPublicKeyPath = getEnv("JWT_PUBLIC_KEY_PATH", c.JWTPublicKeyPath)
	if days := getEnvInt("JWT_EXPIRY_DAYS", 0); days > 0 {
		c.JWTExpiry = time.Duration(days) * 24 * time.Hour
	}

	c.Push.GatewayURL = getEnv("PUSH_GATEWAY_URL", c.Push.GatewayURL)
	c.Push.AccessToken = getEnv("PUSH_ACCESS_TOKEN", c.Push.AccessToken)
	c.Push.Timeout = getEnvDuration("PUSH_TIMEOUT", c.Push.Timeout)
	c.Push.ChunkSize = getEnvInt("PUSH_CHUNK_SIZE", c.Push.ChunkSize)
	c.Push.ChunkDelay = getEnvDuration("PUSH_CHUNK_DELAY", c.Push.ChunkDelay)

	c.Dispatch.TokenPageSize = getEnvInt("TOKEN_PAGE_SIZE", c.Dispatch.TokenPageSize)
	c.Dispatch.ClaimLimit = getEnvInt("QUEUE_CLAIM_LIMIT", c.Dispatch.ClaimLimit)
	c.Dispatch.PersistBatchSize = getEnvInt("PERSIST_BATCH_SIZE", c.Dispatch.PersistBatchSize)
	c.Dispatch.RequireSignedIn = getEnvBool("REQUIRE_SIGNED_IN", c.Dispatch.RequireSignedIn)
	c.Dispatch.RateLimitPerSec = getEnvInt("DISPATCH_RATE_LIMIT", c.Dispatch.RateLimitPerSec)
	c.Dispatch.InvocationTimeout = getEnvDuration("INVOCATION_TIMEOUT", c.Dispatch.InvocationTimeout)

	c.Reports.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.Reports.MetricsEnabled)
	c.Reports.MetricsTTL = getEnvDuration("METRICS_TTL", c.Reports.MetricsTTL)
	c.Reports.Bucket = getEnv("REPORT_BUCKET", c.Reports.Bucket)
	c.Reports.Prefix = getEnv("REPORT_PREFIX", c.Reports.Prefix)
	c.Reports.AlertTopicARN = getEnv("ALERT_TOPIC_ARN", c.Reports.AlertTopicARN)

	c.Redis.URL = getEnv("REDIS_URL", c.Redis.URL)
	c.Redis.LeaseKey = getEnv("BATCH_LEASE_KEY", c.Redis.LeaseKey)
	c.Redis.LeaseTTL = getEnvDuration("BATCH_LEASE_TTL", c.Redis.LeaseTTL)
}

// Validate rejects settings the gateway or DynamoDB would refuse at runtime.
func (c *Config) Validate() error {
	var errs []error
	if c.Push.ChunkSize < 1 || c.Push.ChunkSize > MaxChunkSize {
		errs = append(errs, fmt.Errorf("push chunk size must be between 1 and %d, got %d", MaxChunkSize, c.Push.ChunkSize))
	}
	if c.Dispatch.TokenPageSize < 1 || c.Dispatch.TokenPageSize > MaxTokenPageSize {
		errs = append(errs, fmt.Errorf("token page size must be between 1 and %d, got %d", MaxTokenPageSize, c.Dispatch.TokenPageSize))
	}
	if c.Dispatch.ClaimLimit < 1 {
		errs = append(errs, fmt.Errorf("queue claim limit must be positive, got %d", c.Dispatch.ClaimLimit))
	}
	if c.Dispatch.PersistBatchSize < 1 {
		errs = append(errs, fmt.Errorf("persist batch size must be positive, got %d", c.Dispatch.PersistBatchSize))
	}
	if c.Dispatch.RateLimitPerSec < 1 {
		errs = append(errs, fmt.Errorf("dispatch rate limit must be positive, got %d", c.Dispatch.RateLimitPerSec))
	}
	if c.Dispatch.InvocationTimeout <= 0 {
		errs = append(errs, errors.New("invocation timeout must be positive"))
	}
	if c.Push.ChunkDelay < 0 {
		errs = append(errs, errors.New("push chunk delay must not be negative"))
	}
	if c.Push.GatewayURL == "" {
		errs = append(errs, errors.New("push gateway url is required"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
