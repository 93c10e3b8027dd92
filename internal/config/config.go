// Package config loads service configuration from an optional config file,
// a .env file and PURCHASES_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all service configuration.
type Config struct {
	App        AppConfig
	Log        LogConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Worker     WorkerConfig
	Outbox     OutboxConfig
	Purchasing PurchasingConfig
	Features   map[string]bool
	Ops        OpsConfig
}

// AppConfig holds application-specific settings.
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string
	Development bool
}

// DatabaseConfig holds PostgreSQL pool settings.
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// RedisConfig holds queue connection and queue names.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	// Family is the address family hint: 4, 6 or 0 for either.
	Family int
	DB     int

	QueuePurchases string
	QueueProducts  string

	VisibilityTimeout time.Duration
	MaxAttempts       int
}

// Addr returns host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Network maps Family to a dial network.
func (c RedisConfig) Network() string {
	switch c.Family {
	case 4:
		return "tcp4"
	case 6:
		return "tcp6"
	default:
		return "tcp"
	}
}

// WorkerConfig holds reception worker settings.
type WorkerConfig struct {
	Concurrency     int
	ReserveTimeout  time.Duration
	RecoverInterval time.Duration
}

// OutboxConfig holds transactional outbox relay settings.
type OutboxConfig struct {
	Enabled           bool
	BatchSize         int
	PollInterval      time.Duration
	MaxRetries        int
	CompressThreshold int
	LockTTL           time.Duration
}

// PurchasingConfig holds purchase order settings.
type PurchasingConfig struct {
	// DeliveryMode is "outbox" or "direct".
	DeliveryMode string
	// StockRule is a CEL expression over `status` deciding stock impact.
	StockRule string
}

// OpsConfig holds the ops HTTP endpoint settings.
type OpsConfig struct {
	Addr string
}

// Load reads configuration.
// Priority (highest to lowest):
// 1. Environment variables with PURCHASES_ prefix (e.g. PURCHASES_REDIS_HOST)
// 2. .env file in the working directory
// 3. config.yaml
// 4. Built-in defaults
func Load() (*Config, error) {
	// A missing .env file is fine; real environments inject variables directly.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/purchases")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("PURCHASES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
		},
		Database: DatabaseConfig{
			DSN:             v.GetString("database.dsn"),
			MaxConns:        v.GetInt32("database.max_conns"),
			MinConns:        v.GetInt32("database.min_conns"),
			MaxConnLifetime: v.GetDuration("database.max_conn_lifetime"),
		},
		Redis: RedisConfig{
			Host:              v.GetString("redis.host"),
			Port:              v.GetInt("redis.port"),
			Password:          v.GetString("redis.password"),
			Family:            v.GetInt("redis.family"),
			DB:                v.GetInt("redis.db"),
			QueuePurchases:    v.GetString("redis.queue_purchases"),
			QueueProducts:     v.GetString("redis.queue_products"),
			VisibilityTimeout: v.GetDuration("redis.visibility_timeout"),
			MaxAttempts:       v.GetInt("redis.max_attempts"),
		},
		Worker: WorkerConfig{
			Concurrency:     v.GetInt("worker.concurrency"),
			ReserveTimeout:  v.GetDuration("worker.reserve_timeout"),
			RecoverInterval: v.GetDuration("worker.recover_interval"),
		},
		Outbox: OutboxConfig{
			Enabled:           v.GetBool("outbox.enabled"),
			BatchSize:         v.GetInt("outbox.batch_size"),
			PollInterval:      v.GetDuration("outbox.poll_interval"),
			MaxRetries:        v.GetInt("outbox.max_retries"),
			CompressThreshold: v.GetInt("outbox.compress_threshold"),
			LockTTL:           v.GetDuration("outbox.lock_ttl"),
		},
		Purchasing: PurchasingConfig{
			DeliveryMode: v.GetString("purchasing.delivery_mode"),
			StockRule:    v.GetString("purchasing.stock_rule"),
		},
		Features: map[string]bool{
			"product_cost_update": v.GetBool("features.product_cost_update"),
		},
		Ops: OpsConfig{
			Addr: v.GetString("ops.addr"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "purchases")
	v.SetDefault("app.env", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", time.Hour)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.family", 0)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queue_purchases", "purchases")
	v.SetDefault("redis.queue_products", "products")
	v.SetDefault("redis.visibility_timeout", 5*time.Minute)
	v.SetDefault("redis.max_attempts", 5)

	v.SetDefault("worker.concurrency", 1)
	v.SetDefault("worker.reserve_timeout", 5*time.Second)
	v.SetDefault("worker.recover_interval", time.Minute)

	v.SetDefault("outbox.enabled", true)
	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 500*time.Millisecond)
	v.SetDefault("outbox.max_retries", 5)
	v.SetDefault("outbox.compress_threshold", 10*1024)
	v.SetDefault("outbox.lock_ttl", 30*time.Second)

	v.SetDefault("purchasing.delivery_mode", "outbox")
	v.SetDefault("purchasing.stock_rule", `status in ["ORDER", "PAID"]`)

	v.SetDefault("features.product_cost_update", false)

	v.SetDefault("ops.addr", ":8081")
}

// Validate checks required settings.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.Redis.QueuePurchases == "" || c.Redis.QueueProducts == "" {
		return errors.New("redis queue names are required")
	}
	switch c.Redis.Family {
	case 0, 4, 6:
	default:
		return fmt.Errorf("redis.family must be 0, 4 or 6, got %d", c.Redis.Family)
	}
	switch c.Purchasing.DeliveryMode {
	case "outbox", "direct":
	default:
		return fmt.Errorf("purchasing.delivery_mode must be outbox or direct, got %q", c.Purchasing.DeliveryMode)
	}
	if c.Worker.Concurrency < 1 {
		return errors.New("worker.concurrency must be at least 1")
	}
	if c.Worker.RecoverInterval <= 0 || c.Outbox.PollInterval <= 0 {
		return errors.New("worker.recover_interval and outbox.poll_interval must be positive")
	}
	if c.Outbox.BatchSize < 1 || c.Outbox.MaxRetries < 1 {
		return errors.New("outbox.batch_size and outbox.max_retries must be at least 1")
	}
	return nil
}
