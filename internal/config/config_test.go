package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PURCHASES_DATABASE_DSN", "postgres://localhost/purchases")
	t.Setenv("PURCHASES_REDIS_FAMILY", "6")
	t.Setenv("PURCHASES_REDIS_QUEUE_PURCHASES", "jobs-purchases")
	t.Setenv("PURCHASES_FEATURES_PRODUCT_COST_UPDATE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/purchases", cfg.Database.DSN)
	assert.Equal(t, "jobs-purchases", cfg.Redis.QueuePurchases)
	assert.Equal(t, "products", cfg.Redis.QueueProducts)
	assert.Equal(t, "tcp6", cfg.Redis.Network())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, "outbox", cfg.Purchasing.DeliveryMode)
	assert.Equal(t, 500*time.Millisecond, cfg.Outbox.PollInterval)
	assert.True(t, cfg.Features["product_cost_update"])
}

func TestLoad_RequiresDSN(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PURCHASES_DATABASE_DSN", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database:   DatabaseConfig{DSN: "x"},
			Redis:      RedisConfig{QueuePurchases: "a", QueueProducts: "b"},
			Worker:     WorkerConfig{Concurrency: 1, RecoverInterval: time.Minute},
			Outbox:     OutboxConfig{PollInterval: time.Second, BatchSize: 100, MaxRetries: 5},
			Purchasing: PurchasingConfig{DeliveryMode: "direct"},
		}
	}

	assert.NoError(t, valid().Validate())

	c := valid()
	c.Redis.Family = 5
	assert.Error(t, c.Validate())

	c = valid()
	c.Purchasing.DeliveryMode = "kafka"
	assert.Error(t, c.Validate())

	c = valid()
	c.Worker.Concurrency = 0
	assert.Error(t, c.Validate())

	c = valid()
	c.Outbox.PollInterval = 0
	assert.Error(t, c.Validate())

	c = valid()
	c.Outbox.BatchSize = 0
	assert.EqualError(t, c.Validate(), "outbox.batch_size and outbox.max_retries must be at least 1")

	c = valid()
	c.Outbox.MaxRetries = -1
	assert.Error(t, c.Validate())
}
