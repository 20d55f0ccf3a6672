package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	for k, v := range map[string]string{
		"APP_ENV": "test", "APP_PORT": "8080", "JWT_SECRET": "s3cret",
		"DB_USER": "app", "DB_HOST": "db", "DB_PORT": "3306", "DB_NAME": "rooms",
	} {
		t.Setenv(k, v)
	}
	t.Setenv("DB_PASS", "")
	t.Setenv("LOG_LEVEL", "")

	c := Load()
	assert.Equal(t, "8080", c.Port)
	assert.Equal(t, DatabaseConfig{User: "app", Host: "db", Port: "3306", Name: "rooms"}, c.DB)
	assert.Equal(t, "info", c.LogLevel)
}

func TestLoadQueueConfig(t *testing.T) {
	t.Setenv("TOTAL_ROOMS", "")
	t.Setenv("QUEUE_OP_TIMEOUT", "")
	t.Setenv("QUEUE_MAX_ATTEMPTS", "")
	assert.Equal(t, QueueConfig{TotalRooms: 2, OpTimeout: 5 * time.Second, MaxAttempts: 3}, LoadQueueConfig())

	t.Setenv("TOTAL_ROOMS", "4")
	t.Setenv("QUEUE_OP_TIMEOUT", "750ms")
	t.Setenv("QUEUE_MAX_ATTEMPTS", "0")
	assert.Equal(t, QueueConfig{TotalRooms: 4, OpTimeout: 750 * time.Millisecond, MaxAttempts: 1}, LoadQueueConfig())

	t.Setenv("TOTAL_ROOMS", "lots")
	assert.Equal(t, 2, LoadQueueConfig().TotalRooms)
}

func TestLoadNotifyConfig_BrokerURLFallback(t *testing.T) {
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("AMQP_URL", "amqp://u:p@mq:5672/")
	t.Setenv("NOTIFY_WORKERS", "-3")
	c := LoadNotifyConfig()
	assert.Equal(t, "amqp://u:p@mq:5672/", c.AMQPURL)
	assert.Equal(t, 1, c.Workers)
	assert.Equal(t, "room.assigned", c.Queue)

	t.Setenv("RABBITMQ_URL", "amqp://primary/")
	assert.Equal(t, "amqp://primary/", LoadNotifyConfig().AMQPURL)
}

func TestLoadRateLimitConfig_Overrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	c := LoadRateLimitConfig()
	assert.Equal(t, 5, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, 2*time.Second, c.RefillInterval)
	assert.Equal(t, 10*time.Second, c.TTL)
}

func TestLoadRedisConfig(t *testing.T) {
	t.Setenv("REDIS_ADDR", "cache:6380")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("REDIS_PORT", "")
	t.Setenv("REDIS_TLS", "1")
	c := LoadRedisConfig()
	assert.Equal(t, "cache:6380", c.Addr)
	assert.True(t, c.TLS)

	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6379")
	assert.Equal(t, "redis:6379", LoadRedisConfig().Addr)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("CACHE_ENABLED", "off")
	c := LoadCacheConfig()
	assert.False(t, c.Enabled)
	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, c.Methods)
}

func TestNewLogger(t *testing.T) {
	l := NewLogger("debug", "prod")
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, l.Formatter)

	l = NewLogger("nonsense", "dev")
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}
