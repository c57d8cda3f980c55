package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 10*time.Second, c.Server.ReadTimeout)
	assert.Equal(t, "UTC", c.Chart.Timezone)
	assert.Equal(t, "memory", c.Cache.Backend)
	assert.Equal(t, 5*time.Minute, c.Cache.TTL)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.Equal(t, "trendchart.requests", c.Kafka.RequestTopic)
	assert.False(t, c.Queue.Enabled)
	assert.Equal(t, "trendchart:queue", c.Queue.KeyPrefix)
	assert.Equal(t, time.Hour, c.Queue.ResultTTL)
	assert.NoError(t, c.Validate())
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: production
server:
  port: 9000
chart:
  timezone: Europe/Berlin
  exclude_future: true
cache:
  backend: layered
  ttl: 1m
kafka:
  enabled: true
  brokers: ["k1:9092", "k2:9092"]
`))
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 9000, c.Server.Port)
	assert.True(t, c.Chart.ExcludeFuture)
	assert.Equal(t, time.Minute, c.Cache.TTL)
	assert.Equal(t, 30*time.Second, c.Cache.L1TTL, "untouched defaults survive")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)

	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestParseValidation(t *testing.T) {
	cases := map[string]string{
		"bad timezone":     "chart:\n  timezone: Mars/Olympus\n",
		"bad backend":      "cache:\n  backend: disk\n",
		"kafka no brokers": "kafka:\n  enabled: true\n",
		"collector alone":  "logging:\n  collector:\n    enabled: true\n",
		"bad port":         "server:\n  port: 70000\n",
		"queue no redis":   "queue:\n  enabled: true\ncache:\n  redis:\n    addr: \"\"\n",
		"queue workers":    "queue:\n  enabled: true\n  workers: -1\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"HTTP_PORT":     "9090",
		"LOG_LEVEL":     "debug",
		"TREND_TZ":      "Asia/Tokyo",
		"REDIS_ADDR":    "redis:6379",
		"KAFKA_BROKERS": "a:9092,b:9092",
		"QUEUE_ENABLED": "true",
	}
	c := Default()
	require.NoError(t, c.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, 9090, c.Server.Port)
	assert.Equal(t, "debug", c.Logging.Level)
	assert.Equal(t, "Asia/Tokyo", c.Chart.Timezone)
	assert.Equal(t, "redis:6379", c.Cache.Redis.Addr)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Queue.Enabled)

	assert.Error(t, Default().ApplyEnv(func(k string) string {
		if k == "HTTP_PORT" {
			return "eighty"
		}
		return ""
	}))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: test\nratelimit:\n  rps: 5\n"), 0o644))
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, 5.0, c.RateLimit.RPS)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
