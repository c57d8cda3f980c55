package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string          `yaml:"environment" default:"development"`
	Server      ServerConfig    `yaml:"server"`
	Logging     LoggingConfig   `yaml:"logging"`
	Metrics     MetricsConfig   `yaml:"metrics"`
	Chart       ChartConfig     `yaml:"chart"`
	Cache       CacheConfig     `yaml:"cache"`
	RateLimit   RateLimitConfig `yaml:"ratelimit"`
	Kafka       KafkaConfig     `yaml:"kafka"`
	Queue       QueueConfig     `yaml:"queue"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	SlowThreshold   time.Duration `yaml:"slow_threshold" default:"500ms"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type LoggingConfig struct {
	Level     string          `yaml:"level" default:"info"`
	Format    string          `yaml:"format" default:"json"`
	Output    string          `yaml:"output" default:"stdout"`
	Collector CollectorConfig `yaml:"collector"`
}

// CollectorConfig controls aggregation of error logs onto a Kafka topic.
type CollectorConfig struct {
	Enabled     bool          `yaml:"enabled"`
	Topic       string        `yaml:"topic" default:"trendchart.logs"`
	Interval    time.Duration `yaml:"interval" default:"30s"`
	Threshold   int           `yaml:"threshold" default:"100"`
	CollectWarn bool          `yaml:"collect_warn"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// ChartConfig holds defaults applied to every chart request.
type ChartConfig struct {
	Timezone      string `yaml:"timezone" default:"UTC"`
	ExcludeFuture bool   `yaml:"exclude_future"`
}

type CacheConfig struct {
	Enabled bool          `yaml:"enabled" default:"true"`
	Backend string        `yaml:"backend" default:"memory"` // memory, redis, layered
	Size    int           `yaml:"size" default:"1024"`
	TTL     time.Duration `yaml:"ttl" default:"5m"`
	L1TTL   time.Duration `yaml:"l1_ttl" default:"30s"`
	Redis   RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string        `yaml:"addr" default:"localhost:6379"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix" default:"trendchart"`
	Timeout  time.Duration `yaml:"timeout" default:"2s"`
}

type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" default:"true"`
	RPS     float64 `yaml:"rps" default:"20"`
	Burst   int     `yaml:"burst" default:"40"`
}

type KafkaConfig struct {
	Enabled      bool           `yaml:"enabled"`
	Brokers      []string       `yaml:"brokers"`
	RequestTopic string         `yaml:"request_topic" default:"trendchart.requests"`
	ResultTopic  string         `yaml:"result_topic" default:"trendchart.results"`
	RequiredAcks int            `yaml:"required_acks" default:"-1"`
	Compression  string         `yaml:"compression" default:"gzip"`
	Producer     ProducerConfig `yaml:"producer"`
	Consumer     ConsumerConfig `yaml:"consumer"`
}

type ProducerConfig struct {
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	Linger       time.Duration `yaml:"linger" default:"10ms"`
	BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
	BatchSize    int           `yaml:"batch_size" default:"100"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	Async        bool          `yaml:"async"`
}

type ConsumerConfig struct {
	GroupID    string        `yaml:"group_id" default:"trendchart"`
	Workers    int           `yaml:"workers" default:"4"`
	BufferSize int           `yaml:"buffer_size" default:"64"`
	RetryMax   int           `yaml:"retry_max" default:"3"`
	BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
	BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
	DLQTopic   string        `yaml:"dlq_topic"`
	MinBytes   int           `yaml:"min_bytes" default:"1"`
	MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
}

// QueueConfig controls asynchronous chart jobs on a Redis list. The connection comes from cache.redis.
type QueueConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Workers    int           `yaml:"workers" default:"2"` // 0 runs enqueue only
	RetryLimit int           `yaml:"retry_limit" default:"3"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
	KeyPrefix  string        `yaml:"key_prefix" default:"trendchart:queue"`
	ResultTTL  time.Duration `yaml:"result_ttl" default:"1h"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads .env (if present), the YAML file (if path is set) and then
// applies environment variable overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var (
		c   *Config
		err error
	)
	if path != "" {
		c, err = Load(path)
		if err != nil {
			return nil, err
		}
	} else {
		c = Default()
	}

	if err := c.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("TREND_TZ"); v != "" {
		c.Chart.Timezone = v
	}
	if v := getenv("CACHE_BACKEND"); v != "" {
		c.Cache.Backend = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Cache.Redis.Password = v
	}
	if v := getenv("QUEUE_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("QUEUE_ENABLED: %w", err)
		}
		c.Queue.Enabled = enabled
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	return nil
}

// Location resolves the configured chart time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Chart.Timezone)
	if err != nil {
		return nil, fmt.Errorf("chart.timezone: %w", err)
	}
	return loc, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case "memory", "redis", "layered":
	default:
		return fmt.Errorf("cache.backend must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Backend)
	}
	if c.Cache.Enabled && c.Cache.Backend != "memory" && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required for backend '%s'", c.Cache.Backend)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("ratelimit.rps and ratelimit.burst must be positive")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.RequestTopic == "" || c.Kafka.ResultTopic == "" {
			return fmt.Errorf("kafka.request_topic and kafka.result_topic are required")
		}
	}
	if c.Queue.Enabled {
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("queue requires cache.redis.addr")
		}
		if c.Queue.Workers < 0 || c.Queue.RetryLimit < 0 {
			return fmt.Errorf("queue.workers and queue.retry_limit cannot be negative")
		}
		if c.Queue.ResultTTL <= 0 {
			return fmt.Errorf("queue.result_ttl must be positive")
		}
	}
	if c.Logging.Collector.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("logging.collector requires kafka to be enabled")
	}
	return nil
}
