package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"TrendChart/internal/domain/repository"
	domsvc "TrendChart/internal/domain/service"
	"TrendChart/internal/handler/api"
	internalrepo "TrendChart/internal/repository"
	icache "TrendChart/internal/service/cache"
	imetrics "TrendChart/internal/service/metrics"
	"TrendChart/internal/service/ratelimit"
	"TrendChart/internal/services/render"
	"TrendChart/internal/usecase"
	"TrendChart/pkg/config"
	xhttp "TrendChart/pkg/http"
	pkgkafka "TrendChart/pkg/kafka"
	applogger "TrendChart/pkg/logger"
	"TrendChart/pkg/metrics"
	"TrendChart/pkg/queue"
	"TrendChart/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      cfg.Logging.Output,
		Service:     "trendchart",
		CollectWarn: cfg.Logging.Collector.CollectWarn,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	imetrics.Register()
	return metrics.New()
}

// ProvideLocation resolves the default chart time zone.
func ProvideLocation(cfg *config.Config) (*time.Location, error) {
	return cfg.Location()
}

// ProvideChartCache builds the configured cache backend. A nil cache disables caching.
func ProvideChartCache(cfg *config.Config, l *applogger.Logger) (repository.ChartCache, func(), error) {
	noop := func() {}
	if !cfg.Cache.Enabled {
		return nil, noop, nil
	}
	mem := icache.NewTTLCache(cfg.Cache.Size, cfg.Cache.TTL)
	if cfg.Cache.Backend == "memory" {
		return mem, noop, nil
	}

	rc := icache.NewRedisCache(icache.RedisConfig{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
		Prefix:   cfg.Cache.Redis.Prefix,
		Timeout:  cfg.Cache.Redis.Timeout,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		_ = rc.Close()
		return nil, noop, fmt.Errorf("redis cache: %w", err)
	}
	cleanup := func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", applogger.Error(err))
		}
	}
	if cfg.Cache.Backend == "redis" {
		return rc, cleanup, nil
	}
	return icache.NewLayeredCache(mem, rc, cfg.Cache.L1TTL), cleanup, nil
}

// ProvideRenderer returns the dataset renderer.
func ProvideRenderer() domsvc.Renderer {
	return render.NewDatasetRenderer()
}

// ProvideChartGenerator creates the chart use case.
func ProvideChartGenerator(
	cfg *config.Config,
	renderer domsvc.Renderer,
	m repository.Metrics,
	cache repository.ChartCache,
	loc *time.Location,
	l *applogger.Logger,
) *usecase.ChartGenerator {
	opts := []usecase.ChartGeneratorOption{
		usecase.WithLocation(loc),
		usecase.WithExcludeFuture(cfg.Chart.ExcludeFuture),
	}
	if cache != nil {
		opts = append(opts, usecase.WithCache(cache, cfg.Cache.TTL))
	}
	g := usecase.NewChartGenerator(renderer, m, opts...)
	g.SetLogger(l)
	return g
}

// ProvideChartsHandler creates the HTTP handler and registers health checks.
func ProvideChartsHandler(l *applogger.Logger, gen *usecase.ChartGenerator, cache repository.ChartCache, q *queue.RedisQueue) *api.ChartsEchoHandler {
	h := api.NewChartsEchoHandler(l, gen)
	if p, ok := cache.(api.Pinger); ok {
		h.AddHealthCheck("cache", p)
	}
	if q != nil {
		h.AddHealthCheck("queue", q)
	}
	return h
}

// ProvideQueueRedisClient connects to Redis for the chart job queue, or returns nil when the queue is disabled.
func ProvideQueueRedisClient(cfg *config.Config, l *applogger.Logger) (*redis.Client, func(), error) {
	if !cfg.Queue.Enabled {
		return nil, func() {}, nil
	}
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, func() {}, fmt.Errorf("queue redis: %w", err)
	}
	cleanup := func() {
		if err := cli.Close(); err != nil {
			l.Warn("queue redis close error", applogger.Error(err))
		}
	}
	return cli, cleanup, nil
}

// ProvideJobStore stores chart job results in Redis, or returns nil without a queue connection.
func ProvideJobStore(cfg *config.Config, cli *redis.Client) repository.JobStore {
	if cli == nil {
		return nil
	}
	return internalrepo.NewRedisJobStore(cli, cfg.Queue.KeyPrefix, cfg.Queue.ResultTTL)
}

// ProvideJobQueue creates the Redis chart job queue. With zero workers it only enqueues.
func ProvideJobQueue(cfg *config.Config, cli *redis.Client, l *applogger.Logger) *queue.RedisQueue {
	if cli == nil {
		return nil
	}
	mode := queue.ModeProducerConsumer
	if cfg.Queue.Workers == 0 {
		mode = queue.ModeProducerOnly
	}
	return queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, cli, mode, queue.WithKeyPrefix(cfg.Queue.KeyPrefix))
}

// ProvideChartJobs creates the chart job use case and registers its worker job on the queue.
func ProvideChartJobs(
	cfg *config.Config,
	q *queue.RedisQueue,
	store repository.JobStore,
	gen *usecase.ChartGenerator,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.ChartJobService {
	if q == nil || store == nil {
		return nil
	}
	if cfg.Queue.Workers > 0 {
		job := usecase.NewQueueChartJob(gen, store, m)
		job.SetLogger(l)
		q.RegisterJob(job)
	}
	return usecase.NewChartJobService(q, store, m)
}

// ProvideChartJobsHandler creates the chart job HTTP handler, or nil when the queue is disabled.
func ProvideChartJobsHandler(l *applogger.Logger, jobs *usecase.ChartJobService) *api.ChartJobsEchoHandler {
	if jobs == nil {
		return nil
	}
	return api.NewChartJobsEchoHandler(l, jobs)
}

// ProvideRateLimiter creates the per-IP limiter, or nil when disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(
	cfg *config.Config,
	h *api.ChartsEchoHandler,
	jh *api.ChartJobsEchoHandler,
	limiter *ratelimit.Limiter,
	l *applogger.Logger,
) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
		xhttp.WithLogger(l),
	}
	if !cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(""))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	}
	if limiter != nil {
		opts = append(opts, xhttp.WithMiddleware(limiter.Middleware()))
	}
	if jh != nil {
		opts = append(opts, xhttp.WithHandlers(jh))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, func() {}, fmt.Errorf("kafka producer: %w", err)
	}
	cleanup := func() {
		if err := producer.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	return producer, cleanup, nil
}

// ProvideResultPublisher publishes chart job results, or nil without a producer.
func ProvideResultPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.ResultTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetLogger(l)
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook(), pkgkafka.LoggingHook(l)))
	return consumer, nil
}

// ProvideKafkaChartHandler creates the chart job handler, or nil without a publisher.
func ProvideKafkaChartHandler(
	cfg *config.Config,
	gen *usecase.ChartGenerator,
	pub repository.Publisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.KafkaChartHandler {
	if pub == nil {
		return nil
	}
	h := usecase.NewKafkaChartHandler(cfg.Kafka.RequestTopic, gen, pub, m)
	h.SetLogger(l)
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	limiter *ratelimit.Limiter,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaChartHandler,
	producer *pkgkafka.Producer,
	q *queue.RedisQueue,
) *server.App {
	if cfg.Logging.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Logging.Collector.Interval,
			CountThreshold: cfg.Logging.Collector.Threshold,
			Topic:          cfg.Logging.Collector.Topic,
			Service:        "trendchart",
			Publisher:      producer,
		})
	}
	app := server.New(cfg, l, httpServer)
	if limiter != nil {
		app.SetRateLimiter(limiter)
	}
	if consumer != nil && kh != nil {
		app.SetConsumer(consumer, kh)
	}
	if q != nil {
		app.SetJobQueue(q)
	}
	return app
}
