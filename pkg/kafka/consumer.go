package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	applogger "TrendChart/pkg/logger"
)

// MessageHandler handles every message of one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer reads the registered topics with one kafka-go Reader each and fans messages out
// to a worker pool. Offsets are committed only after a message was handled or dead-lettered.
type Consumer struct {
	cfg      *ConsumerConfig
	readers  map[string]*kafka.Reader
	handlers map[string]MessageHandler
	hook     ConsumerHook
	dlq      messageWriter
	l        *applogger.Logger

	queue    chan *message
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// one message in flight per partition keeps per-key ordering
	partitions sync.Map // topicPartition -> *sync.Mutex
}

type topicPartition struct {
	topic     string
	partition int
}

type message struct {
	topic string
	data  []byte
	km    kafka.Message
}

func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := newConsumer(cfg)
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}
	registerConsumerMetrics()
	return c, nil
}

func newConsumer(cfg *ConsumerConfig) *Consumer {
	return &Consumer{
		cfg:      cfg,
		readers:  make(map[string]*kafka.Reader),
		handlers: make(map[string]MessageHandler),
		hook:     NoopHook{},
		l:        applogger.Nop(),
		queue:    make(chan *message, cfg.BufferSize),
		stop:     make(chan struct{}),
	}
}

func (c *Consumer) SetLogger(l *applogger.Logger) {
	if l != nil {
		c.l = l
	}
}

// WithConsumerHook installs h around every handler call.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler must be called before Start. A second handler for a topic is ignored.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	topic := handler.Topic()
	if _, dup := c.handlers[topic]; dup {
		c.l.Warn("kafka.consumer duplicate handler", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = handler
}

func (c *Consumer) Start() error {
	if len(c.handlers) == 0 {
		return errors.New("kafka consumer: no handlers registered")
	}
	offset := kafka.FirstOffset
	if c.cfg.AutoOffsetReset == "latest" {
		offset = kafka.LastOffset
	}
	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
			StartOffset: offset,
		})
	}

	c.wg.Add(c.cfg.WorkerCount + len(c.readers))
	for i := 0; i < c.cfg.WorkerCount; i++ {
		go c.work()
	}
	for topic, r := range c.readers {
		go c.read(topic, r)
	}

	c.l.Info("kafka.consumer started",
		applogger.String("group", c.cfg.GroupID),
		applogger.Strings("topics", c.topics()),
		applogger.Int("workers", c.cfg.WorkerCount))
	return nil
}

func (c *Consumer) topics() []string {
	out := make([]string, 0, len(c.readers))
	for t := range c.readers {
		out = append(out, t)
	}
	return out
}

// Stop signals readers and workers, waits for them until ctx expires, then closes the
// readers and the dead letter writer.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stop)

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("kafka consumer stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.l.Warn("kafka.consumer reader close", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.l.Warn("kafka.consumer dlq close", applogger.Error(cerr))
			}
		}
		c.l.Info("kafka.consumer stopped", applogger.Bool("clean", err == nil))
	})
	return err
}

func (c *Consumer) stopping() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *Consumer) read(topic string, r *kafka.Reader) {
	defer c.wg.Done()
	for !c.stopping() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		km, err := r.FetchMessage(ctx)
		cancel()
		if err != nil {
			if !errors.Is(err, context.DeadlineExceeded) {
				c.l.Warn("kafka.consumer fetch", applogger.String("topic", topic), applogger.Error(err))
			}
			continue
		}

		// blocks while the workers are busy
		select {
		case c.queue <- &message{topic: topic, data: km.Value, km: km}:
			if m := consMetrics; m != nil {
				m.depth.WithLabelValues(topic).Set(float64(len(c.queue)))
			}
		case <-c.stop:
			return
		}
	}
}

func (c *Consumer) work() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		case msg := <-c.queue:
			if c.process(msg) {
				c.commit(msg)
			}
		}
	}
}

// process handles msg with retries, dead-letters it when they run out, and reports whether
// its offset may be committed.
func (c *Consumer) process(msg *message) (commit bool) {
	handler, ok := c.handlers[msg.topic]
	if !ok {
		return false
	}

	lock := c.partitionLock(msg.topic, msg.km.Partition)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	result := "ok"
	defer func() {
		if r := recover(); r != nil {
			c.l.Error("kafka.consumer handler panic", applogger.String("topic", msg.topic), applogger.Any("panic", r))
			commit, result = false, "panic"
		}
		observeConsumer(msg.topic, result, time.Since(start))
	}()

	attempts, err := c.handleWithRetry(handler, msg)
	if err == nil {
		return true
	}
	if c.stopping() && attempts <= c.cfg.RetryMax {
		result = "interrupted"
		return false
	}

	c.hook.OnError(context.Background(), msg.topic, msg.km, msg.data, err)
	c.l.Error("kafka.consumer handle failed",
		applogger.String("topic", msg.topic),
		applogger.Int("partition", msg.km.Partition),
		applogger.Int64("offset", msg.km.Offset),
		applogger.Int("attempts", attempts),
		applogger.Error(err))
	if !c.deadLetter(msg) {
		result = "failed"
		return false
	}
	// poison messages are committed once they are safely in the dead letter topic
	result = "dead_letter"
	return true
}

// handleWithRetry calls the handler up to RetryMax+1 times. A hook error ends it at once.
func (c *Consumer) handleWithRetry(handler MessageHandler, msg *message) (int, error) {
	var err error
	for attempt := 1; ; attempt++ {
		ctx, km, data, herr := c.hook.BeforeHandle(context.Background(), msg.topic, msg.km, msg.data)
		if herr != nil {
			return attempt, herr
		}
		err = handler.Handle(ctx, data)
		c.hook.AfterHandle(ctx, msg.topic, km, data, err)
		if err == nil || attempt > c.cfg.RetryMax {
			return attempt, err
		}
		c.hook.OnError(ctx, msg.topic, km, data, err)

		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-c.stop:
			return attempt, err
		}
	}
}

func (c *Consumer) deadLetter(msg *message) bool {
	if c.dlq == nil || c.cfg.DLQTopic == "" {
		return false
	}
	headers := append(append([]kafka.Header(nil), msg.km.Headers...), kafka.Header{Key: "source_topic", Value: []byte(msg.topic)})
	err := c.dlq.WriteMessages(context.Background(), kafka.Message{
		Topic:   c.cfg.DLQTopic,
		Key:     msg.km.Key,
		Value:   msg.data,
		Time:    time.Now(),
		Headers: headers,
	})
	if err != nil {
		c.l.Error("kafka.consumer dlq write", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(err))
		return false
	}
	return true
}

// commit retries the offset commit a few times; a lost commit only means a redelivery.
func (c *Consumer) commit(msg *message) {
	r := c.readers[msg.topic]
	if r == nil {
		return
	}
	const attempts = 3
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(ctx, msg.km)
		cancel()
		if err == nil {
			return
		}
		select {
		case <-time.After(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt)):
		case <-c.stop:
			attempt = attempts
		}
	}
	c.l.Error("kafka.consumer commit failed",
		applogger.String("topic", msg.topic),
		applogger.Int64("offset", msg.km.Offset),
		applogger.Error(err))
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	l, _ := c.partitions.LoadOrStore(topicPartition{topic, partition}, &sync.Mutex{})
	return l.(*sync.Mutex)
}

// backoffWithJitter doubles min per attempt up to max and subtracts up to half as jitter.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	d := max
	if attempt < 63 {
		if exp := min << uint(attempt-1); exp > 0 && exp < max {
			d = exp
		}
	}
	return d - time.Duration(rand.Int63n(int64(d)/2+1))
}

type consumerMetrics struct {
	depth   *prometheus.GaugeVec
	latency *prometheus.HistogramVec
	results *prometheus.CounterVec
}

var (
	consMetrics     *consumerMetrics
	consMetricsOnce sync.Once
)

func registerConsumerMetrics() {
	consMetricsOnce.Do(func() {
		consMetrics = &consumerMetrics{
			depth: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "trendchart_kafka_consumer_queue_depth",
				Help: "Messages fetched and waiting for a worker.",
			}, []string{"topic"}),
			latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name: "trendchart_kafka_consumer_handle_seconds",
				Help: "Handling time per message, retries included.",
			}, []string{"topic"}),
			results: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "trendchart_kafka_consumer_messages_total",
				Help: "Consumed messages by outcome.",
			}, []string{"topic", "result"}),
		}
	})
}

func observeConsumer(topic, result string, d time.Duration) {
	m := consMetrics
	if m == nil {
		return
	}
	m.latency.WithLabelValues(topic).Observe(d.Seconds())
	m.results.WithLabelValues(topic, result).Inc()
}
