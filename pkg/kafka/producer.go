package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON (or raw byte/string) values through a kafka-go Writer.
type Producer struct {
	writer messageWriter
	comp   string
}

// Message is one entry of PublishBatch.
type Message struct {
	Key     []byte
	Value   interface{}
	Headers map[string]string
}

func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var balancer kafka.Balancer = &kafka.LeastBytes{}
	if cfg.HashByKey {
		balancer = &kafka.Hash{}
	}
	registerProducerMetrics()
	return &Producer{
		comp: cfg.Compression,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Balancer:     balancer,
			RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
			Compression:  parseCompression(cfg.Compression),
			MaxAttempts:  cfg.MaxAttempts,
			WriteTimeout: cfg.WriteTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			BatchSize:    cfg.BatchSize,
			BatchBytes:   int64(cfg.BatchBytes),
			BatchTimeout: cfg.BatchTimeout,
			Async:        cfg.Async,
		},
	}, nil
}

func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.PublishBatch(ctx, topic, []Message{{Key: key, Value: value}})
}

func (p *Producer) PublishWithHeaders(ctx context.Context, topic string, key []byte, value interface{}, headers map[string]string) error {
	return p.PublishBatch(ctx, topic, []Message{{Key: key, Value: value, Headers: headers}})
}

// PublishBatch writes all messages in one call; an encoding error aborts before anything is sent.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	start := time.Now()
	out := make([]kafka.Message, len(messages))
	var size int64
	for i, m := range messages {
		v, err := encodeValue(m.Value)
		if err != nil {
			return err
		}
		out[i] = kafka.Message{Topic: topic, Key: m.Key, Value: v, Time: start, Headers: toHeaders(m.Headers)}
		size += int64(len(v))
	}

	err := p.writer.WriteMessages(ctx, out...)
	observeProducer(topic, p.comp, size, len(out), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("kafka write %s: %w", topic, err)
	}
	return nil
}

// PublishMessage lets the producer serve as the log collector's sink.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.Publish(ctx, topic, nil, payload)
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func encodeValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return b, nil
}

func toHeaders(m map[string]string) []kafka.Header {
	if len(m) == 0 {
		return nil
	}
	out := make([]kafka.Header, 0, len(m))
	for k, v := range m {
		out = append(out, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}

func parseCompression(s string) kafka.Compression {
	if c, ok := compressionCodecs[s]; ok {
		return c
	}
	return kafka.Gzip
}

type producerMetrics struct {
	messages *prometheus.CounterVec
	errors   *prometheus.CounterVec
	bytes    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	prodMetrics     *producerMetrics
	prodMetricsOnce sync.Once
)

func registerProducerMetrics() {
	prodMetricsOnce.Do(func() {
		prodMetrics = &producerMetrics{
			messages: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "trendchart_kafka_producer_messages_total",
				Help: "Messages published to Kafka by result.",
			}, []string{"topic", "compression", "result"}),
			errors: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "trendchart_kafka_producer_errors_total",
				Help: "Failed Kafka writes.",
			}, []string{"topic"}),
			bytes: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "trendchart_kafka_producer_bytes_total",
				Help: "Payload bytes published to Kafka.",
			}, []string{"topic", "compression"}),
			latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "trendchart_kafka_producer_publish_seconds",
				Help:    "Kafka write latency.",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic"}),
		}
	})
}

func observeProducer(topic, comp string, size int64, count int, dur time.Duration, err error) {
	m := prodMetrics
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
		m.errors.WithLabelValues(topic).Inc()
	}
	m.messages.WithLabelValues(topic, comp, result).Add(float64(count))
	m.bytes.WithLabelValues(topic, comp).Add(float64(size))
	m.latency.WithLabelValues(topic).Observe(dur.Seconds())
}
