package repository

import (
	"context"

	"TrendChart/internal/domain/repository"
	pkgkafka "TrendChart/pkg/kafka"
)

type producer interface {
	PublishWithHeaders(ctx context.Context, topic string, key []byte, value interface{}, headers map[string]string) error
	Close() error
}

// KafkaPublisher implements Publisher for Kafka.
type KafkaPublisher struct {
	producer producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

// Publish sends v keyed by key, forwarding the trace id found in ctx as a header.
func (p *KafkaPublisher) Publish(ctx context.Context, key string, v interface{}) error {
	var headers map[string]string
	if id := pkgkafka.TraceIDFrom(ctx); id != "" {
		headers = map[string]string{pkgkafka.TraceHeader: id}
	}
	return p.producer.PublishWithHeaders(ctx, p.topic, []byte(key), v, headers)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
