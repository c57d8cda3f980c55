package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"TrendChart/internal/domain/models"
	domrepo "TrendChart/internal/domain/repository"
	pkgkafka "TrendChart/pkg/kafka"
	applogger "TrendChart/pkg/logger"
)

// KafkaChartHandler consumes chart jobs and publishes one result per job.
type KafkaChartHandler struct {
	topic     string
	gen       chartResponder
	publisher domrepo.Publisher
	metrics   domrepo.Metrics
	now       func() time.Time
	l         *applogger.Logger
}

func NewKafkaChartHandler(topic string, gen *ChartGenerator, publisher domrepo.Publisher, metrics domrepo.Metrics) *KafkaChartHandler {
	return &KafkaChartHandler{
		topic:     topic,
		gen:       gen,
		publisher: publisher,
		metrics:   metrics,
		now:       time.Now,
		l:         applogger.Nop(),
	}
}

// SetLogger injects a structured logger.
func (h *KafkaChartHandler) SetLogger(l *applogger.Logger) {
	if l != nil {
		h.l = l
	}
}

func (h *KafkaChartHandler) Topic() string { return h.topic }

// Handle answers malformed or invalid jobs with a failed result instead of an error, so
// only transient generate and publish errors reach the consumer's retry and DLQ path.
func (h *KafkaChartHandler) Handle(ctx context.Context, b []byte) error {
	start := time.Now()
	defer func() { h.metrics.RecordLatency("kafka_handle", time.Since(start).Seconds()) }()

	var job models.ChartJob
	if err := json.Unmarshal(b, &job); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return h.publish(ctx, models.ChartJobResult{
			RequestID:   uuid.NewString(),
			Status:      models.JobFailed,
			GeneratedAt: h.now().UTC(),
			Error:       fmt.Sprintf("malformed job: %v", err),
		})
	}
	if job.RequestID == "" {
		job.RequestID = uuid.NewString()
	}

	res, err := runChartJob(ctx, h.gen, "kafka", &job, h.now)
	if err != nil {
		// transient failures are retried by the consumer
		return err
	}

	if res.Error != "" {
		h.l.Warn("kafka.chart rejected",
			applogger.String("request_id", job.RequestID),
			applogger.String("trace_id", pkgkafka.TraceIDFrom(ctx)),
			applogger.String("reason", res.Error),
		)
	}
	return h.publish(ctx, res)
}

func (h *KafkaChartHandler) publish(ctx context.Context, res models.ChartJobResult) error {
	if err := h.publisher.Publish(ctx, res.RequestID, res); err != nil {
		h.metrics.RecordError("publish_result")
		return fmt.Errorf("publish result %s: %w", res.RequestID, err)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaChartHandler)(nil)
