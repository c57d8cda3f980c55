package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"TrendChart/internal/domain/models"
	domrepo "TrendChart/internal/domain/repository"
	applogger "TrendChart/pkg/logger"
	"TrendChart/pkg/queue"
)

// ChartJobService submits chart requests to the job queue and reports their state.
type ChartJobService struct {
	queue   queue.QueueService
	store   domrepo.JobStore
	metrics domrepo.Metrics
}

func NewChartJobService(q queue.QueueService, store domrepo.JobStore, m domrepo.Metrics) *ChartJobService {
	return &ChartJobService{queue: q, store: store, metrics: m}
}

// Submit records a pending job and enqueues it, returning the request id.
func (s *ChartJobService) Submit(ctx context.Context, req *models.ChartRequest) (string, error) {
	job := models.ChartJob{RequestID: uuid.NewString(), ChartRequest: *req}
	if err := s.store.Save(ctx, models.ChartJobResult{RequestID: job.RequestID, Status: models.JobPending}); err != nil {
		s.metrics.RecordError("save_result")
		return "", err
	}
	if err := s.queue.PublishMessage(ctx, models.ChartJobType, job); err != nil {
		s.metrics.RecordError("enqueue")
		return "", fmt.Errorf("enqueue job %s: %w", job.RequestID, err)
	}
	return job.RequestID, nil
}

// Result returns the job state, or domrepo.ErrJobNotFound.
func (s *ChartJobService) Result(ctx context.Context, requestID string) (*models.ChartJobResult, error) {
	return s.store.Get(ctx, requestID)
}

// QueueChartJob runs chart jobs taken from the job queue and stores their results.
type QueueChartJob struct {
	gen     chartResponder
	store   domrepo.JobStore
	metrics domrepo.Metrics
	now     func() time.Time
	l       *applogger.Logger
}

func NewQueueChartJob(gen *ChartGenerator, store domrepo.JobStore, m domrepo.Metrics) *QueueChartJob {
	return &QueueChartJob{gen: gen, store: store, metrics: m, now: time.Now, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (j *QueueChartJob) SetLogger(l *applogger.Logger) {
	if l != nil {
		j.l = l
	}
}

func (j *QueueChartJob) Name() string { return "chart_generate" }
func (j *QueueChartJob) Type() string { return models.ChartJobType }

// Handle returns an error only for failures worth retrying; the queue dead-letters the
// message once its retries are spent.
func (j *QueueChartJob) Handle(ctx context.Context, payload interface{}) error {
	start := time.Now()
	defer func() { j.metrics.RecordLatency("queue_handle", time.Since(start).Seconds()) }()

	job, err := queue.ParsePayload[models.ChartJob](payload)
	if err != nil {
		j.metrics.RecordError("queue_unmarshal")
		return fmt.Errorf("chart job payload: %w", err)
	}
	if job.RequestID == "" {
		job.RequestID = uuid.NewString()
	}

	res, err := runChartJob(ctx, j.gen, "queue", job, j.now)
	if err != nil {
		return err
	}
	if res.Error != "" {
		j.l.Warn("queue.chart rejected",
			applogger.String("request_id", job.RequestID),
			applogger.String("reason", res.Error),
		)
	}
	if err := j.store.Save(ctx, res); err != nil {
		j.metrics.RecordError("save_result")
		return err
	}
	return nil
}

var _ queue.Job = (*QueueChartJob)(nil)
