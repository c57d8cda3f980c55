package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrendChart/internal/domain/models"
	domrepo "TrendChart/internal/domain/repository"
)

type memJobStore struct {
	mu      sync.Mutex
	jobs    map[string]models.ChartJobResult
	history []string
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: map[string]models.ChartJobResult{}}
}

func (s *memJobStore) Save(_ context.Context, res models.ChartJobResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[res.RequestID] = res
	s.history = append(s.history, res.Status)
	return nil
}

func (s *memJobStore) Get(_ context.Context, id string) (*models.ChartJobResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.jobs[id]
	if !ok {
		return nil, domrepo.ErrJobNotFound
	}
	return &res, nil
}

// inlineQueue hands each message to the job immediately, JSON round-tripped as the Redis queue does.
type inlineQueue struct {
	job    *QueueChartJob
	err    error
	handle error
}

func (q *inlineQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	if q.err != nil {
		return q.err
	}
	if msgType != q.job.Type() {
		return errors.New("unexpected message type " + msgType)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	q.handle = q.job.Handle(ctx, json.RawMessage(b))
	return nil
}

func newTestJobs() (*ChartJobService, *inlineQueue, *memJobStore, *fakeMetrics) {
	m := newFakeMetrics()
	store := newMemJobStore()
	job := NewQueueChartJob(newTestGenerator(m), store, m)
	job.now = fixedClock(time.Date(2024, 1, 31, 16, 0, 0, 0, time.UTC))
	q := &inlineQueue{job: job}
	return NewChartJobService(q, store, m), q, store, m
}

func TestChartJobSubmitAndComplete(t *testing.T) {
	svc, q, store, m := newTestJobs()

	id, err := svc.Submit(context.Background(), &models.ChartRequest{
		DateInterval: 7,
		DataRange:    30,
		Dates:        []int64{ms(2024, 1, 25), ms(2024, 1, 30)},
		Counts:       []int64{3, 4},
	})
	require.NoError(t, err)
	require.NoError(t, q.handle)

	res, err := svc.Result(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.JobDone, res.Status)
	require.NotNil(t, res.Chart)
	assert.Equal(t, int64(7), res.Chart.Total)
	assert.Equal(t, DefaultTitle, res.Chart.Title)
	assert.Equal(t, []string{models.JobPending, models.JobDone}, store.history)
	assert.Equal(t, 1, m.charts["queue"])
}

func TestChartJobInvalidParametersFail(t *testing.T) {
	svc, q, _, _ := newTestJobs()

	id, err := svc.Submit(context.Background(), &models.ChartRequest{DateInterval: 0, DataRange: 30})
	require.NoError(t, err)
	require.NoError(t, q.handle, "invalid jobs are answered, not retried")

	res, err := svc.Result(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.JobFailed, res.Status)
	assert.Contains(t, res.Error, "invalid parameter")
	assert.Nil(t, res.Chart)
}

func TestChartJobEnqueueError(t *testing.T) {
	svc, q, _, m := newTestJobs()
	q.err = errors.New("redis down")

	_, err := svc.Submit(context.Background(), &models.ChartRequest{DateInterval: 7})
	assert.ErrorContains(t, err, "redis down")
	assert.Equal(t, 1, m.errors["enqueue"])
}

func TestQueueChartJobTransientErrorIsReturned(t *testing.T) {
	m := newFakeMetrics()
	store := newMemJobStore()
	job := NewQueueChartJob(newTestGenerator(m), store, m)
	job.gen = failingResponder{err: context.DeadlineExceeded}

	err := job.Handle(context.Background(), json.RawMessage(`{"request_id":"r","dateInterval":7}`))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, store.history)
}

func TestQueueChartJobMalformedPayload(t *testing.T) {
	m := newFakeMetrics()
	job := NewQueueChartJob(newTestGenerator(m), newMemJobStore(), m)

	assert.Error(t, job.Handle(context.Background(), 17))
	assert.Equal(t, 1, m.errors["queue_unmarshal"])

	_, err := NewChartJobService(nil, newMemJobStore(), m).Result(context.Background(), "nope")
	assert.ErrorIs(t, err, domrepo.ErrJobNotFound)
}
