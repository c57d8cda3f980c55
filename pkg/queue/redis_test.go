package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoPayload struct {
	RequestID string `json:"request_id"`
	N         int    `json:"n"`
}

type recordingJob struct {
	mu    sync.Mutex
	got   []echoPayload
	fail  error
	calls atomic.Int32
}

func (j *recordingJob) Name() string { return "recording" }
func (j *recordingJob) Type() string { return "test.echo" }

func (j *recordingJob) Handle(_ context.Context, payload interface{}) error {
	j.calls.Add(1)
	if j.fail != nil {
		return j.fail
	}
	p, err := ParsePayload[echoPayload](payload)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.got = append(j.got, *p)
	j.mu.Unlock()
	return nil
}

func (j *recordingJob) received() []echoPayload {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]echoPayload(nil), j.got...)
}

func newTestQueue(t *testing.T, cfg *QueueConfig, mode QueueMode) (*RedisQueue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	cli := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cli.Close() })
	return NewRedisQueue(nil, cfg, cli, mode, WithKeyPrefix("test:queue")), cli
}

func stopQueue(t *testing.T, q *RedisQueue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))
}

func TestRedisQueueDeliversMessages(t *testing.T) {
	q, _ := newTestQueue(t, &QueueConfig{Workers: 2}, ModeProducerConsumer)
	job := &recordingJob{}
	q.RegisterJob(job)

	assert.Error(t, q.Enqueue(context.Background(), job.Type(), echoPayload{}), "not started")

	require.NoError(t, q.Start())
	defer stopQueue(t, q)

	require.NoError(t, q.PublishMessage(context.Background(), job.Type(), echoPayload{RequestID: "a", N: 1}))
	require.NoError(t, q.Enqueue(context.Background(), job.Type(), &echoPayload{RequestID: "b", N: 2}))
	assert.Error(t, q.Enqueue(context.Background(), "unknown", echoPayload{}))

	assert.Eventually(t, func() bool { return len(job.received()) == 2 }, 3*time.Second, 10*time.Millisecond)
	got := map[string]int{}
	for _, p := range job.received() {
		got[p.RequestID] = p.N
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, got)
}

func TestRedisQueueRetriesThenDeadLetters(t *testing.T) {
	q, _ := newTestQueue(t, &QueueConfig{
		Workers:    1,
		RetryLimit: 2,
		RetryDelay: time.Nanosecond,
		RetryPoll:  10 * time.Millisecond,
	}, ModeProducerConsumer)
	job := &recordingJob{fail: errors.New("boom")}
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	defer stopQueue(t, q)

	require.NoError(t, q.Enqueue(context.Background(), job.Type(), echoPayload{RequestID: "x"}))

	assert.Eventually(t, func() bool {
		st, err := q.Stats(context.Background())
		return err == nil && st.Dead == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, int32(3), job.calls.Load(), "first attempt plus two retries")

	st, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Dead: 1}, st)
}

func TestRedisQueueUnknownTypeIsDeadLettered(t *testing.T) {
	q, cli := newTestQueue(t, &QueueConfig{Workers: 1}, ModeConsumerOnly)
	q.RegisterJob(&recordingJob{})
	require.NoError(t, q.Start())
	defer stopQueue(t, q)

	raw, err := json.Marshal(Message{ID: "m1", Type: "nobody.handles", Payload: map[string]int{"n": 1}})
	require.NoError(t, err)
	require.NoError(t, cli.LPush(context.Background(), "test:queue:messages", raw).Err())

	assert.Eventually(t, func() bool {
		n, err := cli.LLen(context.Background(), "test:queue:dlq").Result()
		return err == nil && n == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestRedisQueueProducerOnly(t *testing.T) {
	q, cli := newTestQueue(t, nil, ModeProducerOnly)
	q.RegisterJob(&recordingJob{})
	require.NoError(t, q.Start())
	defer stopQueue(t, q)

	require.NoError(t, q.Enqueue(context.Background(), "any.type", echoPayload{N: 3}))
	n, err := cli.LLen(context.Background(), "test:queue:messages").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Error(t, q.Start(), "already running")
}

func TestRedisQueuePromoteMovesOnlyDueRetries(t *testing.T) {
	q, cli := newTestQueue(t, &QueueConfig{RetryPoll: time.Hour}, ModeProducerConsumer)
	ctx := context.Background()
	now := time.Now()
	for i, at := range []time.Time{now.Add(-time.Minute), now, now.Add(time.Minute)} {
		raw, err := json.Marshal(Message{ID: strconv.Itoa(i), Type: "t"})
		require.NoError(t, err)
		require.NoError(t, cli.ZAdd(ctx, "test:queue:retry", redis.Z{Score: float64(at.UnixMilli()), Member: raw}).Err())
	}

	moved, err := q.promote(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved)

	st, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Queued: 2, Retrying: 1}, st)

	moved, err = q.promote(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, moved)
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload[echoPayload](map[string]interface{}{"request_id": "r", "n": 4})
	require.NoError(t, err)
	assert.Equal(t, echoPayload{RequestID: "r", N: 4}, *p)

	p, err = ParsePayload[echoPayload](json.RawMessage(`{"request_id":"s"}`))
	require.NoError(t, err)
	assert.Equal(t, "s", p.RequestID)

	p, err = ParsePayload[echoPayload](echoPayload{N: 9})
	require.NoError(t, err)
	assert.Equal(t, 9, p.N)

	_, err = ParsePayload[echoPayload](42)
	assert.Error(t, err)
	_, err = ParsePayload[echoPayload]([]byte(`not json`))
	assert.Error(t, err)
}
