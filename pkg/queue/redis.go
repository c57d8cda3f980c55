package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"TrendChart/pkg/logger"
)

// QueueMode selects which halves of the queue run in this process.
type QueueMode int

const (
	ModeProducerConsumer QueueMode = iota
	ModeProducerOnly
	ModeConsumerOnly
)

func (m QueueMode) String() string {
	switch m {
	case ModeProducerOnly:
		return "producer-only"
	case ModeConsumerOnly:
		return "consumer-only"
	default:
		return "producer-consumer"
	}
}

const defaultKeyPrefix = "trendchart:queue"

// promoteDue moves up to ARGV[2] retries scored at or before ARGV[1] back onto the list.
// ZREM and LPUSH run in one script so a retry is never delivered twice by competing processes.
var promoteDue = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', '0', ARGV[2])
for _, m in ipairs(due) do
	redis.call('ZREM', KEYS[1], m)
	redis.call('LPUSH', KEYS[2], m)
end
return #due
`)

type queueKeys struct {
	messages string
	retry    string
	dead     string
}

func newQueueKeys(prefix string) queueKeys {
	return queueKeys{
		messages: prefix + ":messages",
		retry:    prefix + ":retry",
		dead:     prefix + ":dlq",
	}
}

// Stats is a snapshot of the queue's Redis keys.
type Stats struct {
	Queued   int64 `json:"queued"`
	Retrying int64 `json:"retrying"`
	Dead     int64 `json:"dead"`
}

// RedisQueue is a job queue on a Redis list. Failed messages wait in a sorted set scored
// by their retry time; messages out of retries, or with no registered job, go to a dead
// letter list.
type RedisQueue struct {
	log    *logger.Logger
	cfg    QueueConfig
	client *redis.Client
	mode   QueueMode
	keys   queueKeys

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix namespaces every key the queue touches.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.keys = newQueueKeys(prefix)
		}
	}
}

func NewRedisQueue(l *logger.Logger, cfg *QueueConfig, client *redis.Client, mode QueueMode, opts ...RedisQueueOption) *RedisQueue {
	if l == nil {
		l = logger.Nop()
	}
	var c QueueConfig
	if cfg != nil {
		c = *cfg
	}
	c.Workers = max(c.Workers, 1)
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
	if c.RetryPoll <= 0 {
		c.RetryPoll = 5 * time.Second
	}

	r := &RedisQueue{
		log:    l,
		cfg:    c,
		client: client,
		mode:   mode,
		keys:   newQueueKeys(defaultKeyPrefix),
		jobs:   make(map[string]Job),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterJob routes messages of job.Type() to job. The first registration for a type wins.
func (r *RedisQueue) RegisterJob(job Job) {
	if r.mode == ModeProducerOnly {
		r.log.Warn("queue.register ignored in producer-only mode", logger.String("job", job.Name()))
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.jobs[job.Type()]; dup {
		r.log.Warn("queue.register duplicate", logger.String("job", job.Name()), logger.String("type", job.Type()))
		return
	}
	r.jobs[job.Type()] = job
	r.log.Info("queue.register", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Start pings Redis and, unless producer-only, launches the workers and the retry promoter.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("queue already running")
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.running = true
	if r.mode != ModeProducerOnly {
		r.wg.Add(r.cfg.Workers + 1)
		for i := 0; i < r.cfg.Workers; i++ {
			go r.work(i)
		}
		go r.promoteLoop()
	}

	r.log.Info("queue.start",
		logger.String("addr", r.client.Options().Addr),
		logger.String("mode", r.mode.String()),
		logger.Int("workers", r.workerCount()))
	return nil
}

func (r *RedisQueue) workerCount() int {
	if r.mode == ModeProducerOnly {
		return 0
	}
	return r.cfg.Workers
}

// Stop cancels in-flight handlers and waits for the workers until ctx expires.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info("queue.stop")
		return nil
	case <-ctx.Done():
		r.log.Warn("queue.stop timeout", logger.Error(ctx.Err()))
		return fmt.Errorf("queue stop: %w", ctx.Err())
	}
}

// Enqueue pushes payload as a new message of msgType. Outside producer-only mode the type
// must have a registered job.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.running
	_, known := r.jobs[msgType]
	r.mu.RUnlock()

	if !running {
		return errors.New("queue not running")
	}
	if r.mode != ModeProducerOnly && !known {
		return fmt.Errorf("no job registered for type %q", msgType)
	}

	raw, err := json.Marshal(Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := r.client.LPush(ctx, r.keys.messages, raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", msgType, err)
	}
	return nil
}

// PublishMessage implements QueueService.
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return r.Enqueue(ctx, msgType, payload)
}

func (r *RedisQueue) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	pipe := r.client.Pipeline()
	queued := pipe.LLen(ctx, r.keys.messages)
	retrying := pipe.ZCard(ctx, r.keys.retry)
	dead := pipe.LLen(ctx, r.keys.dead)
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	return Stats{Queued: queued.Val(), Retrying: retrying.Val(), Dead: dead.Val()}, nil
}

func (r *RedisQueue) work(id int) {
	defer r.wg.Done()
	for r.ctx.Err() == nil {
		msg, ok := r.pop()
		if ok {
			r.dispatch(msg)
		}
	}
	r.log.Debug("queue.worker exit", logger.Int("worker_id", id))
}

// pop blocks up to a second for the next message.
func (r *RedisQueue) pop() (Message, bool) {
	res, err := r.client.BRPop(r.ctx, time.Second, r.keys.messages).Result()
	switch {
	case err == nil:
	case errors.Is(err, redis.Nil), r.ctx.Err() != nil:
		return Message{}, false
	default:
		r.log.Error("queue.pop", logger.Error(err))
		select {
		case <-time.After(time.Second):
		case <-r.ctx.Done():
		}
		return Message{}, false
	}

	if len(res) < 2 {
		return Message{}, false
	}
	var wire struct {
		Message
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal([]byte(res[1]), &wire); err != nil {
		r.log.Error("queue.decode", logger.Error(err))
		return Message{}, false
	}
	msg := wire.Message
	msg.Payload = wire.Payload
	return msg, true
}

func (r *RedisQueue) dispatch(msg Message) {
	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.log.Error("queue.dispatch no job", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.deadLetter(msg)
		return
	}

	start := time.Now()
	err := job.Handle(r.ctx, msg.Payload)
	fields := []logger.Field{
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Duration("elapsed_ms", time.Since(start)),
	}
	switch {
	case err == nil:
		r.log.Debug("queue.dispatch done", fields...)
	case errors.Is(err, context.Canceled) && r.ctx.Err() != nil:
		// shutdown interrupted the handler; the message is dropped like any in-flight pop
		r.log.Warn("queue.dispatch canceled", fields...)
	case msg.Attempts < r.cfg.RetryLimit:
		msg.Attempts++
		at := time.Now().Add(r.cfg.RetryDelay)
		r.log.Warn("queue.dispatch retry", append(fields, logger.Error(err), logger.String("retry_at", at.Format(time.RFC3339)))...)
		r.scheduleRetry(msg, at)
	default:
		r.log.Error("queue.dispatch dead letter", append(fields, logger.Error(err))...)
		r.deadLetter(msg)
	}
}

// writes after a failure use a fresh context so they survive shutdown
func (r *RedisQueue) scheduleRetry(msg Message, at time.Time) {
	raw, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("queue.retry marshal", logger.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.ZAdd(ctx, r.keys.retry, redis.Z{Score: float64(at.UnixMilli()), Member: raw}).Err(); err != nil {
		r.log.Error("queue.retry zadd", logger.Error(err))
	}
}

func (r *RedisQueue) deadLetter(msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("queue.dlq marshal", logger.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.LPush(ctx, r.keys.dead, raw).Err(); err != nil {
		r.log.Error("queue.dlq lpush", logger.Error(err))
	}
}

func (r *RedisQueue) promoteLoop() {
	defer r.wg.Done()
	t := time.NewTicker(r.cfg.RetryPoll)
	defer t.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case now := <-t.C:
			if _, err := r.promote(r.ctx, now); err != nil && r.ctx.Err() == nil {
				r.log.Error("queue.promote", logger.Error(err))
			}
		}
	}
}

// promote moves retries due at now back onto the message list and reports how many moved.
func (r *RedisQueue) promote(ctx context.Context, now time.Time) (int64, error) {
	const batch = 100
	var moved int64
	for {
		n, err := promoteDue.Run(ctx, r.client,
			[]string{r.keys.retry, r.keys.messages},
			strconv.FormatInt(now.UnixMilli(), 10), strconv.Itoa(batch),
		).Int64()
		if err != nil {
			return moved, err
		}
		moved += n
		if n < batch {
			return moved, nil
		}
	}
}

var _ QueueService = (*RedisQueue)(nil)
