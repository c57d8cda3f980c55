package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"TrendChart/internal/domain/models"
	"TrendChart/internal/domain/repository"
)

// RedisJobStore keeps chart job results as JSON strings with a TTL.
type RedisJobStore struct {
	cli    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisJobStore creates a job store under prefix; results expire after ttl.
func NewRedisJobStore(cli *redis.Client, prefix string, ttl time.Duration) *RedisJobStore {
	if prefix == "" {
		prefix = "trendchart:queue"
	}
	return &RedisJobStore{cli: cli, prefix: prefix, ttl: ttl}
}

func (s *RedisJobStore) Save(ctx context.Context, res models.ChartJobResult) error {
	if res.RequestID == "" {
		return fmt.Errorf("save job: empty request id")
	}
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", res.RequestID, err)
	}
	if err := s.cli.Set(ctx, s.key(res.RequestID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("save job %s: %w", res.RequestID, err)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, requestID string) (*models.ChartJobResult, error) {
	b, err := s.cli.Get(ctx, s.key(requestID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrJobNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", requestID, err)
	}
	var res models.ChartJobResult
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", requestID, err)
	}
	return &res, nil
}

func (s *RedisJobStore) key(id string) string {
	return s.prefix + ":result:" + id
}

var _ repository.JobStore = (*RedisJobStore)(nil)
