package repository

import (
	"context"
	"errors"
	"time"

	"TrendChart/internal/domain/models"
)

// ErrJobNotFound is returned for unknown or expired chart job ids.
var ErrJobNotFound = errors.New("chart job not found")

// ChartCache stores encoded chart payloads.
type ChartCache interface {
	GetBytes(key string) (b []byte, ok bool, err error)
	SetBytes(key string, value []byte, ttl time.Duration) error
}

// Publisher delivers chart job results to a downstream topic.
type Publisher interface {
	Publish(ctx context.Context, key string, v interface{}) error
	Close() error
}

// JobStore keeps the state of asynchronous chart jobs until they expire.
type JobStore interface {
	Save(ctx context.Context, res models.ChartJobResult) error
	Get(ctx context.Context, requestID string) (*models.ChartJobResult, error)
}

type Metrics interface {
	RecordChart(source string, points int)
	RecordObservations(accepted, dropped int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}

// Clock returns the current instant; "today" is derived from it.
type Clock func() time.Time
