package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueueService enqueues messages for the job registered under msgType.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// Job handles every message of one type.
type Job interface {
	Name() string
	Type() string
	// Handle processes one payload; a returned error schedules a retry.
	Handle(ctx context.Context, payload interface{}) error
}

type QueueConfig struct {
	Workers    int           // consumers popping concurrently, at least 1
	RetryLimit int           // retries after the first attempt; 0 dead-letters on first failure
	RetryDelay time.Duration // wait before a failed message is retried
	RetryPoll  time.Duration // how often due retries are promoted
}

// Message is the JSON document stored in Redis. Handlers receive Payload as json.RawMessage.
type Message struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Attempts  int         `json:"attempts"`
	Timestamp time.Time   `json:"enqueued_at"`
}

// ParsePayload decodes a job payload into T. It accepts T, *T and anything JSON shaped.
func ParsePayload[T any](payload interface{}) (*T, error) {
	var raw []byte
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	case map[string]interface{}:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("payload: %w", err)
		}
		raw = b
	default:
		return nil, fmt.Errorf("payload: unsupported type %T", payload)
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("payload: %w", err)
	}
	return &out, nil
}
