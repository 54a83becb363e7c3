package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Queue dispatches typed messages to registered jobs.
type Queue interface {
	RegisterJob(job Job)
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
	Start() error
	Stop(ctx context.Context) error
}

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers    int           // number of workers
	RetryLimit int           // number of maximum retries
	RetryDelay time.Duration // time delay between retries
}

// Message represents a message in the queue
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

func encodePayload(payload interface{}) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return json.RawMessage(p), nil
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		return b, nil
	}
}

// InlineQueue runs jobs synchronously in the caller's goroutine. It backs the
// scheduler when no Redis is configured.
type InlineQueue struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewInlineQueue() *InlineQueue {
	return &InlineQueue{jobs: make(map[string]Job)}
}

func (q *InlineQueue) RegisterJob(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.Type()] = job
}

func (q *InlineQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	job, ok := q.jobs[msgType]
	q.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}
	data, err := encodePayload(payload)
	if err != nil {
		return err
	}
	return job.Handle(ctx, data)
}

func (q *InlineQueue) Start() error { return nil }

func (q *InlineQueue) Stop(context.Context) error { return nil }

var (
	_ Queue = (*InlineQueue)(nil)
	_ Queue = (*RedisQueue)(nil)
)
