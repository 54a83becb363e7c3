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

	"github.com/arg-foo/zaza-sub000/pkg/logger"
)

// RedisQueue is a reliable list queue. Workers move each message into a
// per-instance processing list while it runs, failed messages wait in a sorted
// set keyed by their due time, and exhausted ones land in a dead-letter list.
type RedisQueue struct {
	log    *logger.Logger
	cfg    QueueConfig
	client *redis.Client
	prefix string
	owner  string

	mu      sync.RWMutex
	jobs    map[string]Job
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix namespaces every key the queue touches.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

func NewRedisQueue(l *logger.Logger, cfg *QueueConfig, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	r := &RedisQueue{
		log:    l,
		client: client,
		prefix: "quant:queue",
		owner:  uuid.NewString(),
		jobs:   make(map[string]Job),
	}
	if cfg != nil {
		r.cfg = *cfg
	}
	r.cfg.Workers = max(r.cfg.Workers, 1)
	if r.cfg.RetryDelay <= 0 {
		r.cfg.RetryDelay = 30 * time.Second
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.jobs[job.Type()]; dup {
		r.log.Warn("job already registered", logger.String("type", job.Type()))
		return
	}
	r.jobs[job.Type()] = job
}

func (r *RedisQueue) job(msgType string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[msgType]
	return j, ok
}

// Start pings Redis, then runs the workers and the retry promoter until Stop.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return errors.New("queue already running")
	}

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.running = true

	for i := range r.cfg.Workers {
		r.wg.Add(1)
		go r.work(ctx, i)
	}
	r.wg.Add(1)
	go r.promote(ctx)

	r.log.Info("redis queue started",
		logger.Int("workers", r.cfg.Workers),
		logger.Int("jobs", len(r.jobs)),
		logger.String("prefix", r.prefix),
	)
	return nil
}

// Stop cancels the workers, waits for them within ctx and requeues anything
// still sitting in this instance's processing list.
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
	case <-ctx.Done():
		return fmt.Errorf("queue stop: %w", ctx.Err())
	}

	n, err := r.requeueInflight(ctx)
	if err != nil {
		return fmt.Errorf("requeue in-flight: %w", err)
	}
	r.log.Info("redis queue stopped", logger.Int("requeued", n))
	return nil
}

func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	if _, ok := r.job(msgType); !ok {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}
	data, err := encodePayload(payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return r.client.LPush(ctx, r.key("pending"), raw).Err()
}

func (r *RedisQueue) work(ctx context.Context, id int) {
	defer r.wg.Done()
	inflight := r.inflightKey()
	for ctx.Err() == nil {
		raw, err := r.client.BLMove(ctx, r.key("pending"), inflight, "RIGHT", "LEFT", time.Second).Result()
		switch {
		case errors.Is(err, redis.Nil) || ctx.Err() != nil:
			continue
		case err != nil:
			r.log.Error("dequeue failed", logger.Int("worker", id), logger.Error(err))
			sleep(ctx, time.Second)
			continue
		}

		r.handle(ctx, raw)
		if err := r.client.LRem(context.Background(), inflight, 1, raw).Err(); err != nil {
			r.log.Error("ack failed", logger.Int("worker", id), logger.Error(err))
		}
	}
}

func (r *RedisQueue) handle(ctx context.Context, raw string) {
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		r.log.Error("dropping malformed message", logger.Error(err))
		return
	}
	job, ok := r.job(msg.Type)
	if !ok {
		r.log.Error("no job for message", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.bury(msg)
		return
	}

	start := time.Now()
	err := job.Handle(ctx, msg.Payload)
	switch {
	case err == nil:
		r.log.Debug("job done", logger.String("type", msg.Type), logger.Duration("duration_ms", time.Since(start)))
		return
	case errors.Is(err, context.Canceled):
		// left in the processing list; Stop puts it back
		return
	}

	msg.Attempts++
	r.log.Error("job failed",
		logger.String("id", msg.ID),
		logger.String("type", msg.Type),
		logger.Int("attempt", msg.Attempts),
		logger.Error(err),
	)
	if msg.Attempts > r.cfg.RetryLimit {
		r.bury(msg)
		return
	}
	r.retryLater(msg)
}

// retryDelay doubles with every attempt, capped at 32x the base delay.
func (r *RedisQueue) retryDelay(attempts int) time.Duration {
	shift := min(max(attempts-1, 0), 5)
	return r.cfg.RetryDelay << shift
}

func (r *RedisQueue) retryLater(msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	due := time.Now().Add(r.retryDelay(msg.Attempts))
	z := redis.Z{Score: float64(due.Unix()), Member: raw}
	if err := r.client.ZAdd(context.Background(), r.key("retry"), z).Err(); err != nil {
		r.log.Error("schedule retry failed", logger.String("id", msg.ID), logger.Error(err))
	}
}

func (r *RedisQueue) bury(msg Message) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := r.client.LPush(context.Background(), r.key("dead"), raw).Err(); err != nil {
		r.log.Error("dead-letter failed", logger.String("id", msg.ID), logger.Error(err))
	}
}

// promote moves due retries back to pending. ZREM decides which instance owns
// a member, so each retry is requeued once even with several replicas.
func (r *RedisQueue) promote(ctx context.Context) {
	defer r.wg.Done()
	tick := time.NewTicker(5 * time.Second)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		due, err := r.client.ZRangeByScore(ctx, r.key("retry"), &redis.ZRangeBy{
			Min:   "-inf",
			Max:   strconv.FormatInt(time.Now().Unix(), 10),
			Count: 100,
		}).Result()
		if err != nil {
			if ctx.Err() == nil {
				r.log.Error("read retries failed", logger.Error(err))
			}
			continue
		}
		for _, member := range due {
			claimed, err := r.client.ZRem(ctx, r.key("retry"), member).Result()
			if err != nil || claimed == 0 {
				continue
			}
			if err := r.client.LPush(ctx, r.key("pending"), member).Err(); err != nil {
				r.log.Error("promote retry failed", logger.Error(err))
			}
		}
	}
}

func (r *RedisQueue) requeueInflight(ctx context.Context) (int, error) {
	n := 0
	for {
		err := r.client.LMove(ctx, r.inflightKey(), r.key("pending"), "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func (r *RedisQueue) key(name string) string { return r.prefix + ":" + name }

func (r *RedisQueue) inflightKey() string { return r.prefix + ":processing:" + r.owner }

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
