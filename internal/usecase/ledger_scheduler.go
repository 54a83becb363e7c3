package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	"github.com/arg-foo/zaza-sub000/pkg/cache"
	"github.com/arg-foo/zaza-sub000/pkg/logger"
	"github.com/arg-foo/zaza-sub000/pkg/queue"
)

const (
	JobScoreLedger   = "ledger.score"
	JobArchiveLedger = "ledger.archive"

	lockPrefix = "lock:"
)

// LedgerOps is the part of QuantService the scheduler drives.
type LedgerOps interface {
	ScorePredictions(ctx context.Context, req models.ScoreRequest) (models.ScoreSummary, error)
	ArchivePredictions(ctx context.Context) (models.ArchiveResult, error)
}

type SchedulerConfig struct {
	ScoreEvery   time.Duration
	ArchiveEvery time.Duration
	LockTTL      time.Duration
}

// LedgerScheduler periodically enqueues scoring and archival jobs. With a shared lock
// service only one replica runs a given job at a time.
type LedgerScheduler struct {
	q     queue.Queue
	ops   LedgerOps
	locks cache.Service
	cfg   SchedulerConfig
	log   *logger.Logger

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewLedgerScheduler(q queue.Queue, ops LedgerOps, locks cache.Service, cfg SchedulerConfig, l *logger.Logger) *LedgerScheduler {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	s := &LedgerScheduler{q: q, ops: ops, locks: locks, cfg: cfg, log: l, stop: make(chan struct{})}
	q.RegisterJob(queue.JobFunc{Name: JobScoreLedger, Fn: s.runScore})
	q.RegisterJob(queue.JobFunc{Name: JobArchiveLedger, Fn: s.runArchive})
	return s
}

// Start launches the ticker loop. A zero interval disables that job.
func (s *LedgerScheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		score := newTicker(s.cfg.ScoreEvery)
		archive := newTicker(s.cfg.ArchiveEvery)
		defer score.Stop()
		defer archive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-score.C:
				s.trigger(ctx, JobScoreLedger)
			case <-archive.C:
				s.trigger(ctx, JobArchiveLedger)
			}
		}
	}()
	s.log.Info("ledger scheduler started",
		logger.Duration("score_every", s.cfg.ScoreEvery),
		logger.Duration("archive_every", s.cfg.ArchiveEvery),
	)
}

func (s *LedgerScheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// Trigger enqueues a job immediately.
func (s *LedgerScheduler) Trigger(ctx context.Context, jobType string) error {
	return s.q.Enqueue(ctx, jobType, nil)
}

func (s *LedgerScheduler) trigger(ctx context.Context, jobType string) {
	if err := s.Trigger(ctx, jobType); err != nil {
		s.log.Error("ledger job enqueue failed",
			logger.String("job", jobType),
			logger.Error(err),
		)
	}
}

func (s *LedgerScheduler) runScore(ctx context.Context, payload json.RawMessage) error {
	req, err := queue.Decode[models.ScoreRequest](payload)
	if err != nil {
		return err
	}
	return s.locked(ctx, JobScoreLedger, func(ctx context.Context) error {
		sum, err := s.ops.ScorePredictions(ctx, req)
		if err != nil {
			return err
		}
		s.log.Info("scheduled scoring done",
			logger.Int("newly_scored", sum.NewlyScored),
			logger.Int("pending", sum.Pending),
			logger.Int("skipped", sum.Skipped),
		)
		return nil
	})
}

func (s *LedgerScheduler) runArchive(ctx context.Context, _ json.RawMessage) error {
	return s.locked(ctx, JobArchiveLedger, func(ctx context.Context) error {
		res, err := s.ops.ArchivePredictions(ctx)
		if err != nil {
			return err
		}
		s.log.Info("scheduled archival done", logger.Int("archived", res.Archived))
		return nil
	})
}

// locked runs fn under the job lock. A held lock means another worker is on it; the run is skipped.
func (s *LedgerScheduler) locked(ctx context.Context, job string, fn func(context.Context) error) error {
	if s.locks == nil {
		return fn(ctx)
	}
	key := lockPrefix + job
	ok, err := s.locks.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		s.log.Debug("ledger job already running", logger.String("job", job))
		return nil
	}
	defer func() {
		if err := s.locks.Unlock(context.WithoutCancel(ctx), key); err != nil {
			s.log.Warn("ledger lock release failed", logger.String("job", job), logger.Error(err))
		}
	}()
	return fn(ctx)
}

// newTicker returns a ticker that never fires for d <= 0.
func newTicker(d time.Duration) *time.Ticker {
	if d <= 0 {
		t := time.NewTicker(time.Hour)
		t.Stop()
		return t
	}
	return time.NewTicker(d)
}
