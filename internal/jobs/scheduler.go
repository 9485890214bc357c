// Package jobs runs heirloom's recurring maintenance work: releasing due
// successors, repairing grove tree counts and reporting empty memorials.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	platformredis "heirloom/internal/platform/redis"
)

const (
	outcomeOK      = "ok"
	outcomeError   = "error"
	outcomeSkipped = "skipped"
)

// Job is one named unit of recurring work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Locker serializes a job across processes. *redis.Locker satisfies it.
type Locker interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func(ctx context.Context) error) error
}

type Metrics interface {
	ObserveJob(job, outcome string, seconds float64)
}

// Scheduler ticks each job on its own interval. With a Locker configured a
// run that finds the lock taken is skipped.
type Scheduler struct {
	jobs    map[string]Job
	order   []string
	locker  Locker
	lockTTL time.Duration
	logger  *slog.Logger
	metrics Metrics
}

type Option func(*Scheduler)

func WithLocker(locker Locker, ttl time.Duration) Option {
	return func(s *Scheduler) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithMetrics(m Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:    make(map[string]Job),
		lockTTL: 10 * time.Minute,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds job. A later job with the same name replaces the earlier one.
func (s *Scheduler) Register(job Job) {
	if _, exists := s.jobs[job.Name]; !exists {
		s.order = append(s.order, job.Name)
	}
	s.jobs[job.Name] = job
}

// Names lists registered jobs in registration order.
func (s *Scheduler) Names() []string {
	return append([]string(nil), s.order...)
}

// Trigger runs one job now. A skipped run (lock held) is not an error.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.execute(ctx, job)
}

// Start ticks every job with a positive interval until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range s.order {
		job := s.jobs[name]
		if job.Interval <= 0 {
			continue
		}
		g.Go(func() error {
			ticker := time.NewTicker(job.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					_ = s.execute(ctx, job)
				}
			}
		})
	}
	return g.Wait()
}

func (s *Scheduler) execute(ctx context.Context, job Job) error {
	start := time.Now()
	var err error
	if s.locker != nil {
		err = s.locker.WithLock(ctx, "job:"+job.Name, s.lockTTL, job.Run)
	} else {
		err = job.Run(ctx)
	}

	outcome := outcomeOK
	switch {
	case errors.Is(err, platformredis.ErrLockHeld):
		outcome = outcomeSkipped
		err = nil
		s.logger.InfoContext(ctx, "job skipped, lock held elsewhere", "job", job.Name)
	case err != nil:
		outcome = outcomeError
		s.logger.ErrorContext(ctx, "job failed", "job", job.Name, "error", err)
	default:
		s.logger.InfoContext(ctx, "job finished", "job", job.Name, "duration", time.Since(start))
	}
	if s.metrics != nil {
		s.metrics.ObserveJob(job.Name, outcome, time.Since(start).Seconds())
	}
	return err
}
