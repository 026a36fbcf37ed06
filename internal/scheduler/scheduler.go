package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/thinkscotty/podcaster/internal/models"
	"github.com/thinkscotty/podcaster/internal/pipeline"
)

// ErrRunInProgress is returned when a run for the same date is already executing.
var ErrRunInProgress = errors.New("run already in progress")

// Runner is the pipeline as seen by the scheduler.
type Runner interface {
	Run(ctx context.Context, rc models.RunContext, opts pipeline.RunOptions) (*models.RunBundle, error)
	Name() string
}

// Store is the checkpoint store the scheduler reads run records from and purges.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type Scheduler struct {
	runner      Runner
	store       Store
	environment string
	schedule    string // local "HH:MM"; empty disables daily runs
	logger      *slog.Logger
	fileLock    *flock.Flock

	locks sync.Map // run date -> *sync.Mutex
	wg    sync.WaitGroup
	now   func() time.Time
}

type Option func(*Scheduler)

// WithFileLock guards runs with a lock file so separate processes sharing
// the same database never run concurrently.
func WithFileLock(path string) Option {
	return func(s *Scheduler) {
		if path != "" {
			s.fileLock = flock.New(path)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(runner Runner, store Store, environment, schedule string, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:      runner,
		store:       store,
		environment: environment,
		schedule:    schedule,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lockDate acquires the per-date mutex without blocking.
func (s *Scheduler) lockDate(date string) (*sync.Mutex, bool) {
	val, _ := s.locks.LoadOrStore(date, &sync.Mutex{})
	mu := val.(*sync.Mutex)
	if mu.TryLock() {
		return mu, true
	}
	return nil, false
}

// Run starts the scheduler loop. It checks every 60 seconds whether today's
// run is due.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	s.logger.Info("Scheduler started", "schedule", s.schedule, "environment", s.environment)

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if n, err := s.store.DeleteExpired(ctx); err != nil {
		s.logger.Error("Failed to purge expired checkpoints", "error", err)
	} else if n > 0 {
		s.logger.Debug("Purged expired checkpoints", "count", n)
	}

	due, date, err := s.Due(ctx)
	if err != nil {
		s.logger.Error("Failed to check schedule", "error", err)
		return
	}
	if !due {
		return
	}
	if _, err := s.Start(ctx, date, false, pipeline.RunOptions{}); err != nil && !errors.Is(err, ErrRunInProgress) {
		s.logger.Error("Failed to start scheduled run", "date", date, "error", err)
	}
}

// Due reports whether today's run should start: the schedule time has passed
// and no bundle is recorded for today yet. Both the schedule and the run date
// use the local clock.
func (s *Scheduler) Due(ctx context.Context) (bool, string, error) {
	if s.schedule == "" {
		return false, "", nil
	}
	at, err := time.Parse("15:04", s.schedule)
	if err != nil {
		return false, "", fmt.Errorf("parse schedule %q: %w", s.schedule, err)
	}

	now := s.now()
	date := now.Format(time.DateOnly)
	scheduled := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, now.Location())
	if now.Before(scheduled) {
		return false, date, nil
	}

	_, exists, err := s.store.Get(ctx, pipeline.RecordKey(s.environment, s.runner.Name(), date))
	if err != nil {
		return false, date, err
	}
	return !exists, date, nil
}

// Start launches a run for date in the background and returns its identity.
// It fails fast with ErrRunInProgress if a run for the same date is active.
func (s *Scheduler) Start(ctx context.Context, date string, fresh bool, opts pipeline.RunOptions) (models.RunContext, error) {
	rc := pipeline.NewRunContext(s.environment, s.runner.Name(), date, fresh)
	mu, ok := s.lockDate(rc.RunDate)
	if !ok {
		return rc, ErrRunInProgress
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer mu.Unlock()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Panic in pipeline run", "run_id", rc.RunID, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		if _, err := s.execute(ctx, rc, opts); err != nil {
			s.logger.Error("Pipeline run failed", "run_id", rc.RunID, "date", rc.RunDate, "error", err)
		}
	}()
	return rc, nil
}

// RunNow executes one run synchronously.
func (s *Scheduler) RunNow(ctx context.Context, date string, fresh bool, opts pipeline.RunOptions) (*models.RunBundle, error) {
	rc := pipeline.NewRunContext(s.environment, s.runner.Name(), date, fresh)
	mu, ok := s.lockDate(rc.RunDate)
	if !ok {
		return nil, ErrRunInProgress
	}
	defer mu.Unlock()
	return s.execute(ctx, rc, opts)
}

// Wait blocks until background runs have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) execute(ctx context.Context, rc models.RunContext, opts pipeline.RunOptions) (*models.RunBundle, error) {
	if s.fileLock != nil {
		ok, err := s.fileLock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire run lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: lock %s held by another process", ErrRunInProgress, s.fileLock.Path())
		}
		defer func() {
			if err := s.fileLock.Unlock(); err != nil {
				s.logger.Warn("Failed to release run lock", "error", err)
			}
		}()
	}
	return s.runner.Run(ctx, rc, opts)
}
