// Package durable runs named pipeline steps with bounded retries, per-attempt
// timeouts and checkpointed results.
//
// A step's result is stored as JSON under step:<runID>:<name>. Running the same
// step again for the same run returns the stored result without calling the
// step function, which is what lets a crashed run restart from the top.
package durable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrRetriesExhausted wraps the last attempt's error once every attempt failed.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Store is the subset of the checkpoint store the runner needs.
type Store interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
}

// Policy bounds how a step is attempted.
type Policy struct {
	Retries int           // additional attempts after the first
	Delay   time.Duration // base delay, multiplied by the attempt number
	Timeout time.Duration // per attempt; zero means no timeout
}

// Attempts is the total number of times a step may run.
func (p Policy) Attempts() int {
	if p.Retries < 0 {
		return 1
	}
	return p.Retries + 1
}

// WithTimeout returns a copy of p with a different per-attempt timeout.
func (p Policy) WithTimeout(d time.Duration) Policy {
	p.Timeout = d
	return p
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

type Runner struct {
	store  Store
	runID  string
	ttl    time.Duration
	logger *slog.Logger
	sleep  func(context.Context, time.Duration) error
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithTTL sets how long step checkpoints live. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(r *Runner) { r.ttl = ttl }
}

// WithSleep overrides how backoff delays are waited out (useful for tests).
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(r *Runner) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

func NewRunner(store Store, runID string, opts ...Option) *Runner {
	r := &Runner{
		store:  store,
		runID:  runID,
		logger: slog.Default(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) RunID() string { return r.runID }

// Key is the checkpoint key for the named step.
func (r *Runner) Key(name string) string {
	return "step:" + r.runID + ":" + name
}

// Do returns the checkpointed result of the named step if one exists;
// otherwise it runs fn under policy and checkpoints the result.
func Do[T any](ctx context.Context, r *Runner, name string, policy Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	key := r.Key(name)

	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return zero, fmt.Errorf("%s: read checkpoint: %w", name, err)
	}
	if ok {
		var cached T
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			r.logger.Debug("Step restored from checkpoint", "step", name)
			return cached, nil
		}
		r.logger.Warn("Discarding unreadable checkpoint", "step", name, "key", key)
	}

	result, err := Retry(ctx, r, name, policy, fn)
	if err != nil {
		return zero, err
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return zero, fmt.Errorf("%s: encode checkpoint: %w", name, err)
	}
	if err := r.store.Put(ctx, key, string(encoded), r.ttl); err != nil {
		return zero, fmt.Errorf("%s: write checkpoint: %w", name, err)
	}
	return result, nil
}

// Retry runs fn until it succeeds or policy.Attempts() attempts have failed.
// It never consults or writes checkpoints.
func Retry[T any](ctx context.Context, r *Runner, name string, policy Policy, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	attempts := policy.Attempts()
	start := time.Now()

	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := runAttempt(ctx, policy.Timeout, fn)
		if err == nil {
			r.logger.Debug("Step completed", "step", name, "attempt", attempt, "duration", time.Since(start).String())
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: %w", name, ctx.Err())
		}
		if IsPermanent(err) {
			return zero, fmt.Errorf("%s: %w", name, err)
		}
		if attempt == attempts {
			break
		}

		delay := policy.Delay * time.Duration(attempt)
		r.logger.Warn("Step attempt failed, retrying", "step", name, "attempt", attempt, "delay", delay.String(), "error", err)
		if err := r.sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("%s: %w", name, err)
		}
	}

	return zero, fmt.Errorf("%s: %w after %d attempts: %w", name, ErrRetriesExhausted, attempts, lastErr)
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
