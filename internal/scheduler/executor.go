// Package scheduler provides the process-wide executor UI actions are submitted to.
// It bounds how many actions run at once and lets a newer action from the same
// session supersede the one still in flight.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/davidbz/codeassist/internal/observability"
)

var (
	// ErrSuperseded is the cancellation cause of a task replaced by a newer one.
	ErrSuperseded = errors.New("superseded by a newer request")

	// ErrShutdown is returned for tasks submitted after Shutdown.
	ErrShutdown = errors.New("executor is shut down")
)

// Config contains executor settings.
type Config struct {
	MaxConcurrency int `env:"SCHEDULER_MAX_CONCURRENCY" envDefault:"4"`
}

// Task is one unit of work. It must return promptly once ctx is done.
type Task func(ctx context.Context) error

type inflight struct {
	id     uint64
	cancel context.CancelCauseFunc
}

// Executor runs submitted tasks with bounded concurrency.
type Executor struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	slots  *semaphore.Weighted

	mu       sync.Mutex
	nextID   uint64
	sessions map[string]inflight
	closed   bool
}

// NewExecutor creates an executor (DI constructor).
func NewExecutor(cfg *Config) *Executor {
	limit := 1
	if cfg != nil && cfg.MaxConcurrency > 0 {
		limit = cfg.MaxConcurrency
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Executor{
		ctx:      ctx,
		cancel:   cancel,
		group:    &errgroup.Group{},
		slots:    semaphore.NewWeighted(int64(limit)),
		sessions: make(map[string]inflight),
	}
}

// Do runs task on the executor and waits for it. A non-empty key identifies the
// session: submitting a new task with the same key cancels the previous one,
// whose Do then returns ErrSuperseded.
func (e *Executor) Do(ctx context.Context, key string, task Task) error {
	if task == nil {
		return errors.New("task cannot be nil")
	}

	taskCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stop := context.AfterFunc(e.ctx, func() { cancel(ErrShutdown) })
	defer stop()

	id, err := e.claim(key, cancel)
	if err != nil {
		return err
	}
	defer e.release(key, id)

	if acquireErr := e.slots.Acquire(taskCtx, 1); acquireErr != nil {
		return e.cause(taskCtx, acquireErr)
	}

	done, err := e.start(taskCtx, task)
	if err != nil {
		e.slots.Release(1)
		return e.cause(taskCtx, err)
	}

	if taskErr := <-done; taskErr != nil {
		return e.cause(taskCtx, taskErr)
	}
	return nil
}

// Shutdown cancels every running task and waits for them to return.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.cancel()

	waited := make(chan struct{})
	go func() {
		_ = e.group.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		observability.FromContext(ctx).Info("executor stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor shutdown: %w", ctx.Err())
	}
}

// start launches task on the group. It holds the slot acquired by Do and
// never adds to the group once Shutdown has begun waiting.
func (e *Executor) start(ctx context.Context, task Task) (<-chan error, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrShutdown
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	e.group.Go(func() error {
		defer e.slots.Release(1)
		done <- task(ctx)
		return nil
	})

	return done, nil
}

// claim registers the task under key, cancelling any task it replaces.
func (e *Executor) claim(key string, cancel context.CancelCauseFunc) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, ErrShutdown
	}

	e.nextID++
	id := e.nextID

	if key == "" {
		return id, nil
	}

	if prev, ok := e.sessions[key]; ok {
		prev.cancel(ErrSuperseded)
	}
	e.sessions[key] = inflight{id: id, cancel: cancel}

	return id, nil
}

func (e *Executor) release(key string, id uint64) {
	if key == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if cur, ok := e.sessions[key]; ok && cur.id == id {
		delete(e.sessions, key)
	}
}

// cause prefers the cancellation cause so callers can tell a superseded task
// from a failed one.
func (e *Executor) cause(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil &&
		(errors.Is(cause, ErrSuperseded) || errors.Is(cause, ErrShutdown)) {
		return cause
	}
	return err
}
