// Package supervisor owns the lifecycle of background runs: at most one
// active run per task id, each with its own cancellation handle.
package supervisor

import (
	"context"
	"fmt"
	"sync"

	"otto/internal/domain/task"
	"otto/internal/shared/logging"
)

// Runner executes one task to a terminal phase. Implemented by engine.Engine.
type Runner interface {
	Execute(ctx context.Context, t *task.Task) *task.Summary
}

// Supervisor starts, cancels, and awaits runs. Safe for concurrent use.
type Supervisor struct {
	runner Runner
	logger logging.Logger

	mu   sync.Mutex
	runs map[string]*handle
}

type handle struct {
	cancel  context.CancelFunc
	done    chan struct{}
	summary *task.Summary
}

// New constructs a supervisor over the given runner.
func New(runner Runner, logger logging.Logger) *Supervisor {
	return &Supervisor{
		runner: runner,
		logger: logging.OrNop(logger),
		runs:   make(map[string]*handle),
	}
}

// Start launches a background run for t. A second Start for the same task id
// while the first run is still active is rejected.
func (s *Supervisor) Start(ctx context.Context, t *task.Task) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("supervisor: task with an id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.runs[t.ID]; ok {
		select {
		case <-existing.done:
			// Finished run; replace it.
		default:
			return fmt.Errorf("supervisor: task %s already has an active run", t.ID)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	h := &handle{cancel: cancel, done: make(chan struct{})}
	s.runs[t.ID] = h

	s.logger.Info("Starting run for task %s", t.ID)
	go func() {
		defer cancel()
		h.summary = s.runner.Execute(runCtx, t)
		close(h.done)
	}()
	return nil
}

// Cancel requests cooperative cancellation of the task's active run. It does
// not wait for the run to finish.
func (s *Supervisor) Cancel(taskID string) error {
	s.mu.Lock()
	h, ok := s.runs[taskID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("supervisor: no run for task %s", taskID)
	}
	s.logger.Info("Cancelling run for task %s", taskID)
	h.cancel()
	return nil
}

// Wait blocks until the task's run reaches a terminal phase or ctx expires,
// and returns the run summary.
func (s *Supervisor) Wait(ctx context.Context, taskID string) (*task.Summary, error) {
	s.mu.Lock()
	h, ok := s.runs[taskID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("supervisor: no run for task %s", taskID)
	}

	select {
	case <-h.done:
		return h.summary, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Active reports whether the task currently has an unfinished run.
func (s *Supervisor) Active(taskID string) bool {
	s.mu.Lock()
	h, ok := s.runs[taskID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Shutdown cancels every active run and waits for them to wind down.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.mu.Lock()
	handles := make([]*handle, 0, len(s.runs))
	for _, h := range s.runs {
		h.cancel()
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		select {
		case <-h.done:
		case <-ctx.Done():
			return
		}
	}
}
