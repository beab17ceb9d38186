// Package scheduler runs one-shot and recurring background tasks for the
// maintenance loops the memory service owns. Task records live in memory
// only; nothing is persisted across restarts.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mnemoslab/mnemo/internal/domain"
)

const (
	defaultTaskTimeout = 5 * time.Minute

	// Finished one-shot records stay queryable for a grace period, then the
	// janitor drops them so the task map cannot grow with process lifetime.
	finishedTaskRetention = 10 * time.Minute
	janitorInterval       = time.Minute
)

// Handler executes one task. Errors are logged and never propagate to the
// scheduler loop.
type Handler func(ctx context.Context, payload map[string]any) error

type task struct {
	id       string
	taskType string
	state    domain.TaskState
	cancel   chan struct{}
	doneAt   time.Time
}

// Scheduler dispatches registered handlers. One-shot tasks run concurrently
// with no ordering between ids; a recurring task never overlaps itself.
type Scheduler struct {
	mu        sync.Mutex
	handlers  map[string]Handler
	tasks     map[string]*task
	recurring map[string]chan struct{}

	disabled bool
	timeout  time.Duration
	logger   *zap.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func New(logger *zap.Logger) *Scheduler {
	s := &Scheduler{
		handlers:  make(map[string]Handler),
		tasks:     make(map[string]*task),
		recurring: make(map[string]chan struct{}),
		timeout:   defaultTaskTimeout,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(janitorInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweepFinished(time.Now().Add(-finishedTaskRetention))
			case <-s.stopCh:
				return
			}
		}
	}()
	return s
}

// Disable makes every Schedule call return an empty id. Callers treat that
// as "run inline instead".
func (s *Scheduler) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = true
}

func (s *Scheduler) SetTaskTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeout = d
}

func (s *Scheduler) RegisterHandler(taskType string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[taskType] = h
}

// ScheduleTask queues a one-shot task after an optional delay. Tasks for
// unregistered types are logged and dropped at execution time.
func (s *Scheduler) ScheduleTask(taskType string, payload map[string]any, delay time.Duration) (string, error) {
	s.mu.Lock()
	if s.disabled {
		s.mu.Unlock()
		return "", nil
	}
	t := &task{
		id:       domain.NewTaskID(),
		taskType: taskType,
		state:    domain.TaskPending,
		cancel:   make(chan struct{}),
	}
	s.tasks[t.id] = t
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if delay > 0 {
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-t.cancel:
				return
			case <-s.stopCh:
				s.setState(t.id, domain.TaskCancelled)
				return
			}
		}
		s.runTask(t, payload)
	}()
	return t.id, nil
}

// ScheduleRecurring fires the handler immediately, then every interval until
// cancelled. A new tick waits for the previous run to finish.
func (s *Scheduler) ScheduleRecurring(taskType string, interval time.Duration, payload map[string]any) (string, error) {
	if interval <= 0 {
		return "", fmt.Errorf("recurring interval must be positive, got %s", interval)
	}
	s.mu.Lock()
	if s.disabled {
		s.mu.Unlock()
		return "", nil
	}
	id := domain.NewTaskID()
	cancel := make(chan struct{})
	s.recurring[id] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			s.execute(taskType, payload)
			select {
			case <-time.After(interval):
			case <-cancel:
				return
			case <-s.stopCh:
				return
			}
		}
	}()
	return id, nil
}

// CancelTask is best-effort: it cancels a pending delay or stops a recurring
// loop before its next tick. A handler already running is not interrupted.
func (s *Scheduler) CancelTask(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.recurring[id]; ok {
		close(cancel)
		delete(s.recurring, id)
		return true
	}
	t, ok := s.tasks[id]
	if !ok || t.state != domain.TaskPending {
		return false
	}
	close(t.cancel)
	t.state = domain.TaskCancelled
	t.doneAt = time.Now()
	return true
}

func (s *Scheduler) GetTaskStatus(id string) domain.TaskState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recurring[id]; ok {
		return domain.TaskRunning
	}
	if t, ok := s.tasks[id]; ok {
		return t.state
	}
	return domain.TaskNotFound
}

// Stop signals all loops and waits for in-flight handlers to finish.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Scheduler) runTask(t *task, payload map[string]any) {
	s.mu.Lock()
	if t.state != domain.TaskPending {
		s.mu.Unlock()
		return
	}
	t.state = domain.TaskRunning
	s.mu.Unlock()

	err := s.execute(t.taskType, payload)
	if err != nil {
		s.setState(t.id, domain.TaskFailed)
		return
	}
	s.setState(t.id, domain.TaskCompleted)
}

// execute looks up the handler and runs it under the task timeout, isolating
// panics so a broken handler cannot take the scheduler down.
func (s *Scheduler) execute(taskType string, payload map[string]any) (err error) {
	s.mu.Lock()
	h, ok := s.handlers[taskType]
	timeout := s.timeout
	s.mu.Unlock()
	if !ok {
		s.logger.Warn("no handler registered for task type, dropping",
			zap.String("task_type", taskType))
		return fmt.Errorf("no handler for task type %s", taskType)
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task handler panicked",
				zap.String("task_type", taskType),
				zap.Any("panic", r))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := h(ctx, payload); err != nil {
		s.logger.Error("task handler failed",
			zap.String("task_type", taskType),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *Scheduler) setState(id string, state domain.TaskState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.state = state
		switch state {
		case domain.TaskCompleted, domain.TaskFailed, domain.TaskCancelled:
			t.doneAt = time.Now()
		}
	}
}

// sweepFinished drops one-shot records that reached a terminal state before
// the cutoff.
func (s *Scheduler) sweepFinished(cutoff time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.tasks {
		if !t.doneAt.IsZero() && t.doneAt.Before(cutoff) {
			delete(s.tasks, id)
		}
	}
}
