// Package daemon implements the task scheduler that drives enforcement and
// the startup wiring of the daemon process.
package daemon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
)

// Executor runs one enforcement task.
type Executor interface {
	Execute(ctx context.Context, task domain.Task)
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	Workers           int           // Concurrent task executors
	HeartbeatInterval time.Duration // How often to log queue depth
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Workers:           4,
		HeartbeatInterval: 5 * time.Minute,
	}
}

// Scheduler feeds queued tasks to a pool of workers.
// Producers call AddImmediateOperation and AddDelayedOperation; there is no
// cancellation, tasks re-validate their account when they run.
type Scheduler struct {
	config SchedulerConfig
	queue  *TaskQueue
	logger *zap.Logger
}

// NewScheduler creates a scheduler with an empty queue.
func NewScheduler(config SchedulerConfig, logger *zap.Logger) *Scheduler {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultSchedulerConfig().HeartbeatInterval
	}
	return &Scheduler{
		config: config,
		queue:  NewTaskQueue(),
		logger: logger,
	}
}

// AddImmediateOperation queues a task that is ready now.
func (s *Scheduler) AddImmediateOperation(task domain.Task) {
	s.logger.Debug("task queued",
		zap.Stringer("task", task.Kind),
		zap.Uint32("account", uint32(task.Account)))
	s.queue.AddImmediateOperation(task)
}

// AddDelayedOperation queues a task that becomes ready after delay.
func (s *Scheduler) AddDelayedOperation(task domain.Task, delay time.Duration) {
	s.logger.Debug("task queued",
		zap.Stringer("task", task.Kind),
		zap.Uint32("account", uint32(task.Account)),
		zap.Duration("delay", delay))
	s.queue.AddDelayedOperation(task, delay)
}

// Pending returns the number of queued tasks.
func (s *Scheduler) Pending() int {
	return s.queue.Len()
}

// Run starts the workers and blocks until ctx is canceled. Tasks already
// executing are allowed to finish.
func (s *Scheduler) Run(ctx context.Context, exec Executor) error {
	s.logger.Info("scheduler started", zap.Int("workers", s.config.Workers))

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			s.work(ctx, worker, exec)
		}(i)
	}

	heartbeatTicker := time.NewTicker(s.config.HeartbeatInterval)
	defer heartbeatTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			wg.Wait()
			return ctx.Err()

		case <-heartbeatTicker.C:
			s.logger.Debug("scheduler heartbeat", zap.Int("pending", s.queue.Len()))
		}
	}
}

func (s *Scheduler) work(ctx context.Context, worker int, exec Executor) {
	for {
		task, err := s.queue.Next(ctx)
		if err != nil {
			return
		}
		s.logger.Debug("running task",
			zap.Int("worker", worker),
			zap.Stringer("task", task.Kind),
			zap.Uint32("account", uint32(task.Account)))
		exec.Execute(ctx, task)
	}
}

// Ensure Scheduler implements domain.TaskScheduler.
var _ domain.TaskScheduler = (*Scheduler)(nil)
