// Package probe runs operator-defined shell commands on independent
// intervals and reports failures through a notify.Bot.
package probe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Runner executes one tick of a task. *Executor implements it.
type Runner interface {
	Run(ctx context.Context, task TaskConfig) Execution
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, task TaskConfig) Execution

// Run calls f(ctx, task).
func (f RunnerFunc) Run(ctx context.Context, task TaskConfig) Execution {
	return f(ctx, task)
}

// State is the lifecycle state of one task loop.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// TaskStatus is a point-in-time view of one task loop.
type TaskStatus struct {
	Name     string
	Interval time.Duration
	State    State
	Runs     int64
}

// taskLoop owns the state of one task. Loops share nothing with each other.
type taskLoop struct {
	cfg   TaskConfig
	state atomic.Int32
	runs  atomic.Int64
}

// Scheduler runs one loop per task. Each loop ticks on its own interval and
// runs its command synchronously, so a slow command only delays its own task.
type Scheduler struct {
	loops  []*taskLoop
	runner Runner
	logger *zap.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler for the valid entries of tasks.
// Invalid entries are logged and never get a loop.
func NewScheduler(tasks []TaskConfig, runner Runner, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		runner: runner,
		logger: logger,
	}
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			logger.Warn("task not scheduled",
				zap.String("task", t.Name),
				zap.Error(err),
			)
			continue
		}
		s.loops = append(s.loops, &taskLoop{cfg: t})
	}
	return s
}

// Start launches every task loop. Loops stop when ctx is cancelled or Stop
// is called. Calling Start more than once has no effect.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	for _, l := range s.loops {
		l.state.Store(int32(StateRunning))
		probeTasksRunning.Inc()
		s.wg.Add(1)
		go s.run(ctx, l)
	}

	s.logger.Info("scheduler started", zap.Int("tasks", len(s.loops)))
}

// Stop signals every loop to stop and waits until all have exited.
// A command already running is allowed to finish first.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Wait blocks until every loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Tasks reports the current status of every scheduled task.
func (s *Scheduler) Tasks() []TaskStatus {
	out := make([]TaskStatus, 0, len(s.loops))
	for _, l := range s.loops {
		out = append(out, TaskStatus{
			Name:     l.cfg.Name,
			Interval: l.cfg.Interval,
			State:    State(l.state.Load()),
			Runs:     l.runs.Load(),
		})
	}
	return out
}

// run is the loop of one task. Shutdown is checked before every tick and
// never interrupts a tick in progress.
func (s *Scheduler) run(ctx context.Context, l *taskLoop) {
	log := s.logger.With(zap.String("task", l.cfg.Name))
	defer s.wg.Done()
	defer func() {
		l.state.Store(int32(StateStopped))
		probeTasksRunning.Dec()
		log.Info("task stopped", zap.Int64("runs", l.runs.Load()))
	}()

	log.Info("task started", zap.Duration("interval", l.cfg.Interval))

	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	// Notifications for a tick that started before shutdown still go out.
	tickCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			return
		}
		s.tick(tickCtx, l, log)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, l *taskLoop, log *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("task tick panicked", zap.Any("panic", r))
		}
	}()
	l.runs.Add(1)
	s.runner.Run(ctx, l.cfg)
}
