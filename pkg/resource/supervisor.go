// pkg/resource/supervisor.go
package resource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opd-ai/rigid2d/pkg/health"
	"github.com/opd-ai/rigid2d/pkg/logging"
)

// ErrPanic wraps a recovered panic reported as a task failure
var ErrPanic = errors.New("task panicked")

// Options bounds a Supervisor
type Options struct {
	MaxGoroutines   int
	MaxMemoryMB     int64
	ShutdownTimeout time.Duration
	CheckInterval   time.Duration
}

// DefaultOptions suits a single serving process
func DefaultOptions() Options {
	return Options{
		MaxGoroutines:   16,
		MaxMemoryMB:     500,
		ShutdownTimeout: 10 * time.Second,
		CheckInterval:   10 * time.Second,
	}
}

// Supervisor runs the long-lived tasks of a process. The first task to fail, or panic,
// cancels the shared context so the others wind down; Shutdown waits for all of them.
type Supervisor struct {
	opts   Options
	logger *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	running   int64
	memoryMB  int64
	lastCheck atomic.Int64 // unix nanoseconds

	mu       sync.Mutex
	firstErr error
	failed   string
	monitor  chan struct{}
	stopped  bool
}

// NewSupervisor creates a supervisor whose context is derived from parent
func NewSupervisor(parent context.Context, opts Options, logger *logging.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Supervisor{
		opts:   opts,
		logger: logger.With("component", "supervisor"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Context is cancelled when the parent ends, a task fails, or Shutdown is called
func (s *Supervisor) Context() context.Context {
	return s.ctx
}

// Done is closed when Context is cancelled
func (s *Supervisor) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Go starts fn as a tracked task. Returning nil or context.Canceled is a clean exit;
// any other error is recorded and cancels the supervisor.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return fmt.Errorf("supervisor stopped, cannot start %s", name)
	}

	current := atomic.LoadInt64(&s.running)
	if s.opts.MaxGoroutines > 0 && current >= int64(s.opts.MaxGoroutines) {
		s.logger.Warn(s.ctx, "Goroutine limit exceeded",
			"current", current,
			"limit", s.opts.MaxGoroutines,
			"name", name,
		)
		return fmt.Errorf("goroutine limit exceeded: %d/%d", current, s.opts.MaxGoroutines)
	}

	atomic.AddInt64(&s.running, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer atomic.AddInt64(&s.running, -1)

		err := s.call(name, fn)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.fail(name, err)
		}
	}()
	return nil
}

func (s *Supervisor) call(name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrPanic, name, r)
		}
	}()
	return fn(s.ctx)
}

func (s *Supervisor) fail(name string, err error) {
	s.mu.Lock()
	first := s.firstErr == nil
	if first {
		s.firstErr = fmt.Errorf("%s: %w", name, err)
		s.failed = name
	}
	s.mu.Unlock()

	s.logger.Error(s.ctx, "Task failed", err, "name", name, "first", first)
	s.cancel()
}

// Err returns the first task failure, if any
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

// StartMonitor samples memory use every CheckInterval until the supervisor is cancelled
func (s *Supervisor) StartMonitor() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.monitor != nil {
		return fmt.Errorf("monitor already running")
	}
	if s.opts.CheckInterval <= 0 {
		return fmt.Errorf("invalid check interval %v", s.opts.CheckInterval)
	}
	s.monitor = make(chan struct{})
	go s.monitorLoop(s.monitor)

	s.logger.Info(s.ctx, "Resource monitor started",
		"max_memory_mb", s.opts.MaxMemoryMB,
		"max_goroutines", s.opts.MaxGoroutines,
		"check_interval", s.opts.CheckInterval,
	)
	return nil
}

func (s *Supervisor) monitorLoop(done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.opts.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.CheckMemoryUsage(); err != nil {
				s.logger.Error(s.ctx, "Memory limit exceeded", err)
			}
			s.logger.Debug(s.ctx, "Resource usage check",
				"goroutines", s.Running(),
				"memory_mb", atomic.LoadInt64(&s.memoryMB),
			)
		case <-s.ctx.Done():
			return
		}
	}
}

// CheckMemoryUsage samples the heap and compares it with MaxMemoryMB
func (s *Supervisor) CheckMemoryUsage() error {
	current := health.RuntimeMemoryMB()
	atomic.StoreInt64(&s.memoryMB, current)
	s.lastCheck.Store(time.Now().UnixNano())
	if s.opts.MaxMemoryMB > 0 && current > s.opts.MaxMemoryMB {
		return fmt.Errorf("memory usage %dMB exceeds limit %dMB", current, s.opts.MaxMemoryMB)
	}
	return nil
}

// Running returns the number of live tasks
func (s *Supervisor) Running() int64 {
	return atomic.LoadInt64(&s.running)
}

// Stats is a point-in-time view of the supervisor
type Stats struct {
	Running         int64     `json:"running"`
	MaxGoroutines   int       `json:"max_goroutines"`
	MemoryUsageMB   int64     `json:"memory_usage_mb"`
	MaxMemoryMB     int64     `json:"max_memory_mb"`
	LastMemoryCheck time.Time `json:"last_memory_check"`
	Failed          string    `json:"failed,omitempty"`
}

// Stats returns current usage
func (s *Supervisor) Stats() Stats {
	s.mu.Lock()
	failed := s.failed
	s.mu.Unlock()

	var last time.Time
	if ns := s.lastCheck.Load(); ns != 0 {
		last = time.Unix(0, ns)
	}
	return Stats{
		Running:         s.Running(),
		MaxGoroutines:   s.opts.MaxGoroutines,
		MemoryUsageMB:   atomic.LoadInt64(&s.memoryMB),
		MaxMemoryMB:     s.opts.MaxMemoryMB,
		LastMemoryCheck: last,
		Failed:          failed,
	}
}

// Shutdown cancels every task and waits up to ShutdownTimeout for them to return. It
// returns the first task failure, or a timeout error.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return s.Err()
	}
	s.stopped = true
	monitor := s.monitor
	s.mu.Unlock()

	s.logger.Info(ctx, "Shutting down supervisor", "running", s.Running())
	s.cancel()

	timeout := s.opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultOptions().ShutdownTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	finished := make(chan struct{})
	go func() {
		s.wg.Wait()
		if monitor != nil {
			<-monitor
		}
		close(finished)
	}()

	select {
	case <-finished:
		s.logger.Info(ctx, "All tasks finished")
		return s.Err()
	case <-waitCtx.Done():
		remaining := s.Running()
		s.logger.Warn(ctx, "Shutdown timeout exceeded with tasks still running", "remaining", remaining)
		return errors.Join(s.Err(), fmt.Errorf("shutdown timeout: %d tasks still running", remaining))
	}
}

// HealthCheck reports the supervisor as unhealthy after a task failure or when tasks
// exceed 80% of MaxGoroutines
type HealthCheck struct {
	supervisor *Supervisor
}

// NewHealthCheck creates a health check for s
func NewHealthCheck(s *Supervisor) *HealthCheck {
	return &HealthCheck{supervisor: s}
}

// Name implements health.HealthCheck
func (h *HealthCheck) Name() string {
	return "resource"
}

// Check implements health.HealthCheck
func (h *HealthCheck) Check(ctx context.Context) error {
	if err := h.supervisor.Err(); err != nil {
		return fmt.Errorf("task failed: %w", err)
	}
	stats := h.supervisor.Stats()
	if stats.MaxGoroutines > 0 {
		threshold := int64(float64(stats.MaxGoroutines) * 0.8)
		if stats.Running > threshold {
			return fmt.Errorf("task count %d exceeds 80%% threshold (%d/%d)",
				stats.Running, threshold, stats.MaxGoroutines)
		}
	}
	return nil
}
