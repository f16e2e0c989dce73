// Package queue runs background jobs with retries and failed-job capture.
//
// Usage:
//
//	type ReceiptJob struct{ OrderID uint }
//	func (ReceiptJob) JobName() string { return "order.receipt" }
//	func (j *ReceiptJob) Handle(ctx context.Context) error { ... }
//
//	queue.Register("order.receipt", func() queue.Job { return &ReceiptJob{} })
//	queue.Dispatch(&ReceiptJob{OrderID: 42})
//	queue.DispatchAfter(&ReceiptJob{OrderID: 42}, 30*time.Second)
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/metrics"
)

// Job is the interface every queued job must satisfy.
type Job interface {
	// Handle executes the job. Return a non-nil error to signal failure.
	Handle(ctx context.Context) error
}

// Namer lets a job pick its registry name. Jobs without it are keyed by
// their Go type, e.g. "*jobs.ReceiptJob".
type Namer interface {
	JobName() string
}

// Dispatcher is the narrow surface services depend on.
type Dispatcher interface {
	Dispatch(job Job) error
}

// ErrUnregistered is returned by Dispatch for a job whose name has no factory.
var ErrUnregistered = errors.New("queue: job type not registered")

// FailedJob holds information about a job that failed.
type FailedJob struct {
	Type     string
	Job      Job
	Err      error
	FailedAt time.Time
	Attempts int
}

// Driver is the queue storage backend.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	Pop(ctx context.Context) ([]byte, error)
}

// DelayedDriver is implemented by drivers that can hold a job until later.
type DelayedDriver interface {
	PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error
}

// ------------------- Manager -------------------

// Manager is the central queue hub.
type Manager struct {
	mu       sync.RWMutex
	driver   Driver
	registry map[string]func() Job // name → constructor
	failed   []FailedJob
	maxRetry int
	backoff  func(attempt int) time.Duration
	timeout  time.Duration
	db       *gorm.DB
}

// NewManager creates a Manager on d with three attempts per job and linear
// one-second backoff.
func NewManager(d Driver) *Manager {
	return &Manager{
		driver:   d,
		registry: map[string]func() Job{},
		maxRetry: 3,
		backoff:  func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
		timeout:  time.Minute,
	}
}

var defaultManager = NewManager(NewMemoryDriver())

// Default returns the process-wide Manager.
func Default() *Manager { return defaultManager }

// SetDriver swaps the underlying queue driver (e.g. Redis).
func (m *Manager) SetDriver(d Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.driver = d
}

// SetMaxRetry sets how many times a failing job is attempted.
func (m *Manager) SetMaxRetry(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n < 1 {
		n = 1
	}
	m.maxRetry = n
}

// SetBackoff replaces the delay between attempts.
func (m *Manager) SetBackoff(fn func(attempt int) time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backoff = fn
}

// Register makes a job type available for deserialization by name.
// Call this once at boot for every job type you define.
func (m *Manager) Register(name string, factory func() Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[name] = factory
}

// Package-level shortcuts on the default manager.

func SetDriver(d Driver)                         { defaultManager.SetDriver(d) }
func SetMaxRetry(n int)                          { defaultManager.SetMaxRetry(n) }
func Register(name string, factory func() Job)   { defaultManager.Register(name, factory) }
func Dispatch(job Job) error                     { return defaultManager.Dispatch(job) }
func DispatchAfter(job Job, delay time.Duration) { defaultManager.DispatchAfter(job, delay) }
func StartWorkers(ctx context.Context, n int)    { defaultManager.StartWorkers(ctx, n) }
func FailedJobs() []FailedJob                    { return defaultManager.FailedJobs() }
func UseDB(db *gorm.DB) error                    { return defaultManager.UseDB(db) }

// ------------------- Dispatch -------------------

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func nameOf(job Job) string {
	if n, ok := job.(Namer); ok {
		return n.JobName()
	}
	return fmt.Sprintf("%T", job)
}

// Dispatch pushes job onto the queue immediately.
func (m *Manager) Dispatch(job Job) error {
	env, err := m.encode(job)
	if err != nil {
		return err
	}
	m.mu.RLock()
	d := m.driver
	m.mu.RUnlock()
	return d.Push(context.Background(), env)
}

// DispatchAfter pushes job after delay. Drivers that support delayed
// delivery hold it themselves; otherwise a timer goroutine waits.
func (m *Manager) DispatchAfter(job Job, delay time.Duration) {
	env, err := m.encode(job)
	if err != nil {
		logger.Error("queue: delayed dispatch failed", "error", err)
		return
	}
	m.mu.RLock()
	d := m.driver
	m.mu.RUnlock()

	if dd, ok := d.(DelayedDriver); ok {
		if err := dd.PushDelayed(context.Background(), env, delay); err != nil {
			logger.Error("queue: delayed dispatch failed", "error", err)
		}
		return
	}
	time.AfterFunc(delay, func() {
		if err := d.Push(context.Background(), env); err != nil {
			logger.Error("queue: delayed dispatch failed", "error", err)
		}
	})
}

func (m *Manager) encode(job Job) ([]byte, error) {
	typeName := nameOf(job)

	m.mu.RLock()
	_, ok := m.registry[typeName]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregistered, typeName)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal job %s: %w", typeName, err)
	}
	env, err := json.Marshal(envelope{Type: typeName, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("queue: marshal envelope: %w", err)
	}
	return env, nil
}

// ------------------- Worker -------------------

// StartWorkers launches n concurrent workers that process jobs from the queue.
// The workers run until ctx is cancelled.
func (m *Manager) StartWorkers(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		go m.work(ctx)
	}
	logger.Info("queue: workers started", "count", n)
}

func (m *Manager) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m.mu.RLock()
		d := m.driver
		m.mu.RUnlock()

		raw, err := d.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue: pop failed", "error", err)
			time.Sleep(500 * time.Millisecond)
			continue
		}
		if raw == nil {
			continue
		}
		m.process(ctx, raw)
	}
}

func (m *Manager) process(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Error("queue: bad envelope", "error", err)
		return
	}

	m.mu.RLock()
	factory, ok := m.registry[env.Type]
	m.mu.RUnlock()
	if !ok {
		logger.Warn("queue: unregistered job type", "type", env.Type)
		return
	}

	job := factory()
	if err := json.Unmarshal(env.Payload, job); err != nil {
		logger.Error("queue: unmarshal payload", "type", env.Type, "error", err)
		return
	}

	m.runWithRetry(ctx, job, env.Type)
}

func (m *Manager) runWithRetry(ctx context.Context, job Job, typeName string) {
	m.mu.RLock()
	maxRetry, backoff, timeout := m.maxRetry, m.backoff, m.timeout
	m.mu.RUnlock()

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= maxRetry; attempt++ {
		if lastErr = m.handle(ctx, job, timeout); lastErr == nil {
			metrics.RecordQueueJob(typeName, "processed", start)
			logger.Debug("queue: job processed", "type", typeName, "attempt", attempt)
			return
		}
		logger.Warn("queue: job failed", "type", typeName, "attempt", attempt, "error", lastErr)
		if attempt == maxRetry {
			break
		}
		select {
		case <-ctx.Done():
			m.persistFailed(job, typeName, lastErr, attempt)
			return
		case <-time.After(backoff(attempt)):
		}
	}

	metrics.RecordQueueJob(typeName, "failed", start)
	m.persistFailed(job, typeName, lastErr, maxRetry)
	logger.Error("queue: job exhausted retries", "type", typeName, "error", lastErr)
}

func (m *Manager) handle(ctx context.Context, job Job, timeout time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("queue: job panicked: %v", r)
		}
	}()
	jctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return job.Handle(jctx)
}

// FailedJobs returns a snapshot of all failed jobs seen by this process.
func (m *Manager) FailedJobs() []FailedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FailedJob, len(m.failed))
	copy(out, m.failed)
	return out
}
