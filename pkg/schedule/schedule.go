// Package schedule runs maintenance tasks on fixed intervals.
//
//	s := schedule.New()
//	s.Every(time.Minute).Name("payments.sweep-stale").Run(payments.SweepStale)
//	s.Every(10 * time.Minute).Name("verifications.purge").Run(purge)
//	go s.Start(ctx)
//
// A task never overlaps with itself: a tick that finds the previous run
// still going is skipped.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
)

// Task is the function signature for a scheduled task.
type Task func(ctx context.Context) error

type entry struct {
	id       string
	interval time.Duration
	task     Task
	timeout  time.Duration

	mu      sync.Mutex
	lastRun time.Time
	running bool
	runs    int
}

// Scheduler holds registered entries.
type Scheduler struct {
	mu      sync.Mutex
	entries []*entry
	tick    time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTick sets how often due entries are checked. Default one second.
func WithTick(d time.Duration) Option { return func(s *Scheduler) { s.tick = d } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Scheduler) { s.now = now } }

func New(opts ...Option) *Scheduler {
	s := &Scheduler{tick: time.Second, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Builder is the fluent form of one entry before Run registers it.
type Builder struct {
	s *Scheduler
	e *entry
}

// Every starts an entry that runs each interval, first on the tick after
// Start.
func (s *Scheduler) Every(interval time.Duration) *Builder {
	return &Builder{s: s, e: &entry{interval: interval}}
}

// Name gives the entry an identifier for logs and List.
func (b *Builder) Name(id string) *Builder {
	b.e.id = id
	return b
}

// Timeout bounds a single run.
func (b *Builder) Timeout(d time.Duration) *Builder {
	b.e.timeout = d
	return b
}

// Run registers the task.
func (b *Builder) Run(fn Task) {
	b.e.task = fn
	b.s.mu.Lock()
	defer b.s.mu.Unlock()
	if b.e.id == "" {
		b.e.id = fmt.Sprintf("task-%d", len(b.s.entries)+1)
	}
	if b.e.timeout <= 0 {
		b.e.timeout = b.e.interval
	}
	b.s.entries = append(b.s.entries, b.e)
}

// Start dispatches due entries until ctx is cancelled, then waits for
// running tasks to return.
func (s *Scheduler) Start(ctx context.Context) {
	logger.Info("schedule: scheduler started", "entries", len(s.List()))
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			logger.Info("schedule: scheduler stopped")
			return
		case <-ticker.C:
			now := s.now()
			s.mu.Lock()
			current := make([]*entry, len(s.entries))
			copy(current, s.entries)
			s.mu.Unlock()

			for _, e := range current {
				s.dispatch(ctx, e, now)
			}
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, e *entry, now time.Time) {
	e.mu.Lock()
	if !e.lastRun.IsZero() && now.Sub(e.lastRun) < e.interval {
		e.mu.Unlock()
		return
	}
	if e.running {
		e.mu.Unlock()
		logger.Warn("schedule: skipping overlapping task", "id", e.id)
		return
	}
	e.running = true
	e.lastRun = now
	e.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("schedule: task panicked", "id", e.id, "panic", r)
			}
			e.mu.Lock()
			e.running = false
			e.runs++
			e.mu.Unlock()
		}()

		tctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		start := time.Now()
		if err := e.task(tctx); err != nil {
			logger.Warn("schedule: task failed", "id", e.id, "error", err)
			return
		}
		logger.Debug("schedule: task finished", "id", e.id, "took", time.Since(start))
	}()
}

// Runs reports how many times the named entry has completed.
func (s *Scheduler) Runs(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.id == id {
			e.mu.Lock()
			defer e.mu.Unlock()
			return e.runs
		}
	}
	return 0
}

// List returns every registered entry for CLI display.
func (s *Scheduler) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, fmt.Sprintf("%s  [every %s]", e.id, e.interval))
	}
	sort.Strings(out)
	return out
}
