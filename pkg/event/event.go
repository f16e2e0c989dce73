// Package event is the in-process domain event bus. Listeners registered
// for an event name run either inline (Fire) or on a bounded worker pool
// (FireAsync). A listener error is logged and never reaches the publisher.
//
//	bus := event.NewBus(workerpool.New("events", 4))
//	bus.Listen(services.EventOrderPaid, decrementStock)
//	bus.FireAsync(ctx, services.OrderPaid{Order: o})
package event

import (
	"context"
	"errors"
	"sync"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/workerpool"
)

// Event is anything with a stable name.
type Event interface {
	EventName() string
}

// Listener handles one event.
type Listener func(ctx context.Context, e Event) error

// Bus fans events out to listeners.
type Bus struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
	pool      *workerpool.Pool
	inflight  sync.WaitGroup
}

// NewBus creates a Bus. A nil pool makes FireAsync behave like Fire.
func NewBus(pool *workerpool.Pool) *Bus {
	return &Bus{listeners: map[string][]Listener{}, pool: pool}
}

// Listen registers l for events named name.
func (b *Bus) Listen(name string, l Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[name] = append(b.listeners[name], l)
}

func (b *Bus) snapshot(name string) []Listener {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ls := make([]Listener, len(b.listeners[name]))
	copy(ls, b.listeners[name])
	return ls
}

// Fire runs every listener for e in registration order before returning.
func (b *Bus) Fire(ctx context.Context, e Event) {
	for _, l := range b.snapshot(e.EventName()) {
		run(ctx, e, l)
	}
}

// FireAsync hands each listener to the pool and returns. The listeners get
// a context that outlives ctx's cancellation. When the pool is saturated the
// listener runs on the caller's goroutine.
func (b *Bus) FireAsync(ctx context.Context, e Event) {
	if b.pool == nil {
		b.Fire(ctx, e)
		return
	}
	detached := context.WithoutCancel(ctx)
	for _, l := range b.snapshot(e.EventName()) {
		l := l
		b.inflight.Add(1)
		task := func() {
			defer b.inflight.Done()
			run(detached, e, l)
		}
		if err := b.pool.Submit(task); err != nil {
			if !errors.Is(err, workerpool.ErrPoolFull) {
				logger.Warn("event: pool unavailable, running inline", "event", e.EventName(), "error", err)
			}
			task()
		}
	}
}

// Wait blocks until every listener started by FireAsync has returned.
func (b *Bus) Wait() { b.inflight.Wait() }

// Flush removes all listeners.
func (b *Bus) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = map[string][]Listener{}
}

func run(ctx context.Context, e Event, l Listener) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithCtx(ctx).Error("event: listener panicked", "event", e.EventName(), "panic", r)
		}
	}()
	if err := l(ctx, e); err != nil {
		logger.WithCtx(ctx).Warn("event: listener failed", "event", e.EventName(), "error", err)
	}
}
