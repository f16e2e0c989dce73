package event_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/event"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/workerpool"
)

type ping struct{ N int }

func (ping) EventName() string { return "ping" }

func TestFireRunsListenersInOrder(t *testing.T) {
	bus := event.NewBus(nil)
	var got []string
	bus.Listen("ping", func(context.Context, event.Event) error { got = append(got, "a"); return nil })
	bus.Listen("ping", func(context.Context, event.Event) error { got = append(got, "b"); return errors.New("ignored") })
	bus.Listen("ping", func(context.Context, event.Event) error { got = append(got, "c"); return nil })

	bus.Fire(context.Background(), ping{})

	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestFireAsyncOnPool(t *testing.T) {
	pool := workerpool.New("test", 2)
	defer pool.Shutdown()
	bus := event.NewBus(pool)

	var sum atomic.Int64
	for i := 0; i < 3; i++ {
		bus.Listen("ping", func(_ context.Context, e event.Event) error {
			sum.Add(int64(e.(ping).N))
			return nil
		})
	}

	for i := 1; i <= 10; i++ {
		bus.FireAsync(context.Background(), ping{N: i})
	}
	bus.Wait()

	assert.EqualValues(t, 3*55, sum.Load())
}

func TestFireAsyncSurvivesCancelledContext(t *testing.T) {
	pool := workerpool.New("test", 1)
	defer pool.Shutdown()
	bus := event.NewBus(pool)

	var mu sync.Mutex
	var errSeen error
	bus.Listen("ping", func(ctx context.Context, _ event.Event) error {
		mu.Lock()
		errSeen = ctx.Err()
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	bus.FireAsync(ctx, ping{})
	bus.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.NoError(t, errSeen)
}

func TestPanickingListenerIsContained(t *testing.T) {
	bus := event.NewBus(nil)
	ran := false
	bus.Listen("ping", func(context.Context, event.Event) error { panic("listener blew up") })
	bus.Listen("ping", func(context.Context, event.Event) error { ran = true; return nil })

	assert.NotPanics(t, func() { bus.Fire(context.Background(), ping{}) })
	assert.True(t, ran)
}

func TestFlush(t *testing.T) {
	bus := event.NewBus(nil)
	called := false
	bus.Listen("ping", func(context.Context, event.Event) error { called = true; return nil })
	bus.Flush()
	bus.Fire(context.Background(), ping{})
	assert.False(t, called)
}
