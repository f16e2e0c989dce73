package queue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/queue"
)

// ─── Job types ────────────────────────────────────────────────────────────────

type echoJob struct {
	Val  string `json:"val"`
	seen *atomic.Int32
	got  chan string
}

func (echoJob) JobName() string { return "test.echo" }

func (j *echoJob) Handle(context.Context) error {
	j.seen.Add(1)
	if j.got != nil {
		j.got <- j.Val
	}
	return nil
}

type failJob struct {
	attempts *atomic.Int32
}

func (failJob) JobName() string { return "test.fail" }

func (j *failJob) Handle(context.Context) error {
	j.attempts.Add(1)
	return errors.New("always fails")
}

type panicJob struct{}

func (panicJob) JobName() string { return "test.panic" }

func (*panicJob) Handle(context.Context) error { panic("boom") }

func newManager(t *testing.T) *queue.Manager {
	t.Helper()
	m := queue.NewManager(queue.NewMemoryDriver())
	m.SetBackoff(func(int) time.Duration { return time.Millisecond })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m.StartWorkers(ctx, 2)
	return m
}

// ─── Tests ────────────────────────────────────────────────────────────────────

func TestDispatchAndProcess(t *testing.T) {
	m := newManager(t)
	seen := &atomic.Int32{}
	got := make(chan string, 1)
	m.Register("test.echo", func() queue.Job { return &echoJob{seen: seen, got: got} })

	require.NoError(t, m.Dispatch(&echoJob{Val: "hello"}))

	select {
	case v := <-got:
		assert.Equal(t, "hello", v)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not processed")
	}
	assert.EqualValues(t, 1, seen.Load())
}

func TestDispatchUnregistered(t *testing.T) {
	m := queue.NewManager(queue.NewMemoryDriver())
	err := m.Dispatch(&echoJob{Val: "x"})
	assert.ErrorIs(t, err, queue.ErrUnregistered)
}

func TestFailedJobRetry(t *testing.T) {
	m := newManager(t)
	m.SetMaxRetry(2)
	attempts := &atomic.Int32{}
	m.Register("test.fail", func() queue.Job { return &failJob{attempts: attempts} })

	require.NoError(t, m.Dispatch(&failJob{}))

	require.Eventually(t, func() bool { return len(m.FailedJobs()) == 1 }, 2*time.Second, 10*time.Millisecond)
	failed := m.FailedJobs()[0]
	assert.Equal(t, "test.fail", failed.Type)
	assert.Equal(t, 2, failed.Attempts)
	assert.EqualValues(t, 2, attempts.Load())
}

func TestPanickingJobIsCaptured(t *testing.T) {
	m := newManager(t)
	m.SetMaxRetry(1)
	m.Register("test.panic", func() queue.Job { return &panicJob{} })

	require.NoError(t, m.Dispatch(&panicJob{}))

	require.Eventually(t, func() bool { return len(m.FailedJobs()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, m.FailedJobs()[0].Err.Error(), "panicked")
}

func TestDispatchAfter(t *testing.T) {
	m := newManager(t)
	seen := &atomic.Int32{}
	m.Register("test.echo", func() queue.Job { return &echoJob{seen: seen} })

	m.DispatchAfter(&echoJob{Val: "later"}, 50*time.Millisecond)
	assert.EqualValues(t, 0, seen.Load())
	require.Eventually(t, func() bool { return seen.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestDispatchConcurrent(t *testing.T) {
	m := newManager(t)
	seen := &atomic.Int32{}
	m.Register("test.echo", func() queue.Job { return &echoJob{seen: seen} })

	var wg sync.WaitGroup
	wg.Add(20)
	for i := 0; i < 20; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Dispatch(&echoJob{Val: "c"}))
		}()
	}
	wg.Wait()
	require.Eventually(t, func() bool { return seen.Load() == 20 }, 2*time.Second, 10*time.Millisecond)
}
