package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockJob implements the Job interface for testing
type MockJob struct {
	id       string
	jobType  string
	duration time.Duration
	err      error
	executed int32
}

func NewMockJob(id, jobType string, duration time.Duration, err error) *MockJob {
	return &MockJob{
		id:       id,
		jobType:  jobType,
		duration: duration,
		err:      err,
	}
}

func (m *MockJob) Execute(ctx context.Context) error {
	atomic.AddInt32(&m.executed, 1)
	if m.duration > 0 {
		select {
		case <-time.After(m.duration):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

func (m *MockJob) ID() string {
	return m.id
}

func (m *MockJob) Type() string {
	return m.jobType
}

func (m *MockJob) ExecutedCount() int32 {
	return atomic.LoadInt32(&m.executed)
}

type recordingObserver struct {
	mu       sync.Mutex
	finished map[string]int
	failed   int
}

func (o *recordingObserver) JobFinished(jobType string, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.finished == nil {
		o.finished = make(map[string]int)
	}
	o.finished[jobType]++
	if err != nil {
		o.failed++
	}
}

func TestNewPool(t *testing.T) {
	t.Run("creates pool with valid configuration", func(t *testing.T) {
		config := Config{Size: 5, QueueSize: 100, MaxRetries: 3, RetryDelay: time.Second}
		pool := New(config)

		assert.NotNil(t, pool)
		assert.Equal(t, config.QueueSize, cap(pool.jobs))
		assert.Equal(t, config.QueueSize, cap(pool.results))
	})

	t.Run("normalizes zero values", func(t *testing.T) {
		pool := New(Config{QueueSize: -1})
		assert.Equal(t, 1, pool.config.Size)
		assert.Equal(t, 0, cap(pool.jobs))
		assert.NotNil(t, pool.ctx)
	})

	t.Run("default config", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.Equal(t, 100, cfg.Size)
		assert.Zero(t, cfg.ShutdownTimeout)
	})
}

func TestPoolLifecycle(t *testing.T) {
	t.Run("drains queued jobs on shutdown", func(t *testing.T) {
		pool := New(Config{Size: 2, QueueSize: 10})
		pool.Start()

		jobs := make([]*MockJob, 8)
		for i := range jobs {
			jobs[i] = NewMockJob(fmt.Sprintf("job-%d", i), "test", 5*time.Millisecond, nil)
			require.NoError(t, pool.Submit(jobs[i]))
		}

		require.NoError(t, pool.Shutdown())
		for _, job := range jobs {
			assert.Equal(t, int32(1), job.ExecutedCount())
		}
	})

	t.Run("handles multiple start and shutdown calls", func(t *testing.T) {
		pool := New(Config{Size: 1, QueueSize: 1})
		pool.Start()
		pool.Start()

		assert.NoError(t, pool.Shutdown())
		assert.NoError(t, pool.Shutdown())
	})

	t.Run("results channel closes on shutdown", func(t *testing.T) {
		pool := New(Config{Size: 1, QueueSize: 4})
		pool.Start()
		require.NoError(t, pool.Submit(NewMockJob("a", "test", 0, nil)))
		require.NoError(t, pool.Shutdown())

		var got []Result
		for r := range pool.Results() {
			got = append(got, r)
		}
		require.Len(t, got, 1)
		assert.Equal(t, "a", got[0].JobID)
		assert.NoError(t, got[0].Error)
	})
}

func TestSubmit(t *testing.T) {
	t.Run("after shutdown", func(t *testing.T) {
		pool := New(Config{Size: 1, QueueSize: 1})
		pool.Start()
		require.NoError(t, pool.Shutdown())

		assert.Error(t, pool.Submit(NewMockJob("late", "test", 0, nil)))
		assert.Error(t, pool.SubmitWait(context.Background(), NewMockJob("late", "test", 0, nil)))
	})

	t.Run("queue full", func(t *testing.T) {
		pool := New(Config{Size: 1, QueueSize: 1})
		// Not started: nothing consumes the queue.
		require.NoError(t, pool.Submit(NewMockJob("1", "test", 0, nil)))
		err := pool.Submit(NewMockJob("2", "test", 0, nil))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "full")
	})

	t.Run("submit wait honours context", func(t *testing.T) {
		pool := New(Config{Size: 1, QueueSize: 0})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := pool.SubmitWait(ctx, NewMockJob("blocked", "test", 0, nil))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("submit wait blocks until a worker is free", func(t *testing.T) {
		pool := New(Config{Size: 2, QueueSize: 0})
		pool.Start()

		var count atomic.Int32
		for i := 0; i < 20; i++ {
			job := NewFuncJob(fmt.Sprintf("f-%d", i), "sweep", func(context.Context) error {
				count.Add(1)
				return nil
			})
			require.NoError(t, pool.SubmitWait(context.Background(), job))
		}
		require.NoError(t, pool.Shutdown())
		assert.Equal(t, int32(20), count.Load())
	})
}

func TestRetries(t *testing.T) {
	var attempts atomic.Int32
	failing := errors.New("boom")
	job := NewFuncJob("retry", "test", func(context.Context) error {
		if attempts.Add(1) < 3 {
			return failing
		}
		return nil
	})

	pool := New(Config{Size: 1, QueueSize: 1, MaxRetries: 3, RetryDelay: time.Millisecond})
	pool.Start()
	require.NoError(t, pool.Submit(job))
	require.NoError(t, pool.Shutdown())

	r := <-pool.Results()
	assert.NoError(t, r.Error)
	assert.Equal(t, 2, r.Retries)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRetriesExhausted(t *testing.T) {
	job := NewMockJob("fail", "test", 0, errors.New("always"))
	pool := New(Config{Size: 1, QueueSize: 1, MaxRetries: 2, RetryDelay: time.Millisecond})
	pool.Start()
	require.NoError(t, pool.Submit(job))
	require.NoError(t, pool.Shutdown())

	r := <-pool.Results()
	assert.Error(t, r.Error)
	assert.Equal(t, int32(3), job.ExecutedCount())
}

func TestObserver(t *testing.T) {
	obs := &recordingObserver{}
	pool := New(Config{Size: 3, QueueSize: 10}, WithObserver(obs))
	pool.Start()

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(NewMockJob(fmt.Sprintf("ok-%d", i), "ok", 0, nil)))
	}
	require.NoError(t, pool.Submit(NewMockJob("bad", "bad", 0, errors.New("nope"))))
	require.NoError(t, pool.Shutdown())

	assert.Equal(t, 5, obs.finished["ok"])
	assert.Equal(t, 1, obs.finished["bad"])
	assert.Equal(t, 1, obs.failed)
}

func TestParentContextCancelsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	obs := &recordingObserver{}
	pool := New(Config{Size: 1, QueueSize: 10}, WithContext(ctx), WithObserver(obs))
	pool.Start()

	slow := NewMockJob("slow", "test", time.Minute, nil)
	queued := NewMockJob("queued", "test", 0, nil)
	require.NoError(t, pool.Submit(slow))
	require.NoError(t, pool.Submit(queued))

	time.Sleep(10 * time.Millisecond)
	cancel()
	require.NoError(t, pool.Shutdown())

	assert.Equal(t, int32(0), queued.ExecutedCount(), "queued job must be skipped once cancelled")
	assert.Equal(t, 2, obs.failed)
}

func TestShutdownTimeout(t *testing.T) {
	pool := New(Config{Size: 1, QueueSize: 1, ShutdownTimeout: 20 * time.Millisecond})
	pool.Start()
	require.NoError(t, pool.Submit(NewMockJob("slow", "test", time.Minute, nil)))

	time.Sleep(5 * time.Millisecond)
	err := pool.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestRateLimit(t *testing.T) {
	pool := New(Config{Size: 4, QueueSize: 10, RateLimit: 100})
	pool.Start()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(NewMockJob(fmt.Sprintf("r-%d", i), "test", 0, nil)))
	}
	require.NoError(t, pool.Shutdown())
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestFuncJob(t *testing.T) {
	job := NewFuncJob("id-1", "probe", func(context.Context) error { return nil })
	assert.Equal(t, "id-1", job.ID())
	assert.Equal(t, "probe", job.Type())
	assert.NoError(t, job.Execute(context.Background()))
}
