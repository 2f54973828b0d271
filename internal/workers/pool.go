// Package workers provides the bounded worker pool used by probe sweeps.
// It supports job queuing, retries, rate limiting and graceful draining,
// and reports job outcomes to the logger and an optional observer.
package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anstrom/netscope/internal/logging"
)

// Job represents a unit of work to be executed by a worker.
type Job interface {
	// Execute performs the job and returns an error if it fails.
	Execute(ctx context.Context) error
	// ID returns a unique identifier for the job.
	ID() string
	// Type returns the job type for metrics and logging.
	Type() string
}

// Result represents the result of executing a job.
type Result struct {
	JobID    string
	JobType  string
	Error    error
	Duration time.Duration
	Retries  int
}

// Observer is notified after every job, successful or not.
type Observer interface {
	JobFinished(jobType string, err error, duration time.Duration)
}

// Config holds configuration for the worker pool.
type Config struct {
	// Size is the number of worker goroutines to create.
	Size int `yaml:"size" json:"size"`
	// QueueSize is the maximum number of jobs that can be queued.
	QueueSize int `yaml:"queue_size" json:"queue_size"`
	// MaxRetries is the maximum number of retries for failed jobs.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	// RetryDelay is the delay between retries.
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
	// ShutdownTimeout bounds how long Shutdown waits for the queue to drain
	// (0 = wait until every queued job has run).
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	// RateLimit is the maximum number of jobs per second (0 = no limit).
	RateLimit int `yaml:"rate_limit" json:"rate_limit"`
}

// DefaultConfig returns a default worker pool configuration.
func DefaultConfig() Config {
	return Config{
		Size:            100,
		QueueSize:       256,
		MaxRetries:      0,
		RetryDelay:      100 * time.Millisecond,
		ShutdownTimeout: 0,
		RateLimit:       0,
	}
}

// Option customizes a Pool.
type Option func(*Pool)

// WithContext makes the pool's job context a child of ctx. Cancelling ctx
// cancels running jobs and skips queued ones.
func WithContext(ctx context.Context) Option {
	return func(p *Pool) { p.parent = ctx }
}

// WithLogger sets the pool's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver registers an observer for job outcomes.
func WithObserver(o Observer) Option {
	return func(p *Pool) { p.observer = o }
}

// Pool manages a fixed set of worker goroutines.
type Pool struct {
	config      Config
	jobs        chan Job
	results     chan Result
	wg          sync.WaitGroup
	parent      context.Context
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *logging.Logger
	observer    Observer
	rateLimiter *time.Ticker
	startOnce   sync.Once
	stopOnce    sync.Once
	submitMu    sync.RWMutex // held for reading while sending on jobs
	closed      atomic.Bool
}

// New creates a new worker pool with the given configuration.
func New(config Config, opts ...Option) *Pool {
	if config.Size <= 0 {
		config.Size = 1
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}

	pool := &Pool{
		config:  config,
		jobs:    make(chan Job, config.QueueSize),
		results: make(chan Result, config.QueueSize),
		parent:  context.Background(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(pool)
	}
	pool.ctx, pool.cancel = context.WithCancel(pool.parent)
	pool.logger = pool.logger.WithComponent("workers")

	if config.RateLimit > 0 {
		pool.rateLimiter = time.NewTicker(time.Second / time.Duration(config.RateLimit))
	}
	return pool
}

// Start launches the workers. Calling it more than once is a no-op.
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		p.logger.Debug("Starting worker pool",
			"worker_count", p.config.Size,
			"queue_size", p.config.QueueSize,
			"rate_limit", p.config.RateLimit)

		for i := 0; i < p.config.Size; i++ {
			p.wg.Add(1)
			go p.run(i)
		}
	})
}

// Submit queues a job without blocking.
func (p *Pool) Submit(job Job) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.closed.Load() {
		return fmt.Errorf("worker pool is shut down")
	}

	select {
	case p.jobs <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
		return fmt.Errorf("job queue is full")
	}
}

// SubmitWait queues a job, blocking until there is room, ctx is done or
// the pool is cancelled.
func (p *Pool) SubmitWait(ctx context.Context, job Job) error {
	p.submitMu.RLock()
	defer p.submitMu.RUnlock()

	if p.closed.Load() {
		return fmt.Errorf("worker pool is shut down")
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", p.ctx.Err())
	}
}

// Results returns the result channel. Results are dropped when nobody is
// reading and the buffer is full. The channel is closed by Shutdown.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Shutdown stops accepting jobs and waits for queued jobs to finish. If the
// shutdown timeout elapses first, running jobs are cancelled and an error
// is returned.
func (p *Pool) Shutdown() error {
	var err error
	p.stopOnce.Do(func() {
		p.submitMu.Lock()
		p.closed.Store(true)
		close(p.jobs)
		p.submitMu.Unlock()

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()

		if p.config.ShutdownTimeout > 0 {
			select {
			case <-done:
			case <-time.After(p.config.ShutdownTimeout):
				p.logger.Warn("Worker pool shutdown timeout, cancelling jobs",
					"timeout", p.config.ShutdownTimeout)
				p.cancel()
				<-done
				err = fmt.Errorf("worker pool shutdown timed out after %s", p.config.ShutdownTimeout)
			}
		} else {
			<-done
		}

		p.cancel()
		close(p.results)
		if p.rateLimiter != nil {
			p.rateLimiter.Stop()
		}
		p.logger.Debug("Worker pool stopped")
	})
	return err
}

func (p *Pool) run(id int) {
	defer p.wg.Done()

	for job := range p.jobs {
		if err := p.ctx.Err(); err != nil {
			p.finish(Result{JobID: job.ID(), JobType: job.Type(), Error: err})
			continue
		}
		p.execute(id, job)
	}
}

// execute runs a single job with retry logic.
func (p *Pool) execute(workerID int, job Job) {
	if p.rateLimiter != nil {
		select {
		case <-p.rateLimiter.C:
		case <-p.ctx.Done():
			p.finish(Result{JobID: job.ID(), JobType: job.Type(), Error: p.ctx.Err()})
			return
		}
	}

	start := time.Now()
	var lastErr error
	retries := 0

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		lastErr = job.Execute(p.ctx)
		if lastErr == nil || p.ctx.Err() != nil {
			break
		}
		if attempt == p.config.MaxRetries {
			break
		}

		retries++
		p.logger.Debug("Job failed, retrying",
			"job_id", job.ID(),
			"job_type", job.Type(),
			"attempt", attempt+1,
			"max_retries", p.config.MaxRetries,
			"error", lastErr)

		select {
		case <-time.After(p.config.RetryDelay):
		case <-p.ctx.Done():
		}
	}

	if lastErr != nil && p.config.MaxRetries > 0 {
		p.logger.Debug("Job failed after retries",
			"job_id", job.ID(),
			"job_type", job.Type(),
			"retries", retries,
			"worker_id", workerID,
			"error", lastErr)
	}

	p.finish(Result{
		JobID:    job.ID(),
		JobType:  job.Type(),
		Error:    lastErr,
		Duration: time.Since(start),
		Retries:  retries,
	})
}

func (p *Pool) finish(r Result) {
	if p.observer != nil {
		p.observer.JobFinished(r.JobType, r.Error, r.Duration)
	}
	select {
	case p.results <- r:
	default:
	}
}

// FuncJob adapts a function to Job.
type FuncJob struct {
	id      string
	jobType string
	fn      func(ctx context.Context) error
}

// NewFuncJob creates a job that runs fn.
func NewFuncJob(id, jobType string, fn func(ctx context.Context) error) *FuncJob {
	return &FuncJob{id: id, jobType: jobType, fn: fn}
}

// Execute implements the Job interface.
func (j *FuncJob) Execute(ctx context.Context) error {
	return j.fn(ctx)
}

// ID implements the Job interface.
func (j *FuncJob) ID() string {
	return j.id
}

// Type implements the Job interface.
func (j *FuncJob) Type() string {
	return j.jobType
}
