package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/grimwaves/internal/models"
	"github.com/desertthunder/grimwaves/internal/shared"
)

const defaultQueueSize = 64

// Pool runs jobs on a fixed set of workers. Each worker owns one managed
// [Executor] for its whole lifetime, so scope teardown stays with the
// worker that created the scope.
type Pool struct {
	orchestrator *Orchestrator
	logger       *log.Logger
	size         int

	queue   chan Job
	results chan models.TaskResult

	mu       sync.Mutex
	stopping bool

	workers sync.WaitGroup
	retries sync.WaitGroup
	cancel  context.CancelFunc
}

// NewPool creates a pool of size workers over the given orchestrator.
func NewPool(size int, o *Orchestrator, logger *log.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Pool{
		orchestrator: o,
		logger:       logger,
		size:         size,
		queue:        make(chan Job, defaultQueueSize),
		results:      make(chan models.TaskResult, defaultQueueSize),
	}
}

// Start launches the workers. They run until Stop or the context ends.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	for i := 0; i < p.size; i++ {
		p.workers.Add(1)
		go p.work(ctx, i)
	}
}

// Submit assigns a task id, enqueues the request and returns the id.
func (p *Pool) Submit(req models.TaskRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	job := Job{ID: shared.GenerateID(), Request: req}
	if !p.enqueue(job) {
		return "", fmt.Errorf("worker pool is shutting down: %w", shared.ErrServiceUnavailable)
	}
	return job.ID, nil
}

// Results exposes the verdict stream. Terminal verdicts only; retries stay
// internal to the pool.
func (p *Pool) Results() <-chan models.TaskResult {
	return p.results
}

// Stop shuts the pool down: no new jobs, pending retries dropped, workers
// drained and their executors closed.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return
	}
	p.stopping = true
	p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}
	p.retries.Wait()
	close(p.queue)
	p.workers.Wait()
	close(p.results)
}

func (p *Pool) enqueue(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopping {
		return false
	}
	p.queue <- job
	return true
}

func (p *Pool) work(ctx context.Context, id int) {
	defer p.workers.Done()

	exec := NewExecutor(shared.WithLogger(p.logger, "worker", id))
	defer exec.Close()

	logger := shared.WithLogger(p.logger, "worker", id)
	logger.Debug("worker started")

	for job := range p.queue {
		if ctx.Err() != nil {
			p.emit(ctx, models.TaskResult{TaskID: job.ID, Status: models.StatusFailure, Error: ctx.Err().Error(), ErrorType: CategorySystem.String()})
			continue
		}

		result, err := p.orchestrator.Process(ctx, exec, job)

		var retryErr *RetryError
		if errors.As(err, &retryErr) {
			if !p.scheduleRetry(ctx, job, retryErr) {
				p.emit(ctx, models.TaskResult{TaskID: job.ID, Status: models.StatusFailure, Error: retryErr.Err.Error(), ErrorType: retryErr.Category.String()})
			}
			continue
		}
		if result != nil {
			p.emit(ctx, *result)
		}
	}

	logger.Debug("worker stopped")
}

// scheduleRetry re-enqueues the job after the backoff. A retry interrupted
// by shutdown surfaces the wrapped error as the final verdict. Returns
// false when the pool is already stopping, in which case no retry was
// registered.
//
// Registration happens under the mutex so Stop either sees the retry in
// retries.Wait or refuses it here; a retry goroutine can therefore never
// outlive the results channel.
func (p *Pool) scheduleRetry(ctx context.Context, job Job, retryErr *RetryError) bool {
	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return false
	}
	p.retries.Add(1)
	p.mu.Unlock()

	next := Job{ID: job.ID, Request: job.Request, Attempt: retryErr.Attempt}
	go func() {
		defer p.retries.Done()

		select {
		case <-ctx.Done():
		case <-time.After(retryErr.After):
			if p.enqueue(next) {
				return
			}
		}

		p.emit(ctx, models.TaskResult{
			TaskID:    job.ID,
			Status:    models.StatusFailure,
			Error:     retryErr.Err.Error(),
			ErrorType: retryErr.Category.String(),
		})
	}()
	return true
}

// emit delivers a verdict, blocking until the consumer takes it. After the
// pool context ends the buffer is the only destination left; a verdict that
// does not fit there is logged and dropped rather than deadlocking
// shutdown.
func (p *Pool) emit(ctx context.Context, result models.TaskResult) {
	select {
	case p.results <- result:
	case <-ctx.Done():
		select {
		case p.results <- result:
		default:
			p.logger.Warn("result buffer full during shutdown, dropping verdict", "task_id", result.TaskID, "status", result.Status)
		}
	}
}
