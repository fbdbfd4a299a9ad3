// package tasks runs release metadata tasks on a pool of workers.
//
// The core abstraction is Orchestrator.Process, which takes one job through
// validation, cache replay, aggregation inside an executor scope and the
// retry taxonomy. The worker Pool owns the executors and the re-enqueue
// loop around it.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/grimwaves/internal/aggregator"
	"github.com/desertthunder/grimwaves/internal/cache"
	"github.com/desertthunder/grimwaves/internal/models"
	"github.com/desertthunder/grimwaves/internal/shared"
)

// Job is one unit of work for the pool. Attempt counts the retries already
// burned on it.
type Job struct {
	ID      string
	Request models.TaskRequest
	Attempt int
}

// Orchestrator decides the verdict for one job per call.
//
// Every call persists a verdict under the job's task id, so resubmitting
// the same id replays the cached verdict instead of refetching.
type Orchestrator struct {
	aggregator *aggregator.Aggregator
	cache      *cache.Cache
	logger     *log.Logger
	maxRetries int
	timeout    time.Duration
}

// NewOrchestrator wires an orchestrator. maxRetries raises the
// per-category retry budget when positive; timeout bounds one aggregation
// attempt (zero means no bound).
func NewOrchestrator(agg *aggregator.Aggregator, c *cache.Cache, logger *log.Logger, maxRetries int, timeout time.Duration) *Orchestrator {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Orchestrator{
		aggregator: agg,
		cache:      c,
		logger:     logger,
		maxRetries: maxRetries,
		timeout:    timeout,
	}
}

// Process runs one attempt of a job inside the given executor.
//
// The returned error is nil for every terminal verdict (the verdict itself
// is in the result) and a [*RetryError] when the worker should re-enqueue
// the job.
func (o *Orchestrator) Process(ctx context.Context, exec *Executor, job Job) (*models.TaskResult, error) {
	logger := shared.WithLogger(o.logger, "task_id", job.ID, "attempt", job.Attempt)

	if err := job.Request.Validate(); err != nil {
		logger.Info("rejecting invalid request", "error", err)
		return o.fail(ctx, job, models.StatusFailure, CategoryValidation, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)), nil
	}

	if cached, ok := o.cache.GetTaskResult(ctx, job.ID); ok {
		logger.Debug("replaying cached verdict")
		return cached, nil
	}

	req := job.Request
	if release, ok := o.cache.GetRequestResult(ctx, req.BandName, req.ReleaseName, req.Market()); ok {
		logger.Debug("request already resolved, short-circuiting")
		result := &models.TaskResult{TaskID: job.ID, Status: models.StatusSuccess, Result: release}
		o.cache.SetTaskResult(ctx, job.ID, result)
		return result, nil
	}

	release, err := o.aggregate(exec, req)
	if err != nil && Classify(err).ExecScope() {
		// A dead scope is recoverable once without burning a retry.
		logger.Warn("executor scope failure, resetting and re-running", "error", err)
		exec.Reset()
		release, err = o.aggregate(exec, req)
	}

	if err == nil {
		result := &models.TaskResult{TaskID: job.ID, Status: models.StatusSuccess, Result: release}
		o.cache.SetTaskResult(ctx, job.ID, result)
		o.cache.SetRequestResult(ctx, req.BandName, req.ReleaseName, req.Market(), release)
		logger.Info("task succeeded", "tracks", len(release.Tracks))
		return result, nil
	}

	if errors.Is(err, shared.ErrNoDataFound) {
		logger.Info("no metadata found, terminal")
		return o.fail(ctx, job, models.StatusFailure, CategoryNotFound, err), nil
	}

	if errors.Is(err, errAttemptTimeout) {
		logger.Warn("aggregation timed out")
		return o.fail(ctx, job, models.StatusTimeout, CategoryNetwork, err), nil
	}

	decision := Decide(err, job.Attempt, o.maxRetries)
	var retryErr *RetryError
	if errors.As(decision, &retryErr) {
		logger.Warn("task will retry", "category", retryErr.Category, "after", retryErr.After)
		result := &models.TaskResult{
			TaskID:    job.ID,
			Status:    models.StatusRetry,
			Error:     err.Error(),
			ErrorType: retryErr.Category.String(),
		}
		return result, retryErr
	}

	category := Classify(err)
	logger.Error("task failed terminally", "category", category, "error", err)
	return o.fail(ctx, job, models.StatusFailure, category, err), nil
}

// errAttemptTimeout marks the orchestrator's own per-attempt bound
// expiring. Provider-level timeouts inside the aggregation never carry it;
// those stay on the network retry path.
var errAttemptTimeout = errors.New("attempt deadline exceeded")

// aggregate runs the fetch inside the executor scope, bounded by the
// per-attempt timeout.
func (o *Orchestrator) aggregate(exec *Executor, req models.TaskRequest) (*models.CanonicalRelease, error) {
	return RunResult(exec, func(scope context.Context) (*models.CanonicalRelease, error) {
		runCtx := scope
		if o.timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(scope, o.timeout)
			defer cancel()
		}

		release, err := o.aggregator.FetchReleaseMetadata(runCtx, req)
		if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && scope.Err() == nil {
			err = fmt.Errorf("%w: %v", errAttemptTimeout, err)
		}
		return release, err
	})
}

// fail persists and returns a terminal failure verdict.
func (o *Orchestrator) fail(ctx context.Context, job Job, status models.TaskStatus, category Category, err error) *models.TaskResult {
	result := &models.TaskResult{
		TaskID:    job.ID,
		Status:    status,
		Error:     err.Error(),
		ErrorType: category.String(),
	}
	o.cache.SetTaskResult(ctx, job.ID, result)
	return result
}
