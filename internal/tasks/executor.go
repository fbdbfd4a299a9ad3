package tasks

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/grimwaves/internal/shared"
)

// Executor scope failures. Operations racing a torn-down or replaced scope
// surface one of these instead of a partial result.
var (
	ErrScopeClosed   = errors.New("executor scope is closed")
	ErrScopeMismatch = errors.New("operation bound to a different executor scope")
	ErrScopeMissing  = errors.New("no active executor scope")
)

// Executor owns one execution scope for a worker.
//
// A scope is a context plus the background work spawned under it. It is
// created lazily on the first Run, reference-counted across nested and
// concurrent runs, and for a managed executor torn down again when the last
// run finishes: the scope context is cancelled and all work spawned via Go
// is awaited. An unmanaged executor borrows an externally owned context and
// never tears it down.
type Executor struct {
	logger  *log.Logger
	managed bool
	base    context.Context

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup
	refs   int
	gen    uint64
	closed bool
}

// NewExecutor creates a managed executor that owns its scope lifecycle.
func NewExecutor(logger *log.Logger) *Executor {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Executor{logger: logger, managed: true, base: context.Background()}
}

// NewExecutorWithContext creates an unmanaged executor whose scope reuses
// the given context. The executor never cancels it.
func NewExecutorWithContext(ctx context.Context, logger *log.Logger) *Executor {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Executor{logger: logger, base: ctx}
}

// acquire enters the current scope, creating it if none is live. The
// returned generation ties the caller to the scope it entered.
func (e *Executor) acquire() (context.Context, uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, 0, ErrScopeClosed
	}

	if e.ctx == nil {
		if !e.managed && e.base.Err() != nil {
			return nil, 0, ErrScopeClosed
		}
		if e.managed {
			e.ctx, e.cancel = context.WithCancel(e.base)
		} else {
			e.ctx = e.base
		}
		e.wg = &sync.WaitGroup{}
		e.gen++
	}

	e.refs++
	return e.ctx, e.gen, nil
}

// release leaves the scope entered at gen. The last release of a managed
// scope cancels it and awaits its background work.
func (e *Executor) release(gen uint64) error {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		return ErrScopeMismatch
	}

	e.refs--
	var cancel context.CancelFunc
	var wg *sync.WaitGroup
	if e.refs == 0 && e.managed {
		cancel, wg = e.cancel, e.wg
		e.ctx, e.cancel, e.wg = nil, nil, nil
	}
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		wg.Wait()
	}
	return nil
}

// Run executes fn inside the executor's scope. fn's error propagates
// unchanged; scope teardown problems are logged, surfacing only when fn
// itself succeeded.
func (e *Executor) Run(fn func(ctx context.Context) error) error {
	ctx, gen, err := e.acquire()
	if err != nil {
		return err
	}

	runErr := fn(ctx)

	if relErr := e.release(gen); relErr != nil {
		if runErr == nil {
			return relErr
		}
		e.logger.Warn("executor scope release failed", "error", relErr)
	}

	return runErr
}

// RunResult executes fn inside the executor's scope and returns its value.
func RunResult[T any](e *Executor, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.Run(func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// Go spawns tracked background work bound to the live scope. A managed
// scope's teardown waits for it.
func (e *Executor) Go(fn func(ctx context.Context)) error {
	e.mu.Lock()
	if e.ctx == nil {
		e.mu.Unlock()
		return ErrScopeMissing
	}
	ctx, wg := e.ctx, e.wg
	wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer wg.Done()
		fn(ctx)
	}()
	return nil
}

// Reset tears down the current scope regardless of reference count and
// leaves the executor ready to build a fresh one, reviving a closed
// executor. In-flight runs of the old scope report [ErrScopeMismatch] on
// completion.
func (e *Executor) Reset() {
	e.mu.Lock()
	cancel, wg := e.cancel, e.wg
	e.ctx, e.cancel, e.wg = nil, nil, nil
	e.refs = 0
	e.gen++
	e.closed = false
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wg != nil {
		wg.Wait()
	}
}

// Close shuts the executor down permanently. Subsequent runs report
// [ErrScopeClosed].
func (e *Executor) Close() error {
	e.mu.Lock()
	e.closed = true
	cancel, wg := e.cancel, e.wg
	e.ctx, e.cancel, e.wg = nil, nil, nil
	e.refs = 0
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if wg != nil {
		wg.Wait()
	}
	return nil
}
