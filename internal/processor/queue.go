package processor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"schroedinger/internal/game"
)

var (
	ErrQueueFull     = errors.New("queue is full")
	ErrQueueShutdown = errors.New("queue is shutting down")
)

type TaskKind int

const (
	TaskAutoMove TaskKind = iota
	TaskNarrow
)

func (k TaskKind) String() string {
	if k == TaskNarrow {
		return "narrow"
	}
	return "auto"
}

// EngineTask is one unit of solver-heavy work run off the request path.
type EngineTask struct {
	Kind   TaskKind
	GameID string
	Run    func(ctx context.Context, oracle game.Oracle) error
}

// OracleFactory builds the oracle a worker owns for its whole life. The
// returned close func may be nil.
type OracleFactory func(ctx context.Context, worker int) (game.Oracle, func() error, error)

// EngineQueue manages async engine computations
type EngineQueue struct {
	tasks   chan EngineTask
	workers int
	timeout time.Duration
	factory OracleFactory
	logger  zerolog.Logger
	mu      sync.RWMutex
	closed  bool
	active  inflight
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewEngineQueue starts workerCount workers. Each task runs under timeout
// when it is positive.
func NewEngineQueue(workerCount int, timeout time.Duration, factory OracleFactory, logger zerolog.Logger) *EngineQueue {
	if workerCount < 1 {
		workerCount = 2
	}
	ctx, cancel := context.WithCancel(context.Background())

	q := &EngineQueue{
		tasks:   make(chan EngineTask, 100),
		workers: workerCount,
		timeout: timeout,
		factory: factory,
		logger:  logger.With().Str("component", "queue").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	return q
}

func (q *EngineQueue) worker(id int) {
	defer q.wg.Done()
	logger := q.logger.With().Int("worker", id).Logger()

	var oracle game.Oracle
	if q.factory != nil {
		o, closeFn, err := q.factory(q.ctx, id)
		if err != nil {
			logger.Warn().Err(err).Msg("oracle unavailable, auto-moves fall back to random")
		} else {
			oracle = o
			if closeFn != nil {
				defer func() {
					if err := closeFn(); err != nil {
						logger.Warn().Err(err).Msg("closing oracle")
					}
				}()
			}
		}
	}

	for {
		select {
		case task, ok := <-q.tasks:
			if !ok {
				return
			}
			q.process(logger, oracle, task)
		case <-q.ctx.Done():
			return
		}
	}
}

func (q *EngineQueue) process(logger zerolog.Logger, oracle game.Oracle, task EngineTask) {
	defer q.active.done()

	ctx := q.ctx
	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	start := time.Now()
	err := task.Run(ctx, oracle)
	ev := logger.Debug()
	if err != nil {
		ev = logger.Warn().Err(err)
	}
	ev.Str("game_id", task.GameID).Stringer("task", task.Kind).Dur("took", time.Since(start)).Msg("task done")
}

// Submit adds a task to the queue without blocking
func (q *EngineQueue) Submit(task EngineTask) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueShutdown
	}

	q.active.add()
	select {
	case q.tasks <- task:
		return nil
	default:
		q.active.done()
		return ErrQueueFull
	}
}

// Idle blocks until every submitted task has finished, including tasks
// submitted by running tasks, or ctx ends.
func (q *EngineQueue) Idle(ctx context.Context) error {
	select {
	case <-q.active.zero():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown gracefully stops the queue
func (q *EngineQueue) Shutdown(timeout time.Duration) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.cancel()
	close(q.tasks)
	q.mu.Unlock()

	// Release Idle waiters for tasks that never ran.
	for range q.tasks {
		q.active.done()
	}

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("queue shutdown timeout exceeded after %s", timeout)
	}
}

// inflight counts unfinished tasks. Unlike a WaitGroup it may be waited on
// while tasks are still being added.
type inflight struct {
	mu sync.Mutex
	n  int
	ch chan struct{} // closed when n drops to zero
}

func (c *inflight) add() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == 0 {
		c.ch = make(chan struct{})
	}
	c.n++
}

func (c *inflight) done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n--
	if c.n == 0 {
		close(c.ch)
	}
}

func (c *inflight) zero() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == 0 {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.ch
}
