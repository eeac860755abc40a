package parallel

import (
	"fmt"
	"sync"

	"github.com/dd0wney/cluso-lineage/pkg/logging"
)

// DefaultWorkers is the pool size used when a non-positive count is given.
const DefaultWorkers = 8

// MaxWorkers is the maximum number of workers allowed in a pool.
const MaxWorkers = 1024

// ErrTooManyWorkers is returned when the worker count exceeds MaxWorkers.
var ErrTooManyWorkers = fmt.Errorf("worker count exceeds maximum")

// WorkerPool runs submitted tasks on a fixed number of goroutines. It bounds
// how many catalog fetches an analysis has in flight.
type WorkerPool struct {
	workers   int
	taskQueue chan func()
	wg        sync.WaitGroup
	once      sync.Once
	mu        sync.RWMutex // Protects taskQueue from concurrent close during send
	closed    bool         // Protected by mu
	logger    logging.Logger
}

// NewWorkerPool creates a pool with the given number of workers.
func NewWorkerPool(workers int, logger logging.Logger) (*WorkerPool, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > MaxWorkers {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrTooManyWorkers, workers, MaxWorkers)
	}

	pool := &WorkerPool{
		workers:   workers,
		taskQueue: make(chan func(), workers*2),
		logger:    logging.OrNop(logger),
	}

	for i := 0; i < pool.workers; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}
	return pool, nil
}

// Workers returns the pool size.
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()

	for task := range wp.taskQueue {
		wp.run(task)
	}
}

func (wp *WorkerPool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Error("worker panic recovered", logging.Any("panic", fmt.Sprint(r)))
		}
	}()
	task()
}

// Submit adds a task to the pool. It blocks while the queue is full and
// returns false if the pool is closed.
func (wp *WorkerPool) Submit(task func()) bool {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.closed {
		return false
	}
	wp.taskQueue <- task
	return true
}

// Close stops accepting tasks and waits for queued ones to finish.
func (wp *WorkerPool) Close() {
	wp.once.Do(func() {
		wp.mu.Lock()
		wp.closed = true
		close(wp.taskQueue)
		wp.mu.Unlock()
	})
	wp.wg.Wait()
}

// Batch tracks a group of tasks submitted to a shared pool so a caller can
// wait for just that group.
type Batch struct {
	pool *WorkerPool
	wg   sync.WaitGroup
}

// NewBatch starts a new task group on the pool.
func (wp *WorkerPool) NewBatch() *Batch {
	return &Batch{pool: wp}
}

// Submit adds a task to the batch. If the pool is closed the task runs on
// the caller's goroutine so Wait never hangs.
func (b *Batch) Submit(task func()) {
	b.wg.Add(1)
	wrapped := func() {
		defer b.wg.Done()
		task()
	}
	if !b.pool.Submit(wrapped) {
		b.pool.run(wrapped)
	}
}

// Wait blocks until every task in the batch has finished.
func (b *Batch) Wait() {
	b.wg.Wait()
}
