// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"filmstream/internal/infra/metrics"
)

var (
	ErrQueueFull   = errors.New("worker queue full")
	ErrPoolStopped = errors.New("worker pool stopped")
)

// Task is a unit of work. The context is the one passed to Start.
type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed number of goroutines.
// Submit never blocks: a full queue drops the task.
type Pool struct {
	name string
	n    int
	jobs chan Task

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup

	logger *zerolog.Logger
}

// NewPool builds a pool with the given worker count and queue length.
// Non-positive values fall back to NumCPU workers and 4 slots per worker.
func NewPool(name string, workers, queue int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queue <= 0 {
		queue = workers * 4
	}
	l := logger.With().Str("component", "WorkerPool").Str("pool", name).Logger()
	return &Pool{name: name, n: workers, jobs: make(chan Task, queue), logger: &l}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for task := range p.jobs {
				p.run(ctx, id, task)
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			metrics.IncWorkerTask(p.name, "error")
			p.logger.Error().Int("worker", id).Interface("panic", r).Msg("task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		metrics.IncWorkerTask(p.name, "error")
		p.logger.Warn().Err(err).Int("worker", id).Msg("task failed")
		return
	}
	metrics.IncWorkerTask(p.name, "ok")
}

// Stop refuses new tasks, lets the workers drain the queue and waits for them.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) Submit(task Task) error {
	if task == nil {
		return errors.New("nil task")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		metrics.IncWorkerTask(p.name, "dropped")
		return ErrQueueFull
	}
}
