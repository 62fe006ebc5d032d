package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Harsh-BH/sentinel-judge/internal/domain"
	"github.com/Harsh-BH/sentinel-judge/internal/metrics"
)

// Task is one unit of judge work. Run executes on a pool goroutine.
type Task struct {
	ID   string
	Kind string
	Run  func(ctx context.Context) error
}

type job struct {
	ctx  context.Context
	task Task
	done chan error
}

// WorkerPool bounds how many judge and compile_spj calls run at once.
// Callers block in Submit until their task has finished.
type WorkerPool struct {
	size   int
	jobs   chan *job
	logger *zap.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewWorkerPool creates a new fixed-size worker pool.
func NewWorkerPool(size int, logger *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan *job),
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Start launches all worker goroutines. Call Stop to wait for them to finish.
func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting judge pool", zap.Int("pool_size", p.size))

	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop rejects new tasks and waits for running ones to finish.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() { close(p.stopped) })
	p.wg.Wait()
	p.logger.Info("Judge pool stopped")
}

// Submit hands task to a free worker and waits for its result.
// ctx only bounds the wait for a free worker; once picked up, the task
// runs to completion with ctx passed through.
func (p *WorkerPool) Submit(ctx context.Context, task Task) error {
	j := &job{ctx: ctx, task: task, done: make(chan error, 1)}

	select {
	case p.jobs <- j:
	case <-p.stopped:
		return domain.WrapError(domain.KindSystemError, domain.ErrPoolStopped)
	case <-ctx.Done():
		return domain.WrapError(domain.KindSystemError, fmt.Errorf("wait for judge worker: %w", ctx.Err()))
	}

	return <-j.done
}

// Do runs fn on the pool and returns its typed result.
func Do[T any](ctx context.Context, p *WorkerPool, id, kind string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := p.Submit(ctx, Task{
		ID:   id,
		Kind: kind,
		Run: func(ctx context.Context) error {
			var err error
			out, err = fn(ctx)
			return err
		},
	})
	return out, err
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case <-p.stopped:
			p.logger.Debug("Worker shutting down", zap.Int("worker_id", id))
			return
		case j := <-p.jobs:
			j.done <- p.run(id, j)
		}
	}
}

func (p *WorkerPool) run(workerID int, j *job) (err error) {
	metrics.WorkersActive.Inc()
	start := time.Now()

	defer func() {
		metrics.WorkersActive.Dec()
		if r := recover(); r != nil {
			p.logger.Error("Worker panic recovered",
				zap.Int("worker_id", workerID),
				zap.String("task_id", j.task.ID),
				zap.String("task_kind", j.task.Kind),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			err = domain.NewError(domain.KindSystemError, "%T: %v", r, r)
		}
	}()

	err = j.task.Run(j.ctx)

	p.logger.Debug("Task finished",
		zap.Int("worker_id", workerID),
		zap.String("task_id", j.task.ID),
		zap.String("task_kind", j.task.Kind),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	return err
}
