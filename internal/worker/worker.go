// Package worker runs the dashboards' periodic background jobs.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/hephaex/Barami/pkg/logger"
)

// Job runs every Interval until the pool stops. Each run is bounded by
// Timeout, or by Interval when Timeout is zero.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	// Immediate runs the job once at start instead of waiting a full
	// interval.
	Immediate bool
	Run       func(ctx context.Context) error
}

type WorkerPool struct {
	jobs   []Job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWorkerPool(jobs ...Job) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		jobs:   jobs,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (wp *WorkerPool) Start() {
	logger.Info("Starting worker pool", logger.Int("jobs", len(wp.jobs)))

	for _, job := range wp.jobs {
		if job.Interval <= 0 || job.Run == nil {
			logger.Warn("Skipping job without schedule", logger.String("job", job.Name))
			continue
		}
		wp.wg.Add(1)
		go wp.loop(job)
	}
}

func (wp *WorkerPool) Stop() {
	logger.Info("Stopping worker pool...")
	wp.cancel()
	wp.wg.Wait()
	logger.Info("Worker pool stopped")
}

func (wp *WorkerPool) loop(job Job) {
	defer wp.wg.Done()

	logger.Info("Job started",
		logger.String("job", job.Name),
		logger.Duration("interval", job.Interval),
	)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	if job.Immediate {
		wp.run(job)
	}

	for {
		select {
		case <-wp.ctx.Done():
			logger.Info("Job stopped", logger.String("job", job.Name))
			return
		case <-ticker.C:
			wp.run(job)
		}
	}
}

func (wp *WorkerPool) run(job Job) {
	timeout := job.Timeout
	if timeout <= 0 {
		timeout = job.Interval
	}
	ctx, cancel := context.WithTimeout(wp.ctx, timeout)
	defer cancel()

	if err := job.Run(ctx); err != nil {
		logger.Error("Job failed", logger.String("job", job.Name), logger.Err(err))
	}
}
