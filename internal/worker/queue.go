package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cityair/cityair-export/internal/export"
)

// ErrQueueFull is returned by Enqueue when the queue is saturated.
var ErrQueueFull = errors.New("export queue is full")

// JobRunner executes one export job. Implemented by export.Pipeline.
type JobRunner interface {
	Run(ctx context.Context, req export.Request, outPath string, onProgress export.ProgressFunc) error
}

// Task is one queued export job.
type Task struct {
	JobID   string
	OutPath string
	Request export.Request
}

// QueueConfig holds configuration for the job queue.
type QueueConfig struct {
	// Workers is the number of concurrent job workers (default: 2).
	Workers int

	// Capacity bounds the number of queued jobs (default: 32).
	Capacity int

	Runner   JobRunner
	Registry *Registry
	Logger   zerolog.Logger
}

// Queue is a bounded in-process job queue with a fixed worker pool.
// Submitting callers get a job id immediately and poll the registry;
// the queue bound keeps job intake observable instead of spawning one
// goroutine per request.
type Queue struct {
	tasks    chan Task
	workers  int
	runner   JobRunner
	registry *Registry
	logger   zerolog.Logger
	wg       sync.WaitGroup
}

// NewQueue creates a queue; call Start before enqueueing.
func NewQueue(cfg QueueConfig) *Queue {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 32
	}

	return &Queue{
		tasks:    make(chan Task, capacity),
		workers:  workers,
		runner:   cfg.Runner,
		registry: cfg.Registry,
		logger:   cfg.Logger,
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled or
// the queue is stopped.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func(workerID int) {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task, ok := <-q.tasks:
					if !ok {
						return
					}
					q.run(ctx, workerID, task)
				}
			}
		}(i)
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (q *Queue) Stop() {
	close(q.tasks)
	q.wg.Wait()
}

// Enqueue submits a task without blocking. Returns ErrQueueFull when
// the queue bound is reached.
func (q *Queue) Enqueue(task Task) error {
	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// run executes one job, mapping the pipeline's fetch counts onto the
// registry's 0-100 progress scale and recording the tagged outcome.
// Panics inside a job are confined to that job.
func (q *Queue) run(ctx context.Context, workerID int, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			q.logger.Error().
				Int("worker", workerID).
				Str("job_id", task.JobID).
				Interface("panic", rec).
				Msg("export job panicked")
			q.registry.Fail(task.JobID, fmt.Sprintf("panic: %v", rec))
		}
	}()

	q.logger.Info().
		Int("worker", workerID).
		Str("job_id", task.JobID).
		Str("path", task.OutPath).
		Msg("export job started")

	q.registry.MarkRunning(task.JobID)

	err := q.runner.Run(ctx, task.Request, task.OutPath, func(completed, total int) {
		if total > 0 {
			q.registry.SetProgress(task.JobID, 100*completed/total)
		}
	})
	if err != nil {
		q.logger.Error().
			Int("worker", workerID).
			Str("job_id", task.JobID).
			Err(err).
			Msg("export job failed")
		q.registry.Fail(task.JobID, err.Error())
		return
	}

	q.registry.Complete(task.JobID)
	q.logger.Info().
		Int("worker", workerID).
		Str("job_id", task.JobID).
		Msg("export job succeeded")
}
