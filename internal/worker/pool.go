package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"igmanager/pkg/logger"
)

// Job is one background task. The pool passes it the pool-lifetime context;
// the job is expected to honor cancellation.
type Job struct {
	ID  string
	Run func(ctx context.Context) error
}

// Result reports one finished job.
type Result struct {
	JobID    string
	Err      error
	Duration time.Duration
}

// Pool runs background jobs on a fixed number of workers. The engine uses it
// for long-running operations (collection passes, batch runs) so callers get
// a handle back immediately instead of blocking.
type Pool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	logger      logger.Logger
}

// NewPool creates a pool with the given worker count.
func NewPool(numWorkers int, log logger.Logger) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	if log == nil {
		log = logger.GetLogger()
	}

	return &Pool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2), // Buffer size = 2x workers
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		logger:      log,
	}
}

// Start launches all workers.
func (p *Pool) Start() {
	p.logger.WithField("num_workers", p.numWorkers).Info("Starting worker pool")

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop drains the queue and shuts the pool down. Queued jobs still run;
// in-flight jobs see the context cancelled only after the queue is empty.
func (p *Pool) Stop() {
	p.logger.Info("Stopping worker pool...")

	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()

	p.logger.Info("Worker pool stopped")
}

// Shutdown cancels in-flight jobs first, then waits for workers to exit.
func (p *Pool) Shutdown() {
	p.cancel()
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
}

// Submit queues a job for execution.
func (p *Pool) Submit(job Job) error {
	select {
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	default:
	}

	select {
	case p.jobQueue <- job:
		p.logger.WithField("job_id", job.ID).Debug("Job submitted to queue")
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel for consuming finished jobs.
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	p.logger.WithField("worker_id", id).Debug("Worker started")

	for job := range p.jobQueue {
		select {
		case <-p.ctx.Done():
			p.logger.WithField("worker_id", id).Debug("Worker stopping - context cancelled")
			return
		default:
		}

		result := p.process(job, id)

		select {
		case p.resultQueue <- result:
		case <-p.ctx.Done():
			p.logger.WithField("worker_id", id).Debug("Worker stopping - context cancelled while sending result")
			return
		}
	}

	p.logger.WithField("worker_id", id).Debug("Worker stopping - job queue closed")
}

func (p *Pool) process(job Job, workerID int) Result {
	start := time.Now()

	p.logger.WithFields(map[string]interface{}{
		"worker_id": workerID,
		"job_id":    job.ID,
	}).Debug("Worker processing job")

	err := job.Run(p.ctx)
	result := Result{JobID: job.ID, Err: err, Duration: time.Since(start)}

	if err != nil {
		p.logger.WithFields(map[string]interface{}{
			"worker_id": workerID,
			"job_id":    job.ID,
			"error":     err.Error(),
			"duration":  result.Duration,
		}).Error("Worker job failed")
		return result
	}

	p.logger.WithFields(map[string]interface{}{
		"worker_id": workerID,
		"job_id":    job.ID,
		"duration":  result.Duration,
	}).Debug("Worker completed job")

	return result
}

// QueueSize returns the current number of queued jobs.
func (p *Pool) QueueSize() int {
	return len(p.jobQueue)
}
