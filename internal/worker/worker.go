package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rfontaine/atelier/internal/domain"
	"github.com/rfontaine/atelier/internal/email"
	"github.com/rfontaine/atelier/internal/jobs"
	"github.com/rfontaine/atelier/internal/telemetry"
)

// jobTimeout bounds a single job execution.
const jobTimeout = 30 * time.Second

// Jobs locked longer than this belong to a worker that died mid-processing.
const staleJobAge = 10 * time.Minute

const reapInterval = time.Minute

// StaleJobReaper is implemented by queues that can unlock jobs abandoned by
// a dead worker. The worker reaps opportunistically when its queue supports
// it.
type StaleJobReaper interface {
	ReapStaleJobs(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// PollInterval is how often to check for new jobs
	PollInterval time.Duration

	// MaxConcurrency is the maximum number of jobs to process concurrently
	MaxConcurrency int

	// Queue name to process
	Queue string
}

// Worker processes background jobs claimed from the Postgres queue.
type Worker struct {
	config       Config
	queue        domain.JobQueue
	emailService *email.Service
	logger       *slog.Logger

	wg sync.WaitGroup
}

// NewWorker creates a new background job worker
func NewWorker(queue domain.JobQueue, emailService *email.Service, config Config, logger *slog.Logger) *Worker {
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 5
	}
	if config.Queue == "" {
		config.Queue = jobs.QueueEmail
	}

	return &Worker{
		config:       config,
		queue:        queue,
		emailService: emailService,
		logger:       logger.With("component", "worker", "worker_id", config.WorkerID),
	}
}

// Start begins processing jobs until the context is cancelled. In-flight
// jobs are allowed to finish before Start returns.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"queue", w.config.Queue,
		"poll_interval", w.config.PollInterval,
		"max_concurrency", w.config.MaxConcurrency,
	)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	reapTicker := time.NewTicker(reapInterval)
	defer reapTicker.Stop()

	sem := make(chan struct{}, w.config.MaxConcurrency)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down, waiting for in-flight jobs")
			w.wg.Wait()
			w.logger.Info("worker stopped")
			return ctx.Err()

		case <-ticker.C:
			w.drain(ctx, sem)

		case <-reapTicker.C:
			w.reapStale(ctx)
		}
	}
}

// reapStale unlocks jobs abandoned by a dead worker so they can be claimed
// again. A no-op for queues that do not support reaping.
func (w *Worker) reapStale(ctx context.Context) {
	reaper, ok := w.queue.(StaleJobReaper)
	if !ok {
		return
	}
	n, err := reaper.ReapStaleJobs(ctx, staleJobAge)
	if err != nil {
		w.logger.Error("failed to reap stale jobs", "error", err)
		return
	}
	if n > 0 {
		w.logger.Warn("reaped stale jobs", "count", n)
	}
}

// drain claims jobs until the queue is empty or all worker slots are busy.
func (w *Worker) drain(ctx context.Context, sem chan struct{}) {
	for {
		select {
		case sem <- struct{}{}:
		default:
			// At max concurrency, wait for the next tick.
			return
		}
		if !w.claimAndProcess(ctx, sem) {
			return
		}
	}
}

// claimAndProcess claims one job and processes it on a goroutine. Returns
// false (and releases the semaphore slot) when the queue is empty.
func (w *Worker) claimAndProcess(ctx context.Context, sem chan struct{}) bool {
	job, err := w.queue.ClaimNextJob(ctx, w.config.WorkerID, w.config.Queue)
	if err != nil {
		w.logger.Error("failed to claim job", "error", err)
		<-sem
		return false
	}
	if job == nil {
		<-sem
		return false
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() { <-sem }()
		w.runJob(job)
	}()
	return true
}

// runJob executes one claimed job and records the outcome. A fresh context
// is used so shutdown does not abort a job mid-send.
func (w *Worker) runJob(job *domain.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	w.logger.Info("processing job",
		"job_id", job.ID,
		"job_type", job.JobType,
		"retry_count", job.RetryCount,
	)

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Error("job failed",
			"job_id", job.ID,
			"job_type", job.JobType,
			"retry_count", job.RetryCount,
			"error", err,
		)
		telemetry.RecordJobFailed(job.JobType)
		if failErr := w.queue.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to record job failure", "job_id", job.ID, "error", failErr)
		}
		return
	}

	if err := w.queue.CompleteJob(ctx, job.ID); err != nil {
		w.logger.Error("failed to mark job complete", "job_id", job.ID, "error", err)
		return
	}

	telemetry.RecordJobProcessed(job.JobType)
	w.logger.Info("job completed", "job_id", job.ID, "job_type", job.JobType)
}

// processJob dispatches a job by type.
func (w *Worker) processJob(ctx context.Context, job *domain.Job) error {
	if jobs.IsEmailJob(job.JobType) {
		return jobs.ProcessEmailJob(ctx, job, w.emailService)
	}
	return fmt.Errorf("unknown job type: %s", job.JobType)
}
