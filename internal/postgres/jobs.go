package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rfontaine/atelier/internal/domain"
)

// Compile-time check to ensure Store implements domain.JobQueue.
var _ domain.JobQueue = (*Store)(nil)

const defaultMaxRetries = 5

// EnqueueJob inserts a background job ready to run immediately.
func (s *Store) EnqueueJob(ctx context.Context, jobType, queue string, payload []byte) (*domain.Job, error) {
	job := domain.Job{
		ID:         uuid.New(),
		JobType:    jobType,
		Queue:      queue,
		Payload:    payload,
		MaxRetries: defaultMaxRetries,
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO jobs (id, job_type, queue, payload, max_retries, run_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING run_at, created_at`,
		job.ID, job.JobType, job.Queue, job.Payload, job.MaxRetries).
		Scan(&job.RunAt, &job.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	return &job, nil
}

// ClaimNextJob atomically claims the oldest runnable job in the queue.
// FOR UPDATE SKIP LOCKED lets concurrent workers claim without blocking each
// other. Returns nil, nil when the queue is empty.
func (s *Store) ClaimNextJob(ctx context.Context, workerID, queue string) (*domain.Job, error) {
	var job domain.Job
	err := s.pool.QueryRow(ctx, `
		UPDATE jobs
		SET locked_at = now(), locked_by = $1
		WHERE id = (
			SELECT id FROM jobs
			WHERE queue = $2
			  AND completed_at IS NULL
			  AND locked_at IS NULL
			  AND run_at <= now()
			  AND retry_count < max_retries
			ORDER BY run_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, job_type, queue, payload, retry_count, max_retries, run_at, created_at`,
		workerID, queue).
		Scan(&job.ID, &job.JobType, &job.Queue, &job.Payload,
			&job.RetryCount, &job.MaxRetries, &job.RunAt, &job.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return &job, nil
}

// CompleteJob marks a claimed job as done.
func (s *Store) CompleteJob(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET completed_at = now(), locked_at = NULL, locked_by = NULL
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

// FailJob records a failure and reschedules the job with exponential
// backoff. Once retry_count reaches max_retries the job stops being claimed
// and sits in the table for inspection.
func (s *Store) FailJob(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET retry_count = retry_count + 1,
		    last_error = $2,
		    locked_at = NULL,
		    locked_by = NULL,
		    run_at = now() + (interval '30 seconds' * power(2, retry_count))
		WHERE id = $1`, id, errMsg)
	if err != nil {
		return fmt.Errorf("failed to record job failure: %w", err)
	}
	return nil
}

// ReapStaleJobs unlocks jobs whose worker died mid-processing so another
// worker can claim them.
func (s *Store) ReapStaleJobs(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs
		SET locked_at = NULL, locked_by = NULL
		WHERE completed_at IS NULL
		  AND locked_at IS NOT NULL
		  AND locked_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to reap stale jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
