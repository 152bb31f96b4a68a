package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hireplane/internal/schedule"
	"hireplane/internal/store"
)

const jobColumns = `
	id, hire_id, entrypoint_key, input, schedule, next_run_at,
	attempts, max_retries, last_error, status,
	lease_worker_id, lease_expires_at, idempotency_key, created_at, updated_at
`

// PutJob inserts or replaces a job row.
func (s *Store) PutJob(ctx context.Context, job *store.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			entrypoint_key = EXCLUDED.entrypoint_key,
			input = EXCLUDED.input,
			schedule = EXCLUDED.schedule,
			next_run_at = EXCLUDED.next_run_at,
			attempts = EXCLUDED.attempts,
			max_retries = EXCLUDED.max_retries,
			last_error = EXCLUDED.last_error,
			status = EXCLUDED.status,
			lease_worker_id = EXCLUDED.lease_worker_id,
			lease_expires_at = EXCLUDED.lease_expires_at,
			updated_at = EXCLUDED.updated_at
	`

	scheduleJSON, err := json.Marshal(job.Schedule)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}

	var nextRunAt sql.NullTime
	if job.NextRunAt != nil {
		nextRunAt = sql.NullTime{Time: *job.NextRunAt, Valid: true}
	}

	var leaseWorker sql.NullString
	var leaseExpires sql.NullTime
	if job.Lease != nil {
		leaseWorker = sql.NullString{String: job.Lease.WorkerID, Valid: true}
		leaseExpires = sql.NullTime{Time: job.Lease.ExpiresAt, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, query,
		job.ID,
		job.HireID,
		job.EntrypointKey,
		[]byte(job.Input),
		scheduleJSON,
		nextRunAt,
		job.Attempts,
		job.MaxRetries,
		job.LastError,
		job.Status,
		leaseWorker,
		leaseExpires,
		job.IdempotencyKey,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// GetJob returns a job by ID, or store.ErrNotFound.
func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*store.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return job, err
}

// ListJobs returns all jobs ordered by creation time.
func (s *Store) ListJobs(ctx context.Context) ([]*store.Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// DueJobs returns up to limit due pending jobs ordered earliest-due first.
func (s *Store) DueJobs(ctx context.Context, now time.Time, limit int) ([]*store.Job, error) {
	if limit <= 0 {
		limit = 1
	}

	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = 'pending'
		  AND next_run_at IS NOT NULL
		  AND next_run_at <= $1
		  AND (lease_expires_at IS NULL OR lease_expires_at <= $1)
		ORDER BY next_run_at ASC, id ASC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("due jobs query failed: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// ClaimJob leases a claimable job with a single conditional UPDATE. The WHERE
// clause carries the entire eligibility check, so at most one concurrent
// claimant can see RowsAffected = 1.
func (s *Store) ClaimJob(ctx context.Context, jobID uuid.UUID, workerID string, leaseDur time.Duration, now time.Time) (bool, error) {
	query := `
		UPDATE jobs
		SET status = 'leased',
		    lease_worker_id = $2,
		    lease_expires_at = $3,
		    updated_at = $4
		WHERE id = $1
		  AND (status = 'pending'
		       OR (status = 'leased' AND lease_expires_at <= $4))
	`

	res, err := s.db.ExecContext(ctx, query, jobID, workerID, now.Add(leaseDur), now)
	if err != nil {
		return false, fmt.Errorf("claim failed: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ExpiredLeases returns jobs stuck in the leased state past their lease
// expiry.
func (s *Store) ExpiredLeases(ctx context.Context, now time.Time) ([]*store.Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE status = 'leased' AND lease_expires_at <= $1
		ORDER BY lease_expires_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("expired leases query failed: %w", err)
	}
	defer rows.Close()
	return scanJobs(rows)
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*store.Job, error) {
	var (
		job          store.Job
		input        []byte
		scheduleJSON []byte
		nextRunAt    sql.NullTime
		leaseWorker  sql.NullString
		leaseExpires sql.NullTime
	)

	err := row.Scan(
		&job.ID,
		&job.HireID,
		&job.EntrypointKey,
		&input,
		&scheduleJSON,
		&nextRunAt,
		&job.Attempts,
		&job.MaxRetries,
		&job.LastError,
		&job.Status,
		&leaseWorker,
		&leaseExpires,
		&job.IdempotencyKey,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Input = json.RawMessage(input)

	var sched schedule.Schedule
	if err := json.Unmarshal(scheduleJSON, &sched); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schedule: %w", err)
	}
	job.Schedule = sched

	if nextRunAt.Valid {
		t := nextRunAt.Time
		job.NextRunAt = &t
	}
	if leaseWorker.Valid {
		job.Lease = &store.Lease{WorkerID: leaseWorker.String, ExpiresAt: leaseExpires.Time}
	}

	return &job, nil
}

func scanJobs(rows *sql.Rows) ([]*store.Job, error) {
	var jobs []*store.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("job scan failed: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("job rows error: %w", err)
	}
	return jobs, nil
}
