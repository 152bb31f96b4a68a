package scheduler

import (
	"context"
	"log/slog"

	"hireplane/internal/store"
)

// RecoverExpiredLeases resets jobs stuck in the leased state past their lease
// expiry back to pending with an immediate next run, and returns how many
// were recovered. This is the defense against a worker that crashed while
// holding a lease; without it a once job claimed by a dead worker would never
// be reconsidered. Stores without the LeaseRecoverer capability recover
// nothing and that is not an error.
func (s *Service) RecoverExpiredLeases(ctx context.Context) (int, error) {
	recoverer, ok := s.store.(store.LeaseRecoverer)
	if !ok {
		return 0, nil
	}

	now := s.clock.Now()
	stuck, err := recoverer.ExpiredLeases(ctx, now)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, job := range stuck {
		deadWorker := ""
		if job.Lease != nil {
			deadWorker = job.Lease.WorkerID
		}

		job.Status = store.JobStatusPending
		job.Lease = nil
		next := now
		job.NextRunAt = &next
		job.UpdatedAt = now

		if err := s.store.PutJob(ctx, job); err != nil {
			s.log.Error("failed to recover leased job",
				slog.String("job_id", job.ID.String()),
				slog.String("err", err.Error()))
			continue
		}
		recovered++
		s.log.Warn("recovered job from expired lease",
			slog.String("job_id", job.ID.String()),
			slog.String("worker_id", deadWorker))
	}

	if recovered > 0 {
		s.recovered.Add(ctx, int64(recovered))
	}
	return recovered, nil
}
