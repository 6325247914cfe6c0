// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

// Package queue implements the durable delayed job queue and the worker that drains it.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/infrastructure/store"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/pkg/constants"
)

var _ domain.TaskQueue = (*NatsDelayedQueue)(nil)

// NatsDelayedQueue keeps pending jobs in one KV bucket and exhausted jobs in another.
// Jobs are msgpack encoded. A claim is a revisioned update that sets a lease, so
// exactly one worker wins each job; a job whose lease lapses is claimed again.
type NatsDelayedQueue struct {
	jobs       *store.NatsBaseRepository[models.DelayedJob]
	dead       *store.NatsBaseRepository[models.DelayedJob]
	keyBuilder *store.KeyBuilder
	lease      time.Duration
}

// Option configures a queue.
type Option func(*options)

type options struct {
	lease time.Duration
}

// WithLease sets how long a claimed job stays invisible to other workers.
func WithLease(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lease = d
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{lease: constants.DefaultJobLease}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewNatsDelayedQueue creates a queue over the delayed-jobs and dead-jobs buckets.
func NewNatsDelayedQueue(jobs, dead store.INatsKeyValue, opts ...Option) *NatsDelayedQueue {
	o := buildOptions(opts)
	return &NatsDelayedQueue{
		jobs:       store.NewNatsBaseRepositoryWithCodec[models.DelayedJob](jobs, "delayed job", store.MsgpackCodec),
		dead:       store.NewNatsBaseRepositoryWithCodec[models.DelayedJob](dead, "dead job", store.MsgpackCodec),
		keyBuilder: store.NewKeyBuilder(""),
		lease:      o.lease,
	}
}

func (q *NatsDelayedQueue) key(jobID string) string {
	return q.keyBuilder.EntityKeyEncoded(store.KeyPrefixJob, jobID)
}

// Enqueue stores the job, replacing any job with the same ID.
func (q *NatsDelayedQueue) Enqueue(ctx context.Context, job *models.DelayedJob) error {
	if job.ID == "" {
		return domain.NewValidationError("delayed job requires an id")
	}
	prepareForEnqueue(job)

	if _, err := q.jobs.Put(ctx, q.key(job.ID), job); err != nil {
		return err
	}
	slog.DebugContext(ctx, "job enqueued", logging.JobKey, job.ID, "kind", job.Kind, "run_at", job.RunAt)
	return nil
}

// Remove deletes the job. A missing job is not an error.
func (q *NatsDelayedQueue) Remove(ctx context.Context, jobID string) error {
	err := q.jobs.DeleteWithoutRevision(ctx, q.key(jobID))
	if err != nil && domain.GetErrorType(err) != domain.ErrorTypeNotFound {
		return err
	}
	return nil
}

// Get returns the pending job with jobID.
func (q *NatsDelayedQueue) Get(ctx context.Context, jobID string) (*models.DelayedJob, error) {
	job, err := q.jobs.Get(ctx, q.key(jobID))
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return nil, domain.NewNotFoundError(fmt.Sprintf("job '%s' not found", jobID), domain.ErrJobNotFound)
		}
		return nil, err
	}
	return job, nil
}

// Claim leases up to limit due jobs, earliest RunAt first. Jobs that already used
// every attempt, for example after a worker crashed mid-run, are dead lettered
// instead of claimed.
func (q *NatsDelayedQueue) Claim(ctx context.Context, now time.Time, limit int) ([]*models.ClaimedJob, error) {
	if limit <= 0 {
		return nil, nil
	}

	keys, err := q.jobs.ListKeys(ctx)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		key      string
		job      *models.DelayedJob
		revision uint64
	}
	var due []candidate
	for _, key := range keys {
		job, revision, err := q.jobs.GetWithRevision(ctx, key)
		if err != nil {
			// removed since listing, or unreadable
			if domain.GetErrorType(err) != domain.ErrorTypeNotFound {
				slog.WarnContext(ctx, "skipping unreadable job", logging.ErrKey, err)
			}
			continue
		}
		if job.IsDue(now) {
			due = append(due, candidate{key: key, job: job, revision: revision})
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		return due[i].job.RunAt.Before(due[j].job.RunAt)
	})

	var claimed []*models.ClaimedJob
	for _, c := range due {
		if len(claimed) >= limit {
			break
		}

		if c.job.Exhausted() {
			stale := &models.ClaimedJob{Job: c.job, Revision: c.revision}
			if err := q.DeadLetter(ctx, stale, fmt.Errorf("lease expired after final attempt: %s", c.job.LastError)); err != nil {
				slog.WarnContext(ctx, "failed to dead letter abandoned job", logging.ErrKey, err, logging.JobKey, c.job.ID)
			}
			continue
		}

		leaseUntil := now.Add(q.lease)
		c.job.LeaseUntil = &leaseUntil
		c.job.Attempts++

		revision, err := q.jobs.Update(ctx, c.key, c.job, c.revision)
		if err != nil {
			if domain.GetErrorType(err) == domain.ErrorTypeConflict || domain.GetErrorType(err) == domain.ErrorTypeNotFound {
				// another worker claimed, replaced or removed it
				continue
			}
			return claimed, err
		}
		claimed = append(claimed, &models.ClaimedJob{Job: c.job, Revision: revision})
	}

	return claimed, nil
}

// Ack removes a successfully handled job. A job replaced or removed while it ran is
// left alone.
func (q *NatsDelayedQueue) Ack(ctx context.Context, claimed *models.ClaimedJob) error {
	err := q.jobs.Delete(ctx, q.key(claimed.Job.ID), claimed.Revision)
	if err == nil {
		return nil
	}
	switch domain.GetErrorType(err) {
	case domain.ErrorTypeNotFound:
		return nil
	case domain.ErrorTypeConflict:
		slog.DebugContext(ctx, "job changed while running, keeping the new version", logging.JobKey, claimed.Job.ID)
		return nil
	}
	return err
}

// Fail records cause and reschedules the job at retryAt, or dead letters it once
// its attempts are exhausted.
func (q *NatsDelayedQueue) Fail(ctx context.Context, claimed *models.ClaimedJob, cause error, retryAt time.Time) error {
	if claimed.Job.Exhausted() {
		return q.DeadLetter(ctx, claimed, cause)
	}

	job := *claimed.Job
	job.RunAt = retryAt
	job.LeaseUntil = nil
	job.LastError = errorText(cause)

	_, err := q.jobs.Update(ctx, q.key(job.ID), &job, claimed.Revision)
	if err == nil {
		return nil
	}
	switch domain.GetErrorType(err) {
	case domain.ErrorTypeNotFound, domain.ErrorTypeConflict:
		slog.DebugContext(ctx, "job changed while running, dropping retry", logging.JobKey, job.ID)
		return nil
	}
	return err
}

// DeadLetter moves the job to the dead-jobs bucket.
func (q *NatsDelayedQueue) DeadLetter(ctx context.Context, claimed *models.ClaimedJob, cause error) error {
	job := *claimed.Job
	failedAt := time.Now().UTC()
	job.FailedAt = &failedAt
	job.LeaseUntil = nil
	job.LastError = errorText(cause)

	if _, err := q.dead.Put(ctx, q.key(job.ID), &job); err != nil {
		return err
	}

	err := q.jobs.Delete(ctx, q.key(job.ID), claimed.Revision)
	if err != nil && domain.GetErrorType(err) != domain.ErrorTypeNotFound && domain.GetErrorType(err) != domain.ErrorTypeConflict {
		return err
	}

	slog.WarnContext(ctx, "job moved to dead letter bucket",
		logging.JobKey, job.ID,
		"kind", job.Kind,
		"attempts", job.Attempts,
		"last_error", job.LastError,
		logging.PriorityCritical(),
	)
	return nil
}

// ListDead returns every dead lettered job.
func (q *NatsDelayedQueue) ListDead(ctx context.Context) ([]*models.DelayedJob, error) {
	jobs, err := q.dead.ListEntities(ctx, nil)
	if err != nil {
		return nil, err
	}
	sortByFailedAt(jobs)
	return jobs, nil
}

func prepareForEnqueue(job *models.DelayedJob) {
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = models.DefaultJobMaxAttempts
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.RunAt = job.RunAt.UTC()
	job.Attempts = 0
	job.LeaseUntil = nil
	job.LastError = ""
	job.FailedAt = nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func sortByFailedAt(jobs []*models.DelayedJob) {
	sort.SliceStable(jobs, func(i, j int) bool {
		a, b := jobs[i].FailedAt, jobs[j].FailedAt
		if a == nil || b == nil {
			return b != nil
		}
		return a.Before(*b)
	})
}
