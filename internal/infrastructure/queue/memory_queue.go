// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
)

var _ domain.TaskQueue = (*MemoryQueue)(nil)

type memoryEntry struct {
	job      models.DelayedJob
	revision uint64
}

// MemoryQueue is a process local TaskQueue with the same claim and retry
// semantics as NatsDelayedQueue. Jobs do not survive a restart.
type MemoryQueue struct {
	mu       sync.Mutex
	jobs     map[string]*memoryEntry
	dead     map[string]models.DelayedJob
	sequence uint64
	lease    time.Duration
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue(opts ...Option) *MemoryQueue {
	o := buildOptions(opts)
	return &MemoryQueue{
		jobs:  make(map[string]*memoryEntry),
		dead:  make(map[string]models.DelayedJob),
		lease: o.lease,
	}
}

func (q *MemoryQueue) nextRevision() uint64 {
	q.sequence++
	return q.sequence
}

// Enqueue stores the job, replacing any job with the same ID.
func (q *MemoryQueue) Enqueue(ctx context.Context, job *models.DelayedJob) error {
	if job.ID == "" {
		return domain.NewValidationError("delayed job requires an id")
	}
	prepareForEnqueue(job)

	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.ID] = &memoryEntry{job: cloneJob(job), revision: q.nextRevision()}
	return nil
}

// Remove deletes the job. A missing job is not an error.
func (q *MemoryQueue) Remove(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.jobs, jobID)
	return nil
}

// Get returns a copy of the pending job with jobID.
func (q *MemoryQueue) Get(ctx context.Context, jobID string) (*models.DelayedJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.jobs[jobID]
	if !ok {
		return nil, domain.NewNotFoundError(fmt.Sprintf("job '%s' not found", jobID), domain.ErrJobNotFound)
	}
	job := cloneJob(&entry.job)
	return &job, nil
}

// Len returns the number of pending jobs.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Claim leases up to limit due jobs, earliest RunAt first.
func (q *MemoryQueue) Claim(ctx context.Context, now time.Time, limit int) ([]*models.ClaimedJob, error) {
	if limit <= 0 {
		return nil, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*memoryEntry
	for _, entry := range q.jobs {
		if entry.job.IsDue(now) {
			due = append(due, entry)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].job.RunAt.Equal(due[j].job.RunAt) {
			return due[i].job.ID < due[j].job.ID
		}
		return due[i].job.RunAt.Before(due[j].job.RunAt)
	})

	var claimed []*models.ClaimedJob
	for _, entry := range due {
		if len(claimed) >= limit {
			break
		}
		if entry.job.Exhausted() {
			q.bury(ctx, entry.job, fmt.Errorf("lease expired after final attempt: %s", entry.job.LastError))
			continue
		}

		leaseUntil := now.Add(q.lease)
		entry.job.LeaseUntil = &leaseUntil
		entry.job.Attempts++
		entry.revision = q.nextRevision()

		job := cloneJob(&entry.job)
		claimed = append(claimed, &models.ClaimedJob{Job: &job, Revision: entry.revision})
	}
	return claimed, nil
}

// current returns the entry for claimed if it was not replaced or removed since the claim.
func (q *MemoryQueue) current(claimed *models.ClaimedJob) (*memoryEntry, bool) {
	entry, ok := q.jobs[claimed.Job.ID]
	if !ok || entry.revision != claimed.Revision {
		return nil, false
	}
	return entry, true
}

// Ack removes a successfully handled job.
func (q *MemoryQueue) Ack(ctx context.Context, claimed *models.ClaimedJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.current(claimed); ok {
		delete(q.jobs, claimed.Job.ID)
	}
	return nil
}

// Fail records cause and reschedules the job at retryAt, or dead letters it once
// its attempts are exhausted.
func (q *MemoryQueue) Fail(ctx context.Context, claimed *models.ClaimedJob, cause error, retryAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.current(claimed)
	if !ok {
		return nil
	}
	if entry.job.Exhausted() {
		q.bury(ctx, entry.job, cause)
		return nil
	}

	entry.job.RunAt = retryAt
	entry.job.LeaseUntil = nil
	entry.job.LastError = errorText(cause)
	entry.revision = q.nextRevision()
	return nil
}

// DeadLetter moves the job to the dead set without further attempts.
func (q *MemoryQueue) DeadLetter(ctx context.Context, claimed *models.ClaimedJob, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if entry, ok := q.current(claimed); ok {
		q.bury(ctx, entry.job, cause)
	}
	return nil
}

// bury must be called with q.mu held.
func (q *MemoryQueue) bury(ctx context.Context, job models.DelayedJob, cause error) {
	failedAt := time.Now().UTC()
	job.FailedAt = &failedAt
	job.LeaseUntil = nil
	job.LastError = errorText(cause)
	q.dead[job.ID] = job
	delete(q.jobs, job.ID)

	slog.WarnContext(ctx, "job moved to dead letter set",
		logging.JobKey, job.ID,
		"kind", job.Kind,
		"attempts", job.Attempts,
		"last_error", job.LastError,
	)
}

// ListDead returns every dead lettered job.
func (q *MemoryQueue) ListDead(ctx context.Context) ([]*models.DelayedJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := make([]*models.DelayedJob, 0, len(q.dead))
	for _, job := range q.dead {
		job := job
		jobs = append(jobs, &job)
	}
	sortByFailedAt(jobs)
	return jobs, nil
}

func cloneJob(job *models.DelayedJob) models.DelayedJob {
	out := *job
	if job.Payload != nil {
		out.Payload = append([]byte(nil), job.Payload...)
	}
	if job.LeaseUntil != nil {
		t := *job.LeaseUntil
		out.LeaseUntil = &t
	}
	if job.FailedAt != nil {
		t := *job.FailedAt
		out.FailedAt = &t
	}
	return out
}
