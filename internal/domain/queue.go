// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
)

// TaskQueue is a durable, at-least-once delayed job queue.
type TaskQueue interface {
	// Enqueue stores the job, replacing any job with the same ID.
	Enqueue(ctx context.Context, job *models.DelayedJob) error
	// Remove deletes the job. A missing job is not an error.
	Remove(ctx context.Context, jobID string) error
	// Get returns a not found DomainError wrapping ErrJobNotFound when absent.
	Get(ctx context.Context, jobID string) (*models.DelayedJob, error)
	// Claim leases up to limit due jobs to the caller.
	Claim(ctx context.Context, now time.Time, limit int) ([]*models.ClaimedJob, error)
	// Ack removes a successfully handled job.
	Ack(ctx context.Context, claimed *models.ClaimedJob) error
	// Fail records the failure and schedules a retry at retryAt, or moves the job to
	// the dead set once its attempts are exhausted.
	Fail(ctx context.Context, claimed *models.ClaimedJob, cause error, retryAt time.Time) error
	// DeadLetter moves the job to the dead set without further attempts.
	DeadLetter(ctx context.Context, claimed *models.ClaimedJob, cause error) error
	ListDead(ctx context.Context) ([]*models.DelayedJob, error)
}

// ReminderScheduler schedules and cancels the reminders of a meeting.
type ReminderScheduler interface {
	ScheduleReminders(ctx context.Context, meetingUID string) (int, error)
	CancelReminders(ctx context.Context, meetingUID string) (int, error)
}

// SessionEnder closes the open video sessions of a meeting.
type SessionEnder interface {
	EndSessions(ctx context.Context, meetingUID string, at time.Time) (int, error)
}

// ICSGenerator renders calendar attachments for meeting notifications.
type ICSGenerator interface {
	GenerateInvitation(meeting *models.Meeting) (string, error)
	GenerateCancellation(meeting *models.Meeting) (string, error)
}
