// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/pkg/concurrent"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/pkg/constants"
)

// DefaultScanConcurrency bounds how many meetings a reminder scan handles at once.
const DefaultScanConcurrency = 5

// ReminderService schedules, cancels and fires meeting reminders. Job identities
// are derived from business keys, so scheduling twice overwrites and canceling
// needs no stored handles.
type ReminderService struct {
	MeetingRepository domain.MeetingRepository
	Queue             domain.TaskQueue
	Notifier          domain.NotificationSender
	Now               func() time.Time
	// URLs builds the meeting link carried by each reminder; nil links to production.
	URLs *constants.LfxURLGenerator
	// MaxAttempts bounds delivery attempts per reminder job; zero takes the queue default.
	MaxAttempts int

	pool *concurrent.WorkerPool
}

var _ domain.ReminderScheduler = (*ReminderService)(nil)

// NewReminderService creates a new ReminderService.
func NewReminderService(
	meetingRepository domain.MeetingRepository,
	queue domain.TaskQueue,
	notifier domain.NotificationSender,
) *ReminderService {
	return &ReminderService{
		MeetingRepository: meetingRepository,
		Queue:             queue,
		Notifier:          notifier,
		Now:               time.Now,
		pool:              concurrent.NewWorkerPool(DefaultScanConcurrency),
	}
}

// ServiceReady checks if the service is ready for use.
func (s *ReminderService) ServiceReady() bool {
	return s.MeetingRepository != nil && s.Queue != nil && s.Notifier != nil
}

func (s *ReminderService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *ReminderService) notReady(ctx context.Context) error {
	slog.ErrorContext(ctx, "reminder service not initialized", logging.PriorityCritical())
	return domain.NewUnavailableError("reminder service not initialized", domain.ErrServiceUnavailable)
}

// ScheduleReminders enqueues one job per participant and offset whose fire time
// is still ahead. Meetings outside a reminder eligible status schedule nothing.
func (s *ReminderService) ScheduleReminders(ctx context.Context, meetingUID string) (int, error) {
	if !s.ServiceReady() {
		return 0, s.notReady(ctx)
	}
	ctx = logging.AppendCtx(ctx, slog.String(logging.MeetingKey, meetingUID))

	meeting, err := s.MeetingRepository.Get(ctx, meetingUID)
	if err != nil {
		return 0, err
	}
	return s.schedule(ctx, meeting)
}

func (s *ReminderService) schedule(ctx context.Context, meeting *models.Meeting) (int, error) {
	if !meeting.Status.IsReminderEligible() {
		slog.DebugContext(ctx, "meeting not eligible for reminders", "status", meeting.Status)
		return 0, nil
	}

	now := s.now()
	scheduled := 0
	for _, participant := range meeting.Participants {
		for _, offset := range models.ReminderOffsets {
			fireAt := offset.FireAt(meeting.StartTime)
			if !fireAt.After(now) {
				continue
			}

			payload, err := msgpack.Marshal(models.ReminderPayload{
				MeetingUID:   meeting.UID,
				UserID:       participant.UserID,
				TenantID:     meeting.TenantID,
				Offset:       offset.Label,
				ScheduledFor: meeting.StartTime,
			})
			if err != nil {
				return scheduled, domain.NewInternalError("failed to encode reminder payload", err)
			}

			job := &models.DelayedJob{
				ID:          models.ReminderJobID(meeting.UID, participant.UserID, offset.Label),
				Kind:        models.JobKindReminder,
				Payload:     payload,
				RunAt:       fireAt,
				MaxAttempts: s.MaxAttempts,
			}
			if err := s.Queue.Enqueue(ctx, job); err != nil {
				slog.ErrorContext(ctx, "error enqueueing reminder", logging.ErrKey, err, logging.JobKey, job.ID)
				return scheduled, err
			}
			scheduled++
		}
	}
	return scheduled, nil
}

// CancelReminders removes every reminder identity the meeting could have. Missing
// jobs are not errors; other removal failures are collected and returned after
// every identity was tried.
func (s *ReminderService) CancelReminders(ctx context.Context, meetingUID string) (int, error) {
	if !s.ServiceReady() {
		return 0, s.notReady(ctx)
	}
	ctx = logging.AppendCtx(ctx, slog.String(logging.MeetingKey, meetingUID))

	meeting, err := s.MeetingRepository.Get(ctx, meetingUID)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	var errs []error
	for _, userID := range meeting.ParticipantIDs() {
		for _, offset := range models.ReminderOffsets {
			jobID := models.ReminderJobID(meeting.UID, userID, offset.Label)
			if err := s.Queue.Remove(ctx, jobID); err != nil {
				slog.WarnContext(ctx, "error removing reminder", logging.ErrKey, err, logging.JobKey, jobID)
				errs = append(errs, err)
				continue
			}
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

// ScanUpcoming reschedules reminders of every confirmed meeting starting within
// the scan horizon. It backs up missed scheduling calls and never duplicates jobs.
func (s *ReminderService) ScanUpcoming(ctx context.Context) (int, error) {
	if !s.ServiceReady() {
		return 0, s.notReady(ctx)
	}

	meetings, err := s.MeetingRepository.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	horizon := now.Add(constants.ReminderScanHorizon)

	var scheduled atomic.Int64
	var tasks []func() error
	for _, meeting := range meetings {
		if meeting.Status != models.MeetingStatusConfirmed {
			continue
		}
		if !meeting.StartTime.After(now) || meeting.StartTime.After(horizon) {
			continue
		}
		tasks = append(tasks, func() error {
			meetingCtx := logging.AppendCtx(ctx, slog.String(logging.MeetingKey, meeting.UID))
			n, err := s.schedule(meetingCtx, meeting)
			scheduled.Add(int64(n))
			return err
		})
	}

	pool := s.pool
	if pool == nil {
		pool = concurrent.NewWorkerPool(DefaultScanConcurrency)
	}
	errs := pool.RunAll(ctx, tasks...)

	slog.InfoContext(ctx, "reminder scan finished",
		"meetings", len(tasks),
		"jobs", scheduled.Load(),
		"errors", len(errs),
	)
	return int(scheduled.Load()), errors.Join(errs...)
}

// HandleReminder fires one reminder job. A reminder for a meeting that is gone,
// no longer active, moved, or no longer includes the user is stale and dropped.
// Errors are returned to the queue for retry.
func (s *ReminderService) HandleReminder(ctx context.Context, job *models.DelayedJob) error {
	if !s.ServiceReady() {
		return s.notReady(ctx)
	}

	var payload models.ReminderPayload
	if err := msgpack.Unmarshal(job.Payload, &payload); err != nil {
		return backoff.Permanent(domain.NewValidationError("malformed reminder payload", err))
	}
	ctx = logging.AppendCtx(ctx, slog.String(logging.MeetingKey, payload.MeetingUID))

	meeting, err := s.MeetingRepository.Get(ctx, payload.MeetingUID)
	if err != nil {
		if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
			slog.InfoContext(ctx, "dropping reminder for missing meeting")
			return nil
		}
		return err
	}

	switch {
	case meeting.Status.IsTerminal() || !meeting.Status.IsReminderEligible():
		slog.InfoContext(ctx, "dropping stale reminder", "status", meeting.Status)
		return nil
	case !meeting.StartTime.Equal(payload.ScheduledFor):
		slog.InfoContext(ctx, "dropping reminder for a moved meeting", "scheduled_for", payload.ScheduledFor)
		return nil
	case !meeting.IsParticipant(payload.UserID):
		slog.InfoContext(ctx, "dropping reminder for a removed participant", "user_id", payload.UserID)
		return nil
	}

	err = s.Notifier.SendNotification(ctx, models.NotificationJob{
		UserID:       payload.UserID,
		TenantID:     meeting.TenantID,
		Type:         models.NotificationMeetingReminder,
		Title:        fmt.Sprintf("Reminder: %s", meeting.Title),
		Body:         fmt.Sprintf("Your meeting starts in %s.", payload.Offset),
		ResourceType: "meeting",
		ResourceID:   meeting.UID,
		Channel:      models.ChannelInApp,
		Link:         s.URLs.GenerateMeetingURL(meeting.UID),
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "sent meeting reminder", "user_id", payload.UserID, "offset", payload.Offset)
	return nil
}
