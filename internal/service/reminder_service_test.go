// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
)

// seed stores a meeting between alice and bob directly, bypassing the scheduling rules.
func (e *testEnv) seed(t *testing.T, status models.MeetingStatus, start time.Time) *models.Meeting {
	t.Helper()
	meeting := &models.Meeting{
		UID:         uuid.NewString(),
		TenantID:    testTenant,
		RequesterID: "alice",
		Title:       "Weekly sync",
		Status:      status,
		ProposedBy:  "alice",
		Participants: []models.Participant{
			{UserID: "alice", Role: models.ParticipantRoleHost, AttendanceStatus: models.AttendanceAccepted},
			{UserID: "bob", Role: models.ParticipantRoleCandidate, AttendanceStatus: models.AttendanceAccepted},
		},
	}
	meeting.SetSchedule(start, 30)
	meeting.ProviderRoomName = models.RoomName(testTenant, meeting.UID)
	require.NoError(t, e.meetings.Create(e.ctx, meeting))
	return meeting
}

func (e *testEnv) edit(t *testing.T, meetingUID string, change func(*models.Meeting)) {
	t.Helper()
	meeting, revision, err := e.meetings.GetWithRevision(e.ctx, meetingUID)
	require.NoError(t, err)
	change(meeting)
	require.NoError(t, e.meetings.Update(e.ctx, meeting, revision))
}

func TestReminderService_ServiceReady(t *testing.T) {
	s := &ReminderService{}
	assert.False(t, s.ServiceReady())

	_, err := s.ScheduleReminders(t.Context(), "m-1")
	assert.Equal(t, domain.ErrorTypeUnavailable, domain.GetErrorType(err))

	env := newTestEnv(t)
	assert.True(t, env.reminders.ServiceReady())
}

func TestReminderService_ScheduleReminders(t *testing.T) {
	env := newTestEnv(t)
	start := env.at(10, 0)
	meeting := env.seed(t, models.MeetingStatusConfirmed, start)

	first, err := env.reminders.ScheduleReminders(env.ctx, meeting.UID)
	require.NoError(t, err)
	second, err := env.reminders.ScheduleReminders(env.ctx, meeting.UID)
	require.NoError(t, err)

	assert.Equal(t, 6, first)
	assert.Equal(t, first, second)
	assert.Equal(t, 6, env.queue.Len(), "rescheduling must replace, not add")

	for _, userID := range []string{"alice", "bob"} {
		for _, offset := range models.ReminderOffsets {
			job, err := env.queue.Get(env.ctx, models.ReminderJobID(meeting.UID, userID, offset.Label))
			require.NoError(t, err, "%s %s", userID, offset.Label)
			assert.Equal(t, models.JobKindReminder, job.Kind)
			assert.True(t, job.RunAt.Equal(start.Add(-offset.Before)))

			var payload models.ReminderPayload
			require.NoError(t, msgpack.Unmarshal(job.Payload, &payload))
			assert.Equal(t, userID, payload.UserID)
			assert.Equal(t, offset.Label, payload.Offset)
			assert.Equal(t, testTenant, payload.TenantID)
			assert.True(t, payload.ScheduledFor.Equal(start))
		}
	}
}

func TestReminderService_ScheduleReminders_SkipsElapsed(t *testing.T) {
	env := newTestEnv(t)
	start := env.at(10, 0)
	meeting := env.seed(t, models.MeetingStatusConfirmed, start)
	env.now = start.Add(-30 * time.Minute)

	n, err := env.reminders.ScheduleReminders(env.ctx, meeting.UID)

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = env.queue.Get(env.ctx, models.ReminderJobID(meeting.UID, "bob", "15m"))
	assert.NoError(t, err)
	_, err = env.queue.Get(env.ctx, models.ReminderJobID(meeting.UID, "bob", "1h"))
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestReminderService_ScheduleReminders_NotEligible(t *testing.T) {
	for _, status := range []models.MeetingStatus{
		models.MeetingStatusRequested,
		models.MeetingStatusRescheduleRequested,
		models.MeetingStatusCanceled,
		models.MeetingStatusCompleted,
	} {
		t.Run(string(status), func(t *testing.T) {
			env := newTestEnv(t)
			meeting := env.seed(t, status, env.at(10, 0))

			n, err := env.reminders.ScheduleReminders(env.ctx, meeting.UID)

			require.NoError(t, err)
			assert.Zero(t, n)
			assert.Zero(t, env.queue.Len())
		})
	}

	env := newTestEnv(t)
	_, err := env.reminders.ScheduleReminders(env.ctx, "missing")
	assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err))
}

func TestReminderService_CancelReminders(t *testing.T) {
	env := newTestEnv(t)
	meeting := env.seed(t, models.MeetingStatusConfirmed, env.at(10, 0))
	other := env.seed(t, models.MeetingStatusConfirmed, env.at(14, 0))
	_, err := env.reminders.ScheduleReminders(env.ctx, meeting.UID)
	require.NoError(t, err)
	_, err = env.reminders.ScheduleReminders(env.ctx, other.UID)
	require.NoError(t, err)
	require.Equal(t, 12, env.queue.Len())

	removed, err := env.reminders.CancelReminders(env.ctx, meeting.UID)

	require.NoError(t, err)
	assert.Equal(t, 6, removed)
	assert.Equal(t, 6, env.queue.Len(), "other meetings keep their reminders")

	// nothing left to remove is still fine
	_, err = env.reminders.CancelReminders(env.ctx, meeting.UID)
	assert.NoError(t, err)

	removed, err = env.reminders.CancelReminders(env.ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestReminderService_HandleReminder(t *testing.T) {
	env := newTestEnv(t)
	meeting := env.seed(t, models.MeetingStatusConfirmed, env.at(10, 0))
	_, err := env.reminders.ScheduleReminders(env.ctx, meeting.UID)
	require.NoError(t, err)

	job, err := env.queue.Get(env.ctx, models.ReminderJobID(meeting.UID, "bob", "1h"))
	require.NoError(t, err)

	require.NoError(t, env.reminders.HandleReminder(env.ctx, job))

	sent := env.messages.notificationsOf(models.NotificationMeetingReminder)
	require.Len(t, sent, 1)
	assert.Equal(t, "bob", sent[0].UserID)
	assert.Equal(t, testTenant, sent[0].TenantID)
	assert.Equal(t, "Reminder: Weekly sync", sent[0].Title)
	assert.Equal(t, "Your meeting starts in 1h.", sent[0].Body)
	assert.Equal(t, meeting.UID, sent[0].ResourceID)
	assert.Equal(t, models.ChannelInApp, sent[0].Channel)
	assert.Equal(t, "https://app.dev.lfx.dev/meetings/"+meeting.UID, sent[0].Link)
}

func TestReminderService_HandleReminder_Stale(t *testing.T) {
	tests := []struct {
		name   string
		change func(env *testEnv, t *testing.T, meeting *models.Meeting)
	}{
		{
			name: "meeting moved",
			change: func(env *testEnv, t *testing.T, meeting *models.Meeting) {
				env.edit(t, meeting.UID, func(m *models.Meeting) { m.SetSchedule(env.at(16, 0), 30) })
			},
		},
		{
			name: "meeting canceled",
			change: func(env *testEnv, t *testing.T, meeting *models.Meeting) {
				env.edit(t, meeting.UID, func(m *models.Meeting) { m.Status = models.MeetingStatusCanceled })
			},
		},
		{
			name: "back to pending",
			change: func(env *testEnv, t *testing.T, meeting *models.Meeting) {
				env.edit(t, meeting.UID, func(m *models.Meeting) { m.Status = models.MeetingStatusRescheduleRequested })
			},
		},
		{
			name: "participant removed",
			change: func(env *testEnv, t *testing.T, meeting *models.Meeting) {
				env.edit(t, meeting.UID, func(m *models.Meeting) { m.Participants = m.Participants[:1] })
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			meeting := env.seed(t, models.MeetingStatusConfirmed, env.at(10, 0))
			_, err := env.reminders.ScheduleReminders(env.ctx, meeting.UID)
			require.NoError(t, err)
			job, err := env.queue.Get(env.ctx, models.ReminderJobID(meeting.UID, "bob", "24h"))
			require.NoError(t, err)

			tt.change(env, t, meeting)

			assert.NoError(t, env.reminders.HandleReminder(env.ctx, job))
			assert.Empty(t, env.messages.notificationsOf(models.NotificationMeetingReminder))
		})
	}

	t.Run("meeting gone", func(t *testing.T) {
		env := newTestEnv(t)
		payload, err := msgpack.Marshal(models.ReminderPayload{MeetingUID: "missing", UserID: "bob", Offset: "1h"})
		require.NoError(t, err)

		err = env.reminders.HandleReminder(env.ctx, &models.DelayedJob{ID: "x", Kind: models.JobKindReminder, Payload: payload})

		assert.NoError(t, err)
		assert.Empty(t, env.messages.notificationsOf(models.NotificationMeetingReminder))
	})
}

func TestReminderService_HandleReminder_MalformedPayload(t *testing.T) {
	env := newTestEnv(t)

	err := env.reminders.HandleReminder(env.ctx, &models.DelayedJob{
		ID:      "broken",
		Kind:    models.JobKindReminder,
		Payload: []byte{0xc1},
	})

	var permanent *backoff.PermanentError
	require.True(t, errors.As(err, &permanent), "got %v", err)
	assert.Equal(t, domain.ErrorTypeValidation, domain.GetErrorType(permanent.Err))
}

func TestReminderService_ScanUpcoming(t *testing.T) {
	env := newTestEnv(t)
	soon := env.seed(t, models.MeetingStatusConfirmed, env.now.Add(2*time.Hour))
	far := env.seed(t, models.MeetingStatusConfirmed, env.now.Add(72*time.Hour))
	pending := env.seed(t, models.MeetingStatusRequested, env.now.Add(3*time.Hour))
	past := env.seed(t, models.MeetingStatusConfirmed, env.now.Add(-time.Hour))

	n, err := env.reminders.ScanUpcoming(env.ctx)

	require.NoError(t, err)
	// the 24h reminder of the soon meeting already elapsed
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, env.queue.Len())
	_, err = env.queue.Get(env.ctx, models.ReminderJobID(soon.UID, "alice", "1h"))
	assert.NoError(t, err)

	for _, skipped := range []*models.Meeting{far, pending, past} {
		_, err := env.queue.Get(env.ctx, models.ReminderJobID(skipped.UID, "alice", "15m"))
		assert.Equal(t, domain.ErrorTypeNotFound, domain.GetErrorType(err), skipped.Title)
	}

	// a second scan finds the same identities
	n, err = env.reminders.ScanUpcoming(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4, env.queue.Len())
}
