// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var allStatuses = []MeetingStatus{
	MeetingStatusDraft,
	MeetingStatusRequested,
	MeetingStatusConfirmed,
	MeetingStatusRescheduleRequested,
	MeetingStatusInProgress,
	MeetingStatusDenied,
	MeetingStatusCanceled,
	MeetingStatusCompleted,
	MeetingStatusNoShow,
	MeetingStatusExpired,
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from MeetingStatus
		to   MeetingStatus
		want bool
	}{
		{MeetingStatusDraft, MeetingStatusRequested, true},
		{MeetingStatusDraft, MeetingStatusConfirmed, false},
		{MeetingStatusRequested, MeetingStatusConfirmed, true},
		{MeetingStatusRequested, MeetingStatusDenied, true},
		{MeetingStatusRequested, MeetingStatusExpired, true},
		{MeetingStatusRequested, MeetingStatusInProgress, false},
		{MeetingStatusConfirmed, MeetingStatusInProgress, true},
		{MeetingStatusConfirmed, MeetingStatusRescheduleRequested, true},
		{MeetingStatusConfirmed, MeetingStatusNoShow, true},
		{MeetingStatusConfirmed, MeetingStatusDenied, false},
		{MeetingStatusRescheduleRequested, MeetingStatusConfirmed, true},
		{MeetingStatusRescheduleRequested, MeetingStatusExpired, false},
		{MeetingStatusInProgress, MeetingStatusCompleted, true},
		{MeetingStatusInProgress, MeetingStatusCanceled, false},
		{MeetingStatus("BOGUS"), MeetingStatusConfirmed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestCanTransition_TerminalStatesHaveNoExits(t *testing.T) {
	terminal := []MeetingStatus{
		MeetingStatusDenied,
		MeetingStatusCanceled,
		MeetingStatusCompleted,
		MeetingStatusNoShow,
		MeetingStatusExpired,
	}

	for _, from := range terminal {
		assert.True(t, from.IsTerminal(), "%s should be terminal", from)
		for _, to := range allStatuses {
			assert.False(t, CanTransition(from, to), "%s -> %s must be rejected", from, to)
		}
	}
}

func TestMeetingStatus_Classification(t *testing.T) {
	assert.False(t, MeetingStatusConfirmed.IsTerminal())
	assert.False(t, MeetingStatus("BOGUS").IsTerminal())
	assert.False(t, MeetingStatus("BOGUS").IsValid())

	for _, s := range allStatuses {
		assert.True(t, s.IsValid())
	}

	assert.True(t, MeetingStatusRequested.IsBlocking())
	assert.True(t, MeetingStatusRescheduleRequested.IsBlocking())
	assert.True(t, MeetingStatusConfirmed.IsBlocking())
	assert.True(t, MeetingStatusInProgress.IsBlocking())
	assert.False(t, MeetingStatusDraft.IsBlocking())
	assert.False(t, MeetingStatusCanceled.IsBlocking())

	assert.True(t, MeetingStatusRescheduleRequested.IsPendingResponse())
	assert.False(t, MeetingStatusConfirmed.IsPendingResponse())

	assert.True(t, MeetingStatusConfirmed.IsReminderEligible())
	assert.True(t, MeetingStatusInProgress.IsReminderEligible())
	assert.False(t, MeetingStatusRequested.IsReminderEligible())
}

func TestCanJoinMeeting(t *testing.T) {
	open := time.Date(2026, 1, 1, 9, 50, 0, 0, time.UTC)
	closeAt := time.Date(2026, 1, 1, 11, 5, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status MeetingStatus
		now    time.Time
		want   bool
	}{
		{"confirmed inside window", MeetingStatusConfirmed, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{"draft inside window", MeetingStatusDraft, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), false},
		{"confirmed before window", MeetingStatusConfirmed, time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC), false},
		{"in progress at window open", MeetingStatusInProgress, open, true},
		{"in progress at window close", MeetingStatusInProgress, closeAt, true},
		{"confirmed after window", MeetingStatusConfirmed, closeAt.Add(time.Second), false},
		{"requested inside window", MeetingStatusRequested, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), false},
		{"completed inside window", MeetingStatusCompleted, time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanJoinMeeting(tt.status, open, closeAt, tt.now))
		})
	}
}

func TestCanEndMeeting(t *testing.T) {
	assert.True(t, CanEndMeeting(ParticipantRoleHost))
	assert.True(t, CanEndMeeting(ParticipantRoleInterviewer))
	assert.True(t, CanEndMeeting(ParticipantRoleRecruiter))
	assert.False(t, CanEndMeeting(ParticipantRoleCandidate))
	assert.False(t, CanEndMeeting(ParticipantRoleObserver))
	assert.False(t, CanEndMeeting(ParticipantRole("")))
}
