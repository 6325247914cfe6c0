// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// MeetingStatus is the lifecycle state of a meeting request.
type MeetingStatus string

const (
	MeetingStatusDraft               MeetingStatus = "DRAFT"
	MeetingStatusRequested           MeetingStatus = "REQUESTED"
	MeetingStatusConfirmed           MeetingStatus = "CONFIRMED"
	MeetingStatusRescheduleRequested MeetingStatus = "RESCHEDULE_REQUESTED"
	MeetingStatusInProgress          MeetingStatus = "IN_PROGRESS"
	MeetingStatusDenied              MeetingStatus = "DENIED"
	MeetingStatusCanceled            MeetingStatus = "CANCELED"
	MeetingStatusCompleted           MeetingStatus = "COMPLETED"
	MeetingStatusNoShow              MeetingStatus = "NO_SHOW"
	MeetingStatusExpired             MeetingStatus = "EXPIRED"
)

// transitions is the only source of legal status changes. Terminal states map to
// an empty set.
var transitions = map[MeetingStatus][]MeetingStatus{
	MeetingStatusDraft:               {MeetingStatusRequested, MeetingStatusCanceled},
	MeetingStatusRequested:           {MeetingStatusConfirmed, MeetingStatusDenied, MeetingStatusCanceled, MeetingStatusExpired},
	MeetingStatusConfirmed:           {MeetingStatusInProgress, MeetingStatusCanceled, MeetingStatusRescheduleRequested, MeetingStatusNoShow, MeetingStatusExpired},
	MeetingStatusRescheduleRequested: {MeetingStatusConfirmed, MeetingStatusDenied, MeetingStatusCanceled},
	MeetingStatusInProgress:          {MeetingStatusCompleted},
	MeetingStatusDenied:              {},
	MeetingStatusCanceled:            {},
	MeetingStatusCompleted:           {},
	MeetingStatusNoShow:              {},
	MeetingStatusExpired:             {},
}

// CanTransition reports whether the table has an edge from -> to.
func CanTransition(from, to MeetingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValid reports whether s is a known status.
func (s MeetingStatus) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s MeetingStatus) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// IsBlocking reports whether a meeting in status s occupies calendar time for
// conflict detection.
func (s MeetingStatus) IsBlocking() bool {
	switch s {
	case MeetingStatusRequested, MeetingStatusRescheduleRequested,
		MeetingStatusConfirmed, MeetingStatusInProgress:
		return true
	}
	return false
}

// IsPendingResponse reports whether s awaits an accept or deny.
func (s MeetingStatus) IsPendingResponse() bool {
	return s == MeetingStatusRequested || s == MeetingStatusRescheduleRequested
}

// IsReminderEligible reports whether reminders should exist for a meeting in status s.
func (s MeetingStatus) IsReminderEligible() bool {
	return s == MeetingStatusConfirmed || s == MeetingStatusInProgress
}

// CanJoinMeeting reports whether a participant may enter the meeting room at now.
// Both window bounds are inclusive.
func CanJoinMeeting(status MeetingStatus, windowOpen, windowClose, now time.Time) bool {
	if status != MeetingStatusConfirmed && status != MeetingStatusInProgress {
		return false
	}
	return !now.Before(windowOpen) && !now.After(windowClose)
}

// CanEndMeeting reports whether a participant with role may end a meeting for everyone.
func CanEndMeeting(role ParticipantRole) bool {
	switch role {
	case ParticipantRoleHost, ParticipantRoleInterviewer, ParticipantRoleRecruiter:
		return true
	}
	return false
}
