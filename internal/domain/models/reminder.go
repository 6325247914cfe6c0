// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"time"
)

// JobKindReminder is the delayed job kind for meeting reminders.
const JobKindReminder = "reminder"

// ReminderOffset is how long before the meeting start a reminder fires.
type ReminderOffset struct {
	Label  string
	Before time.Duration
}

// ReminderOffsets are the reminders every participant of a confirmed meeting receives.
var ReminderOffsets = []ReminderOffset{
	{Label: "24h", Before: 24 * time.Hour},
	{Label: "1h", Before: time.Hour},
	{Label: "15m", Before: 15 * time.Minute},
}

// ReminderJobID derives the queue identity of a reminder purely from business keys.
// The same identity is used to schedule and to cancel.
func ReminderJobID(meetingUID, userID, offsetLabel string) string {
	return fmt.Sprintf("reminder.%s.%s.%s", meetingUID, userID, offsetLabel)
}

// FireAt returns when the reminder for a meeting starting at start should fire.
func (o ReminderOffset) FireAt(start time.Time) time.Time {
	return start.Add(-o.Before)
}

// ReminderPayload is the body of a reminder delayed job.
type ReminderPayload struct {
	MeetingUID   string    `json:"meeting_uid" msgpack:"meeting_uid"`
	UserID       string    `json:"user_id" msgpack:"user_id"`
	TenantID     string    `json:"tenant_id" msgpack:"tenant_id"`
	Offset       string    `json:"offset" msgpack:"offset"`
	ScheduledFor time.Time `json:"scheduled_for" msgpack:"scheduled_for"`
}
