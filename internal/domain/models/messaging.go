// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// NATS subjects that the scheduling service sends messages about.
const (
	// AuditSubject is the subject for fire-and-forget audit events.
	// The subject is of the form: lfx.scheduling.audit
	AuditSubject = "lfx.scheduling.audit"

	// NotificationSubject is the subject for notification jobs handed to the dispatch service.
	// The subject is of the form: lfx.scheduling.notifications
	NotificationSubject = "lfx.scheduling.notifications"
)

// NATS subjects that the scheduling service handles messages about.
const (
	// SchedulingQueue is the queue group shared by every scheduling worker instance.
	// The subject is of the form: lfx.scheduling.queue
	SchedulingQueue = "lfx.scheduling.queue"

	// VideoWebhookSubject carries verified video provider webhook bodies.
	// The subject is of the form: lfx.scheduling.video-webhook
	VideoWebhookSubject = "lfx.scheduling.video-webhook"

	// SchedulingSubjectPrefix prefixes every request/reply scheduling operation.
	SchedulingSubjectPrefix = "lfx.scheduling.meeting."

	// MeetingCreateSubject creates a meeting request.
	// The subject is of the form: lfx.scheduling.meeting.create
	MeetingCreateSubject = SchedulingSubjectPrefix + "create"

	// MeetingRespondSubject accepts or denies a pending proposal.
	// The subject is of the form: lfx.scheduling.meeting.respond
	MeetingRespondSubject = SchedulingSubjectPrefix + "respond"

	// MeetingRescheduleSubject proposes a new meeting time.
	// The subject is of the form: lfx.scheduling.meeting.reschedule
	MeetingRescheduleSubject = SchedulingSubjectPrefix + "reschedule"

	// MeetingCancelSubject cancels a meeting.
	// The subject is of the form: lfx.scheduling.meeting.cancel
	MeetingCancelSubject = SchedulingSubjectPrefix + "cancel"

	// MeetingStartSubject starts a confirmed meeting.
	// The subject is of the form: lfx.scheduling.meeting.start
	MeetingStartSubject = SchedulingSubjectPrefix + "start"

	// MeetingEndSubject ends an in-progress meeting for everyone.
	// The subject is of the form: lfx.scheduling.meeting.end
	MeetingEndSubject = SchedulingSubjectPrefix + "end"

	// MeetingJoinPermissionsSubject answers whether the actor may join or end a meeting now.
	// The subject is of the form: lfx.scheduling.meeting.join-permissions
	MeetingJoinPermissionsSubject = SchedulingSubjectPrefix + "join-permissions"

	// AvailabilitySubject returns a user's business hour slots for a day.
	// The subject is of the form: lfx.scheduling.meeting.availability
	AvailabilitySubject = SchedulingSubjectPrefix + "availability"

	// SchedulingWildcardSubject subscribes to every scheduling operation.
	SchedulingWildcardSubject = SchedulingSubjectPrefix + "*"
)

// IdempotencyKeyHeader carries the caller's key for replaying a mutation's reply.
const IdempotencyKeyHeader = "Idempotency-Key"

// AuditAction names an audited scheduling operation.
type AuditAction string

const (
	AuditActionCreate     AuditAction = "meeting.create"
	AuditActionAccept     AuditAction = "meeting.accept"
	AuditActionDeny       AuditAction = "meeting.deny"
	AuditActionReschedule AuditAction = "meeting.reschedule"
	AuditActionCancel     AuditAction = "meeting.cancel"
	AuditActionStart      AuditAction = "meeting.start"
	AuditActionEnd        AuditAction = "meeting.end"
	AuditActionExpire     AuditAction = "meeting.expire"
)

// AuditEvent is the message published on AuditSubject.
type AuditEvent struct {
	Action       AuditAction    `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id"`
	TenantID     string         `json:"tenant_id"`
	ActorID      string         `json:"actor_id"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// NotificationType identifies the template the dispatch service renders.
type NotificationType string

const (
	NotificationMeetingRequest     NotificationType = "meeting_request"
	NotificationMeetingConfirmed   NotificationType = "meeting_confirmed"
	NotificationMeetingDenied      NotificationType = "meeting_denied"
	NotificationMeetingRescheduled NotificationType = "meeting_rescheduled"
	NotificationMeetingCanceled    NotificationType = "meeting_canceled"
	NotificationMeetingReminder    NotificationType = "meeting_reminder"
)

// NotificationChannel is the delivery channel for a notification.
type NotificationChannel string

const (
	ChannelInApp NotificationChannel = "in_app"
	ChannelEmail NotificationChannel = "email"
	ChannelPush  NotificationChannel = "push"
)

// NotificationJob is the message published on NotificationSubject.
type NotificationJob struct {
	UserID       string              `json:"user_id"`
	TenantID     string              `json:"tenant_id"`
	Type         NotificationType    `json:"type"`
	Title        string              `json:"title"`
	Body         string              `json:"body"`
	ResourceType string              `json:"resource_type"`
	ResourceID   string              `json:"resource_id"`
	Channel      NotificationChannel `json:"channel"`
	// Link points at the meeting page in the LFX app.
	Link string `json:"link,omitempty"`
	// ICS is an optional iCalendar attachment.
	ICS string `json:"ics,omitempty"`
}
