// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// LifecycleEventType names an entry in a meeting's event log.
type LifecycleEventType string

const (
	EventRequestCreated      LifecycleEventType = "REQUEST_CREATED"
	EventRequestAccepted     LifecycleEventType = "REQUEST_ACCEPTED"
	EventRequestDenied       LifecycleEventType = "REQUEST_DENIED"
	EventRescheduleRequested LifecycleEventType = "RESCHEDULE_REQUESTED"
	EventCanceled            LifecycleEventType = "CANCELED"
	EventExpired             LifecycleEventType = "EXPIRED"
	EventMeetingStarted      LifecycleEventType = "MEETING_STARTED"
	EventMeetingEnded        LifecycleEventType = "MEETING_ENDED"
	EventRoomStarted         LifecycleEventType = "ROOM_STARTED"
	EventParticipantJoined   LifecycleEventType = "PARTICIPANT_JOINED"
	EventParticipantLeft     LifecycleEventType = "PARTICIPANT_LEFT"
	EventWebhookReconciled   LifecycleEventType = "WEBHOOK_RECONCILED"
)

// LifecycleEvent is an append-only record of something that happened to a meeting.
type LifecycleEvent struct {
	UID           string             `json:"uid"`
	MeetingUID    string             `json:"meeting_uid"`
	TenantID      string             `json:"tenant_id"`
	ActorUserID   string             `json:"actor_user_id,omitempty"`
	Type          LifecycleEventType `json:"type"`
	CorrelationID string             `json:"correlation_id,omitempty"`
	Payload       map[string]any     `json:"payload,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}
