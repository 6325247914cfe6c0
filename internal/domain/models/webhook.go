// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// VideoEventType is a normalized video provider webhook event name.
type VideoEventType string

const (
	VideoEventRoomStarted       VideoEventType = "room_started"
	VideoEventParticipantJoined VideoEventType = "participant_joined"
	VideoEventParticipantLeft   VideoEventType = "participant_left"
	VideoEventRoomFinished      VideoEventType = "room_finished"
)

// IsKnown reports whether the reconciler has a rule for t.
func (t VideoEventType) IsKnown() bool {
	switch t {
	case VideoEventRoomStarted, VideoEventParticipantJoined,
		VideoEventParticipantLeft, VideoEventRoomFinished:
		return true
	}
	return false
}

// VideoRoom identifies the provider room of an event.
type VideoRoom struct {
	Name string `json:"name"`
	SID  string `json:"sid,omitempty"`
}

// VideoParticipant identifies the provider participant of an event. Identity is the
// internal user ID the room token was issued for.
type VideoParticipant struct {
	Identity string `json:"identity"`
	SID      string `json:"sid,omitempty"`
}

// VideoWebhookEvent is a verified and normalized provider webhook event.
type VideoWebhookEvent struct {
	EventID     string            `json:"id"`
	EventType   VideoEventType    `json:"event"`
	Room        VideoRoom         `json:"room"`
	Participant *VideoParticipant `json:"participant,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
