// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import "time"

// VideoSessionStatus is the state of a provider video room session.
type VideoSessionStatus string

const (
	VideoSessionCreated VideoSessionStatus = "CREATED"
	VideoSessionActive  VideoSessionStatus = "ACTIVE"
	VideoSessionEnded   VideoSessionStatus = "ENDED"
)

// VideoSession is the key-value store representation of a meeting's video room session.
// It is created lazily on the first provider event for the meeting.
type VideoSession struct {
	MeetingUID        string             `json:"meeting_uid"`
	ProviderRoomName  string             `json:"provider_room_name"`
	ProviderSessionID string             `json:"provider_session_id,omitempty"`
	Status            VideoSessionStatus `json:"status"`
	StartedAt         *time.Time         `json:"started_at,omitempty"`
	EndedAt           *time.Time         `json:"ended_at,omitempty"`
	CreatedAt         *time.Time         `json:"created_at,omitempty"`
	UpdatedAt         *time.Time         `json:"updated_at,omitempty"`
}

// IsOpen reports whether the session has not ended yet.
func (s *VideoSession) IsOpen() bool {
	return s != nil && (s.Status == VideoSessionCreated || s.Status == VideoSessionActive)
}
