// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package models

import (
	"fmt"
	"time"
)

// Validation limits for meeting requests.
const (
	TitleMinLength       = 3
	TitleMaxLength       = 200
	DescriptionMaxLength = 2000
	MinDurationMinutes   = 15
	MaxDurationMinutes   = 480
	MaxBufferMinutes     = 120

	// DefaultJoinEarlyMinutes and DefaultJoinLateMinutes bound the join window around the
	// scheduled meeting time.
	DefaultJoinEarlyMinutes = 10
	DefaultJoinLateMinutes  = 5
)

// Meeting is the key-value store representation of a meeting request.
type Meeting struct {
	UID               string        `json:"uid"`
	TenantID          string        `json:"tenant_id"`
	RequesterID       string        `json:"requester_id"`
	Participants      []Participant `json:"participants"`
	Title             string        `json:"title"`
	Description       string        `json:"description,omitempty"`
	StartTime         time.Time     `json:"start_time"`
	EndTime           time.Time     `json:"end_time"`
	DurationMinutes   int           `json:"duration_minutes"`
	Timezone          string        `json:"timezone"`
	BufferMinutes     int           `json:"buffer_minutes"`
	Status            MeetingStatus `json:"status"`
	Location          string        `json:"location,omitempty"`
	MeetingURL        string        `json:"meeting_url,omitempty"`
	ProviderRoomName  string        `json:"provider_room_name"`
	ProposedBy        string        `json:"proposed_by"` // participant whose proposal is pending
	JoinWindowOpenAt  time.Time     `json:"join_window_open_at"`
	JoinWindowCloseAt time.Time     `json:"join_window_close_at"`
	RescheduleReason  string        `json:"reschedule_reason,omitempty"`
	CanceledBy        string        `json:"canceled_by,omitempty"`
	CanceledReason    string        `json:"canceled_reason,omitempty"`
	StartedAt         *time.Time    `json:"started_at,omitempty"`
	EndedAt           *time.Time    `json:"ended_at,omitempty"`
	CreatedAt         *time.Time    `json:"created_at,omitempty"`
	UpdatedAt         *time.Time    `json:"updated_at,omitempty"`
}

// ParticipantRole is the role a participant plays in a meeting.
type ParticipantRole string

const (
	ParticipantRoleHost        ParticipantRole = "HOST"
	ParticipantRoleInterviewer ParticipantRole = "INTERVIEWER"
	ParticipantRoleCandidate   ParticipantRole = "CANDIDATE"
	ParticipantRoleObserver    ParticipantRole = "OBSERVER"
	ParticipantRoleRecruiter   ParticipantRole = "RECRUITER"
)

// IsValid reports whether r is a known participant role.
func (r ParticipantRole) IsValid() bool {
	switch r {
	case ParticipantRoleHost, ParticipantRoleInterviewer, ParticipantRoleCandidate,
		ParticipantRoleObserver, ParticipantRoleRecruiter:
		return true
	}
	return false
}

// AttendanceStatus tracks a participant through invitation and the live session.
type AttendanceStatus string

const (
	AttendanceInvited  AttendanceStatus = "INVITED"
	AttendanceAccepted AttendanceStatus = "ACCEPTED"
	AttendanceJoined   AttendanceStatus = "JOINED"
	AttendanceLeft     AttendanceStatus = "LEFT"
)

// Participant is a user attached to a meeting with a role.
type Participant struct {
	MeetingUID       string           `json:"meeting_uid"`
	UserID           string           `json:"user_id"`
	Role             ParticipantRole  `json:"role"`
	AttendanceStatus AttendanceStatus `json:"attendance_status"`
	JoinedAt         *time.Time       `json:"joined_at,omitempty"`
	LeftAt           *time.Time       `json:"left_at,omitempty"`
}

// RoomName builds the provider room name for a meeting owned by tenantID.
func RoomName(tenantID, meetingUID string) string {
	return fmt.Sprintf("t_%s_m_%s", tenantID, meetingUID)
}

// Participant returns the participant with the given user ID, or nil.
func (m *Meeting) Participant(userID string) *Participant {
	if m == nil {
		return nil
	}
	for i := range m.Participants {
		if m.Participants[i].UserID == userID {
			return &m.Participants[i]
		}
	}
	return nil
}

// IsParticipant reports whether userID takes part in the meeting.
func (m *Meeting) IsParticipant(userID string) bool {
	return m.Participant(userID) != nil
}

// ParticipantIDs returns the user IDs of every participant in stored order.
func (m *Meeting) ParticipantIDs() []string {
	if m == nil {
		return nil
	}
	ids := make([]string, 0, len(m.Participants))
	for _, p := range m.Participants {
		ids = append(ids, p.UserID)
	}
	return ids
}

// SetSchedule updates the start, duration and derived end time and join window.
func (m *Meeting) SetSchedule(start time.Time, durationMinutes int) {
	m.StartTime = start.UTC()
	m.DurationMinutes = durationMinutes
	m.EndTime = m.StartTime.Add(time.Duration(durationMinutes) * time.Minute)
	m.JoinWindowOpenAt = m.StartTime.Add(-DefaultJoinEarlyMinutes * time.Minute)
	m.JoinWindowCloseAt = m.EndTime.Add(DefaultJoinLateMinutes * time.Minute)
}

// IsBlocking reports whether the meeting currently occupies its participants' calendars.
func (m *Meeting) IsBlocking() bool {
	return m != nil && m.Status.IsBlocking()
}

// Tags generates a consistent set of tags for the meeting for log and event correlation.
func (m *Meeting) Tags() []string {
	if m == nil {
		return nil
	}

	tags := []string{}
	if m.UID != "" {
		tags = append(tags, m.UID)
		tags = append(tags, fmt.Sprintf("meeting_uid:%s", m.UID))
	}
	if m.TenantID != "" {
		tags = append(tags, fmt.Sprintf("tenant_id:%s", m.TenantID))
	}
	if m.Status != "" {
		tags = append(tags, fmt.Sprintf("status:%s", m.Status))
	}
	if m.ProviderRoomName != "" {
		tags = append(tags, fmt.Sprintf("room:%s", m.ProviderRoomName))
	}
	for _, p := range m.Participants {
		tags = append(tags, fmt.Sprintf("participant:%s", p.UserID))
	}
	return tags
}
