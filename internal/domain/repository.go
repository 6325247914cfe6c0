// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"
	"time"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
)

// MeetingRepository defines the interface for meeting storage operations.
// Missing meetings are reported as a not found DomainError wrapping ErrMeetingNotFound;
// a stale revision on Update is a conflict DomainError wrapping ErrRevisionMismatch.
type MeetingRepository interface {
	Create(ctx context.Context, meeting *models.Meeting) error
	Exists(ctx context.Context, meetingUID string) (bool, error)
	Get(ctx context.Context, meetingUID string) (*models.Meeting, error)
	GetWithRevision(ctx context.Context, meetingUID string) (*models.Meeting, uint64, error)
	Update(ctx context.Context, meeting *models.Meeting, revision uint64) error

	// Index lookups
	GetByRoomName(ctx context.Context, roomName string) (*models.Meeting, error)
	ListByParticipant(ctx context.Context, userID string) ([]*models.Meeting, error)

	// Bulk operations
	ListAll(ctx context.Context) ([]*models.Meeting, error)
}

// LifecycleEventRepository stores the append-only event log of each meeting.
type LifecycleEventRepository interface {
	Append(ctx context.Context, event *models.LifecycleEvent) error
	ListByMeeting(ctx context.Context, meetingUID string) ([]*models.LifecycleEvent, error)
}

// VideoSessionRepository stores one video session per meeting, keyed by meeting UID.
type VideoSessionRepository interface {
	Create(ctx context.Context, session *models.VideoSession) error
	GetWithRevision(ctx context.Context, meetingUID string) (*models.VideoSession, uint64, error)
	Update(ctx context.Context, session *models.VideoSession, revision uint64) error
}

// IdempotencyStore remembers processed keys until they expire.
type IdempotencyStore interface {
	// Get returns nil without error when the key is absent or expired.
	Get(ctx context.Context, key string) (*models.IdempotencyRecord, error)
	Save(ctx context.Context, record *models.IdempotencyRecord) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
