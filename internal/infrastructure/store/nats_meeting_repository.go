// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/logging"
)

var _ domain.MeetingRepository = (*NatsMeetingRepository)(nil)

// NatsMeetingRepository is the NATS KV store repository for meetings.
// Meetings and their participant and room indexes share one bucket.
type NatsMeetingRepository struct {
	*NatsBaseRepository[models.Meeting]
	keyBuilder *KeyBuilder
}

// NewNatsMeetingRepository creates a new NATS KV store repository for meetings.
func NewNatsMeetingRepository(kvStore INatsKeyValue) *NatsMeetingRepository {
	return &NatsMeetingRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.Meeting](kvStore, "meeting"),
		keyBuilder:         NewKeyBuilder(""),
	}
}

func (r *NatsMeetingRepository) key(meetingUID string) string {
	return r.keyBuilder.EntityKeyEncoded(KeyPrefixMeeting, meetingUID)
}

// notFound rewrites a store miss into ErrMeetingNotFound.
func notFound(err error, meetingUID string) error {
	if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
		return domain.NewNotFoundError(fmt.Sprintf("meeting '%s' not found", meetingUID), domain.ErrMeetingNotFound)
	}
	return err
}

// Create stores a new meeting and indexes it by participant and room name.
// A meeting with the same UID is a conflict.
func (r *NatsMeetingRepository) Create(ctx context.Context, meeting *models.Meeting) error {
	if _, err := r.NatsBaseRepository.Create(ctx, r.key(meeting.UID), meeting); err != nil {
		return err
	}

	if err := r.createIndices(ctx, meeting); err != nil {
		slog.WarnContext(ctx, "failed to create indices", logging.ErrKey, err, logging.MeetingKey, meeting.UID)
		// Don't fail the operation if indexing fails
	}

	return nil
}

func (r *NatsMeetingRepository) createIndices(ctx context.Context, meeting *models.Meeting) error {
	for _, userID := range meeting.ParticipantIDs() {
		if err := r.PutIndex(ctx, r.keyBuilder.IndexKeyEncoded(KeyPrefixIndexParticipant, userID, meeting.UID)); err != nil {
			return err
		}
	}
	if meeting.ProviderRoomName != "" {
		if err := r.PutIndex(ctx, r.keyBuilder.IndexKeyEncoded(KeyPrefixIndexRoom, meeting.ProviderRoomName, meeting.UID)); err != nil {
			return err
		}
	}
	return nil
}

// Exists checks if a meeting exists
func (r *NatsMeetingRepository) Exists(ctx context.Context, meetingUID string) (bool, error) {
	return r.NatsBaseRepository.Exists(ctx, r.key(meetingUID))
}

// Get retrieves a meeting by UID
func (r *NatsMeetingRepository) Get(ctx context.Context, meetingUID string) (*models.Meeting, error) {
	meeting, err := r.NatsBaseRepository.Get(ctx, r.key(meetingUID))
	if err != nil {
		return nil, notFound(err, meetingUID)
	}
	return meeting, nil
}

// GetWithRevision retrieves a meeting with revision by UID
func (r *NatsMeetingRepository) GetWithRevision(ctx context.Context, meetingUID string) (*models.Meeting, uint64, error) {
	meeting, revision, err := r.NatsBaseRepository.GetWithRevision(ctx, r.key(meetingUID))
	if err != nil {
		return nil, 0, notFound(err, meetingUID)
	}
	return meeting, revision, nil
}

// Update replaces a meeting if revision is still current.
func (r *NatsMeetingRepository) Update(ctx context.Context, meeting *models.Meeting, revision uint64) error {
	_, err := r.NatsBaseRepository.Update(ctx, r.key(meeting.UID), meeting, revision)
	return notFound(err, meeting.UID)
}

// GetByRoomName retrieves the meeting that owns a provider room.
func (r *NatsMeetingRepository) GetByRoomName(ctx context.Context, roomName string) (*models.Meeting, error) {
	uids, err := r.ListIndex(ctx, r.keyBuilder.IndexPrefix(KeyPrefixIndexRoom, roomName), r.keyBuilder)
	if err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return nil, domain.NewNotFoundError(fmt.Sprintf("no meeting for room '%s'", roomName), domain.ErrMeetingNotFound)
	}
	if len(uids) > 1 {
		slog.WarnContext(ctx, "room name indexed for more than one meeting", "room", roomName, "meeting_uids", uids)
	}
	return r.Get(ctx, uids[0])
}

// ListByParticipant returns every meeting the user takes part in.
func (r *NatsMeetingRepository) ListByParticipant(ctx context.Context, userID string) ([]*models.Meeting, error) {
	uids, err := r.ListIndex(ctx, r.keyBuilder.IndexPrefix(KeyPrefixIndexParticipant, userID), r.keyBuilder)
	if err != nil {
		return nil, err
	}

	meetings := make([]*models.Meeting, 0, len(uids))
	for _, uid := range uids {
		meeting, err := r.Get(ctx, uid)
		if err != nil {
			if domain.GetErrorType(err) == domain.ErrorTypeNotFound {
				slog.DebugContext(ctx, "skipping orphaned participant index", logging.MeetingKey, uid, "user_id", userID)
				continue
			}
			return nil, err
		}
		meetings = append(meetings, meeting)
	}
	return meetings, nil
}

// ListAll returns every stored meeting.
func (r *NatsMeetingRepository) ListAll(ctx context.Context) ([]*models.Meeting, error) {
	return r.ListEntitiesEncoded(ctx, "/"+KeyPrefixMeeting+"/", r.keyBuilder)
}
