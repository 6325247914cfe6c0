// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-scheduling-service/internal/domain/models"
)

var _ domain.VideoSessionRepository = (*NatsVideoSessionRepository)(nil)

// NatsVideoSessionRepository stores the video session of each meeting under the meeting UID.
type NatsVideoSessionRepository struct {
	*NatsBaseRepository[models.VideoSession]
	keyBuilder *KeyBuilder
}

// NewNatsVideoSessionRepository creates a new NATS KV store repository for video sessions.
func NewNatsVideoSessionRepository(kvStore INatsKeyValue) *NatsVideoSessionRepository {
	return &NatsVideoSessionRepository{
		NatsBaseRepository: NewNatsBaseRepository[models.VideoSession](kvStore, "video session"),
		keyBuilder:         NewKeyBuilder(""),
	}
}

func (r *NatsVideoSessionRepository) key(meetingUID string) string {
	return r.keyBuilder.EntityKeyEncoded(KeyPrefixVideoSession, meetingUID)
}

// Create stores the first session of a meeting. A second create for the same
// meeting is a conflict.
func (r *NatsVideoSessionRepository) Create(ctx context.Context, session *models.VideoSession) error {
	_, err := r.NatsBaseRepository.Create(ctx, r.key(session.MeetingUID), session)
	return err
}

// GetWithRevision retrieves the session of a meeting with its revision.
func (r *NatsVideoSessionRepository) GetWithRevision(ctx context.Context, meetingUID string) (*models.VideoSession, uint64, error) {
	return r.NatsBaseRepository.GetWithRevision(ctx, r.key(meetingUID))
}

// Update replaces a session if revision is still current.
func (r *NatsVideoSessionRepository) Update(ctx context.Context, session *models.VideoSession, revision uint64) error {
	_, err := r.NatsBaseRepository.Update(ctx, r.key(session.MeetingUID), session, revision)
	return err
}
